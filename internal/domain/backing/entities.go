package backing

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("backing not found")
	ErrProfileNotFound = errors.New("profile not found")
)

type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

const (
	MinStrength = 1
	MaxStrength = 10
)

// Table: backings
type Backing struct {
	ID             uint64     `gorm:"primaryKey;column:id"`
	BackingID      string     `gorm:"column:backing_id;size:32;uniqueIndex:ux_backings_backing_id"`
	BackerID       string     `gorm:"column:backer_id;size:32;not null;index"`
	BorrowerID     string     `gorm:"column:borrower_id;size:32;not null;index"`
	Status         Status     `gorm:"column:status;size:16;not null;default:'active';index"`
	Strength       int        `gorm:"column:strength;not null"`
	LoansCompleted int        `gorm:"column:loans_completed;not null;default:0"`
	LoansDefaulted int        `gorm:"column:loans_defaulted;not null;default:0"`
	LoansActive    int        `gorm:"column:loans_active;not null;default:0"`
	RevokedAt      *time.Time `gorm:"column:revoked_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Backing) TableName() string { return "backings" }

type Outcome string

const (
	OutcomeCompleted       Outcome = "completed"
	OutcomeDefaulted       Outcome = "defaulted"
	OutcomeDefaultResolved Outcome = "default_resolved"
)

// Table: backing_outcomes. One row per (backing, loan, outcome); a duplicate
// insert means the outcome was already applied.
type OutcomeRecord struct {
	ID        uint64    `gorm:"primaryKey;column:id"`
	BackingID uint64    `gorm:"column:backing_id;not null;uniqueIndex:ux_backing_outcomes,priority:1"`
	LoanID    string    `gorm:"column:loan_id;size:32;not null;uniqueIndex:ux_backing_outcomes,priority:2"`
	Outcome   Outcome   `gorm:"column:outcome;size:24;not null;uniqueIndex:ux_backing_outcomes,priority:3"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OutcomeRecord) TableName() string { return "backing_outcomes" }

// Profile is the slice of the user row owned by the accountability engine.
// Table: users
type Profile struct {
	ID                 uint64     `gorm:"primaryKey;column:id"`
	UserID             string     `gorm:"column:user_id;size:32;uniqueIndex:ux_users_user_id"`
	DisplayName        string     `gorm:"column:display_name;size:120"`
	ActiveDefaultCount int        `gorm:"column:active_default_count;not null;default:0"`
	Locked             bool       `gorm:"column:locked;not null;default:false"`
	LockedReason       string     `gorm:"column:locked_reason;type:text"`
	LockedAt           *time.Time `gorm:"column:locked_at"`
	SuccessRate        float64    `gorm:"column:success_rate;not null;default:100"`
	TrustScore         int        `gorm:"column:trust_score;not null;default:0"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Profile) TableName() string { return "users" }

// Table: trust_events (append-only)
type TrustEvent struct {
	ID          uint64    `gorm:"primaryKey;column:id"`
	EventID     uuid.UUID `gorm:"column:event_id;type:char(36);uniqueIndex:ux_trust_events_event_id"`
	SubjectID   string    `gorm:"column:subject_id;size:48;not null;index"`
	Delta       int       `gorm:"column:delta;not null"`
	Category    string    `gorm:"column:category;size:40;not null"`
	Description string    `gorm:"column:description;type:text"`
	LoanID      *string   `gorm:"column:loan_id;size:32"`
	BackingID   *string   `gorm:"column:backing_id;size:32"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (TrustEvent) TableName() string { return "trust_events" }

const (
	CategoryOfferAccepted       = "offer_accepted"
	CategoryBackedLoanCompleted = "backed_loan_completed"
	CategoryBackedLoanDefaulted = "backed_loan_defaulted"
)
