package offer

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("offer not found")

type Status string

const (
	StatusPending      Status = "pending"
	StatusAccepted     Status = "accepted"
	StatusAutoAccepted Status = "auto_accepted"
	StatusDeclined     Status = "declined"
	StatusExpired      Status = "expired"
	StatusSkipped      Status = "skipped"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s != StatusPending }

// Accepting reports whether the status binds the lender to the loan.
func (s Status) Accepting() bool { return s == StatusAccepted || s == StatusAutoAccepted }

type Source string

const (
	SourceRanking      Source = "ranking"
	SourceSelfSelected Source = "self_selected"
)

// Table: loan_offers
type Offer struct {
	ID      uint64 `gorm:"primaryKey;column:id"`
	OfferID string `gorm:"column:offer_id;size:32;uniqueIndex:ux_loan_offers_offer_id"`
	// FK to loan_requests.id
	LoanID        uint64        `gorm:"column:loan_id;not null;index:idx_loan_offers_loan_rank,priority:1"`
	CandidateKind CandidateKind `gorm:"column:candidate_kind;size:16;not null"`
	CandidateRef  string        `gorm:"column:candidate_ref;size:32;not null;index"`
	Rank          int           `gorm:"column:offer_rank;not null;index:idx_loan_offers_loan_rank,priority:2"`
	Score         float64       `gorm:"column:score"`
	Status        Status        `gorm:"column:status;size:16;not null;default:'pending';index"`
	Source        Source        `gorm:"column:source;size:16;not null;default:'ranking'"`
	// ExpiresAt is set when the offer is presented to its candidate.
	ExpiresAt     *time.Time `gorm:"column:expires_at;index"`
	RespondedAt   *time.Time `gorm:"column:responded_at"`
	DeclineReason string     `gorm:"column:decline_reason;type:text"`
	AutoAccepted  bool       `gorm:"column:auto_accepted;not null;default:false"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Offer) TableName() string { return "loan_offers" }

// Candidate returns the typed candidate identity of the offer.
func (o *Offer) Candidate() (Candidate, error) {
	c, err := NewCandidate(o.CandidateKind, o.CandidateRef)
	if err != nil {
		return nil, fmt.Errorf("offer %s: %w", o.OfferID, err)
	}
	return c, nil
}

// AfterFind rejects rows whose stored candidate cannot be rebuilt.
func (o *Offer) AfterFind(*gorm.DB) error {
	_, err := o.Candidate()
	return err
}

func (o *Offer) SetCandidate(c Candidate) {
	o.CandidateKind = c.Kind()
	o.CandidateRef = c.Ref()
}

// ExpiredAt reports whether the presentation window has elapsed at now.
func (o *Offer) ExpiredAt(now time.Time) bool {
	return o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}

// Resolution is the patch applied by a conditional transition out of pending.
type Resolution struct {
	Status        Status
	RespondedAt   time.Time
	DeclineReason string
	AutoAccepted  bool
}
