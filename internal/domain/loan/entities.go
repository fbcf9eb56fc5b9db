package loan

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("loan not found")
	ErrInvalidTransition = errors.New("invalid loan state transition")
	ErrAlreadyAssigned   = errors.New("loan already has a lender")
	ErrPendingExists     = errors.New("borrower already has a pending loan")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusNoMatch    Status = "no_match"
	StatusCompleted  Status = "completed"
	StatusDefaulted  Status = "defaulted"
	StatusWrittenOff Status = "written_off"
)

// Open reports whether a lender may still be assigned.
func (s Status) Open() bool { return s == StatusPending || s == StatusNoMatch }

// Table: loan_requests
type LoanRequest struct {
	ID         uint64 `gorm:"primaryKey;column:id" json:"-"`
	LoanID     string `gorm:"column:loan_id;size:32;uniqueIndex:ux_loan_requests_loan_id" json:"loan_id"`
	BorrowerID string `gorm:"column:borrower_id;size:32;index:idx_loan_requests_borrower" json:"borrower_id"`
	// Tier drives per-tier lender rates; empty means the default rate applies.
	BorrowerTier string          `gorm:"column:borrower_tier;size:24" json:"borrower_tier,omitempty"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Currency     string          `gorm:"column:currency;size:3;not null;default:'USD'" json:"currency"`
	TermMonths   int             `gorm:"column:term_months;not null;default:12" json:"term_months"`
	Purpose      string          `gorm:"column:purpose;type:text" json:"purpose,omitempty"`
	Status       Status          `gorm:"column:status;size:24;not null;default:'pending';index" json:"status"`
	// CurrentOfferID points at the offer presented to a candidate, nil otherwise.
	CurrentOfferID *uint64 `gorm:"column:current_offer_id" json:"-"`

	LenderKind *string `gorm:"column:lender_kind;size:16" json:"lender_kind,omitempty"`
	LenderRef  *string `gorm:"column:lender_ref;size:32" json:"lender_ref,omitempty"`

	InterestRate   decimal.Decimal `gorm:"column:interest_rate;type:decimal(6,3)" json:"interest_rate"`
	TotalRepayment decimal.Decimal `gorm:"column:total_repayment;type:decimal(18,2)" json:"total_repayment"`
	MonthlyPayment decimal.Decimal `gorm:"column:monthly_payment;type:decimal(18,2)" json:"monthly_payment"`
	MatchedAt      *time.Time      `gorm:"column:matched_at" json:"matched_at,omitempty"`

	StatusUpdatedAt time.Time `gorm:"column:status_updated_at" json:"status_updated_at"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (LoanRequest) TableName() string { return "loan_requests" }

// Assigned reports whether a lender has been bound to the loan.
func (l *LoanRequest) Assigned() bool { return l.LenderKind != nil && l.LenderRef != nil }
