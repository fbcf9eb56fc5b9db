package loan

import (
	"time"

	"github.com/shopspring/decimal"

	"peerlend-backend/internal/usecase/accountability"
)

type CreateLoanInput struct {
	BorrowerID   string          `json:"-"`
	BorrowerTier string          `json:"borrower_tier"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	TermMonths   int             `json:"term_months"`
	Purpose      string          `json:"purpose"`
}

type LoanDTO struct {
	LoanID         string           `json:"loan_id"`
	BorrowerID     string           `json:"borrower_id"`
	BorrowerTier   string           `json:"borrower_tier,omitempty"`
	Amount         decimal.Decimal  `json:"amount"`
	Currency       string           `json:"currency"`
	TermMonths     int              `json:"term_months"`
	Purpose        string           `json:"purpose,omitempty"`
	Status         string           `json:"status"`
	LenderKind     string           `json:"lender_kind,omitempty"`
	LenderRef      string           `json:"lender_ref,omitempty"`
	InterestRate   *decimal.Decimal `json:"interest_rate,omitempty"`
	TotalRepayment *decimal.Decimal `json:"total_repayment,omitempty"`
	MonthlyPayment *decimal.Decimal `json:"monthly_payment,omitempty"`
	MatchedAt      *time.Time       `json:"matched_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Event is a loan-servicing transition reported to this service.
type Event string

const (
	EventCompleted       Event = "completed"
	EventDefaulted       Event = "defaulted"
	EventDefaultResolved Event = "default_resolved"
	EventWrittenOff      Event = "written_off"
)

type TransitionResult struct {
	Loan           *LoanDTO               `json:"loan"`
	Accountability *accountability.Result `json:"accountability,omitempty"`
}
