package lender

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"peerlend-backend/internal/domain/offer"
)

var ErrNotFound = errors.New("lender preference not found")

// Table: lender_preferences
type Preference struct {
	ID            uint64              `gorm:"primaryKey;column:id"`
	CandidateKind offer.CandidateKind `gorm:"column:candidate_kind;size:16;not null;uniqueIndex:ux_lender_preferences_candidate,priority:1"`
	CandidateRef  string              `gorm:"column:candidate_ref;size:32;not null;uniqueIndex:ux_lender_preferences_candidate,priority:2"`

	CapitalPool     decimal.Decimal `gorm:"column:capital_pool;type:decimal(18,2);not null"`
	CapitalReserved decimal.Decimal `gorm:"column:capital_reserved;type:decimal(18,2);not null"`
	MinLoanAmount   decimal.Decimal `gorm:"column:min_loan_amount;type:decimal(18,2);not null"`
	MaxLoanAmount   decimal.Decimal `gorm:"column:max_loan_amount;type:decimal(18,2);not null"`

	// Annual flat rate in percent.
	DefaultRate decimal.Decimal `gorm:"column:default_rate;type:decimal(6,3);not null"`
	// TierRates overrides DefaultRate per borrower tier.
	TierRates  map[string]decimal.Decimal `gorm:"column:tier_rates;type:text;serializer:json"`
	AutoAccept bool                       `gorm:"column:auto_accept;not null;default:false"`

	// AcceptanceRate is 0-100; only non-acceptances move it.
	AcceptanceRate  float64         `gorm:"column:acceptance_rate;not null;default:100"`
	LoansFunded     int64           `gorm:"column:loans_funded;not null;default:0"`
	AmountFunded    decimal.Decimal `gorm:"column:amount_funded;type:decimal(18,2);not null"`
	Declines        int64           `gorm:"column:declines;not null;default:0"`
	MissedResponses int64           `gorm:"column:missed_responses;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Preference) TableName() string { return "lender_preferences" }

func (p *Preference) Candidate() (offer.Candidate, error) {
	c, err := offer.NewCandidate(p.CandidateKind, p.CandidateRef)
	if err != nil {
		return nil, fmt.Errorf("lender preference %d: %w", p.ID, err)
	}
	return c, nil
}

// AfterFind rejects rows whose stored candidate cannot be rebuilt.
func (p *Preference) AfterFind(*gorm.DB) error {
	_, err := p.Candidate()
	return err
}

// Available is the unreserved part of the capital pool.
func (p *Preference) Available() decimal.Decimal {
	return p.CapitalPool.Sub(p.CapitalReserved)
}

// RateFor returns the tier-specific rate when configured, else the default rate.
func (p *Preference) RateFor(tier string) decimal.Decimal {
	if tier != "" {
		if r, ok := p.TierRates[tier]; ok {
			return r
		}
	}
	return p.DefaultRate
}

// Table: organization_members
type OrganizationMember struct {
	ID             uint64    `gorm:"primaryKey;column:id"`
	OrganizationID string    `gorm:"column:organization_id;size:32;not null;uniqueIndex:ux_org_members,priority:1"`
	UserID         string    `gorm:"column:user_id;size:32;not null;uniqueIndex:ux_org_members,priority:2"`
	Role           string    `gorm:"column:role;size:16;not null;default:'member'"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrganizationMember) TableName() string { return "organization_members" }
