package matching

import (
	"time"

	"peerlend-backend/internal/domain/loan"
	"peerlend-backend/internal/domain/offer"
)

type OfferDTO struct {
	OfferID       string     `json:"offer_id"`
	LoanID        string     `json:"loan_id"`
	CandidateKind string     `json:"candidate_kind"`
	CandidateRef  string     `json:"candidate_ref"`
	Rank          int        `json:"rank"`
	Score         float64    `json:"score"`
	Status        string     `json:"status"`
	Source        string     `json:"source"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
	DeclineReason string     `json:"decline_reason,omitempty"`
	AutoAccepted  bool       `json:"auto_accepted"`
}

func ToOfferDTO(o *offer.Offer, loanID string) *OfferDTO {
	return &OfferDTO{
		OfferID:       o.OfferID,
		LoanID:        loanID,
		CandidateKind: string(o.CandidateKind),
		CandidateRef:  o.CandidateRef,
		Rank:          o.Rank,
		Score:         o.Score,
		Status:        string(o.Status),
		Source:        string(o.Source),
		ExpiresAt:     o.ExpiresAt,
		RespondedAt:   o.RespondedAt,
		DeclineReason: o.DeclineReason,
		AutoAccepted:  o.AutoAccepted,
	}
}

// MatchingDTO is the loan's state after a matching step.
type MatchingDTO struct {
	LoanID         string      `json:"loan_id"`
	Status         string      `json:"status"`
	CurrentOfferID string      `json:"current_offer_id,omitempty"`
	Offers         []*OfferDTO `json:"offers"`
}

func toMatchingDTO(l *loan.LoanRequest, offers []*offer.Offer) *MatchingDTO {
	out := &MatchingDTO{LoanID: l.LoanID, Status: string(l.Status), Offers: make([]*OfferDTO, 0, len(offers))}
	for _, o := range offers {
		if l.CurrentOfferID != nil && *l.CurrentOfferID == o.ID {
			out.CurrentOfferID = o.OfferID
		}
		out.Offers = append(out.Offers, ToOfferDTO(o, l.LoanID))
	}
	return out
}

// RankedCandidate is one entry of the ranking produced when a loan enters
// matching. Input order is rank order.
type RankedCandidate struct {
	Candidate offer.Candidate
	Score     float64
}

// LoanError is one loan's failure inside a sweep.
type LoanError struct {
	LoanID string `json:"loan_id"`
	Error  string `json:"error"`
}

type SweepResult struct {
	OffersExpired int         `json:"offers_expired"`
	Cascades      int         `json:"cascades"`
	Unmatched     int         `json:"unmatched"`
	AutoAccepted  int         `json:"auto_accepted"`
	Errors        []LoanError `json:"errors"`
}
