package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"peerlend-backend/internal/domain/offer"
	"peerlend-backend/internal/usecase/loan"
	"peerlend-backend/internal/usecase/matching"
)

// Cascade is the matching surface driven by internal callers.
type Cascade interface {
	Sweep(ctx context.Context) (*matching.SweepResult, error)
	StartMatching(ctx context.Context, loanID string, ranked []matching.RankedCandidate) (*matching.MatchingDTO, error)
}

type Outcomes interface {
	Transition(ctx context.Context, loanID string, ev loan.Event) (*loan.TransitionResult, error)
}

// InternalHandler serves routes behind the shared service secret.
type InternalHandler struct {
	cascade  Cascade
	outcomes Outcomes
}

func NewInternalHandler(c Cascade, o Outcomes) *InternalHandler {
	return &InternalHandler{cascade: c, outcomes: o}
}

// Sweep expires overdue offers and advances their cascades. Per-loan
// failures come back in errors with a 200.
func (h *InternalHandler) Sweep(c echo.Context) error {
	res, err := h.cascade.Sweep(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	if res.Errors == nil {
		res.Errors = []matching.LoanError{}
	}
	return c.JSON(http.StatusOK, res)
}

type rankedReq struct {
	Kind  string  `json:"kind" validate:"required,oneof=individual organization"`
	Ref   string  `json:"ref" validate:"required,max=32"`
	Score float64 `json:"score"`
}

type startMatchingReq struct {
	Candidates []rankedReq `json:"candidates" validate:"required,min=1,dive"`
}

func (h *InternalHandler) StartMatching(c echo.Context) error {
	var req startMatchingReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ranked := make([]matching.RankedCandidate, 0, len(req.Candidates))
	for _, rc := range req.Candidates {
		cand, err := offer.NewCandidate(offer.CandidateKind(rc.Kind), rc.Ref)
		if err != nil {
			return badRequest(c, err.Error())
		}
		ranked = append(ranked, matching.RankedCandidate{Candidate: cand, Score: rc.Score})
	}
	dto, err := h.cascade.StartMatching(c.Request().Context(), c.Param("loan_id"), ranked)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type outcomeReq struct {
	Event string `json:"event" validate:"required,oneof=completed defaulted default_resolved written_off"`
}

// LoanOutcome records a servicing event. A hook failure still returns the
// committed loan, with the error alongside.
func (h *InternalHandler) LoanOutcome(c echo.Context) error {
	var req outcomeReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	res, err := h.outcomes.Transition(c.Request().Context(), c.Param("loan_id"), loan.Event(req.Event))
	if err != nil && res == nil {
		return respondError(c, err)
	}
	if err != nil {
		return c.JSON(http.StatusAccepted, map[string]any{"loan": res.Loan, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, res)
}
