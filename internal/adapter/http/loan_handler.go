package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"peerlend-backend/internal/adapter/middleware"
	"peerlend-backend/internal/domain/offer"
	"peerlend-backend/internal/usecase/loan"
	"peerlend-backend/internal/usecase/matching"
)

// Claimer is the matching operation behind the open-loan claim.
type Claimer interface {
	ClaimOpenLoan(ctx context.Context, loanID, actorID string, c offer.Candidate) (*matching.OfferDTO, error)
}

type LoanHandler struct {
	uc      *loan.Usecase
	claimer Claimer
}

func NewLoanHandler(uc *loan.Usecase, claimer Claimer) *LoanHandler {
	return &LoanHandler{uc: uc, claimer: claimer}
}

type createLoanReq struct {
	Amount       string `json:"amount" validate:"required,money"`
	Currency     string `json:"currency" validate:"omitempty,iso4217"`
	TermMonths   int    `json:"term_months" validate:"omitempty,gte=1,lte=60"`
	BorrowerTier string `json:"borrower_tier" validate:"max=24"`
	Purpose      string `json:"purpose" validate:"max=2000"`
}

// CreateLoan files a loan request for the authenticated borrower.
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req createLoanReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	dto, err := h.uc.Create(c.Request().Context(), loan.CreateLoanInput{
		BorrowerID:   middleware.Actor(c),
		BorrowerTier: req.BorrowerTier,
		Amount:       decimal.RequireFromString(req.Amount),
		Currency:     req.Currency,
		TermMonths:   req.TermMonths,
		Purpose:      req.Purpose,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	dto, err := h.uc.Get(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ListOffers(c echo.Context) error {
	offers, err := h.uc.ListOffers(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"loan_id": c.Param("loan_id"), "offers": offers})
}

type claimReq struct {
	CandidateKind  string `json:"candidate_kind" validate:"required,oneof=individual organization"`
	OrganizationID string `json:"organization_id" validate:"required_if=CandidateKind organization"`
}

// ClaimLoan lets a lender take an open loan outside the ranked cascade.
func (h *LoanHandler) ClaimLoan(c echo.Context) error {
	var req claimReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	actor := middleware.Actor(c)
	var cand offer.Candidate = offer.IndividualCandidate{UserID: actor}
	if req.CandidateKind == string(offer.KindOrganization) {
		cand = offer.OrganizationCandidate{OrganizationID: req.OrganizationID}
	}
	dto, err := h.claimer.ClaimOpenLoan(c.Request().Context(), c.Param("loan_id"), actor, cand)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
