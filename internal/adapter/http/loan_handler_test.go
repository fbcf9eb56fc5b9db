package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"peerlend-backend/internal/adapter/middleware"
	domain "peerlend-backend/internal/domain/loan"
	"peerlend-backend/internal/domain/offer"
	"peerlend-backend/internal/domain/uow"
	"peerlend-backend/internal/infrastructure/logging"
	loanmock "peerlend-backend/internal/testutil/loanmock"
	uc "peerlend-backend/internal/usecase/loan"
	"peerlend-backend/internal/usecase/matching"
)

// -------- helpers --------

var borrower = strings.Repeat("b", 32)

func newEchoWithValidator() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func mustJSON(v any) *bytes.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

// newCtx builds a JSON request context with actor as the authenticated user.
func newCtx(e *echo.Echo, method, path string, body any, actor string) (echo.Context, *httptest.ResponseRecorder) {
	var req *stdhttp.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, mustJSON(body))
	}
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if actor != "" {
		middleware.SetActor(c, actor)
	}
	return c, rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("bad error json: %v (%s)", err, rec.Body.String())
	}
	return er
}

func loanHandler(repo *loanmock.Repo, claimer Claimer) *LoanHandler {
	return NewLoanHandler(uc.NewUsecase(uow.Repos{Loans: repo}, nil, nil, nil, logging.Discard()), claimer)
}

// -------- tests --------

func TestCreateLoan_Success(t *testing.T) {
	e := newEchoWithValidator()
	h := loanHandler(&loanmock.Repo{
		// No pending loan found
		GetPendingLoanByBorrowerIDFn: func(ctx context.Context, borrowerID string) (*domain.LoanRequest, error) {
			return nil, gorm.ErrRecordNotFound
		},
		CreateFn: func(ctx context.Context, l *domain.LoanRequest) error {
			l.CreatedAt = time.Now().UTC()
			return nil
		},
	}, nil)

	c, rec := newCtx(e, stdhttp.MethodPost, "/loans", map[string]any{
		"amount":      "1200.50",
		"currency":    "USD",
		"term_months": 12,
	}, borrower)
	if err := h.CreateLoan(c); err != nil {
		t.Fatalf("CreateLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	var got uc.LoanDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if got.BorrowerID != borrower || got.Amount.String() != "1200.5" {
		t.Fatalf("unexpected dto: %+v", got)
	}
	if got.Status != string(domain.StatusPending) {
		t.Fatalf("status = %s, want pending", got.Status)
	}
}

func TestCreateLoan_BindError(t *testing.T) {
	e := newEchoWithValidator()
	h := loanHandler(&loanmock.Repo{}, nil)

	req := httptest.NewRequest(stdhttp.MethodPost, "/loans", strings.NewReader("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateLoan(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateLoan_ValidationError(t *testing.T) {
	e := newEchoWithValidator()
	h := loanHandler(&loanmock.Repo{}, nil)

	c, rec := newCtx(e, stdhttp.MethodPost, "/loans", map[string]any{
		"amount":      "12.345",
		"currency":    "dollars",
		"term_months": 99,
	}, borrower)
	if err := h.CreateLoan(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	er := decodeError(t, rec)
	for _, f := range []string{"amount", "currency", "term_months"} {
		if !containsFieldMsg(er.Details, f, "") {
			t.Fatalf("missing detail for %s: %+v", f, er.Details)
		}
	}
}

func TestCreateLoan_PendingLoanConflict(t *testing.T) {
	e := newEchoWithValidator()
	h := loanHandler(&loanmock.Repo{
		GetPendingLoanByBorrowerIDFn: func(ctx context.Context, borrowerID string) (*domain.LoanRequest, error) {
			return &domain.LoanRequest{LoanID: "L-old", BorrowerID: borrowerID, Status: domain.StatusPending}, nil
		},
	}, nil)

	c, rec := newCtx(e, stdhttp.MethodPost, "/loans", map[string]any{"amount": "100"}, borrower)
	if err := h.CreateLoan(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if er := decodeError(t, rec); er.Code != "pending_loan_exists" || !strings.Contains(er.Error, "already has a pending loan") {
		t.Fatalf("unexpected error body: %+v", er)
	}
}

func TestGetLoan_Success(t *testing.T) {
	e := newEchoWithValidator()
	h := loanHandler(&loanmock.Repo{
		GetByLoanIDFn: func(ctx context.Context, loanID string) (*domain.LoanRequest, error) {
			return &domain.LoanRequest{LoanID: loanID, BorrowerID: borrower, Status: domain.StatusActive}, nil
		},
	}, nil)

	c, rec := newCtx(e, stdhttp.MethodGet, "/loans/L1", nil, borrower)
	c.SetParamNames("loan_id")
	c.SetParamValues("L1")
	if err := h.GetLoan(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got uc.LoanDTO
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.LoanID != "L1" || got.Status != "active" {
		t.Fatalf("unexpected dto: %+v", got)
	}
}

func TestGetLoan_NotFound(t *testing.T) {
	e := newEchoWithValidator()
	h := loanHandler(&loanmock.Repo{
		GetByLoanIDFn: func(ctx context.Context, loanID string) (*domain.LoanRequest, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}, nil)

	c, rec := newCtx(e, stdhttp.MethodGet, "/loans/nope", nil, borrower)
	c.SetParamNames("loan_id")
	c.SetParamValues("nope")
	if err := h.GetLoan(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

type fakeClaimer struct {
	got offer.Candidate
	err error
}

func (f *fakeClaimer) ClaimOpenLoan(_ context.Context, loanID, actorID string, c offer.Candidate) (*matching.OfferDTO, error) {
	f.got = c
	if f.err != nil {
		return nil, f.err
	}
	return &matching.OfferDTO{LoanID: loanID, CandidateKind: string(c.Kind()), CandidateRef: c.Ref(), Status: "accepted"}, nil
}

func TestClaimLoan_CandidateFromActorOrOrganization(t *testing.T) {
	e := newEchoWithValidator()
	fc := &fakeClaimer{}
	h := loanHandler(&loanmock.Repo{}, fc)

	c, rec := newCtx(e, stdhttp.MethodPost, "/loans/L1/claim", map[string]any{"candidate_kind": "individual"}, "lender-1")
	c.SetParamNames("loan_id")
	c.SetParamValues("L1")
	if err := h.ClaimLoan(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK || fc.got != (offer.IndividualCandidate{UserID: "lender-1"}) {
		t.Fatalf("individual claim: code=%d candidate=%+v", rec.Code, fc.got)
	}

	c, rec = newCtx(e, stdhttp.MethodPost, "/loans/L1/claim", map[string]any{"candidate_kind": "organization", "organization_id": "org-9"}, "member-1")
	c.SetParamNames("loan_id")
	c.SetParamValues("L1")
	_ = h.ClaimLoan(c)
	if rec.Code != stdhttp.StatusOK || fc.got != (offer.OrganizationCandidate{OrganizationID: "org-9"}) {
		t.Fatalf("organization claim: code=%d candidate=%+v", rec.Code, fc.got)
	}

	// organization without an id fails validation
	c, rec = newCtx(e, stdhttp.MethodPost, "/loans/L1/claim", map[string]any{"candidate_kind": "organization"}, "member-1")
	_ = h.ClaimLoan(c)
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("missing organization_id => want 422, got %d", rec.Code)
	}
}

func TestClaimLoan_Ineligible(t *testing.T) {
	e := newEchoWithValidator()
	h := loanHandler(&loanmock.Repo{}, &fakeClaimer{err: &matching.Error{Code: matching.CodeIneligible, Reason: "insufficient_capital"}})

	c, rec := newCtx(e, stdhttp.MethodPost, "/loans/L1/claim", map[string]any{"candidate_kind": "individual"}, "lender-1")
	_ = h.ClaimLoan(c)
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if er := decodeError(t, rec); er.Code != "ineligible" || !containsFieldMsg(er.Details, "reason", "insufficient_capital") {
		t.Fatalf("unexpected body: %+v", er)
	}
}
