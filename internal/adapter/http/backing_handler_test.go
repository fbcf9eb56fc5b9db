package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerlend-backend/internal/adapter/graph"
	"peerlend-backend/internal/domain/backing"
	"peerlend-backend/internal/usecase/accountability"
)

type fakeBackings struct {
	in        accountability.CreateBackingInput
	createErr error
	revokeErr error
	limit     int
}

func (f *fakeBackings) CreateBacking(_ context.Context, in accountability.CreateBackingInput) (*accountability.BackingDTO, error) {
	f.in = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &accountability.BackingDTO{BackingID: "bk1", BackerID: in.BackerID, BorrowerID: in.BorrowerID, Strength: 5, Status: "active"}, nil
}

func (f *fakeBackings) RevokeBacking(_ context.Context, backingID, actorID string) (*accountability.BackingDTO, error) {
	if f.revokeErr != nil {
		return nil, f.revokeErr
	}
	return &accountability.BackingDTO{BackingID: backingID, BackerID: actorID, Status: "revoked"}, nil
}

func (f *fakeBackings) Eligibility(_ context.Context, backerID string) (*accountability.EligibilityDTO, error) {
	return &accountability.EligibilityDTO{BackerID: backerID, Eligible: false, Reasons: []string{accountability.CodeAccountTooNew}}, nil
}

func (f *fakeBackings) TrustHistory(_ context.Context, subjectID string, limit int) ([]accountability.TrustEventDTO, error) {
	f.limit = limit
	return []accountability.TrustEventDTO{{EventID: "e1", Delta: -10, Category: "backed_loan_defaulted"}}, nil
}

type fakeGraph struct{ err error }

func (g fakeGraph) ActiveBackers(_ context.Context, borrowerID string) ([]graph.Edge, error) {
	return []graph.Edge{{BackerID: "alice", BackingID: "bk1", Strength: 7}}, g.err
}

func TestCreateBacking(t *testing.T) {
	e := newEchoWithValidator()
	f := &fakeBackings{}
	h := NewBackingHandler(f, nil)

	c, rec := newCtx(e, stdhttp.MethodPost, "/backings", map[string]any{"borrower_id": "bob"}, "alice")
	require.NoError(t, h.CreateBacking(c))
	assert.Equal(t, stdhttp.StatusCreated, rec.Code)
	assert.Equal(t, accountability.CreateBackingInput{BackerID: "alice", BorrowerID: "bob"}, f.in)

	c, rec = newCtx(e, stdhttp.MethodPost, "/backings", map[string]any{"borrower_id": "bob", "base_strength": 11}, "alice")
	require.NoError(t, h.CreateBacking(c))
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
}

func TestCreateBacking_ErrorMapping(t *testing.T) {
	cases := []struct {
		err   error
		code  int
		ecode string
	}{
		{&accountability.IneligibleError{Code: accountability.CodeBackerLocked}, stdhttp.StatusUnprocessableEntity, "backer_locked"},
		{&accountability.IneligibleError{Code: accountability.CodeAlreadyBacking}, stdhttp.StatusConflict, "already_backing"},
		{backing.ErrProfileNotFound, stdhttp.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		e := newEchoWithValidator()
		c, rec := newCtx(e, stdhttp.MethodPost, "/backings", map[string]any{"borrower_id": "bob"}, "alice")
		require.NoError(t, NewBackingHandler(&fakeBackings{createErr: tc.err}, nil).CreateBacking(c))
		assert.Equal(t, tc.code, rec.Code)
		assert.Equal(t, tc.ecode, decodeError(t, rec).Code)
	}
}

func TestRevokeBacking_Forbidden(t *testing.T) {
	e := newEchoWithValidator()
	c, rec := newCtx(e, stdhttp.MethodDelete, "/backings/bk1", nil, "mallory")
	c.SetParamNames("backing_id")
	c.SetParamValues("bk1")
	require.NoError(t, NewBackingHandler(&fakeBackings{revokeErr: accountability.ErrForbidden}, nil).RevokeBacking(c))
	assert.Equal(t, stdhttp.StatusForbidden, rec.Code)

	c, rec = newCtx(e, stdhttp.MethodDelete, "/backings/bk1", nil, "alice")
	require.NoError(t, NewBackingHandler(&fakeBackings{revokeErr: accountability.ErrAlreadyRevoked}, nil).RevokeBacking(c))
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)
}

func TestTrustEvents_Limit(t *testing.T) {
	e := newEchoWithValidator()
	f := &fakeBackings{}
	h := NewBackingHandler(f, nil)

	c, rec := newCtx(e, stdhttp.MethodGet, "/backers/me/trust-events?limit=5", nil, "alice")
	require.NoError(t, h.TrustEvents(c))
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, 5, f.limit)
	assert.Contains(t, rec.Body.String(), `"delta":-10`)

	c, rec = newCtx(e, stdhttp.MethodGet, "/backers/me/trust-events?limit=x", nil, "alice")
	require.NoError(t, h.TrustEvents(c))
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
}

func TestBackers_Graph(t *testing.T) {
	e := newEchoWithValidator()
	c, rec := newCtx(e, stdhttp.MethodGet, "/users/bob/backers", nil, "alice")
	c.SetParamNames("user_id")
	c.SetParamValues("bob")
	require.NoError(t, NewBackingHandler(&fakeBackings{}, nil).Backers(c))
	assert.Equal(t, stdhttp.StatusNotImplemented, rec.Code)

	c, rec = newCtx(e, stdhttp.MethodGet, "/users/bob/backers", nil, "alice")
	c.SetParamNames("user_id")
	c.SetParamValues("bob")
	require.NoError(t, NewBackingHandler(&fakeBackings{}, fakeGraph{}).Backers(c))
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backer_id":"alice"`)

	c, rec = newCtx(e, stdhttp.MethodGet, "/users/bob/backers", nil, "alice")
	require.NoError(t, NewBackingHandler(&fakeBackings{}, fakeGraph{err: errors.New("bolt down")}).Backers(c))
	assert.Equal(t, stdhttp.StatusInternalServerError, rec.Code)
}
