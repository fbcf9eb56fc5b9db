package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerlend-backend/internal/domain/offer"
	"peerlend-backend/internal/usecase/matching"
)

type fakeResponder struct {
	action string
	actor  string
	reason string
	err    error
}

func (f *fakeResponder) Accept(_ context.Context, offerID, actorID string) (*matching.OfferDTO, error) {
	f.action, f.actor = "accept", actorID
	if f.err != nil {
		return nil, f.err
	}
	return &matching.OfferDTO{OfferID: offerID, Status: string(offer.StatusAccepted)}, nil
}

func (f *fakeResponder) Decline(_ context.Context, offerID, actorID, reason string) (*matching.OfferDTO, error) {
	f.action, f.actor, f.reason = "decline", actorID, reason
	if f.err != nil {
		return nil, f.err
	}
	return &matching.OfferDTO{OfferID: offerID, Status: string(offer.StatusDeclined), DeclineReason: reason}, nil
}

func respond(t *testing.T, f *fakeResponder, body map[string]any) (int, ErrorResponse) {
	t.Helper()
	e := newEchoWithValidator()
	c, rec := newCtx(e, stdhttp.MethodPost, "/offers/O1/respond", body, "lender-1")
	c.SetParamNames("offer_id")
	c.SetParamValues("O1")
	require.NoError(t, NewOfferHandler(f).Respond(c))
	var er ErrorResponse
	if rec.Code >= 400 {
		er = decodeError(t, rec)
	}
	return rec.Code, er
}

func TestRespond_AcceptAndDecline(t *testing.T) {
	f := &fakeResponder{}
	code, _ := respond(t, f, map[string]any{"action": "accept"})
	assert.Equal(t, stdhttp.StatusOK, code)
	assert.Equal(t, "accept", f.action)
	assert.Equal(t, "lender-1", f.actor)

	code, _ = respond(t, f, map[string]any{"action": "decline", "reason": "rate too low"})
	assert.Equal(t, stdhttp.StatusOK, code)
	assert.Equal(t, "decline", f.action)
	assert.Equal(t, "rate too low", f.reason)
}

func TestRespond_InvalidAction(t *testing.T) {
	code, er := respond(t, &fakeResponder{}, map[string]any{"action": "maybe"})
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, code)
	assert.True(t, containsFieldMsg(er.Details, "action", "one of"))
}

func TestRespond_ErrorMapping(t *testing.T) {
	cases := []struct {
		err   error
		code  int
		ecode string
		state string
	}{
		{matching.ErrNotFound, stdhttp.StatusNotFound, "not_found", ""},
		{matching.ErrForbidden, stdhttp.StatusForbidden, "forbidden", ""},
		{&matching.Error{Code: matching.CodeAlreadyResolved, State: offer.StatusSkipped}, stdhttp.StatusConflict, "already_resolved", "skipped"},
		{matching.ErrExpired, stdhttp.StatusGone, "expired", ""},
		{&matching.Error{Code: matching.CodeValidation, Reason: "reason_too_long"}, stdhttp.StatusUnprocessableEntity, "validation", ""},
		{errors.New("db down"), stdhttp.StatusInternalServerError, "internal", ""},
	}
	for _, tc := range cases {
		code, er := respond(t, &fakeResponder{err: tc.err}, map[string]any{"action": "accept"})
		assert.Equal(t, tc.code, code, tc.err.Error())
		assert.Equal(t, tc.ecode, er.Code)
		assert.Equal(t, tc.state, er.State)
	}
}
