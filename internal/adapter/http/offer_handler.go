package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"peerlend-backend/internal/adapter/middleware"
	"peerlend-backend/internal/usecase/matching"
)

type OfferResponder interface {
	Accept(ctx context.Context, offerID, actorID string) (*matching.OfferDTO, error)
	Decline(ctx context.Context, offerID, actorID, reason string) (*matching.OfferDTO, error)
}

type OfferHandler struct{ engine OfferResponder }

func NewOfferHandler(e OfferResponder) *OfferHandler { return &OfferHandler{engine: e} }

type respondReq struct {
	Action string `json:"action" validate:"required,oneof=accept decline"`
	Reason string `json:"reason"`
}

// Respond accepts or declines an offer on behalf of the authenticated candidate.
func (h *OfferHandler) Respond(c echo.Context) error {
	var req respondReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, offerID, actor := c.Request().Context(), c.Param("offer_id"), middleware.Actor(c)

	var (
		dto *matching.OfferDTO
		err error
	)
	if req.Action == "accept" {
		dto, err = h.engine.Accept(ctx, offerID, actor)
	} else {
		dto, err = h.engine.Decline(ctx, offerID, actor, req.Reason)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
