package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"peerlend-backend/internal/adapter/graph"
	"peerlend-backend/internal/adapter/middleware"
	"peerlend-backend/internal/usecase/accountability"
)

type Backings interface {
	CreateBacking(ctx context.Context, in accountability.CreateBackingInput) (*accountability.BackingDTO, error)
	RevokeBacking(ctx context.Context, backingID, actorID string) (*accountability.BackingDTO, error)
	Eligibility(ctx context.Context, backerID string) (*accountability.EligibilityDTO, error)
	TrustHistory(ctx context.Context, subjectID string, limit int) ([]accountability.TrustEventDTO, error)
}

// BackerGraph reads the projected backing network. Optional.
type BackerGraph interface {
	ActiveBackers(ctx context.Context, borrowerID string) ([]graph.Edge, error)
}

type BackingHandler struct {
	engine Backings
	graph  BackerGraph
}

func NewBackingHandler(e Backings, g BackerGraph) *BackingHandler {
	return &BackingHandler{engine: e, graph: g}
}

type createBackingReq struct {
	BorrowerID   string `json:"borrower_id" validate:"required,max=32"`
	BaseStrength int    `json:"base_strength" validate:"omitempty,gte=1,lte=10"`
}

func (h *BackingHandler) CreateBacking(c echo.Context) error {
	var req createBackingReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	dto, err := h.engine.CreateBacking(c.Request().Context(), accountability.CreateBackingInput{
		BackerID:     middleware.Actor(c),
		BorrowerID:   req.BorrowerID,
		BaseStrength: req.BaseStrength,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *BackingHandler) RevokeBacking(c echo.Context) error {
	dto, err := h.engine.RevokeBacking(c.Request().Context(), c.Param("backing_id"), middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *BackingHandler) MyEligibility(c echo.Context) error {
	dto, err := h.engine.Eligibility(c.Request().Context(), middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// TrustEvents lists the caller's own ledger.
func (h *BackingHandler) TrustEvents(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = n
	}
	events, err := h.engine.TrustHistory(c.Request().Context(), middleware.Actor(c), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"events": events})
}

func (h *BackingHandler) Backers(c echo.Context) error {
	if h.graph == nil {
		return c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "backing graph not configured", Code: "unavailable"})
	}
	edges, err := h.graph.ActiveBackers(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"user_id": c.Param("user_id"), "backers": edges})
}
