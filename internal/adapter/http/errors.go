package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"peerlend-backend/internal/domain/backing"
	loanDomain "peerlend-backend/internal/domain/loan"
	"peerlend-backend/internal/usecase/accountability"
	"peerlend-backend/internal/usecase/loan"
	"peerlend-backend/internal/usecase/matching"
)

var matchingStatus = map[matching.Code]int{
	matching.CodeNotFound:        http.StatusNotFound,
	matching.CodeForbidden:       http.StatusForbidden,
	matching.CodeAlreadyResolved: http.StatusConflict,
	matching.CodeExpired:         http.StatusGone,
	matching.CodeValidation:      http.StatusUnprocessableEntity,
	matching.CodeIneligible:      http.StatusUnprocessableEntity,
}

// respondError maps usecase errors to a status and ErrorResponse. Unknown
// errors are logged and hidden behind a 500.
func respondError(c echo.Context, err error) error {
	var me *matching.Error
	if errors.As(err, &me) {
		resp := ErrorResponse{Error: me.Error(), Code: string(me.Code), State: string(me.State)}
		if me.Reason != "" {
			resp.Details = []FieldError{{Field: "reason", Message: me.Reason}}
		}
		return c.JSON(matchingStatus[me.Code], resp)
	}
	var ie *accountability.IneligibleError
	if errors.As(err, &ie) {
		status := http.StatusUnprocessableEntity
		if ie.Code == accountability.CodeAlreadyBacking {
			status = http.StatusConflict
		}
		return c.JSON(status, ErrorResponse{Error: ie.Error(), Code: ie.Code})
	}

	switch {
	case errors.Is(err, loanDomain.ErrNotFound), errors.Is(err, backing.ErrNotFound), errors.Is(err, backing.ErrProfileNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, accountability.ErrForbidden):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "forbidden"})
	case errors.Is(err, loanDomain.ErrPendingExists):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "pending_loan_exists"})
	case errors.Is(err, loanDomain.ErrInvalidTransition), errors.Is(err, accountability.ErrAlreadyRevoked):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "invalid_state"})
	case errors.Is(err, loan.ErrInvalidInput):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "validation"})
	case errors.Is(err, matching.ErrSweepInProgress):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "sweep_in_progress"})
	}

	slog.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}

func invalidBody(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Code: "validation", Details: ToFieldErrors(err)})
}

// bindValid binds and validates req. When ok is false the error response
// is already written and the handler returns err as is.
func bindValid(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, badRequest(c, "invalid body")
	}
	if err := c.Validate(req); err != nil {
		return false, invalidBody(c, err)
	}
	return true, nil
}
