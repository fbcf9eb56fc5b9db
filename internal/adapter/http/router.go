package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Routes struct {
	Health   *Handler
	Loans    *LoanHandler
	Offers   *OfferHandler
	Backings *BackingHandler
	Internal *InternalHandler

	// Actor authenticates end users; Service guards /internal.
	Actor   echo.MiddlewareFunc
	Service echo.MiddlewareFunc
	// Idempotent is applied to mutating user routes when non-nil.
	Idempotent echo.MiddlewareFunc
	Metrics    http.Handler
}

func Register(e *echo.Echo, r Routes) {
	e.GET("/health", r.Health.Health)
	if r.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(r.Metrics))
	}

	user := []echo.MiddlewareFunc{r.Actor}
	if r.Idempotent != nil {
		user = append(user, r.Idempotent)
	}
	// per-route middleware so unknown paths still 404 instead of 401
	e.POST("/loans", r.Loans.CreateLoan, user...)
	e.GET("/loans/:loan_id", r.Loans.GetLoan, user...)
	e.GET("/loans/:loan_id/offers", r.Loans.ListOffers, user...)
	e.POST("/loans/:loan_id/claim", r.Loans.ClaimLoan, user...)

	e.POST("/offers/:offer_id/respond", r.Offers.Respond, user...)

	e.POST("/backings", r.Backings.CreateBacking, user...)
	e.DELETE("/backings/:backing_id", r.Backings.RevokeBacking, user...)
	e.GET("/backers/me/eligibility", r.Backings.MyEligibility, user...)
	e.GET("/backers/me/trust-events", r.Backings.TrustEvents, user...)
	e.GET("/users/:user_id/backers", r.Backings.Backers, user...)

	internal := e.Group("/internal", r.Service)
	internal.POST("/cascade/sweep", r.Internal.Sweep)
	internal.POST("/loans/:loan_id/matching", r.Internal.StartMatching)
	internal.POST("/loans/:loan_id/outcome", r.Internal.LoanOutcome)
}
