package matching

import (
	"fmt"

	"peerlend-backend/internal/domain/offer"
)

type Code string

const (
	CodeNotFound        Code = "not_found"
	CodeForbidden       Code = "forbidden"
	CodeAlreadyResolved Code = "already_resolved"
	CodeExpired         Code = "expired"
	CodeValidation      Code = "validation"
	CodeIneligible      Code = "ineligible"
)

// Error is returned by every offer operation that is refused. State is set
// for already_resolved; Reason carries a machine code for ineligible and
// validation errors.
type Error struct {
	Code   Code
	State  offer.Status
	Reason string
}

func (e *Error) Error() string {
	switch {
	case e.State != "":
		return fmt.Sprintf("offer %s: %s", e.Code, e.State)
	case e.Reason != "":
		return fmt.Sprintf("offer %s: %s", e.Code, e.Reason)
	}
	return "offer " + string(e.Code)
}

// Is matches on Code so errors.Is(err, ErrExpired) works for any instance.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrForbidden       = &Error{Code: CodeForbidden}
	ErrAlreadyResolved = &Error{Code: CodeAlreadyResolved}
	ErrExpired         = &Error{Code: CodeExpired}
	ErrValidation      = &Error{Code: CodeValidation}
	ErrIneligible      = &Error{Code: CodeIneligible}
)

func alreadyResolved(s offer.Status) *Error { return &Error{Code: CodeAlreadyResolved, State: s} }
func ineligible(reason string) *Error       { return &Error{Code: CodeIneligible, Reason: reason} }
func invalid(reason string) *Error          { return &Error{Code: CodeValidation, Reason: reason} }

// Ineligibility reasons specific to matching; lender capital reasons come
// from the reliability tracker.
const (
	ReasonLoanNotOpen        = "loan_not_open"
	ReasonPreviouslyDeclined = "previously_declined"
	ReasonMatchingStarted    = "matching_already_started"
)
