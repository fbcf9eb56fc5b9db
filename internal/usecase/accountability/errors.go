package accountability

import "errors"

var (
	ErrForbidden      = errors.New("only the backer may change this backing")
	ErrAlreadyRevoked = errors.New("backing already revoked")
)

// Machine-readable reasons a backing cannot be created.
const (
	CodeAccountTooNew       = "account_too_new"
	CodeDisplayNameRequired = "display_name_required"
	CodeBackerLocked        = "backer_locked"
	CodeSelfBacking         = "self_backing"
	CodeAlreadyBacking      = "already_backing"
	CodeInvalidStrength     = "invalid_strength"
)

type IneligibleError struct {
	Code string
}

func (e *IneligibleError) Error() string { return "backing not allowed: " + e.Code }

// Is lets errors.Is match any IneligibleError with the same code, or any
// IneligibleError at all when target has no code.
func (e *IneligibleError) Is(target error) bool {
	t, ok := target.(*IneligibleError)
	return ok && (t.Code == "" || t.Code == e.Code)
}

var ErrIneligible = &IneligibleError{}
