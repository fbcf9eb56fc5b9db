package offer

import (
	"errors"
	"fmt"
)

type CandidateKind string

const (
	KindIndividual   CandidateKind = "individual"
	KindOrganization CandidateKind = "organization"
)

// Candidate is either an IndividualCandidate or an OrganizationCandidate.
type Candidate interface {
	Kind() CandidateKind
	Ref() string
	isCandidate()
}

type IndividualCandidate struct{ UserID string }

func (IndividualCandidate) Kind() CandidateKind { return KindIndividual }
func (c IndividualCandidate) Ref() string       { return c.UserID }
func (IndividualCandidate) isCandidate()        {}

type OrganizationCandidate struct{ OrganizationID string }

func (OrganizationCandidate) Kind() CandidateKind { return KindOrganization }
func (c OrganizationCandidate) Ref() string       { return c.OrganizationID }
func (OrganizationCandidate) isCandidate()        {}

var ErrInvalidCandidate = errors.New("invalid candidate")

// NewCandidate rebuilds a candidate from its stored (kind, ref) pair.
func NewCandidate(kind CandidateKind, ref string) (Candidate, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty ref", ErrInvalidCandidate)
	}
	switch kind {
	case KindIndividual:
		return IndividualCandidate{UserID: ref}, nil
	case KindOrganization:
		return OrganizationCandidate{OrganizationID: ref}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidCandidate, kind)
	}
}

// Key is the identity used as trust-event subject and notification recipient.
// Individuals are keyed by their user id so their ledger matches backer events.
func Key(c Candidate) string {
	switch v := c.(type) {
	case IndividualCandidate:
		return v.UserID
	case OrganizationCandidate:
		return "org:" + v.OrganizationID
	}
	return ""
}
