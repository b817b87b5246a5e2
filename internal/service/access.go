package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/msomdec/people-registry/internal/domain"
)

// Decision is the response class of an authorization check.
type Decision int

const (
	Allow Decision = iota
	DenyNotFound
	DenyRedirect  // authenticated but not entitled; send to the access-denied page
	DenyChallenge // must (re-)authenticate
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyNotFound:
		return "not-found"
	case DenyRedirect:
		return "access-denied"
	case DenyChallenge:
		return "challenge"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// DecisionOf classifies an error returned by Guard or PersonService.
// Errors that are not authorization outcomes classify as Allow; callers
// must still handle them.
func DecisionOf(err error) Decision {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return DenyNotFound
	case errors.Is(err, domain.ErrAccessDenied):
		return DenyRedirect
	case errors.Is(err, domain.ErrChallenge):
		return DenyChallenge
	default:
		return Allow
	}
}

// Guard decides whether a mutating operation on a person may proceed.
// Checks run in a fixed order and the first failing check wins.
type Guard struct {
	policy Policy
}

// NewGuard creates a Guard consulting policy after the ownership rule.
// A nil policy allows everything the ownership rule allows.
func NewGuard(policy Policy) *Guard {
	if policy == nil {
		policy = AllowAll
	}
	return &Guard{policy: policy}
}

// AuthorizeCreate requires an authenticated caller.
func (g *Guard) AuthorizeCreate(p *domain.Principal) error {
	if p == nil {
		return domain.ErrChallenge
	}
	return nil
}

// AuthorizeEdit checks, in order: authentication, existence, ownership or
// the Administrator role, then the supplementary policy. A caller failing
// the ownership rule never reaches the policy.
func (g *Guard) AuthorizeEdit(ctx context.Context, p *domain.Principal, target *domain.Person) error {
	if p == nil {
		return domain.ErrChallenge
	}
	if target == nil {
		return domain.ErrNotFound
	}
	if !p.Owns(target) && !p.IsAdministrator() {
		return domain.ErrAccessDenied
	}

	ok, err := g.policy.Allow(ctx, p, target)
	if err != nil {
		return fmt.Errorf("edit policy: %w", err)
	}
	if !ok {
		return domain.ErrChallenge
	}
	return nil
}

// AuthorizeDelete requires the Administrator role. Ownership plays no part.
func (g *Guard) AuthorizeDelete(p *domain.Principal) error {
	if !p.IsAdministrator() {
		return domain.ErrChallenge
	}
	return nil
}
