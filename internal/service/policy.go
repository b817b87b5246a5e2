package service

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/msomdec/people-registry/internal/domain"
)

// Policy is the supplementary capability check consulted for edits after
// the ownership rule has passed. It knows nothing about that rule.
type Policy interface {
	Allow(ctx context.Context, principal *domain.Principal, target *domain.Person) (bool, error)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(ctx context.Context, principal *domain.Principal, target *domain.Person) (bool, error)

func (f PolicyFunc) Allow(ctx context.Context, principal *domain.Principal, target *domain.Person) (bool, error) {
	return f(ctx, principal, target)
}

// AllowAll is a Policy that never objects.
var AllowAll = PolicyFunc(func(context.Context, *domain.Principal, *domain.Person) (bool, error) {
	return true, nil
})

// DefaultEditPolicy is the EditPolicy expression used when none is configured.
const DefaultEditPolicy = `principal.id == person.owner_id || "Administrator" in principal.roles`

// CELPolicy evaluates a Common Expression Language predicate over two
// variables, principal and person. Available fields:
//
//	principal: id, email, display_name, roles
//	person:    id, owner_id, name, surname, last_seen_location, is_woman, has_image
type CELPolicy struct {
	expr string
	prg  cel.Program
}

// NewCELPolicy compiles expr once. The expression must yield a bool.
func NewCELPolicy(expr string) (*CELPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("principal", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("person", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if err := iss.Err(); err != nil {
		return nil, fmt.Errorf("%w: compile policy: %v", domain.ErrInvalidInput, err)
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: policy must evaluate to bool, got %s", domain.ErrInvalidInput, out)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build policy program: %w", err)
	}
	return &CELPolicy{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (p *CELPolicy) String() string { return p.expr }

func (p *CELPolicy) Allow(ctx context.Context, principal *domain.Principal, target *domain.Person) (bool, error) {
	out, _, err := p.prg.ContextEval(ctx, map[string]any{
		"principal": principalVars(principal),
		"person":    personVars(target),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate policy: %w", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy returned %T, want bool", out.Value())
	}
	return allowed, nil
}

func principalVars(p *domain.Principal) map[string]any {
	roles := []string{}
	if p == nil {
		return map[string]any{"id": int64(0), "email": "", "display_name": "", "roles": roles}
	}
	if p.Roles != nil {
		roles = p.Roles
	}
	return map[string]any{
		"id":           p.UserID,
		"email":        p.Email,
		"display_name": p.DisplayName,
		"roles":        roles,
	}
}

func personVars(p *domain.Person) map[string]any {
	return map[string]any{
		"id":                 p.ID,
		"owner_id":           p.OwnerID,
		"name":               p.Name,
		"surname":            p.Surname,
		"last_seen_location": p.LastSeenLocation,
		"is_woman":           p.IsWoman,
		"has_image":          p.Image != "",
	}
}
