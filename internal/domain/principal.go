package domain

import "slices"

// Principal is the authenticated caller as resolved for a single request.
// A nil *Principal means the caller is anonymous.
type Principal struct {
	UserID      int64
	Email       string
	DisplayName string
	Roles       []string
}

// InRole reports whether the principal holds the named role.
func (p *Principal) InRole(role string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Roles, role)
}

// IsAdministrator is shorthand for InRole(RoleAdministrator).
func (p *Principal) IsAdministrator() bool {
	return p.InRole(RoleAdministrator)
}

// Owns reports whether the principal is the owner of the person record.
func (p *Principal) Owns(person *Person) bool {
	return p != nil && person != nil && p.UserID == person.OwnerID
}
