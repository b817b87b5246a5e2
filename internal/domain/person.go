package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Person is a registered entry. OwnerID is fixed at creation.
type Person struct {
	ID               int64
	Name             string
	Surname          string
	Description      string
	LastSeenLocation string
	IsWoman          bool
	Image            string // Stored filename; empty when no image was uploaded
	OwnerID          int64
	Owner            *User // Populated by reads that join users
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PersonInput holds the client-bindable fields of a person. It is the
// complete allow-list: anything not listed here cannot be set by a form.
type PersonInput struct {
	Name             string
	Surname          string
	Description      string
	LastSeenLocation string
	IsWoman          bool
}

const (
	maxNameLength        = 100
	maxLocationLength    = 200
	maxDescriptionLength = 4000
)

// Validate checks the model constraints on the bindable fields.
func (in PersonInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Surname) == "" {
		return fmt.Errorf("%w: name and surname are required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.LastSeenLocation) == "" {
		return fmt.Errorf("%w: last seen location is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.Name) > maxNameLength || utf8.RuneCountInString(in.Surname) > maxNameLength {
		return fmt.Errorf("%w: name and surname must be at most %d characters", ErrInvalidInput, maxNameLength)
	}
	if utf8.RuneCountInString(in.LastSeenLocation) > maxLocationLength {
		return fmt.Errorf("%w: last seen location must be at most %d characters", ErrInvalidInput, maxLocationLength)
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description must be at most %d characters", ErrInvalidInput, maxDescriptionLength)
	}
	return nil
}

// ApplyTo copies the bindable fields onto p. ID, OwnerID, Image and
// Version are never touched.
func (in PersonInput) ApplyTo(p *Person) {
	p.Name = in.Name
	p.Surname = in.Surname
	p.Description = in.Description
	p.LastSeenLocation = in.LastSeenLocation
	p.IsWoman = in.IsWoman
}

// InputOf returns the bindable view of p, used to pre-fill edit forms.
func InputOf(p *Person) PersonInput {
	return PersonInput{
		Name:             p.Name,
		Surname:          p.Surname,
		Description:      p.Description,
		LastSeenLocation: p.LastSeenLocation,
		IsWoman:          p.IsWoman,
	}
}

// SortOrder is one of the fixed list orderings.
type SortOrder string

const (
	SortLocationAsc  SortOrder = "location_asc"
	SortLocationDesc SortOrder = "location_desc"
	SortSexAsc       SortOrder = "sex_asc"
	SortSexDesc      SortOrder = "sex_desc"
)

// ParseSortOrder maps a request token to a SortOrder. Empty or
// unrecognized tokens fall back to SortLocationAsc.
func ParseSortOrder(token string) SortOrder {
	switch s := SortOrder(token); s {
	case SortLocationAsc, SortLocationDesc, SortSexAsc, SortSexDesc:
		return s
	default:
		return SortLocationAsc
	}
}

// NextLocationSort returns the token the location column header should
// link to, given the raw token of the current request.
func NextLocationSort(current string) SortOrder {
	if current == "" || SortOrder(current) == SortLocationAsc {
		return SortLocationDesc
	}
	return SortLocationAsc
}

// NextSexSort returns the token the sex column header should link to.
func NextSexSort(current string) SortOrder {
	if SortOrder(current) == SortSexDesc {
		return SortSexAsc
	}
	return SortSexDesc
}

// PersonQuery selects people for the list view.
type PersonQuery struct {
	Search string
	Sort   SortOrder
}

// PersonRepository defines persistence operations for people.
type PersonRepository interface {
	Create(ctx context.Context, person *Person) error
	// GetByID loads the person together with its owner.
	GetByID(ctx context.Context, id int64) (*Person, error)
	List(ctx context.Context, query PersonQuery) ([]Person, error)
	// Update persists the bindable fields and image of person if its stored
	// version still equals person.Version, then bumps the version. A missed
	// version yields ErrConflict.
	Update(ctx context.Context, person *Person) error
	Delete(ctx context.Context, id int64) error
	Exists(ctx context.Context, id int64) (bool, error)
}
