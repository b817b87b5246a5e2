package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/msomdec/people-registry/internal/domain"
)

// PersonEdit is an edit-form submission.
type PersonEdit struct {
	ID      int64 // id posted with the form; must match the route id
	Version int   // version the form was rendered from; 0 skips the comparison
	Input   domain.PersonInput
	Image   *domain.ImageUpload
}

// PersonService implements the list, detail, create, edit and delete
// operations on people, gating every mutation through a Guard.
type PersonService struct {
	people domain.PersonRepository
	images *ImageService
	guard  *Guard
}

// NewPersonService creates a new PersonService.
func NewPersonService(people domain.PersonRepository, images *ImageService, guard *Guard) *PersonService {
	return &PersonService{people: people, images: images, guard: guard}
}

// List returns people whose name, surname, location or description
// contains search, ordered by the sort token (location ascending when the
// token is empty or unknown).
func (s *PersonService) List(ctx context.Context, search, sortToken string) ([]domain.Person, error) {
	return s.people.List(ctx, domain.PersonQuery{
		Search: search,
		Sort:   domain.ParseSortOrder(sortToken),
	})
}

// Get returns a single person with its owner.
func (s *PersonService) Get(ctx context.Context, id int64) (*domain.Person, error) {
	return s.people.GetByID(ctx, id)
}

// Create stores a new person owned by the caller. The owner always comes
// from the principal; PersonInput has no owner field.
func (s *PersonService) Create(ctx context.Context, p *domain.Principal, in domain.PersonInput, upload *domain.ImageUpload) (*domain.Person, error) {
	if err := s.guard.AuthorizeCreate(p); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	image, err := s.images.Store(ctx, upload)
	if err != nil {
		return nil, err
	}

	person := &domain.Person{OwnerID: p.UserID, Image: image}
	in.ApplyTo(person)

	if err := s.people.Create(ctx, person); err != nil {
		s.images.Remove(ctx, image)
		return nil, fmt.Errorf("create person: %w", err)
	}
	return person, nil
}

// EditForm loads a person for editing.
func (s *PersonService) EditForm(ctx context.Context, p *domain.Principal, id int64) (*domain.Person, error) {
	if p == nil {
		return nil, domain.ErrChallenge
	}

	person, err := s.people.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.guard.AuthorizeEdit(ctx, p, person); err != nil {
		return nil, err
	}
	return person, nil
}

// Update applies an edit submission. On validation failure the patched,
// unsaved person is returned together with the error so the form can be
// re-rendered. Only the bindable fields and, when a new file is uploaded,
// the image reference change.
func (s *PersonService) Update(ctx context.Context, p *domain.Principal, id int64, edit PersonEdit) (*domain.Person, error) {
	if p == nil {
		return nil, domain.ErrChallenge
	}
	if edit.ID != id {
		return nil, domain.ErrNotFound
	}

	person, err := s.people.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previousImage := person.Image

	// Authorization judges the record as stored; submitted fields must not
	// decide whether they may be written.
	if err := s.guard.AuthorizeEdit(ctx, p, person); err != nil {
		return nil, err
	}

	edit.Input.ApplyTo(person)

	if err := edit.Input.Validate(); err != nil {
		return person, err
	}
	if edit.Version != 0 && edit.Version != person.Version {
		return nil, fmt.Errorf("person %d edited from version %d, now %d: %w", id, edit.Version, person.Version, domain.ErrConflict)
	}

	image, err := s.images.Store(ctx, edit.Image)
	if err != nil {
		return nil, err
	}
	if image != "" {
		person.Image = image
	}

	if err := s.people.Update(ctx, person); err != nil {
		s.images.Remove(ctx, image)
		if errors.Is(err, domain.ErrConflict) {
			exists, xerr := s.people.Exists(ctx, id)
			if xerr != nil {
				return nil, errors.Join(err, xerr)
			}
			if !exists {
				return nil, domain.ErrNotFound
			}
		}
		return nil, err
	}

	if image != "" && previousImage != "" {
		s.images.Remove(ctx, previousImage)
	}
	return person, nil
}

// DeleteForm loads a person for the delete confirmation page.
func (s *PersonService) DeleteForm(ctx context.Context, p *domain.Principal, id int64) (*domain.Person, error) {
	if err := s.guard.AuthorizeDelete(p); err != nil {
		return nil, err
	}
	return s.people.GetByID(ctx, id)
}

// Delete removes a person and its image. Administrators only.
func (s *PersonService) Delete(ctx context.Context, p *domain.Principal, id int64) error {
	if err := s.guard.AuthorizeDelete(p); err != nil {
		return err
	}

	person, err := s.people.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.people.Delete(ctx, id); err != nil {
		return err
	}

	s.images.Remove(ctx, person.Image)
	return nil
}
