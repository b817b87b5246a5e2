package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/msomdec/people-registry/internal/domain"
	"github.com/msomdec/people-registry/internal/repository/localfs"
	"github.com/msomdec/people-registry/internal/service"
)

type personFixture struct {
	svc      *service.PersonService
	people   domain.PersonRepository
	imageDir string
	owner    *domain.Principal
	stranger *domain.Principal
	admin    *domain.Principal
}

func newPersonFixture(t *testing.T) *personFixture {
	t.Helper()
	db := newTestDB(t)
	ctx := context.Background()

	principal := func(email string, roles ...string) *domain.Principal {
		u := &domain.User{Email: email, DisplayName: email, PasswordHash: "hash"}
		if err := db.Users().Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		return &domain.Principal{UserID: u.ID, Email: email, Roles: roles}
	}

	dir := t.TempDir()
	store, err := localfs.New(dir)
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return &personFixture{
		svc:      service.NewPersonService(db.People(), service.NewImageService(store), service.NewGuard(nil)),
		people:   db.People(),
		imageDir: dir,
		owner:    principal("owner@example.com"),
		stranger: principal("stranger@example.com"),
		admin:    principal("admin@example.com", domain.RoleAdministrator),
	}
}

func validInput() domain.PersonInput {
	return domain.PersonInput{Name: "Ana", Surname: "Silva", LastSeenLocation: "Lisbon", Description: "tall"}
}

func (f *personFixture) create(t *testing.T, upload *domain.ImageUpload) *domain.Person {
	t.Helper()
	p, err := f.svc.Create(context.Background(), f.owner, validInput(), upload)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func (f *personFixture) imageFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.imageDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func TestPersonService_Create_SetsOwnerFromPrincipal(t *testing.T) {
	f := newPersonFixture(t)

	p := f.create(t, nil)
	if p.OwnerID != f.owner.UserID {
		t.Fatalf("OwnerID = %d, want %d", p.OwnerID, f.owner.UserID)
	}
	if p.Image != "" {
		t.Fatalf("expected no image, got %q", p.Image)
	}

	got, err := f.svc.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Owner == nil || got.Owner.Email != "owner@example.com" {
		t.Fatalf("expected owner to be loaded, got %+v", got.Owner)
	}
}

func TestPersonService_Create_Anonymous(t *testing.T) {
	f := newPersonFixture(t)

	_, err := f.svc.Create(context.Background(), nil, validInput(), nil)
	if !errors.Is(err, domain.ErrChallenge) {
		t.Fatalf("expected ErrChallenge, got %v", err)
	}
}

func TestPersonService_Create_InvalidInputStoresNothing(t *testing.T) {
	f := newPersonFixture(t)

	in := validInput()
	in.Name = ""
	upload := &domain.ImageUpload{Filename: "a.png", Content: strings.NewReader("png")}
	_, err := f.svc.Create(context.Background(), f.owner, in, upload)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if files := f.imageFiles(t); len(files) != 0 {
		t.Fatalf("expected no stored images, got %v", files)
	}
}

func TestPersonService_Create_WithImage(t *testing.T) {
	f := newPersonFixture(t)

	p := f.create(t, &domain.ImageUpload{Filename: `C:\photos\me.png`, Content: strings.NewReader("png-bytes")})
	if !strings.HasSuffix(p.Image, "_me.png") {
		t.Fatalf("expected stored name to end with _me.png, got %q", p.Image)
	}
	data, err := os.ReadFile(filepath.Join(f.imageDir, p.Image))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("stored bytes = %q", data)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestPersonService_Create_ImageFailureCreatesNoRecord(t *testing.T) {
	f := newPersonFixture(t)

	_, err := f.svc.Create(context.Background(), f.owner, validInput(), &domain.ImageUpload{Filename: "x.png", Content: failingReader{}})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected write failure, got %v", err)
	}

	all, err := f.svc.List(context.Background(), "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no records, got %d", len(all))
	}
	if files := f.imageFiles(t); len(files) != 0 {
		t.Fatalf("expected partial file to be removed, got %v", files)
	}
}

func TestPersonService_EditForm(t *testing.T) {
	f := newPersonFixture(t)
	p := f.create(t, nil)
	ctx := context.Background()

	if _, err := f.svc.EditForm(ctx, f.owner, p.ID); err != nil {
		t.Fatalf("owner EditForm: %v", err)
	}
	if _, err := f.svc.EditForm(ctx, f.admin, p.ID); err != nil {
		t.Fatalf("admin EditForm: %v", err)
	}
	if _, err := f.svc.EditForm(ctx, f.stranger, p.ID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("stranger: expected ErrAccessDenied, got %v", err)
	}
	if _, err := f.svc.EditForm(ctx, nil, p.ID); !errors.Is(err, domain.ErrChallenge) {
		t.Fatalf("anonymous: expected ErrChallenge, got %v", err)
	}
	if _, err := f.svc.EditForm(ctx, f.owner, p.ID+100); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing: expected ErrNotFound, got %v", err)
	}
}

func TestPersonService_Update_OwnerEdits(t *testing.T) {
	f := newPersonFixture(t)
	p := f.create(t, nil)
	ctx := context.Background()

	in := validInput()
	in.LastSeenLocation = "Porto"
	in.IsWoman = true
	updated, err := f.svc.Update(ctx, f.owner, p.ID, service.PersonEdit{ID: p.ID, Version: p.Version, Input: in})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != p.Version+1 {
		t.Fatalf("Version = %d, want %d", updated.Version, p.Version+1)
	}

	got, err := f.svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LastSeenLocation != "Porto" || !got.IsWoman {
		t.Fatalf("fields not persisted: %+v", got)
	}
	if got.OwnerID != f.owner.UserID {
		t.Fatalf("owner changed to %d", got.OwnerID)
	}
}

func TestPersonService_Update_AdminKeepsOriginalOwner(t *testing.T) {
	f := newPersonFixture(t)
	p := f.create(t, nil)
	ctx := context.Background()

	if _, err := f.svc.Update(ctx, f.admin, p.ID, service.PersonEdit{ID: p.ID, Input: validInput()}); err != nil {
		t.Fatalf("admin Update: %v", err)
	}
	got, err := f.svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OwnerID != f.owner.UserID {
		t.Fatalf("admin edit transferred ownership to %d", got.OwnerID)
	}
}

func TestPersonService_Update_Denials(t *testing.T) {
	f := newPersonFixture(t)
	p := f.create(t, nil)
	ctx := context.Background()

	invalid := validInput()
	invalid.Surname = ""

	tests := []struct {
		name      string
		principal *domain.Principal
		routeID   int64
		edit      service.PersonEdit
		want      error
	}{
		{"anonymous", nil, p.ID, service.PersonEdit{ID: p.ID, Input: validInput()}, domain.ErrChallenge},
		{"id mismatch", f.owner, p.ID, service.PersonEdit{ID: p.ID + 1, Input: validInput()}, domain.ErrNotFound},
		{"missing record", f.owner, p.ID + 100, service.PersonEdit{ID: p.ID + 100, Input: validInput()}, domain.ErrNotFound},
		{"stranger", f.stranger, p.ID, service.PersonEdit{ID: p.ID, Input: validInput()}, domain.ErrAccessDenied},
		{"stranger with invalid input", f.stranger, p.ID, service.PersonEdit{ID: p.ID, Input: invalid}, domain.ErrAccessDenied},
		{"owner with invalid input", f.owner, p.ID, service.PersonEdit{ID: p.ID, Input: invalid}, domain.ErrInvalidInput},
		{"stale version", f.owner, p.ID, service.PersonEdit{ID: p.ID, Version: p.Version + 5, Input: validInput()}, domain.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, tt.principal, tt.routeID, tt.edit)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	got, err := f.svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Version != p.Version {
		t.Fatalf("denied edits must not persist; version moved to %d", got.Version)
	}
}

func TestPersonService_Update_InvalidReturnsPatchedPerson(t *testing.T) {
	f := newPersonFixture(t)
	p := f.create(t, nil)

	in := validInput()
	in.Name = ""
	in.LastSeenLocation = "Faro"
	got, err := f.svc.Update(context.Background(), f.owner, p.ID, service.PersonEdit{ID: p.ID, Input: in})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if got == nil || got.LastSeenLocation != "Faro" {
		t.Fatalf("expected patched person for re-render, got %+v", got)
	}
}

func TestPersonService_Update_ReplacesImage(t *testing.T) {
	f := newPersonFixture(t)
	p := f.create(t, &domain.ImageUpload{Filename: "old.png", Content: strings.NewReader("old")})
	ctx := context.Background()

	updated, err := f.svc.Update(ctx, f.owner, p.ID, service.PersonEdit{
		ID:    p.ID,
		Input: validInput(),
		Image: &domain.ImageUpload{Filename: "new.png", Content: strings.NewReader("new")},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Image == p.Image || !strings.HasSuffix(updated.Image, "_new.png") {
		t.Fatalf("expected new image name, got %q", updated.Image)
	}

	files := f.imageFiles(t)
	if len(files) != 1 || files[0] != updated.Image {
		t.Fatalf("expected only %q on disk, got %v", updated.Image, files)
	}
}

func TestPersonService_Update_KeepsImageWithoutUpload(t *testing.T) {
	f := newPersonFixture(t)
	p := f.create(t, &domain.ImageUpload{Filename: "keep.png", Content: strings.NewReader("keep")})

	updated, err := f.svc.Update(context.Background(), f.owner, p.ID, service.PersonEdit{ID: p.ID, Input: validInput()})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Image != p.Image {
		t.Fatalf("image changed from %q to %q", p.Image, updated.Image)
	}
}

func TestPersonService_Delete(t *testing.T) {
	f := newPersonFixture(t)
	p := f.create(t, &domain.ImageUpload{Filename: "gone.png", Content: strings.NewReader("x")})
	ctx := context.Background()

	if err := f.svc.Delete(ctx, f.owner, p.ID); !errors.Is(err, domain.ErrChallenge) {
		t.Fatalf("owner without role: expected ErrChallenge, got %v", err)
	}
	if _, err := f.svc.DeleteForm(ctx, f.owner, p.ID); !errors.Is(err, domain.ErrChallenge) {
		t.Fatalf("owner DeleteForm: expected ErrChallenge, got %v", err)
	}
	if _, err := f.svc.DeleteForm(ctx, f.admin, p.ID); err != nil {
		t.Fatalf("admin DeleteForm: %v", err)
	}

	if err := f.svc.Delete(ctx, f.admin, p.ID); err != nil {
		t.Fatalf("admin Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if files := f.imageFiles(t); len(files) != 0 {
		t.Fatalf("expected image removed, got %v", files)
	}

	if err := f.svc.Delete(ctx, f.admin, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestPersonService_List(t *testing.T) {
	f := newPersonFixture(t)
	ctx := context.Background()

	for _, in := range []domain.PersonInput{
		{Name: "Ana", Surname: "Silva", LastSeenLocation: "Porto"},
		{Name: "Bia", Surname: "Costa", LastSeenLocation: "Braga", IsWoman: true},
		{Name: "Caio", Surname: "Lima", LastSeenLocation: "Aveiro"},
	} {
		if _, err := f.svc.Create(ctx, f.owner, in, nil); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := f.svc.List(ctx, "", "bogus")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 || got[0].Name != "Caio" || got[2].Name != "Ana" {
		t.Fatalf("expected location ascending order, got %+v", got)
	}

	got, err = f.svc.List(ctx, "cost", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Bia" {
		t.Fatalf("expected search to match surname, got %+v", got)
	}
}

// racingRepo simulates another request deleting or editing the record
// between the read and the write.
type racingRepo struct {
	domain.PersonRepository
	deleteBeforeUpdate bool
}

func (r *racingRepo) Update(ctx context.Context, p *domain.Person) error {
	if r.deleteBeforeUpdate {
		if err := r.PersonRepository.Delete(ctx, p.ID); err != nil {
			return err
		}
	} else {
		bump := *p
		if err := r.PersonRepository.Update(ctx, &bump); err != nil {
			return err
		}
	}
	return r.PersonRepository.Update(ctx, p)
}

func TestPersonService_Update_ConcurrentChanges(t *testing.T) {
	tests := []struct {
		name    string
		deleted bool
		want    error
	}{
		{"record deleted meanwhile", true, domain.ErrNotFound},
		{"record edited meanwhile", false, domain.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPersonFixture(t)
			p := f.create(t, nil)

			svc := service.NewPersonService(&racingRepo{PersonRepository: f.people, deleteBeforeUpdate: tt.deleted}, service.NewImageService(nopFiles{}), service.NewGuard(nil))
			_, err := svc.Update(context.Background(), f.owner, p.ID, service.PersonEdit{ID: p.ID, Input: validInput()})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPersonService_Update_PolicyJudgesStoredRecord(t *testing.T) {
	f := newPersonFixture(t)
	ctx := context.Background()

	sealed := validInput()
	sealed.LastSeenLocation = "Sealed"
	p, err := f.svc.Create(ctx, f.owner, sealed, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	policy, err := service.NewCELPolicy(`person.last_seen_location != "Sealed"`)
	if err != nil {
		t.Fatalf("NewCELPolicy: %v", err)
	}
	svc := service.NewPersonService(f.people, service.NewImageService(nopFiles{}), service.NewGuard(policy))

	if _, err := svc.EditForm(ctx, f.owner, p.ID); !errors.Is(err, domain.ErrChallenge) {
		t.Fatalf("EditForm: expected ErrChallenge, got %v", err)
	}

	open := validInput()
	open.LastSeenLocation = "Open"
	if _, err := svc.Update(ctx, f.owner, p.ID, service.PersonEdit{ID: p.ID, Version: p.Version, Input: open}); !errors.Is(err, domain.ErrChallenge) {
		t.Fatalf("Update: expected ErrChallenge, got %v", err)
	}

	got, err := f.svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LastSeenLocation != "Sealed" || got.Version != p.Version {
		t.Fatalf("refused edit persisted: %+v", got)
	}
}
