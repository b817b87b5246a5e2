package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/msomdec/people-registry/internal/domain"
	"github.com/msomdec/people-registry/internal/repository/sqlite"
)

func seedUser(t *testing.T, db *sqlite.DB, email string) int64 {
	t.Helper()
	u := &domain.User{Email: email, DisplayName: "Owner", PasswordHash: "hash"}
	if err := db.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u.ID
}

func seedPerson(t *testing.T, db *sqlite.DB, p domain.Person) *domain.Person {
	t.Helper()
	if p.Surname == "" {
		p.Surname = "Doe"
	}
	if err := db.People().Create(context.Background(), &p); err != nil {
		t.Fatalf("seed person: %v", err)
	}
	return &p
}

func names(people []domain.Person) []string {
	out := make([]string, len(people))
	for i, p := range people {
		out[i] = p.Name
	}
	return out
}

func equalNames(got []domain.Person, want ...string) bool {
	n := names(got)
	if len(n) != len(want) {
		return false
	}
	for i := range n {
		if n[i] != want[i] {
			return false
		}
	}
	return true
}

func TestPersonRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ownerID := seedUser(t, db, "owner@example.com")

	p := seedPerson(t, db, domain.Person{
		Name:             "Ana",
		Surname:          "Novak",
		Description:      "Red coat",
		LastSeenLocation: "Paris",
		IsWoman:          true,
		Image:            "abc_photo.png",
		OwnerID:          ownerID,
	})
	if p.ID == 0 {
		t.Fatal("expected person ID to be set")
	}
	if p.Version != 1 {
		t.Fatalf("expected version 1, got %d", p.Version)
	}

	got, err := db.People().GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Ana" || got.LastSeenLocation != "Paris" || !got.IsWoman || got.Image != "abc_photo.png" {
		t.Fatalf("unexpected person: %+v", got)
	}
	if got.Owner == nil || got.Owner.Email != "owner@example.com" {
		t.Fatalf("expected owner to be loaded, got %+v", got.Owner)
	}
}

func TestPersonRepository_CreateWithoutImageStoresNull(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ownerID := seedUser(t, db, "owner@example.com")

	p := seedPerson(t, db, domain.Person{Name: "Ben", OwnerID: ownerID})

	var isNull bool
	if err := db.SqlDB.QueryRowContext(ctx, "SELECT image IS NULL FROM people WHERE id = ?", p.ID).Scan(&isNull); err != nil {
		t.Fatalf("query image: %v", err)
	}
	if !isNull {
		t.Fatal("expected image column to be NULL")
	}
}

func TestPersonRepository_CreateUnknownOwner(t *testing.T) {
	db := newTestDB(t)

	err := db.People().Create(context.Background(), &domain.Person{Name: "X", Surname: "Y", OwnerID: 777})
	if err == nil {
		t.Fatal("expected foreign key error for unknown owner")
	}
}

func TestPersonRepository_GetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.People().GetByID(context.Background(), 12345)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPersonRepository_List_SearchMatchesAnyField(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ownerID := seedUser(t, db, "owner@example.com")

	seedPerson(t, db, domain.Person{Name: "Ana", LastSeenLocation: "Paris", OwnerID: ownerID})
	seedPerson(t, db, domain.Person{Name: "Ben", LastSeenLocation: "Sofia", OwnerID: ownerID})
	seedPerson(t, db, domain.Person{Name: "Cleo", Surname: "Parisot", LastSeenLocation: "Rome", OwnerID: ownerID})
	seedPerson(t, db, domain.Person{Name: "Dan", Description: "flew to paris", LastSeenLocation: "Oslo", OwnerID: ownerID})

	tests := []struct {
		name   string
		search string
		want   []string
	}{
		{"location", "Sofia", []string{"Ben"}},
		{"name", "Ana", []string{"Ana"}},
		{"any field, ordered by location", "Paris", []string{"Dan", "Ana", "Cleo"}},
		{"no match", "Berlin", nil},
		{"empty returns all", "", []string{"Dan", "Ana", "Cleo", "Ben"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := db.People().List(ctx, domain.PersonQuery{Search: tc.search})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if !equalNames(got, tc.want...) {
				t.Fatalf("expected %v, got %v", tc.want, names(got))
			}
		})
	}
}

func TestPersonRepository_List_SearchEscapesWildcards(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ownerID := seedUser(t, db, "owner@example.com")

	seedPerson(t, db, domain.Person{Name: "Plain", LastSeenLocation: "A", OwnerID: ownerID})
	seedPerson(t, db, domain.Person{Name: "Percent", Description: "100% sure", LastSeenLocation: "B", OwnerID: ownerID})

	got, err := db.People().List(ctx, domain.PersonQuery{Search: "%"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !equalNames(got, "Percent") {
		t.Fatalf("expected only the literal match, got %v", names(got))
	}
}

func TestPersonRepository_List_Sort(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ownerID := seedUser(t, db, "owner@example.com")

	seedPerson(t, db, domain.Person{Name: "b-man", LastSeenLocation: "B", IsWoman: false, OwnerID: ownerID})
	seedPerson(t, db, domain.Person{Name: "a-woman", LastSeenLocation: "A", IsWoman: true, OwnerID: ownerID})

	tests := []struct {
		sort domain.SortOrder
		want []string
	}{
		{domain.SortLocationAsc, []string{"a-woman", "b-man"}},
		{domain.SortLocationDesc, []string{"b-man", "a-woman"}},
		{"", []string{"a-woman", "b-man"}},
		{"bogus", []string{"a-woman", "b-man"}},
		{domain.SortSexAsc, []string{"b-man", "a-woman"}},
		{domain.SortSexDesc, []string{"a-woman", "b-man"}},
	}

	for _, tc := range tests {
		t.Run(string(tc.sort), func(t *testing.T) {
			got, err := db.People().List(ctx, domain.PersonQuery{Sort: tc.sort})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if !equalNames(got, tc.want...) {
				t.Fatalf("expected %v, got %v", tc.want, names(got))
			}
		})
	}
}

func TestPersonRepository_Update(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ownerID := seedUser(t, db, "owner@example.com")
	otherID := seedUser(t, db, "other@example.com")

	p := seedPerson(t, db, domain.Person{Name: "Ana", LastSeenLocation: "Paris", OwnerID: ownerID})

	p.Name = "Anna"
	p.Image = "new.png"
	p.OwnerID = otherID // must not be persisted
	if err := db.People().Update(ctx, p); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Version != 2 {
		t.Fatalf("expected version 2 after update, got %d", p.Version)
	}

	got, err := db.People().GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Anna" || got.Image != "new.png" {
		t.Fatalf("update not persisted: %+v", got)
	}
	if got.OwnerID != ownerID {
		t.Fatalf("owner changed from %d to %d", ownerID, got.OwnerID)
	}
	if got.Version != 2 {
		t.Fatalf("expected stored version 2, got %d", got.Version)
	}
}

func TestPersonRepository_Update_StaleVersionConflicts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ownerID := seedUser(t, db, "owner@example.com")

	p := seedPerson(t, db, domain.Person{Name: "Ana", LastSeenLocation: "Paris", OwnerID: ownerID})

	first, _ := db.People().GetByID(ctx, p.ID)
	second, _ := db.People().GetByID(ctx, p.ID)

	first.Name = "First"
	if err := db.People().Update(ctx, first); err != nil {
		t.Fatalf("first Update: %v", err)
	}

	second.Name = "Second"
	err := db.People().Update(ctx, second)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, _ := db.People().GetByID(ctx, p.ID)
	if got.Name != "First" {
		t.Fatalf("first writer's change was lost: %q", got.Name)
	}
}

func TestPersonRepository_DeleteAndExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ownerID := seedUser(t, db, "owner@example.com")

	p := seedPerson(t, db, domain.Person{Name: "Ana", OwnerID: ownerID})

	exists, err := db.People().Exists(ctx, p.ID)
	if err != nil || !exists {
		t.Fatalf("Exists before delete = %v, %v", exists, err)
	}

	if err := db.People().Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	exists, err = db.People().Exists(ctx, p.ID)
	if err != nil || exists {
		t.Fatalf("Exists after delete = %v, %v", exists, err)
	}

	if err := db.People().Delete(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	// Updating a vanished row looks like a conflict at this layer.
	if err := db.People().Update(ctx, p); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict updating a deleted row, got %v", err)
	}
}
