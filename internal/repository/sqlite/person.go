package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/msomdec/people-registry/internal/domain"
)

var personColumns = []string{
	"p.id", "p.name", "p.surname", "p.description", "p.last_seen_location",
	"p.is_woman", "p.image", "p.owner_id", "p.version", "p.created_at", "p.updated_at",
	"u.id", "u.email", "u.display_name",
}

// Fields matched by the list search box.
var searchColumns = []string{"p.name", "p.surname", "p.last_seen_location", "p.description"}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PersonRepository implements domain.PersonRepository using SQLite.
type PersonRepository struct {
	db *sql.DB
}

// NewPersonRepository creates a new SQLite-backed PersonRepository.
func NewPersonRepository(db *DB) *PersonRepository {
	return &PersonRepository{db: db.SqlDB}
}

func (r *PersonRepository) baseSelect() squirrel.SelectBuilder {
	return squirrel.Select(personColumns...).
		From("people p").
		Join("users u ON u.id = p.owner_id")
}

func (r *PersonRepository) Create(ctx context.Context, person *domain.Person) error {
	now := time.Now().UTC()
	query, args, err := squirrel.Insert("people").
		Columns("name", "surname", "description", "last_seen_location", "is_woman", "image",
			"owner_id", "version", "created_at", "updated_at").
		Values(person.Name, person.Surname, person.Description, person.LastSeenLocation, person.IsWoman,
			nullString(person.Image), person.OwnerID, 1, now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	person.ID = id
	person.Version = 1
	person.CreatedAt = now
	person.UpdatedAt = now
	return nil
}

func (r *PersonRepository) GetByID(ctx context.Context, id int64) (*domain.Person, error) {
	query, args, err := r.baseSelect().Where(squirrel.Eq{"p.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	p, err := scanPerson(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// List returns people matching query.Search in any of the searchable
// columns, ordered by query.Sort with id as a tie breaker.
func (r *PersonRepository) List(ctx context.Context, q domain.PersonQuery) ([]domain.Person, error) {
	sb := r.baseSelect()

	if q.Search != "" {
		pattern := "%" + likeEscaper.Replace(q.Search) + "%"
		or := make(squirrel.Or, 0, len(searchColumns))
		for _, col := range searchColumns {
			or = append(or, squirrel.Expr(col+` LIKE ? ESCAPE '\'`, pattern))
		}
		sb = sb.Where(or)
	}

	sb = sb.OrderBy(orderByClause(q.Sort), "p.id ASC")

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	var people []domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, *p)
	}
	return people, rows.Err()
}

func orderByClause(sort domain.SortOrder) string {
	switch domain.ParseSortOrder(string(sort)) {
	case domain.SortLocationDesc:
		return "p.last_seen_location DESC"
	case domain.SortSexAsc:
		return "p.is_woman ASC"
	case domain.SortSexDesc:
		return "p.is_woman DESC"
	default:
		return "p.last_seen_location ASC"
	}
}

// Update writes the display fields and image with an optimistic lock on
// version. owner_id is not part of the statement.
func (r *PersonRepository) Update(ctx context.Context, person *domain.Person) error {
	now := time.Now().UTC()
	query, args, err := squirrel.Update("people").
		Set("name", person.Name).
		Set("surname", person.Surname).
		Set("description", person.Description).
		Set("last_seen_location", person.LastSeenLocation).
		Set("is_woman", person.IsWoman).
		Set("image", nullString(person.Image)).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": person.ID, "version": person.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("person %d at version %d: %w", person.ID, person.Version, domain.ErrConflict)
	}

	person.Version++
	person.UpdatedAt = now
	return nil
}

func (r *PersonRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM people WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PersonRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM people WHERE id = ?)", id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check person exists: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*domain.Person, error) {
	var (
		p     domain.Person
		owner domain.User
		image sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &p.Surname, &p.Description, &p.LastSeenLocation,
		&p.IsWoman, &image, &p.OwnerID, &p.Version, &p.CreatedAt, &p.UpdatedAt,
		&owner.ID, &owner.Email, &owner.DisplayName)
	if err != nil {
		return nil, err
	}
	p.Image = image.String
	p.Owner = &owner
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
