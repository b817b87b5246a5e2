package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/msomdec/people-registry/internal/repository/sqlite/migrations"

	_ "modernc.org/sqlite"
)

// busyTimeoutMillis bounds how long a statement waits on a locked database
// before failing with SQLITE_BUSY.
const busyTimeoutMillis = 5000

// DB is the SQLite-backed entry store. It implements domain.Database and
// hands out the repositories that share its connection.
type DB struct {
	SqlDB *sql.DB
}

// New opens a SQLite database at the given path and configures it for use.
// It enables WAL mode, foreign keys and a busy timeout.
func New(dbPath string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection serializes writers; the pragmas below are
	// per-connection and would otherwise need repeating.
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis),
	}
	for _, p := range pragmas {
		if _, err := sqlDB.ExecContext(context.Background(), p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", strings.ToLower(p), err)
		}
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: sqlDB}, nil
}

// Migrate applies the embedded schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, db.SqlDB)
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	return db.SqlDB.Close()
}

// Users returns the user and role repository.
func (db *DB) Users() *UserRepository {
	return NewUserRepository(db)
}

// People returns the person repository.
func (db *DB) People() *PersonRepository {
	return NewPersonRepository(db)
}

// isUniqueConstraintError reports whether err is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
