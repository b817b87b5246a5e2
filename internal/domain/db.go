package domain

import "context"

// Database defines lifecycle operations for the entry store.
// The SQLite implementation owns its migration files, so the
// backend can be swapped without touching services.
type Database interface {
	Migrate(ctx context.Context) error
	Close() error
}
