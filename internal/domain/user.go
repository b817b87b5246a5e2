package domain

import (
	"context"
	"time"
)

// RoleAdministrator may edit any record and is the only role allowed to delete.
const RoleAdministrator = "Administrator"

// User represents a registered user of the application.
type User struct {
	ID           int64
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRepository defines persistence operations for users and their roles.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*User, error)

	EnsureRole(ctx context.Context, name string) error
	AddRole(ctx context.Context, userID int64, role string) error
	RolesFor(ctx context.Context, userID int64) ([]string, error)
}
