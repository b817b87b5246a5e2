package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")

	// ErrAccessDenied means the caller is authenticated but not entitled
	// to the record. The web layer redirects to the access-denied page.
	ErrAccessDenied = errors.New("access denied")

	// ErrChallenge means the caller must (re-)authenticate: either no
	// principal is present, a required role is missing, or the edit
	// policy rejected an otherwise entitled caller.
	ErrChallenge = errors.New("authentication challenge")

	// ErrConflict is returned when a versioned write lost a race with
	// another writer.
	ErrConflict = errors.New("concurrent modification")
)
