package database

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrFileNotFound      = errors.New("file not found")
	ErrShareNotFound     = errors.New("share not found")
	ErrScanNotFound      = errors.New("scan result not found")
	ErrInvalidTransition = errors.New("invalid file status transition")
	ErrLimitExhausted    = errors.New("download limit exhausted")
	ErrDuplicateHash     = errors.New("file hash already exists in scope")
)

// Repository provides persistence operations for all aggregates.
// Methods are grouped per aggregate in files.go, shares.go, scans.go,
// users.go and notifications.go.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}
