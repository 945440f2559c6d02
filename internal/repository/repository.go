// Package repository is the Config Repository: a thin typed CRUD layer over
// the Store's embedded database, covering Alert, Variation, Template,
// Setting, and EventLog. Every operation maps database/sql failures to the
// typed kinds in internal/apperr so callers above this layer never see a
// raw *sql.DB error.
package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// timeFormat is the single canonical textual timestamp form written by every
// Create/Update operation in this package.
const timeFormat = time.RFC3339Nano

// Repository is the Config Repository, backed directly by a *sql.DB opened
// and migrated by internal/store.
type Repository struct {
	db *sql.DB
}

// New wraps db as a Repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// newID returns a cryptographically seeded UUID string, matching the
// invariant that every id produced by the Config Repository is a UUID.
func newID() string {
	return uuid.NewString()
}

// now returns the current time formatted in the repository's single
// canonical ISO-8601 textual form.
func now() string {
	return time.Now().UTC().Format(timeFormat)
}

// parseTime parses a timestamp written by now(), falling back to RFC3339 for
// rows that may have been inserted by a migration's strftime default.
func parseTime(s string) time.Time {
	if t, err := time.Parse(timeFormat, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// scanner is satisfied by both *sql.Row and *sql.Rows, allowing shared scan
// helpers across single-row and multi-row queries.
type scanner interface {
	Scan(dest ...any) error
}
