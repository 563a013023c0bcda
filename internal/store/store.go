// Package store provides database access methods for the CMS collections.
// Each store struct wraps a *sql.DB and builds its SQL with squirrel using
// PostgreSQL placeholders.
package store

import (
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrSlugTaken is returned when a post or page is saved with a slug
	// already used by another document of the same collection.
	ErrSlugTaken = errors.New("slug already taken")

	// ErrEmailTaken is returned when a user is saved with an email already
	// used by another account.
	ErrEmailTaken = errors.New("email already taken")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// builder returns a statement builder using $n placeholders.
func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// isUniqueViolation reports whether err is a unique constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
