package sqldb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lingolab/vocab-srs/internal/store"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// PostgreSQL error codes
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	notNullViolationCode    = "23502"
)

// constraintKind classifies a constraint failure independently of the driver.
type constraintKind int

const (
	constraintNone constraintKind = iota
	constraintUnique
	constraintForeignKey
	constraintCheck
	constraintNotNull
)

// classify inspects a driver error and reports which constraint it violated,
// along with the constraint or column name when the driver provides one.
func classify(err error) (constraintKind, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return constraintUnique, pgErr.ConstraintName
		case foreignKeyViolationCode:
			return constraintForeignKey, pgErr.ConstraintName
		case checkViolationCode:
			return constraintCheck, pgErr.ConstraintName
		case notNullViolationCode:
			return constraintNotNull, pgErr.ColumnName
		}
		return constraintNone, ""
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return constraintUnique, ""
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return constraintForeignKey, ""
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return constraintCheck, ""
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return constraintNotNull, ""
		}
		// Without extended result codes only the primary code and message are available.
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			msg := liteErr.Error()
			switch {
			case strings.Contains(msg, "UNIQUE"):
				return constraintUnique, ""
			case strings.Contains(msg, "FOREIGN KEY"):
				return constraintForeignKey, ""
			case strings.Contains(msg, "CHECK"):
				return constraintCheck, ""
			case strings.Contains(msg, "NOT NULL"):
				return constraintNotNull, ""
			}
		}
	}

	return constraintNone, ""
}

// MapError maps a database error to an appropriate store error.
// It wraps the original error to preserve context for debugging.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	kind, name := classify(err)
	switch kind {
	case constraintUnique:
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case constraintForeignKey:
		return fmt.Errorf("%w: foreign key violation (%s): %v", store.ErrInvalidEntity, name, err)
	case constraintCheck:
		return fmt.Errorf("%w: check constraint violation (%s): %v", store.ErrInvalidEntity, name, err)
	case constraintNotNull:
		return fmt.Errorf("%w: not null violation (%s): %v", store.ErrInvalidEntity, name, err)
	}

	return err
}

// IsUniqueViolation checks if the given error is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	kind, _ := classify(err)
	return kind == constraintUnique
}

// IsForeignKeyViolation checks if the given error is a foreign key constraint violation.
func IsForeignKeyViolation(err error) bool {
	kind, _ := classify(err)
	return kind == constraintForeignKey
}

// MapUniqueViolation maps a unique violation to specificError, leaving other errors untouched.
func MapUniqueViolation(err error, specificError error) error {
	if !IsUniqueViolation(err) {
		return err
	}
	return fmt.Errorf("%w: %v", specificError, err)
}

// checkRowsAffected reports how many rows a statement changed.
func checkRowsAffected(result sql.Result) (int64, error) {
	if result == nil {
		return 0, fmt.Errorf("nil result provided to checkRowsAffected")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
