package crud

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrFieldNotFound is returned when a field does not exist on a resource
	ErrFieldNotFound = errors.New("field not found")

	// ErrRelationshipField is returned when trying to use a relationship field in a WHERE clause
	ErrRelationshipField = errors.New("relationship field cannot be used directly in queries")

	// ErrUnknownTable is returned when the resource table does not exist
	ErrUnknownTable = errors.New("unknown table")
)

// ConvertDBError converts database-specific errors to CRUD errors
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			return fmt.Errorf("%w: %s", ErrUnknownTable, pgErr.Message)
		case "42703": // undefined_column
			return fmt.Errorf("%w: %s", ErrFieldNotFound, pgErr.Message)
		}
	}

	return err
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
