package metadata

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSchemaUnavailable is returned when the column metadata of a table
// cannot be obtained
var ErrSchemaUnavailable = errors.New("schema unavailable")

// unavailable wraps a driver error so that it matches both
// ErrSchemaUnavailable and the original cause
func unavailable(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: table %s: %s (SQLSTATE %s): %w", ErrSchemaUnavailable, table, pgErr.Message, pgErr.Code, err)
	}
	return fmt.Errorf("%w: table %s: %w", ErrSchemaUnavailable, table, err)
}

// IsConnectionFailure reports whether err was caused by the database
// being unreachable rather than by a bad query
func IsConnectionFailure(err error) bool {
	if err == nil {
		return false
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	// Class 08: connection exception
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08")
	}

	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone)
}
