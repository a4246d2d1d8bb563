package metadata

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/conduit-lang/smokescreen/internal/orm/schema"
)

// Dialect selects the catalog query used to read column metadata
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// DialectFor returns the dialect for a database/sql driver name
func DialectFor(driverName string) (Dialect, error) {
	switch driverName {
	case "pgx", "postgres":
		return DialectPostgres, nil
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	default:
		return 0, fmt.Errorf("unsupported database driver: %s", driverName)
	}
}

// SQLSource reads column metadata from the database catalog
type SQLSource struct {
	db      *sql.DB
	dialect Dialect
	// Schema is the postgres schema searched for tables
	Schema string
}

// NewSQLSource creates a column source for db
func NewSQLSource(db *sql.DB, dialect Dialect) *SQLSource {
	return &SQLSource{
		db:      db,
		dialect: dialect,
		Schema:  "public",
	}
}

// ColumnsOf implements ColumnSource. Columns are returned in table order
// with their kinds normalized.
func (s *SQLSource) ColumnsOf(ctx context.Context, table string) ([]schema.Column, error) {
	var (
		columns []schema.Column
		err     error
	)
	switch s.dialect {
	case DialectSQLite:
		columns, err = s.sqliteColumns(ctx, table)
	default:
		columns, err = s.postgresColumns(ctx, table)
	}
	if err != nil {
		return nil, unavailable(table, err)
	}
	return columns, nil
}

func (s *SQLSource) postgresColumns(ctx context.Context, table string) ([]schema.Column, error) {
	query := `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

	rows, err := s.db.QueryContext(ctx, query, s.Schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, err
		}
		columns = append(columns, schema.Column{Name: name, Kind: NormalizeKind(dataType)})
	}
	return columns, rows.Err()
}

func (s *SQLSource) sqliteColumns(ctx context.Context, table string) ([]schema.Column, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", pq.QuoteIdentifier(table))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, schema.Column{Name: name, Kind: NormalizeKind(colType)})
	}
	return columns, rows.Err()
}
