package metadata

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/smokescreen/internal/orm/schema"
	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// Tables lists the user tables of the database in name order
func (s *SQLSource) Tables(ctx context.Context) ([]string, error) {
	var (
		query string
		args  []any
	)
	switch s.dialect {
	case DialectSQLite:
		query = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	default:
		query = `SELECT table_name FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`
		args = append(args, s.Schema)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("*", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, unavailable("*", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("*", err)
	}
	return tables, nil
}

// Discover builds a schema registry for tables. Each table becomes a
// resource named by orm.ModelName. A column "<name>_id" whose pluralized
// prefix is another discovered table yields a belongs-to relation
// "<name>" on the owning table and a has-many relation named after the
// owning table on the target.
func Discover(ctx context.Context, source ColumnSource, tables []string) (*schema.Registry, error) {
	schemas := make(map[string]*schema.ResourceSchema, len(tables))
	for _, table := range tables {
		columns, err := source.ColumnsOf(ctx, table)
		if err != nil {
			return nil, err
		}
		rs := schema.NewResourceSchema(orm.ModelName(table))
		rs.TableName = table
		rs.Columns = columns
		schemas[table] = rs
	}

	sorted := make([]string, 0, len(schemas))
	for table := range schemas {
		sorted = append(sorted, table)
	}
	sort.Strings(sorted)

	for _, table := range sorted {
		owner := schemas[table]
		for _, col := range owner.Columns {
			name, ok := strings.CutSuffix(col.Name, "_id")
			if !ok || name == "" {
				continue
			}
			target, ok := schemas[orm.Pluralize(name)]
			if !ok {
				continue
			}
			if !owner.HasRelationship(name) && !owner.HasColumn(name) {
				owner.Relationships[name] = &schema.Relationship{
					Type:           orm.RelationBelongsTo,
					TargetResource: target.Name,
					FieldName:      name,
					ForeignKey:     col.Name,
					Nullable:       true,
				}
			}
			if !target.HasRelationship(table) && !target.HasColumn(table) {
				target.Relationships[table] = &schema.Relationship{
					Type:           orm.RelationHasMany,
					TargetResource: owner.Name,
					FieldName:      table,
					ForeignKey:     col.Name,
				}
			}
		}
	}

	registry := schema.NewRegistry()
	for _, table := range sorted {
		if err := registry.Register(schemas[table]); err != nil {
			return nil, fmt.Errorf("failed to register table %s: %w", table, err)
		}
	}
	return registry, nil
}
