// Package metadata reads the column metadata of model storage tables
// from a live database, a static schema registry, or a cache in front of
// either.
package metadata

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/conduit-lang/smokescreen/internal/orm/schema"
)

// ColumnSource returns the ordered column list of a storage table
type ColumnSource interface {
	ColumnsOf(ctx context.Context, table string) ([]schema.Column, error)
}

// SourceFunc adapts a function to the ColumnSource interface
type SourceFunc func(ctx context.Context, table string) ([]schema.Column, error)

// ColumnsOf implements ColumnSource
func (f SourceFunc) ColumnsOf(ctx context.Context, table string) ([]schema.Column, error) {
	return f(ctx, table)
}

// RegistrySource serves columns from statically registered schemas
type RegistrySource struct {
	registry *schema.Registry
}

// NewRegistrySource creates a column source backed by registry
func NewRegistrySource(registry *schema.Registry) *RegistrySource {
	return &RegistrySource{registry: registry}
}

// ColumnsOf implements ColumnSource
func (s *RegistrySource) ColumnsOf(_ context.Context, table string) ([]schema.Column, error) {
	rs, ok := s.registry.GetByTable(table)
	if !ok {
		return nil, fmt.Errorf("%w: table %s is not registered", ErrSchemaUnavailable, table)
	}
	columns := make([]schema.Column, len(rs.Columns))
	copy(columns, rs.Columns)
	return columns, nil
}

var typeParams = regexp.MustCompile(`\s*\(.*\)`)

// dialectKinds maps database type names to schema kinds
var dialectKinds = map[string]string{
	"uuid":                        "guid",
	"bool":                        "boolean",
	"boolean":                     "boolean",
	"character varying":           "string",
	"varchar":                     "string",
	"character":                   "string",
	"char":                        "string",
	"bpchar":                      "string",
	"nvarchar":                    "string",
	"citext":                      "string",
	"text":                        "text",
	"clob":                        "text",
	"int":                         "integer",
	"int4":                        "integer",
	"integer":                     "integer",
	"serial":                      "integer",
	"mediumint":                   "integer",
	"smallint":                    "smallint",
	"int2":                        "smallint",
	"tinyint":                     "smallint",
	"bigint":                      "bigint",
	"int8":                        "bigint",
	"bigserial":                   "bigint",
	"numeric":                     "decimal",
	"decimal":                     "decimal",
	"real":                        "decimal",
	"float":                       "decimal",
	"float4":                      "decimal",
	"float8":                      "decimal",
	"double":                      "decimal",
	"double precision":            "decimal",
	"money":                       "decimal",
	"date":                        "date",
	"datetime":                    "datetime",
	"timestamp":                   "datetime",
	"timestamptz":                 "datetime",
	"timestamp without time zone": "datetime",
	"timestamp with time zone":    "datetime",
	"json":                        "json",
	"jsonb":                       "json",
}

// NormalizeKind converts a database type name to a schema kind
// ("character varying" -> "string", "VARCHAR(255)" -> "string").
// Unrecognized types are returned lower-cased without type parameters,
// so they reach the type map and come out with an unknown kind.
func NormalizeKind(dbType string) string {
	kind := strings.ToLower(strings.TrimSpace(dbType))
	kind = typeParams.ReplaceAllString(kind, "")
	kind = strings.Join(strings.Fields(kind), " ")
	kind = strings.TrimSuffix(kind, " unsigned")

	if mapped, ok := dialectKinds[kind]; ok {
		return mapped
	}
	return kind
}
