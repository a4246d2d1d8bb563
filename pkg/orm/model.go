// Package orm defines the model contracts understood by smokescreen:
// models, model collections, query handles, paginators and relation
// handles. Persistence layers adapt their own types to these contracts.
package orm

import (
	"context"
	"reflect"
	"strings"
)

// Model is a single domain-model instance backed by a storage table
type Model interface {
	TableName() string
}

// Query is a not-yet-materialized query handle for a model
type Query interface {
	Model() Model
	Get(ctx context.Context) (*Collection, error)
}

// List is a generic ordered collection of arbitrary values
type List []any

// ShortName returns the unqualified type name of v, dereferencing pointers.
// It returns "" for nil or unnamed types.
func ShortName(v any) string {
	if v == nil {
		return ""
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// DefaultTableName derives the conventional table name for a model type
// name: snake_case plural ("BlogPost" -> "blog_posts").
func DefaultTableName(typeName string) string {
	return Pluralize(SnakeCase(typeName))
}

// SnakeCase converts a CamelCase identifier to snake_case
func SnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}

// Pluralize adds simple English pluralization
func Pluralize(s string) string {
	if strings.HasSuffix(s, "s") ||
		strings.HasSuffix(s, "x") ||
		strings.HasSuffix(s, "z") {
		return s + "es"
	}
	if strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])) {
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}

// Record is a schemaless model backed by a column map. It is what the
// SQL loader and the serve command work with.
type Record struct {
	Table string
	Attrs map[string]any
}

// NewRecord creates a record for table with the given attributes
func NewRecord(table string, attrs map[string]any) *Record {
	if attrs == nil {
		attrs = make(map[string]any)
	}
	return &Record{Table: table, Attrs: attrs}
}

// TableName implements Model
func (r *Record) TableName() string {
	return r.Table
}

// AsMap returns the record attributes
func (r *Record) AsMap() map[string]any {
	return r.Attrs
}

// Get returns an attribute value
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.Attrs[key]
	return v, ok
}

// Set assigns an attribute value
func (r *Record) Set(key string, value any) {
	r.Attrs[key] = value
}

// Singularize reverses Pluralize for the forms it produces
func Singularize(s string) string {
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 3:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "ses"), strings.HasSuffix(s, "xes"), strings.HasSuffix(s, "zes"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss"):
		return s[:len(s)-1]
	}
	return s
}

// ModelName derives the conventional model name of a table: singular
// CamelCase ("blog_posts" -> "BlogPost")
func ModelName(table string) string {
	var b strings.Builder
	for _, part := range strings.Split(Singularize(table), "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
