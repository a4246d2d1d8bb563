// Package crud reads records of a resource table. Results are
// schemaless *orm.Record values ready to be rendered or eager-loaded.
package crud

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/conduit-lang/smokescreen/internal/orm/metadata"
	"github.com/conduit-lang/smokescreen/internal/orm/schema"
	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// Querier is the subset of *sql.DB used by Reader
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Order is one ORDER BY term
type Order struct {
	Field string
	Desc  bool
}

// ListOptions narrows and orders the records of Paginate
type ListOptions struct {
	// Conditions are equality conditions ANDed in field order
	Conditions map[string]any
	// Order sorts the records; "id" is appended as a tiebreaker when the
	// resource has an id column
	Order []Order
}

// Reader provides read operations for one resource
type Reader struct {
	resource *schema.ResourceSchema
	db       Querier
	dialect  metadata.Dialect
	loader   orm.Loader
}

// NewReader creates a reader for resource
func NewReader(resource *schema.ResourceSchema, db Querier, dialect metadata.Dialect) *Reader {
	return &Reader{resource: resource, db: db, dialect: dialect}
}

// WithLoader sets the relation loader attached to returned collections
func (r *Reader) WithLoader(loader orm.Loader) *Reader {
	r.loader = loader
	return r
}

// Resource returns the resource schema
func (r *Reader) Resource() *schema.ResourceSchema {
	return r.resource
}

// Find retrieves a record by its primary key
func (r *Reader) Find(ctx context.Context, id any) (*orm.Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = %s LIMIT 1", r.table(), r.placeholder(1))

	records, err := r.query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find record by id: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s %v: %w", r.resource.Name, id, ErrNotFound)
	}
	return records[0], nil
}

// FindAll retrieves all records matching the given conditions. Conditions
// are ANDed in field order.
func (r *Reader) FindAll(ctx context.Context, conditions map[string]any) (*orm.Collection, error) {
	where, values, err := r.where(conditions)
	if err != nil {
		return nil, err
	}

	orderBy, err := r.orderBy(nil)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s%s%s", r.table(), where, orderBy)
	records, err := r.query(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	return r.collection(records), nil
}

// Count returns the number of records matching the given conditions
func (r *Reader) Count(ctx context.Context, conditions map[string]any) (int, error) {
	where, values, err := r.where(conditions)
	if err != nil {
		return 0, err
	}

	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", r.table(), where)
	if err := r.db.QueryRowContext(ctx, query, values...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", ConvertDBError(err))
	}
	return count, nil
}

// Paginate returns one page of the records matching opts. page and
// perPage are clamped to at least 1.
func (r *Reader) Paginate(ctx context.Context, page, perPage int, path string, opts ListOptions) (*orm.LengthAwarePaginator, error) {
	page, perPage = max(page, 1), max(perPage, 1)

	where, values, err := r.where(opts.Conditions)
	if err != nil {
		return nil, err
	}
	orderBy, err := r.orderBy(opts.Order)
	if err != nil {
		return nil, err
	}

	total, err := r.Count(ctx, opts.Conditions)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s%s%s LIMIT %d OFFSET %d",
		r.table(), where, orderBy, perPage, (page-1)*perPage)
	records, err := r.query(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to query page %d: %w", page, err)
	}

	return orm.NewPaginator(r.collection(records), total, perPage, page, path), nil
}

func (r *Reader) query(ctx context.Context, query string, args ...any) ([]*orm.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	defer rows.Close()

	records, err := ScanRecords(rows, r.resource.TableName)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return records, nil
}

func (r *Reader) collection(records []*orm.Record) *orm.Collection {
	c := orm.NewCollection(Models(records)...)
	if r.loader != nil {
		c.WithLoader(r.loader)
	}
	return c
}

func (r *Reader) where(conditions map[string]any) (string, []any, error) {
	if len(conditions) == 0 {
		return "", nil, nil
	}

	fields := make([]string, 0, len(conditions))
	for field := range conditions {
		if err := r.validateFieldIsColumn(field); err != nil {
			return "", nil, fmt.Errorf("invalid field %s: %w", field, err)
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	clauses := make([]string, len(fields))
	values := make([]any, len(fields))
	for i, field := range fields {
		clauses[i] = fmt.Sprintf("%s = %s", pq.QuoteIdentifier(field), r.placeholder(i+1))
		values[i] = conditions[field]
	}
	return " WHERE " + strings.Join(clauses, " AND "), values, nil
}

func (r *Reader) orderBy(order []Order) (string, error) {
	terms := make([]string, 0, len(order)+1)
	hasID := false
	for _, o := range order {
		if err := r.validateFieldIsColumn(o.Field); err != nil {
			return "", fmt.Errorf("invalid sort field %s: %w", o.Field, err)
		}
		term := pq.QuoteIdentifier(o.Field)
		if o.Desc {
			term += " DESC"
		}
		terms = append(terms, term)
		hasID = hasID || o.Field == "id"
	}
	if !hasID && r.resource.HasColumn("id") {
		terms = append(terms, pq.QuoteIdentifier("id"))
	}
	if len(terms) == 0 {
		return "", nil
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

func (r *Reader) table() string {
	return pq.QuoteIdentifier(r.resource.TableName)
}

func (r *Reader) placeholder(n int) string {
	if r.dialect == metadata.DialectSQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// validateFieldIsColumn rejects relationship accessors and, when the
// resource knows its columns, names that are not columns
func (r *Reader) validateFieldIsColumn(field string) error {
	for _, rel := range r.resource.Relationships {
		if rel.FieldName == field && rel.ForeignKey != field {
			return ErrRelationshipField
		}
	}
	if len(r.resource.Columns) > 0 && !r.resource.HasColumn(field) {
		return ErrFieldNotFound
	}
	return nil
}
