package relationships

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/conduit-lang/smokescreen/internal/orm/crud"
	"github.com/conduit-lang/smokescreen/internal/orm/schema"
	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// loadBelongsTo loads belongs-to relationships using a batched ANY query
// Example: Post belongs_to User
//   - Collect all unique author_ids from posts
//   - Single query: SELECT * FROM users WHERE id = ANY($1)
//   - Map users back to posts
func (l *Loader) loadBelongsTo(
	ctx context.Context,
	records []*orm.Record,
	rel *schema.Relationship,
) error {
	fk := rel.ForeignKey
	if fk == "" {
		fk = orm.SnakeCase(rel.TargetResource) + "_id"
	}

	var ids []any
	seen := make(map[string]bool)
	for _, record := range records {
		id, ok := record.Get(fk)
		if !ok || id == nil {
			continue
		}
		idStr, err := idToString(id)
		if err != nil {
			return fmt.Errorf("invalid foreign key type for %s: %w", fk, err)
		}
		if !seen[idStr] {
			seen[idStr] = true
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		for _, record := range records {
			record.Set(rel.FieldName, nil)
		}
		return nil
	}

	target, ok := l.registry.Get(rel.TargetResource)
	if !ok {
		return fmt.Errorf("unknown resource: %s", rel.TargetResource)
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE id = ANY($1)", pq.QuoteIdentifier(target.TableName))
	results, err := l.query(ctx, target.TableName, query, ids)
	if err != nil {
		return fmt.Errorf("failed to query belongs_to relationship: %w", err)
	}

	related := make(map[string]*orm.Record, len(results))
	for _, result := range results {
		idStr, err := idToString(result.Attrs["id"])
		if err != nil {
			return fmt.Errorf("invalid ID type in results: %w", err)
		}
		related[idStr] = result
	}

	for _, record := range records {
		record.Set(rel.FieldName, nil)
		id, ok := record.Get(fk)
		if !ok || id == nil {
			continue
		}
		idStr, _ := idToString(id)
		if match, ok := related[idStr]; ok {
			record.Set(rel.FieldName, match)
		}
	}

	return nil
}

// loadHasMany loads has-many relationships using a batched ANY query
// Example: Post has_many Comment
//   - Collect all post IDs
//   - Single query: SELECT * FROM comments WHERE post_id = ANY($1)
//   - Group comments by post_id
//   - Attach to posts
func (l *Loader) loadHasMany(
	ctx context.Context,
	records []*orm.Record,
	rel *schema.Relationship,
	resource *schema.ResourceSchema,
) error {
	parentIDs, err := collectIDs(records)
	if err != nil {
		return err
	}
	if len(parentIDs) == 0 {
		return nil
	}

	fk := rel.ForeignKey
	if fk == "" {
		fk = orm.SnakeCase(resource.Name) + "_id"
	}

	target, ok := l.registry.Get(rel.TargetResource)
	if !ok {
		return fmt.Errorf("unknown resource: %s", rel.TargetResource)
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ANY($1)", pq.QuoteIdentifier(target.TableName), pq.QuoteIdentifier(fk))
	if rel.OrderBy != "" {
		query += fmt.Sprintf(" ORDER BY %s", quoteSortClause(rel.OrderBy))
	}

	results, err := l.query(ctx, target.TableName, query, parentIDs)
	if err != nil {
		return fmt.Errorf("failed to query has_many relationship: %w", err)
	}

	grouped := make(map[string][]orm.Model)
	for _, result := range results {
		parentID, err := idToString(result.Attrs[fk])
		if err != nil {
			return fmt.Errorf("invalid parent ID in results: %w", err)
		}
		grouped[parentID] = append(grouped[parentID], result)
	}

	l.attachMany(records, rel, grouped)
	return nil
}

// loadHasOne loads has-one relationships using a batched ANY query
// Example: User has_one Profile
//   - Collect all user IDs
//   - Single query: SELECT DISTINCT ON (user_id) * FROM profiles WHERE user_id = ANY($1)
//   - Map profiles back to users
func (l *Loader) loadHasOne(
	ctx context.Context,
	records []*orm.Record,
	rel *schema.Relationship,
	resource *schema.ResourceSchema,
) error {
	parentIDs, err := collectIDs(records)
	if err != nil {
		return err
	}
	if len(parentIDs) == 0 {
		return nil
	}

	fk := rel.ForeignKey
	if fk == "" {
		fk = orm.SnakeCase(resource.Name) + "_id"
	}

	target, ok := l.registry.Get(rel.TargetResource)
	if !ok {
		return fmt.Errorf("unknown resource: %s", rel.TargetResource)
	}

	quotedFk := pq.QuoteIdentifier(fk)
	query := fmt.Sprintf(
		"SELECT DISTINCT ON (%s) * FROM %s WHERE %s = ANY($1) ORDER BY %s, id",
		quotedFk, pq.QuoteIdentifier(target.TableName), quotedFk, quotedFk,
	)

	results, err := l.query(ctx, target.TableName, query, parentIDs)
	if err != nil {
		return fmt.Errorf("failed to query has_one relationship: %w", err)
	}

	related := make(map[string]*orm.Record, len(results))
	for _, result := range results {
		parentID, err := idToString(result.Attrs[fk])
		if err != nil {
			return fmt.Errorf("invalid parent ID in results: %w", err)
		}
		related[parentID] = result
	}

	for _, record := range records {
		record.Set(rel.FieldName, nil)
		id, ok := record.Get("id")
		if !ok || id == nil {
			continue
		}
		idStr, _ := idToString(id)
		if match, ok := related[idStr]; ok {
			record.Set(rel.FieldName, match)
		}
	}

	return nil
}

// loadThrough loads relationships through a junction table
// Example: Post has_many Tag through post_tags
//   - Single query joining the junction table
//   - Group by parent ID
func (l *Loader) loadThrough(
	ctx context.Context,
	records []*orm.Record,
	rel *schema.Relationship,
	resource *schema.ResourceSchema,
) error {
	parentIDs, err := collectIDs(records)
	if err != nil {
		return err
	}
	if len(parentIDs) == 0 {
		return nil
	}

	target, ok := l.registry.Get(rel.TargetResource)
	if !ok {
		return fmt.Errorf("unknown resource: %s", rel.TargetResource)
	}

	sourceFk := rel.ForeignKey
	if sourceFk == "" {
		sourceFk = orm.SnakeCase(resource.Name) + "_id"
	}
	targetFk := rel.AssociationKey
	if targetFk == "" {
		targetFk = orm.SnakeCase(rel.TargetResource) + "_id"
	}
	joinTable := rel.JoinTable
	if joinTable == "" {
		joinTable = orm.SnakeCase(resource.Name) + "_" + orm.Pluralize(orm.SnakeCase(rel.TargetResource))
	}

	query := fmt.Sprintf(
		"SELECT t.*, j.%s AS __parent_id FROM %s t INNER JOIN %s j ON t.id = j.%s WHERE j.%s = ANY($1)",
		pq.QuoteIdentifier(sourceFk),
		pq.QuoteIdentifier(target.TableName),
		pq.QuoteIdentifier(joinTable),
		pq.QuoteIdentifier(targetFk),
		pq.QuoteIdentifier(sourceFk),
	)
	if rel.OrderBy != "" {
		query += fmt.Sprintf(" ORDER BY %s", quoteSortClause(rel.OrderBy))
	}

	results, err := l.query(ctx, target.TableName, query, parentIDs)
	if err != nil {
		return fmt.Errorf("failed to query %s relationship: %w", rel.Type, err)
	}

	grouped := make(map[string][]orm.Model)
	for _, result := range results {
		parentID, err := idToString(result.Attrs["__parent_id"])
		if err != nil {
			return fmt.Errorf("invalid parent ID in through results: %w", err)
		}
		delete(result.Attrs, "__parent_id")
		grouped[parentID] = append(grouped[parentID], result)
	}

	l.attachMany(records, rel, grouped)
	return nil
}

// attachMany sets a collection on every record. Records without
// children get an empty collection, never nil.
func (l *Loader) attachMany(records []*orm.Record, rel *schema.Relationship, grouped map[string][]orm.Model) {
	for _, record := range records {
		id, _ := record.Get("id")
		idStr, err := idToString(id)
		if err != nil {
			record.Set(rel.FieldName, orm.NewCollection().WithLoader(l))
			continue
		}
		record.Set(rel.FieldName, orm.NewCollection(grouped[idStr]...).WithLoader(l))
	}
}

func (l *Loader) query(ctx context.Context, table, query string, ids []any) ([]*orm.Record, error) {
	rows, err := l.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return crud.ScanRecords(rows, table)
}

// extractNestedRecords collects the distinct records loaded into rel
func extractNestedRecords(records []*orm.Record, rel *schema.Relationship) []*orm.Record {
	var nested []*orm.Record
	seen := make(map[string]bool)

	add := func(m orm.Model) {
		rec, ok := m.(*orm.Record)
		if !ok {
			return
		}
		id, err := idToString(rec.Attrs["id"])
		if err != nil || seen[id] {
			return
		}
		seen[id] = true
		nested = append(nested, rec)
	}

	for _, record := range records {
		switch v := record.Attrs[rel.FieldName].(type) {
		case *orm.Record:
			add(v)
		case *orm.Collection:
			for _, m := range v.All() {
				add(m)
			}
		}
	}
	return nested
}

func collectIDs(records []*orm.Record) ([]any, error) {
	var ids []any
	for _, record := range records {
		id, ok := record.Get("id")
		if !ok || id == nil {
			continue
		}
		if _, err := idToString(id); err != nil {
			return nil, fmt.Errorf("invalid parent ID type: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// quoteSortClause safely quotes column identifiers in an ORDER BY clause
// Handles formats like "created_at DESC" or "name ASC, id DESC"
func quoteSortClause(orderBy string) string {
	parts := strings.Split(orderBy, ",")
	quoted := make([]string, 0, len(parts))

	for _, part := range parts {
		tokens := strings.Fields(part)
		if len(tokens) == 0 {
			continue
		}

		col := pq.QuoteIdentifier(tokens[0])
		if len(tokens) > 1 {
			if direction := strings.ToUpper(tokens[1]); direction == "ASC" || direction == "DESC" {
				col += " " + direction
			}
		}
		quoted = append(quoted, col)
	}

	return strings.Join(quoted, ", ")
}

// idToString converts an ID to a comparable string
func idToString(id any) (string, error) {
	switch v := id.(type) {
	case nil:
		return "", fmt.Errorf("ID cannot be nil")
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}
