package relationships

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/smokescreen/internal/orm/schema"
	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// LoadRelations implements orm.Loader. All models must be *orm.Record
// values of the same table. Keys may be dotted ("comments.author") to
// load nested relations of the loaded records.
func (l *Loader) LoadRelations(ctx context.Context, models []orm.Model, keys []string) error {
	if len(models) == 0 || len(keys) == 0 {
		return nil
	}

	records := make([]*orm.Record, 0, len(models))
	for _, m := range models {
		rec, ok := m.(*orm.Record)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnsupportedModel, m)
		}
		if rec.TableName() != models[0].TableName() {
			return fmt.Errorf("%w: mixed tables %s and %s", ErrUnsupportedModel, models[0].TableName(), rec.TableName())
		}
		records = append(records, rec)
	}

	resource, ok := l.registry.GetByTable(records[0].TableName())
	if !ok {
		return fmt.Errorf("%w: no schema for table %s", ErrUnknownRelationship, records[0].TableName())
	}

	return l.load(ctx, records, resource, keys, newLoadContext(l.maxDepth))
}

// Fetcher returns an orm.Fetcher that lazily loads relation key of a
// single parent record through the batched code path
func (l *Loader) Fetcher(key string) orm.Fetcher {
	return func(ctx context.Context, parent, _ orm.Model) (any, error) {
		rec, ok := parent.(*orm.Record)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedModel, parent)
		}
		if err := l.LoadRelations(ctx, []orm.Model{rec}, []string{key}); err != nil {
			return nil, err
		}
		resource, _ := l.registry.GetByTable(rec.TableName())
		relation, _, _ := strings.Cut(key, ".")
		value, _ := rec.Get(resource.Relationships[relation].FieldName)
		return value, nil
	}
}

// Bind attaches a fetcher for key to a relation handle
func (l *Loader) Bind(rel interface{ Using(orm.Fetcher) }, key string) {
	rel.Using(l.Fetcher(key))
}

func (l *Loader) load(
	ctx context.Context,
	records []*orm.Record,
	resource *schema.ResourceSchema,
	keys []string,
	lc *loadContext,
) error {
	entered, err := lc.enter(resource.Name)
	if err != nil {
		return err
	}
	if !entered {
		// Already loading this resource on the current path
		return nil
	}
	defer lc.leave(resource.Name)

	for _, group := range groupKeys(keys) {
		relation, nested := group.relation, group.nested
		rel, ok := resource.Relationships[relation]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownRelationship, resource.Name, relation)
		}

		if err := l.loadRelationship(ctx, records, rel, resource); err != nil {
			return fmt.Errorf("failed to load relationship %s: %w", relation, err)
		}

		if len(nested) == 0 {
			continue
		}
		target, ok := l.registry.Get(rel.TargetResource)
		if !ok {
			return fmt.Errorf("unknown resource: %s", rel.TargetResource)
		}
		if children := extractNestedRecords(records, rel); len(children) > 0 {
			if err := l.load(ctx, children, target, nested, lc); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadRelationship loads a single relation for all records
func (l *Loader) loadRelationship(
	ctx context.Context,
	records []*orm.Record,
	rel *schema.Relationship,
	resource *schema.ResourceSchema,
) error {
	l.logger.Debug("eager loading relation",
		zap.String("resource", resource.Name),
		zap.String("relation", rel.FieldName),
		zap.Stringer("type", rel.Type),
		zap.Int("records", len(records)),
	)

	switch rel.Type {
	case orm.RelationBelongsTo:
		return l.loadBelongsTo(ctx, records, rel)
	case orm.RelationHasMany:
		return l.loadHasMany(ctx, records, rel, resource)
	case orm.RelationHasOne:
		return l.loadHasOne(ctx, records, rel, resource)
	case orm.RelationHasManyThrough, orm.RelationBelongsToMany:
		return l.loadThrough(ctx, records, rel, resource)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidRelationType, rel.Type)
	}
}

// keyGroup is a top-level relation and the nested keys below it
type keyGroup struct {
	relation string
	nested   []string
}

// groupKeys splits dotted keys into top-level relations and their nested
// remainders, preserving the first-seen order of relations
func groupKeys(keys []string) []keyGroup {
	var groups []keyGroup
	index := make(map[string]int)
	for _, key := range keys {
		relation, rest, _ := strings.Cut(key, ".")
		if relation == "" {
			continue
		}
		i, seen := index[relation]
		if !seen {
			i = len(groups)
			index[relation] = i
			groups = append(groups, keyGroup{relation: relation})
		}
		if rest != "" {
			groups[i].nested = append(groups[i].nested, rest)
		}
	}
	return groups
}
