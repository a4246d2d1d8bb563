package orm

import (
	"context"
	"fmt"
	"strings"
)

// Shape is the resource shape a relation expands to
type Shape string

const (
	// ShapeItem is a to-one relation
	ShapeItem Shape = "item"
	// ShapeCollection is a to-many relation
	ShapeCollection Shape = "collection"
)

// RelationType identifies a relation family
type RelationType int

const (
	RelationHasOne RelationType = iota
	RelationMorphOne
	RelationBelongsTo
	RelationMorphTo
	RelationHasMany
	RelationHasManyThrough
	RelationMorphMany
	RelationBelongsToMany
	RelationMorphToMany
	RelationMorphedByMany
)

// relationFamilies lists the family names in lookup order
var relationFamilies = []struct {
	name  string
	typ   RelationType
	shape Shape
}{
	{"HasOne", RelationHasOne, ShapeItem},
	{"MorphOne", RelationMorphOne, ShapeItem},
	{"BelongsTo", RelationBelongsTo, ShapeItem},
	{"MorphTo", RelationMorphTo, ShapeItem},
	{"HasMany", RelationHasMany, ShapeCollection},
	{"HasManyThrough", RelationHasManyThrough, ShapeCollection},
	{"MorphMany", RelationMorphMany, ShapeCollection},
	{"BelongsToMany", RelationBelongsToMany, ShapeCollection},
	{"MorphToMany", RelationMorphToMany, ShapeCollection},
	{"MorphedByMany", RelationMorphedByMany, ShapeCollection},
}

// String returns the snake_case name of the relation type
func (r RelationType) String() string {
	switch r {
	case RelationHasOne:
		return "has_one"
	case RelationMorphOne:
		return "morph_one"
	case RelationBelongsTo:
		return "belongs_to"
	case RelationMorphTo:
		return "morph_to"
	case RelationHasMany:
		return "has_many"
	case RelationHasManyThrough:
		return "has_many_through"
	case RelationMorphMany:
		return "morph_many"
	case RelationBelongsToMany:
		return "belongs_to_many"
	case RelationMorphToMany:
		return "morph_to_many"
	case RelationMorphedByMany:
		return "morphed_by_many"
	default:
		return "unknown"
	}
}

// Family returns the CamelCase family name (e.g. "HasMany")
func (r RelationType) Family() string {
	for _, f := range relationFamilies {
		if f.typ == r {
			return f.name
		}
	}
	return ""
}

// Shape returns whether the relation expands to an item or a collection
func (r RelationType) Shape() Shape {
	for _, f := range relationFamilies {
		if f.typ == r {
			return f.shape
		}
	}
	return ""
}

// Families returns all relation family names in lookup order
func Families() []string {
	names := make([]string, len(relationFamilies))
	for i, f := range relationFamilies {
		names[i] = f.name
	}
	return names
}

// ParseFamily resolves a family name (case-insensitive) to a RelationType
func ParseFamily(name string) (RelationType, bool) {
	for _, f := range relationFamilies {
		if strings.EqualFold(f.name, name) {
			return f.typ, true
		}
	}
	return 0, false
}

// ParseRelationType converts a snake_case name to a RelationType
func ParseRelationType(s string) (RelationType, error) {
	for _, f := range relationFamilies {
		if f.typ.String() == s {
			return f.typ, nil
		}
	}
	return 0, fmt.Errorf("unknown relation type: %s", s)
}

// Relation is an unexecuted relation handle returned by a model's
// relation methods.
type Relation interface {
	Type() RelationType
	Parent() Model
	Related() Model
	Get(ctx context.Context) (any, error)
}

// Fetcher executes a relation. It returns a Model for to-one relations
// and a *Collection for to-many relations.
type Fetcher func(ctx context.Context, parent, related Model) (any, error)

type relation struct {
	typ     RelationType
	parent  Model
	related Model
	fetch   Fetcher
}

func newRelation(typ RelationType, parent, related Model) relation {
	return relation{typ: typ, parent: parent, related: related}
}

func (r *relation) Type() RelationType { return r.typ }
func (r *relation) Parent() Model      { return r.parent }
func (r *relation) Related() Model     { return r.related }

// Using sets the function that executes the relation
func (r *relation) Using(fetch Fetcher) {
	r.fetch = fetch
}

// Get executes the relation
func (r *relation) Get(ctx context.Context) (any, error) {
	if r.fetch == nil {
		return nil, fmt.Errorf("%s relation %s has no fetcher", r.typ, ShortName(r.related))
	}
	return r.fetch(ctx, r.parent, r.related)
}

type (
	HasOne         struct{ relation }
	MorphOne       struct{ relation }
	BelongsTo      struct{ relation }
	MorphTo        struct{ relation }
	HasMany        struct{ relation }
	HasManyThrough struct{ relation }
	MorphMany      struct{ relation }
	BelongsToMany  struct{ relation }
	MorphToMany    struct{ relation }
	MorphedByMany  struct{ relation }
)

// Base provides relation constructors to models that embed it. Its
// methods are promoted into the model's method set and are never
// reported as relations of the model itself.
type Base struct{}

func (Base) HasOne(parent, related Model) *HasOne {
	return &HasOne{newRelation(RelationHasOne, parent, related)}
}

func (Base) MorphOne(parent, related Model) *MorphOne {
	return &MorphOne{newRelation(RelationMorphOne, parent, related)}
}

func (Base) BelongsTo(parent, related Model) *BelongsTo {
	return &BelongsTo{newRelation(RelationBelongsTo, parent, related)}
}

func (Base) MorphTo(parent, related Model) *MorphTo {
	return &MorphTo{newRelation(RelationMorphTo, parent, related)}
}

func (Base) HasMany(parent, related Model) *HasMany {
	return &HasMany{newRelation(RelationHasMany, parent, related)}
}

func (Base) HasManyThrough(parent, related Model) *HasManyThrough {
	return &HasManyThrough{newRelation(RelationHasManyThrough, parent, related)}
}

func (Base) MorphMany(parent, related Model) *MorphMany {
	return &MorphMany{newRelation(RelationMorphMany, parent, related)}
}

func (Base) BelongsToMany(parent, related Model) *BelongsToMany {
	return &BelongsToMany{newRelation(RelationBelongsToMany, parent, related)}
}

func (Base) MorphToMany(parent, related Model) *MorphToMany {
	return &MorphToMany{newRelation(RelationMorphToMany, parent, related)}
}

func (Base) MorphedByMany(parent, related Model) *MorphedByMany {
	return &MorphedByMany{newRelation(RelationMorphedByMany, parent, related)}
}
