// Package resource holds the unit of transformation: input data tagged
// as an item or a collection, together with the transformer, key and
// paginator that apply to it.
package resource

import (
	"github.com/conduit-lang/smokescreen/pkg/orm"
	"github.com/conduit-lang/smokescreen/pkg/transform"
)

// Kind is the shape of a resource
type Kind int

const (
	// Ambiguous input is neither clearly an item nor a collection
	Ambiguous Kind = iota
	Item
	Collection
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case Item:
		return "item"
	case Collection:
		return "collection"
	default:
		return "ambiguous"
	}
}

// Resource is data wrapped for transformation. The data is held as
// given: an item resource wrapping a collection stays an item.
type Resource struct {
	kind        Kind
	data        any
	transformer transform.Transformer
	key         string
	paginator   orm.Paginator
}

// NewItem wraps data as an item resource
func NewItem(data any) *Resource {
	return &Resource{kind: Item, data: data}
}

// NewCollection wraps data as a collection resource. A paginator is
// unwrapped into its items and kept as the resource's paginator.
func NewCollection(data any) *Resource {
	r := &Resource{kind: Collection, data: data}
	if p, ok := data.(orm.Paginator); ok {
		r.data = p.Items()
		r.paginator = p
	}
	return r
}

// Kind returns whether the resource is an item or a collection
func (r *Resource) Kind() Kind {
	return r.kind
}

// IsCollection reports whether the resource is a collection
func (r *Resource) IsCollection() bool {
	return r.kind == Collection
}

// Data returns the wrapped data
func (r *Resource) Data() any {
	return r.data
}

// Transformer returns the transformer, or nil when none is set
func (r *Resource) Transformer() transform.Transformer {
	return r.transformer
}

// HasTransformer reports whether a transformer is set
func (r *Resource) HasTransformer() bool {
	return r.transformer != nil
}

// SetTransformer sets the transformer
func (r *Resource) SetTransformer(t transform.Transformer) {
	r.transformer = t
}

// Key returns the resource key used by serializers
func (r *Resource) Key() string {
	return r.key
}

// SetKey sets the resource key
func (r *Resource) SetKey(key string) {
	r.key = key
}

// Paginator returns the paginator of a collection resource
func (r *Resource) Paginator() orm.Paginator {
	return r.paginator
}

// SetPaginator sets the paginator. It is ignored for items.
func (r *Resource) SetPaginator(p orm.Paginator) {
	if r.kind == Collection {
		r.paginator = p
	}
}
