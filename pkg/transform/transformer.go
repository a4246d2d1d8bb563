// Package transform defines the transformer contracts: a transformer
// flattens a domain object into output fields and may declare the
// relations it can include.
package transform

import (
	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// Transformer flattens a domain object into output fields
type Transformer interface {
	Transform(data any) (any, error)
}

// Func adapts a function to the Transformer interface
type Func func(data any) (any, error)

// Transform implements Transformer
func (f Func) Transform(data any) (any, error) {
	return f(data)
}

// IncludeDeclarer is implemented by transformers that declare includable
// relations. Declared includes are the only ones ever expanded or
// eager-loaded.
type IncludeDeclarer interface {
	Includes() Includes
}

// ItemResource is implemented by values that declare themselves
// item-shaped resources
type ItemResource interface {
	IsItemResource()
}

// CollectionResource is implemented by values that declare themselves
// collection-shaped resources
type CollectionResource interface {
	IsCollectionResource()
}

// Mapper is implemented by values that can convert themselves to a
// key-value mapping
type Mapper interface {
	AsMap() map[string]any
}

// Nested describes a nested resource produced by an include
type Nested struct {
	Shape       orm.Shape
	Data        any
	Transformer Transformer
}

// ItemOf returns a nested item resource
func ItemOf(data any, t Transformer) *Nested {
	return &Nested{Shape: orm.ShapeItem, Data: data, Transformer: t}
}

// CollectionOf returns a nested collection resource
func CollectionOf(data any, t Transformer) *Nested {
	return &Nested{Shape: orm.ShapeCollection, Data: data, Transformer: t}
}

// Empty is the transformer used when a resource has nothing to transform
type Empty struct{}

// Transform implements Transformer
func (Empty) Transform(any) (any, error) {
	return map[string]any{}, nil
}

// When returns a when cond is true, otherwise b
func When(cond bool, a, b any) any {
	if cond {
		return a
	}
	return b
}
