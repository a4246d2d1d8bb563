package transform

import "github.com/conduit-lang/smokescreen/pkg/orm"

// Serializer shapes transformed output. key is the resource key, empty
// when none was set; p is nil for collections without pagination.
type Serializer interface {
	Item(key string, data any) any
	Collection(key string, items []any, p orm.Paginator) any
}
