package resource

import (
	"reflect"

	"github.com/conduit-lang/smokescreen/pkg/orm"
	"github.com/conduit-lang/smokescreen/pkg/transform"
)

// Classify decides whether v is an item or a collection. Rules are
// checked in order and the first match wins; the order matters because
// one value can satisfy several of them.
func Classify(v any) Kind {
	return classify(v, true)
}

func classify(v any, unwrap bool) Kind {
	switch t := v.(type) {
	case nil:
		return Ambiguous
	case transform.ItemResource:
		return Item
	case transform.CollectionResource:
		return Collection
	case orm.Model:
		return Item
	case *orm.Collection, orm.List:
		return Collection
	case orm.Query:
		return Collection
	case orm.Paginator:
		return Collection
	case orm.Relation:
		if t.Type().Shape() == orm.ShapeCollection {
			return Collection
		}
		return Ambiguous
	case transform.Mapper:
		if !unwrap {
			return Ambiguous
		}
		return classify(t.AsMap(), false)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if sequentialKeys(rv) {
			return Collection
		}
		return Item
	case reflect.Slice, reflect.Array:
		return Collection
	default:
		return Ambiguous
	}
}

// sequentialKeys reports whether a map is keyed by integers 0..n-1
func sequentialKeys(m reflect.Value) bool {
	var toInt func(reflect.Value) (int64, bool)
	switch m.Type().Key().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		toInt = func(k reflect.Value) (int64, bool) { return k.Int(), true }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		toInt = func(k reflect.Value) (int64, bool) {
			u := k.Uint()
			return int64(u), u <= uint64(m.Len())
		}
	default:
		return false
	}

	n := int64(m.Len())
	seen := make([]bool, n)
	iter := m.MapRange()
	for iter.Next() {
		i, ok := toInt(iter.Key())
		if !ok || i < 0 || i >= n || seen[i] {
			return false
		}
		seen[i] = true
	}
	return true
}
