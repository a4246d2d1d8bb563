package engine

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/conduit-lang/smokescreen/pkg/orm"
	"github.com/conduit-lang/smokescreen/pkg/transform"
)

// Elements returns the elements of collection data. Data that is not a
// sequence is a single element; nil is empty.
func Elements(data any) []any {
	switch d := data.(type) {
	case nil:
		return nil
	case *orm.Collection:
		if d == nil {
			return nil
		}
		out := make([]any, d.Len())
		for i, m := range d.All() {
			out[i] = m
		}
		return out
	case orm.List:
		return d
	case []any:
		return d
	case orm.Paginator:
		return Elements(d.Items())
	}

	rv := reflect.ValueOf(data)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	case reflect.Map:
		if out, ok := sequentialValues(rv); ok {
			return out
		}
	}
	return []any{data}
}

// sequentialValues returns the values of an int-keyed map ordered by key
func sequentialValues(rv reflect.Value) ([]any, bool) {
	switch rv.Type().Key().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return nil, false
	}

	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return keyInt(keys[i]) < keyInt(keys[j])
	})
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = rv.MapIndex(k).Interface()
	}
	return out, true
}

func keyInt(k reflect.Value) int64 {
	if k.CanInt() {
		return k.Int()
	}
	return int64(k.Uint())
}

// includeValue produces the value of an include for parent data: the
// include's own resolver, an attribute named like the include, or an
// accessor method named like it. Relation handles are fetched.
func includeValue(ctx context.Context, data any, inc transform.Include) (any, error) {
	if inc.Resolve != nil {
		v, err := inc.Resolve(data)
		if err != nil {
			return nil, err
		}
		return fetch(ctx, v)
	}

	if v, ok := transform.Lookup(data, inc.Name); ok {
		return fetch(ctx, v)
	}

	v, ok, err := callAccessor(data, inc.Name)
	if err != nil || !ok {
		return nil, err
	}
	return fetch(ctx, v)
}

func fetch(ctx context.Context, v any) (any, error) {
	if rel, ok := v.(orm.Relation); ok {
		return rel.Get(ctx)
	}
	return v, nil
}

// callAccessor calls the niladic method of data named like the include
// ("comments" -> Comments). Methods may return a value, or a value and
// an error.
func callAccessor(data any, name string) (any, bool, error) {
	if data == nil || name == "" {
		return nil, false, nil
	}
	method := reflect.ValueOf(data).MethodByName(exportedName(name))
	if !method.IsValid() || method.Type().NumIn() != 0 {
		return nil, false, nil
	}

	mt := method.Type()
	errType := reflect.TypeOf((*error)(nil)).Elem()
	switch {
	case mt.NumOut() == 1:
		return method.Call(nil)[0].Interface(), true, nil
	case mt.NumOut() == 2 && mt.Out(1) == errType:
		out := method.Call(nil)
		if !out[1].IsNil() {
			return nil, true, out[1].Interface().(error)
		}
		return out[0].Interface(), true, nil
	default:
		return nil, false, nil
	}
}

// exportedName converts an include name to a Go method name:
// "comments" -> "Comments", "blog_posts" -> "BlogPosts"
func exportedName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' || r == '-' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
