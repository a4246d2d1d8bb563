package transform

import (
	"reflect"
	"strings"

	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// Attributes returns the key-value view of data: Mapper values are
// converted, string-keyed maps are copied and exported struct fields are
// keyed by their json tag name, or snake_case field name when untagged.
func Attributes(data any) (map[string]any, bool) {
	switch v := data.(type) {
	case nil:
		return nil, false
	case Mapper:
		return v.AsMap(), true
	case map[string]any:
		return v, true
	}

	rv := reflect.ValueOf(data)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		attrs := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			attrs[iter.Key().String()] = iter.Value().Interface()
		}
		return attrs, true
	case reflect.Struct:
		attrs := make(map[string]any)
		collectFields(rv, attrs)
		return attrs, true
	default:
		return nil, false
	}
}

// Lookup reads a single attribute off data
func Lookup(data any, key string) (any, bool) {
	attrs, ok := Attributes(data)
	if !ok {
		return nil, false
	}
	v, ok := attrs[key]
	return v, ok
}

func collectFields(rv reflect.Value, attrs map[string]any) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collectFields(rv.Field(i), attrs)
			continue
		}
		if !field.IsExported() {
			continue
		}

		name := orm.SnakeCase(field.Name)
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		attrs[name] = rv.Field(i).Interface()
	}
}
