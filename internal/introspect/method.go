package introspect

import (
	"reflect"
	"strings"
)

// TypeRef names a type by import path and identifier
type TypeRef struct {
	PkgPath string
	Name    string
}

// String returns the qualified type name
func (r TypeRef) String() string {
	if r.PkgPath == "" {
		return r.Name
	}
	return r.PkgPath + "." + r.Name
}

// IsZero reports whether the reference names nothing
func (r TypeRef) IsZero() bool {
	return r.Name == ""
}

// typeRefOf returns the reference of t, looking through one pointer
func typeRefOf(t reflect.Type) TypeRef {
	if t == nil {
		return TypeRef{}
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return TypeRef{PkgPath: t.PkgPath(), Name: t.Name()}
}

// Method describes a method declared on a model type: its name, the
// type it returns, its doc comment and its literal body source. Any of
// Result, Doc and Body may be empty when unknown.
type Method struct {
	Name   string
	Result TypeRef
	Doc    string
	Body   string
}

// lowerCamel converts an exported Go identifier to lowerCamel
// ("Comments" -> "comments", "URLs" -> "urls", "BlogPosts" -> "blogPosts")
func lowerCamel(name string) string {
	runes := []rune(name)
	upper := 0
	for upper < len(runes) && runes[upper] >= 'A' && runes[upper] <= 'Z' {
		upper++
	}
	switch {
	case upper == 0:
		return name
	case upper == 1 || upper == len(runes):
		return strings.ToLower(string(runes[:upper])) + string(runes[upper:])
	default:
		// "HTTPServer" -> "httpServer", "URLs" -> "urls"
		if runes[upper] == 's' && upper+1 == len(runes) {
			return strings.ToLower(name)
		}
		return strings.ToLower(string(runes[:upper-1])) + string(runes[upper-1:])
	}
}
