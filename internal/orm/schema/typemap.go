package schema

import (
	"fmt"
	"strings"
)

// PropertyKind is the output kind of a transformer property
type PropertyKind int

const (
	PropertyUnknown PropertyKind = iota
	PropertyString
	PropertyBoolean
	PropertyDateTime
	PropertyArray
	PropertyInteger
	PropertyDate
	PropertyFloat
)

// String returns the string representation of the property kind.
// PropertyUnknown has an empty representation.
func (k PropertyKind) String() string {
	switch k {
	case PropertyString:
		return "string"
	case PropertyBoolean:
		return "boolean"
	case PropertyDateTime:
		return "datetime"
	case PropertyArray:
		return "array"
	case PropertyInteger:
		return "integer"
	case PropertyDate:
		return "date"
	case PropertyFloat:
		return "float"
	default:
		return ""
	}
}

// ParsePropertyKind converts a string to a PropertyKind
func ParsePropertyKind(s string) (PropertyKind, error) {
	switch s {
	case "string":
		return PropertyString, nil
	case "boolean":
		return PropertyBoolean, nil
	case "datetime":
		return PropertyDateTime, nil
	case "array":
		return PropertyArray, nil
	case "integer":
		return PropertyInteger, nil
	case "date":
		return PropertyDate, nil
	case "float":
		return PropertyFloat, nil
	case "":
		return PropertyUnknown, nil
	default:
		return PropertyUnknown, fmt.Errorf("unknown property kind: %s", s)
	}
}

var columnKinds = map[string]PropertyKind{
	"guid":      PropertyString,
	"boolean":   PropertyBoolean,
	"datetime":  PropertyDateTime,
	"timestamp": PropertyDateTime,
	"string":    PropertyString,
	"json":      PropertyArray,
	"integer":   PropertyInteger,
	"date":      PropertyDate,
	"smallint":  PropertyInteger,
	"text":      PropertyString,
	"decimal":   PropertyFloat,
	"bigint":    PropertyInteger,
}

// MapColumnKind maps a schema column kind to its property kind. The
// second result is false for kinds with no mapping entry.
func MapColumnKind(kind string) (PropertyKind, bool) {
	k, ok := columnKinds[strings.ToLower(strings.TrimSpace(kind))]
	return k, ok
}
