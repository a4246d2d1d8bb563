// Package query parses the listing parameters of a request:
// sort=-created_at,title and filter[field]=value. Field names are
// converted to snake_case and checked against a whitelist of columns;
// values are passed on as query arguments.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/conduit-lang/smokescreen/internal/orm/crud"
)

// ErrInvalidField is returned when a sort or filter field is not in the
// whitelist
var ErrInvalidField = errors.New("invalid field")

const (
	// SortParam is the query parameter holding the sort fields
	SortParam = "sort"
	// FilterPrefix starts every filter parameter, e.g. filter[status]
	FilterPrefix = "filter["
)

// ParseSort parses a JSON:API sort parameter. Fields prefixed with '-'
// sort descending, others ascending.
//
// Example: "-created_at,title" -> created_at DESC, title ASC
func ParseSort(raw string, validFields []string) ([]crud.Order, error) {
	var (
		order  []crud.Order
		fields []string
	)
	for _, term := range strings.Split(raw, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		desc := strings.HasPrefix(term, "-")
		field := toSnakeCase(strings.TrimPrefix(term, "-"))
		order = append(order, crud.Order{Field: field, Desc: desc})
		fields = append(fields, field)
	}

	if err := validateFields("sort", fields, validFields); err != nil {
		return nil, err
	}
	return order, nil
}

// ParseFilters collects the filter[field]=value parameters of values.
// Only the first value of a repeated filter is used.
func ParseFilters(values url.Values, validFields []string) (map[string]any, error) {
	var (
		filters map[string]any
		fields  []string
	)
	for key, vs := range values {
		if !strings.HasPrefix(key, FilterPrefix) || !strings.HasSuffix(key, "]") || len(vs) == 0 {
			continue
		}
		field := toSnakeCase(key[len(FilterPrefix) : len(key)-1])
		if filters == nil {
			filters = make(map[string]any)
		}
		filters[field] = vs[0]
		fields = append(fields, field)
	}

	if err := validateFields("filter", fields, validFields); err != nil {
		return nil, err
	}
	return filters, nil
}

// validateFields checks that every field is in the validFields whitelist
// and lists the ones that are not
func validateFields(kind string, fields, validFields []string) error {
	validSet := make(map[string]bool, len(validFields))
	for _, field := range validFields {
		validSet[field] = true
	}

	var invalidFields []string
	for _, field := range fields {
		if !validSet[field] {
			invalidFields = append(invalidFields, fmt.Sprintf("%q", field))
		}
	}
	if len(invalidFields) == 0 {
		return nil
	}

	sort.Strings(invalidFields)
	return fmt.Errorf("%w: %s fields %s", ErrInvalidField, kind, strings.Join(invalidFields, ", "))
}

// toSnakeCase converts camelCase or PascalCase to snake_case. Only ASCII
// uppercase letters are split; acronyms are not special-cased.
func toSnakeCase(s string) string {
	var result []rune
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result = append(result, '_')
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+32)
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}
