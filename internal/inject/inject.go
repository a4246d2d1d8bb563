// Package inject overlays values onto a rendered output tree at dotted
// paths.
package inject

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// maxIndex bounds how far a sequence is grown by a numeric segment;
// larger numbers address map keys.
const maxIndex = 1 << 16

// Injection is a value to set at a dotted path, e.g. "meta.pagination.next"
type Injection struct {
	Path  string
	Value any
}

// Apply sets every injection onto a copy of tree, strictly in order, and
// returns the copy. Missing intermediate containers are created:
// non-negative integer segments address positions of a sequence, grown
// with nils as needed, other segments address map keys. The leaf is
// overwritten. Containers along injected paths are copied, so tree is
// never modified. A nil tree starts empty.
func Apply(tree map[string]any, injections []Injection) map[string]any {
	if tree == nil {
		tree = make(map[string]any)
	} else {
		tree = maps.Clone(tree)
	}
	for _, in := range injections {
		if in.Path == "" {
			continue
		}
		segments := strings.Split(in.Path, ".")
		tree[segments[0]] = set(tree[segments[0]], segments[1:], in.Value)
	}
	return tree
}

// Set applies a single injection
func Set(tree map[string]any, path string, value any) map[string]any {
	return Apply(tree, []Injection{{Path: path, Value: value}})
}

func set(node any, segments []string, value any) any {
	if len(segments) == 0 {
		return value
	}
	seg, rest := segments[0], segments[1:]

	if m, ok := node.(map[string]any); ok {
		m = maps.Clone(m)
		m[seg] = set(m[seg], rest, value)
		return m
	}

	idx, numeric := index(seg)
	if !numeric {
		return map[string]any{seg: set(nil, rest, value)}
	}

	list := sequence(node)
	for len(list) <= idx {
		list = append(list, nil)
	}
	list[idx] = set(list[idx], rest, value)
	return list
}

func index(seg string) (int, bool) {
	n, err := strconv.Atoi(seg)
	if err != nil || n < 0 || n > maxIndex || seg[0] == '+' {
		return 0, false
	}
	return n, true
}

// sequence returns node as a []any, converting typed slices of maps
// produced by serializers. Anything else starts a new sequence.
func sequence(node any) []any {
	switch n := node.(type) {
	case []any:
		return slices.Clone(n)
	case []map[string]any:
		list := make([]any, len(n))
		for i, m := range n {
			list[i] = m
		}
		return list
	default:
		return nil
	}
}
