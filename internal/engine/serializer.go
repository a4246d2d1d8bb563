package engine

import (
	"fmt"

	"github.com/conduit-lang/smokescreen/pkg/orm"
	"github.com/conduit-lang/smokescreen/pkg/transform"
)

// DefaultSerializer returns items as transformed and wraps collections
// under their key ("data" when unset), with a "pagination" entry for
// paginated collections
type DefaultSerializer struct{}

// Item implements transform.Serializer
func (DefaultSerializer) Item(_ string, data any) any {
	return data
}

// Collection implements transform.Serializer
func (DefaultSerializer) Collection(key string, items []any, p orm.Paginator) any {
	return envelope(key, items, p)
}

// DataSerializer wraps items and collections alike under their key
type DataSerializer struct{}

// Item implements transform.Serializer
func (DataSerializer) Item(key string, data any) any {
	return envelope(key, data, nil)
}

// Collection implements transform.Serializer
func (DataSerializer) Collection(key string, items []any, p orm.Paginator) any {
	return envelope(key, items, p)
}

func envelope(key string, data any, p orm.Paginator) map[string]any {
	if key == "" {
		key = "data"
	}
	out := map[string]any{key: data}
	if p != nil {
		out["pagination"] = Pagination(p)
	}
	return out
}

// Pagination returns the pagination meta of p
func Pagination(p orm.Paginator) map[string]any {
	links := map[string]any{}
	if p.CurrentPage() > 1 {
		links["previous"] = p.URL(p.CurrentPage() - 1)
	}
	if p.CurrentPage() < p.LastPage() {
		links["next"] = p.URL(p.CurrentPage() + 1)
	}

	return map[string]any{
		"total":        p.Total(),
		"count":        p.Count(),
		"per_page":     p.PerPage(),
		"current_page": p.CurrentPage(),
		"total_pages":  p.LastPage(),
		"links":        links,
	}
}

// SerializerByName returns a built-in serializer: "default" (also the
// empty name) or "data"
func SerializerByName(name string) (transform.Serializer, error) {
	switch name {
	case "", "default":
		return DefaultSerializer{}, nil
	case "data":
		return DataSerializer{}, nil
	default:
		return nil, fmt.Errorf("unknown serializer: %s", name)
	}
}
