package transform

import (
	"encoding/json"
	"time"

	"github.com/spf13/cast"
)

// Prop is a declared output property and its kind
type Prop struct {
	Name string
	Kind string
}

// Props is an ordered list of declared properties
type Props []Prop

// Base is embedded by generated transformers. It declares includes and
// properties and implements a property-plucking Transform.
type Base struct {
	Defs  Defs
	Props Props
	// DefaultProps limits the output when non-empty; otherwise every
	// declared property is returned.
	DefaultProps []string
}

// Includes implements IncludeDeclarer
func (b Base) Includes() Includes {
	return b.Defs.Parse()
}

// Transform returns the declared properties of data cast to their kinds.
// Without declared properties every attribute of data is returned.
func (b Base) Transform(data any) (any, error) {
	attrs, ok := Attributes(data)
	if !ok {
		return data, nil
	}
	if len(b.Props) == 0 {
		return attrs, nil
	}

	selected := b.Props
	if len(b.DefaultProps) > 0 {
		selected = make(Props, 0, len(b.DefaultProps))
		for _, name := range b.DefaultProps {
			selected = append(selected, b.prop(name))
		}
	}

	out := make(map[string]any, len(selected))
	for _, prop := range selected {
		out[prop.Name] = CastKind(attrs[prop.Name], prop.Kind)
	}
	return out, nil
}

func (b Base) prop(name string) Prop {
	for _, p := range b.Props {
		if p.Name == name {
			return p
		}
	}
	return Prop{Name: name}
}

// CastKind converts a raw attribute value to the given property kind.
// Values that cannot be converted are returned unchanged.
func CastKind(v any, kind string) any {
	if v == nil {
		return nil
	}

	var (
		out any
		err error
	)
	switch kind {
	case "string":
		if b, ok := v.([]byte); ok {
			return string(b)
		}
		out, err = cast.ToStringE(v)
	case "integer":
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		out, err = cast.ToInt64E(v)
	case "float":
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		out, err = cast.ToFloat64E(v)
	case "boolean":
		out, err = cast.ToBoolE(v)
	case "datetime":
		var t time.Time
		if t, err = cast.ToTimeE(v); err == nil {
			out = t.Format(time.RFC3339)
		}
	case "date":
		var t time.Time
		if t, err = cast.ToTimeE(v); err == nil {
			out = t.Format(time.DateOnly)
		}
	case "array":
		var raw []byte
		switch s := v.(type) {
		case []byte:
			raw = s
		case string:
			raw = []byte(s)
		default:
			return v
		}
		err = json.Unmarshal(raw, &out)
	default:
		return v
	}

	if err != nil {
		return v
	}
	return out
}
