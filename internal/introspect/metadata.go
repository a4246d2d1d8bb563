package introspect

import (
	"bytes"
	"encoding/json"

	"github.com/conduit-lang/smokescreen/internal/orm/schema"
	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// RelationEntry is one discovered relation
type RelationEntry struct {
	Name string
	Type orm.RelationType
}

// Definition returns the include definition of the relation, e.g.
// "relation|collection"
func (e RelationEntry) Definition() string {
	return "relation|" + string(e.Type.Shape())
}

// RelationMetadata is the ordered set of relations discovered on a model
type RelationMetadata struct {
	entries []RelationEntry
}

func (m *RelationMetadata) add(name string, typ orm.RelationType) {
	m.entries = append(m.entries, RelationEntry{Name: name, Type: typ})
}

// Len returns the number of relations
func (m RelationMetadata) Len() int {
	return len(m.entries)
}

// Entries returns the relations in discovery order
func (m RelationMetadata) Entries() []RelationEntry {
	return m.entries
}

// Get returns the include definition of the named relation
func (m RelationMetadata) Get(name string) (string, bool) {
	for _, e := range m.entries {
		if e.Name == name {
			return e.Definition(), true
		}
	}
	return "", false
}

// Map returns name -> include definition
func (m RelationMetadata) Map() map[string]string {
	out := make(map[string]string, len(m.entries))
	for _, e := range m.entries {
		out[e.Name] = e.Definition()
	}
	return out
}

// MarshalJSON encodes the relations as an object in discovery order
func (m RelationMetadata) MarshalJSON() ([]byte, error) {
	return orderedObject(len(m.entries), func(i int) (string, any) {
		return m.entries[i].Name, m.entries[i].Definition()
	})
}

// Property is one column of a model with its output kind
type Property struct {
	Name string
	Kind schema.PropertyKind
}

// PropertyMetadata lists the properties of a model in column order.
// Columns with unmapped schema kinds are kept with PropertyUnknown.
type PropertyMetadata []Property

// Names returns the property names in column order
func (p PropertyMetadata) Names() []string {
	names := make([]string, len(p))
	for i, prop := range p {
		names[i] = prop.Name
	}
	return names
}

// MarshalJSON encodes the properties as an object in column order;
// unknown kinds encode as null
func (p PropertyMetadata) MarshalJSON() ([]byte, error) {
	return orderedObject(len(p), func(i int) (string, any) {
		if p[i].Kind == schema.PropertyUnknown {
			return p[i].Name, nil
		}
		return p[i].Name, p[i].Kind.String()
	})
}

func orderedObject(n int, entry func(i int) (string, any)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, value := entry(i)
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
