package api

import (
	"sort"

	"github.com/conduit-lang/smokescreen/internal/orm/schema"
	"github.com/conduit-lang/smokescreen/internal/transformer"
	"github.com/conduit-lang/smokescreen/pkg/orm"
	"github.com/conduit-lang/smokescreen/pkg/transform"
)

// RecordTransformer builds the transformer of a table: every column cast
// to its property kind and, when withIncludes is set, one include per
// relationship shaped by its relation family
func RecordTransformer(rs *schema.ResourceSchema, withIncludes bool) transform.Base {
	props := make(transform.Props, 0, len(rs.Columns))
	for _, col := range rs.Columns {
		kind, _ := schema.MapColumnKind(col.Kind)
		props = append(props, transform.Prop{Name: col.Name, Kind: kind.String()})
	}

	var defs transform.Defs
	if withIncludes {
		names := make([]string, 0, len(rs.Relationships))
		for name := range rs.Relationships {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			defs = append(defs, transform.Def{
				Name:       name,
				Definition: "relation|" + string(rs.Relationships[name].Type.Shape()),
			})
		}
	}

	return transform.Base{Defs: defs, Props: props}
}

// RegisterTables registers the record transformer of every resource of
// registry under its conventional identifier
func RegisterTables(reg *transformer.Registry, naming transformer.Naming, registry *schema.Registry, withIncludes bool) error {
	for _, rs := range registry.All() {
		t := RecordTransformer(rs, withIncludes)
		ctor := func() (transform.Transformer, error) { return t, nil }
		if err := reg.Register(naming.Identifier(rs.Name), ctor); err != nil {
			return err
		}
	}
	return nil
}

// RecordModelName names records after their table and other models
// after their type
func RecordModelName(m orm.Model) string {
	if rec, ok := m.(*orm.Record); ok {
		return orm.ModelName(rec.TableName())
	}
	return orm.ShortName(m)
}
