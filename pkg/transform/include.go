package transform

import (
	"strings"

	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// Include is a declared includable relation of a transformer
type Include struct {
	Name string
	// Relations are the relation keys eager-loaded when the include is
	// requested on a collection.
	Relations []string
	Shape     orm.Shape
	// Default includes are expanded even when not requested.
	Default bool
	// Resolve produces the included value from the parent data. When
	// nil the value is read off the parent by include name.
	Resolve func(data any) (any, error)
}

// Includes is an ordered list of declared includes
type Includes []Include

// Get returns the include with the given name
func (in Includes) Get(name string) (Include, bool) {
	for _, inc := range in {
		if inc.Name == name {
			return inc, true
		}
	}
	return Include{}, false
}

// Names returns the include names in declaration order
func (in Includes) Names() []string {
	names := make([]string, len(in))
	for i, inc := range in {
		names[i] = inc.Name
	}
	return names
}

// ParseInclude builds an Include from a definition string. Directives are
// separated by "|":
//
//	relation            eager-load the relation named like the include
//	relation:a,b        eager-load relations a and b
//	item, collection    shape of the included value
//	default             always include
//
// Unknown directives are ignored.
func ParseInclude(name, definition string) Include {
	inc := Include{Name: name}
	for _, directive := range strings.Split(definition, "|") {
		directive = strings.TrimSpace(directive)
		key, arg, hasArg := strings.Cut(directive, ":")
		switch strings.ToLower(key) {
		case "relation":
			if !hasArg || strings.TrimSpace(arg) == "" {
				inc.Relations = append(inc.Relations, name)
				continue
			}
			for _, rel := range strings.Split(arg, ",") {
				if rel = strings.TrimSpace(rel); rel != "" {
					inc.Relations = append(inc.Relations, rel)
				}
			}
		case "item":
			inc.Shape = orm.ShapeItem
		case "collection":
			inc.Shape = orm.ShapeCollection
		case "default":
			inc.Default = true
		}
	}
	return inc
}

// Def is a named include definition, e.g. {"comments", "relation|collection"}
type Def struct {
	Name       string
	Definition string
}

// Defs is an ordered list of include definitions
type Defs []Def

// Parse converts the definitions to Includes
func (d Defs) Parse() Includes {
	includes := make(Includes, 0, len(d))
	for _, def := range d {
		includes = append(includes, ParseInclude(def.Name, def.Definition))
	}
	return includes
}
