// Package codegen renders starter transformer sources from introspected
// model metadata.
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"strconv"
	"text/template"

	"github.com/conduit-lang/smokescreen/internal/introspect"
	"github.com/conduit-lang/smokescreen/internal/orm/schema"
	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// TransformImportPath is the import path of the transformer contracts
const TransformImportPath = "github.com/conduit-lang/smokescreen/pkg/transform"

// Include is an include definition of the generated transformer
type Include struct {
	Name       string
	Definition string
}

// Prop is a declared property of the generated transformer. An empty
// kind leaves the value uncast.
type Prop struct {
	Name string
	Kind string
}

// TransformerSpec describes a transformer to generate
type TransformerSpec struct {
	Package      string
	TypeName     string
	Model        string
	Includes     []Include
	Props        []Prop
	DefaultProps []string
}

// SpecFrom builds a TransformerSpec from introspection results
func SpecFrom(pkg, typeName string, res *introspect.Result) TransformerSpec {
	spec := TransformerSpec{
		Package:  pkg,
		TypeName: typeName,
		Model:    res.Model,
	}
	for _, rel := range res.Relations.Entries() {
		spec.Includes = append(spec.Includes, Include{Name: rel.Name, Definition: rel.Definition()})
	}
	for _, prop := range res.Properties {
		kind := ""
		if prop.Kind != schema.PropertyUnknown {
			kind = prop.Kind.String()
		}
		spec.Props = append(spec.Props, Prop{Name: prop.Name, Kind: kind})
	}
	return spec
}

// FileName returns the conventional file name of a model's transformer,
// e.g. "blog_post_transformer.go"
func FileName(model string) string {
	return orm.SnakeCase(model) + "_transformer.go"
}

// Validate checks that the spec produces valid Go
func (s TransformerSpec) Validate() error {
	if !token.IsIdentifier(s.Package) || token.IsKeyword(s.Package) {
		return fmt.Errorf("invalid package name: %q", s.Package)
	}
	if !token.IsIdentifier(s.TypeName) || !token.IsExported(s.TypeName) {
		return fmt.Errorf("invalid transformer type name: %q", s.TypeName)
	}
	return nil
}

var transformerTemplate = template.Must(template.New("transformer").Funcs(template.FuncMap{
	"quote": strconv.Quote,
}).Parse(`package {{.Package}}

import (
	"{{.Import}}"
)

// {{.TypeName}} transforms {{if .Model}}{{.Model}} models{{else}}resources{{end}}
type {{.TypeName}} struct {
	transform.Base
}

// New{{.TypeName}} creates a {{.TypeName}}
func New{{.TypeName}}() *{{.TypeName}} {
	return &{{.TypeName}}{Base: transform.Base{
		// Available includes
		Defs: transform.Defs{
{{- range .Includes}}
			{Name: {{quote .Name}}, Definition: {{quote .Definition}}},
{{- end}}
		},
		// Properties to transform
		Props: transform.Props{
{{- range .Props}}
			{Name: {{quote .Name}}{{if .Kind}}, Kind: {{quote .Kind}}{{end}}},
{{- end}}
		},
		// Properties returned by default; when empty every declared
		// property is returned
		DefaultProps: []string{
{{- range .DefaultProps}}
			{{quote .}},
{{- end}}
		},
	}}
}
`))

// GenerateTransformer renders the gofmt'ed source of a transformer
func GenerateTransformer(spec TransformerSpec) ([]byte, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	data := struct {
		TransformerSpec
		Import string
	}{spec, TransformImportPath}
	if err := transformerTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render transformer: %w", err)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to format transformer: %w", err)
	}
	return src, nil
}
