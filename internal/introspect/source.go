package introspect

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"go/types"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"
)

// LoadMode specifies what information to load from packages
const LoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedImports

// TypeSource is the parsed declaration of a named type and the methods
// declared on it
type TypeSource struct {
	PkgPath  string
	Name     string
	Doc      string
	IsStruct bool
	// Embedded lists the type names of embedded fields
	Embedded []string
	// Methods are the methods declared on the type, in source order
	Methods []Method
	// Table is the literal returned by a TableName method, if any
	Table string
}

// Ref returns the type reference of the declaration
func (ts *TypeSource) Ref() TypeRef {
	return TypeRef{PkgPath: ts.PkgPath, Name: ts.Name}
}

// Method returns the declared method with the given name
func (ts *TypeSource) Method(name string) (Method, bool) {
	for _, m := range ts.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// SourceIndex holds type declarations parsed from Go source files
type SourceIndex struct {
	fset  *token.FileSet
	types map[TypeRef]*TypeSource
}

// NewSourceIndex creates an empty index
func NewSourceIndex() *SourceIndex {
	return &SourceIndex{
		fset:  token.NewFileSet(),
		types: make(map[TypeRef]*TypeSource),
	}
}

// AddFile parses one file of package pkgPath. src follows the rules of
// go/parser.ParseFile: when nil the file is read from filename.
func (ix *SourceIndex) AddFile(pkgPath, filename string, src any) error {
	file, err := parser.ParseFile(ix.fset, filename, src, parser.ParseComments)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	ix.addSyntax(pkgPath, file, importResolver(pkgPath, file))
	return nil
}

// AddDir parses the non-test Go files of dir as package pkgPath
func (ix *SourceIndex) AddDir(pkgPath, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		if err := ix.AddFile(pkgPath, filepath.Join(dir, name), nil); err != nil {
			return err
		}
	}
	return nil
}

// LoadPackages loads the packages matching patterns, relative to dir,
// into a new index. Result types are resolved through type information.
func LoadPackages(dir string, patterns ...string) (*SourceIndex, error) {
	ix := NewSourceIndex()
	cfg := &packages.Config{
		Mode:  LoadMode,
		Dir:   dir,
		Fset:  ix.fset,
		Tests: false,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}

	var errs []error
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, e)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors: %v", errs)
	}

	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			resolve := importResolver(pkg.PkgPath, file)
			if pkg.TypesInfo != nil {
				resolve = typesResolver(pkg.TypesInfo, resolve)
			}
			ix.addSyntax(pkg.PkgPath, file, resolve)
		}
	}
	return ix, nil
}

// Lookup returns the declaration of pkgPath.name
func (ix *SourceIndex) Lookup(pkgPath, name string) (*TypeSource, bool) {
	ts, ok := ix.types[TypeRef{PkgPath: pkgPath, Name: name}]
	return ts, ok
}

// LookupName returns the declaration named name when exactly one indexed
// package declares it
func (ix *SourceIndex) LookupName(name string) (*TypeSource, bool) {
	var found *TypeSource
	for ref, ts := range ix.types {
		if ref.Name != name {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = ts
	}
	return found, found != nil
}

// Types returns all indexed declarations sorted by package and name
func (ix *SourceIndex) Types() []*TypeSource {
	out := make([]*TypeSource, 0, len(ix.types))
	for _, ts := range ix.types {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PkgPath != out[j].PkgPath {
			return out[i].PkgPath < out[j].PkgPath
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Len returns the number of indexed declarations
func (ix *SourceIndex) Len() int {
	return len(ix.types)
}

type resolver func(expr ast.Expr) TypeRef

func (ix *SourceIndex) entry(pkgPath, name string) *TypeSource {
	ref := TypeRef{PkgPath: pkgPath, Name: name}
	ts, ok := ix.types[ref]
	if !ok {
		ts = &TypeSource{PkgPath: pkgPath, Name: name}
		ix.types[ref] = ts
	}
	return ts
}

func (ix *SourceIndex) addSyntax(pkgPath string, file *ast.File, resolve resolver) {
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ix.addTypeSpec(pkgPath, d, spec.(*ast.TypeSpec))
			}
		case *ast.FuncDecl:
			if d.Recv == nil || len(d.Recv.List) == 0 {
				continue
			}
			recv := receiverName(d.Recv.List[0].Type)
			if recv == "" {
				continue
			}
			ts := ix.entry(pkgPath, recv)
			m := Method{
				Name: d.Name.Name,
				Doc:  d.Doc.Text(),
				Body: ix.nodeSource(d.Body),
			}
			if res := d.Type.Results; res != nil && len(res.List) == 1 && len(res.List[0].Names) <= 1 {
				m.Result = resolve(res.List[0].Type)
			}
			if m.Name == "TableName" {
				ts.Table = literalReturn(d.Body)
			}
			ts.Methods = append(ts.Methods, m)
		}
	}
}

func (ix *SourceIndex) addTypeSpec(pkgPath string, decl *ast.GenDecl, spec *ast.TypeSpec) {
	ts := ix.entry(pkgPath, spec.Name.Name)
	doc := spec.Doc
	if doc == nil && len(decl.Specs) == 1 {
		doc = decl.Doc
	}
	ts.Doc = doc.Text()

	st, ok := spec.Type.(*ast.StructType)
	if !ok {
		return
	}
	ts.IsStruct = true
	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			ts.Embedded = append(ts.Embedded, ix.nodeSource(field.Type))
		}
	}
}

func (ix *SourceIndex) nodeSource(node ast.Node) string {
	if node == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, ix.fset, node); err != nil {
		return ""
	}
	return buf.String()
}

// receiverName returns the base type name of a method receiver
func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.ParenExpr:
		return receiverName(t.X)
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return ""
	}
}

// literalReturn returns the string literal of a body consisting of a
// single return statement
func literalReturn(body *ast.BlockStmt) string {
	if body == nil || len(body.List) != 1 {
		return ""
	}
	ret, ok := body.List[0].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return ""
	}
	lit, ok := ret.Results[0].(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return ""
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return ""
	}
	return s
}

// importResolver resolves type expressions through the imports of file.
// Unqualified identifiers resolve to pkgPath.
func importResolver(pkgPath string, file *ast.File) resolver {
	imports := make(map[string]string)
	for _, spec := range file.Imports {
		importPath, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := path.Base(importPath)
		if spec.Name != nil {
			name = spec.Name.Name
		}
		imports[name] = importPath
	}

	var resolve resolver
	resolve = func(expr ast.Expr) TypeRef {
		switch t := expr.(type) {
		case *ast.StarExpr:
			return resolve(t.X)
		case *ast.SelectorExpr:
			pkg, ok := t.X.(*ast.Ident)
			if !ok {
				return TypeRef{}
			}
			return TypeRef{PkgPath: imports[pkg.Name], Name: t.Sel.Name}
		case *ast.Ident:
			return TypeRef{PkgPath: pkgPath, Name: t.Name}
		default:
			return TypeRef{}
		}
	}
	return resolve
}

// typesResolver resolves result types through type-checker information,
// falling back to fallback for expressions without a named type
func typesResolver(info *types.Info, fallback resolver) resolver {
	return func(expr ast.Expr) TypeRef {
		t := types.Unalias(info.TypeOf(expr))
		if ptr, ok := t.(*types.Pointer); ok {
			t = ptr.Elem()
		}
		named, ok := t.(*types.Named)
		if !ok || named.Obj().Pkg() == nil {
			return fallback(expr)
		}
		return TypeRef{PkgPath: named.Obj().Pkg().Path(), Name: named.Obj().Name()}
	}
}
