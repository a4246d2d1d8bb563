// Package introspect discovers the relations and properties of models,
// the raw material for scaffolding a transformer. Relations come from
// the methods a model type declares itself, classified by their declared
// result type, their @return doc annotation or their body. Properties
// come from the columns of the model's table.
package introspect

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/smokescreen/internal/orm/metadata"
	"github.com/conduit-lang/smokescreen/internal/orm/schema"
	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// Introspector discovers model relations and properties
type Introspector struct {
	classifier *Classifier
	columns    metadata.ColumnSource
	source     *SourceIndex
	models     *ModelRegistry
	nameFunc   func(string) string
	logger     *zap.Logger
}

// Option configures an Introspector
type Option func(*Introspector)

// WithClassifier replaces the default relation classifier
func WithClassifier(c *Classifier) Option {
	return func(i *Introspector) { i.classifier = c }
}

// WithColumnSource sets the source of table column metadata
func WithColumnSource(source metadata.ColumnSource) Option {
	return func(i *Introspector) { i.columns = source }
}

// WithSourceIndex enriches reflected methods with doc comments and
// bodies, and restricts them to the ones declared in source
func WithSourceIndex(index *SourceIndex) Option {
	return func(i *Introspector) { i.source = index }
}

// WithModelRegistry sets the registry used by IntrospectByName
func WithModelRegistry(models *ModelRegistry) Option {
	return func(i *Introspector) { i.models = models }
}

// WithNameFunc sets how method names map to relation names
func WithNameFunc(fn func(string) string) Option {
	return func(i *Introspector) { i.nameFunc = fn }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(i *Introspector) { i.logger = logger }
}

// New creates an introspector
func New(opts ...Option) *Introspector {
	i := &Introspector{
		classifier: DefaultClassifier(),
		models:     NewModelRegistry(),
		nameFunc:   lowerCamel,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Result is the combined metadata of one model
type Result struct {
	Model      string           `json:"model"`
	Table      string           `json:"table"`
	Relations  RelationMetadata `json:"relations"`
	Properties PropertyMetadata `json:"properties"`
}

// Introspect discovers the relations and properties of model
func (i *Introspector) Introspect(ctx context.Context, model orm.Model) (*Result, error) {
	relations, err := i.DiscoverRelations(model)
	if err != nil {
		return nil, err
	}
	properties, err := i.DiscoverProperties(ctx, model)
	if err != nil {
		return nil, err
	}
	return &Result{
		Model:      orm.ShortName(model),
		Table:      model.TableName(),
		Relations:  relations,
		Properties: properties,
	}, nil
}

// IntrospectByName introspects the model registered under name
func (i *Introspector) IntrospectByName(ctx context.Context, name string) (*Result, error) {
	model, err := i.models.Get(name)
	if err != nil {
		return nil, err
	}
	return i.Introspect(ctx, model)
}

// IntrospectSource introspects a model type known only from parsed
// source. The table is the literal returned by its TableName method,
// or the conventional table name. Without a column source the result
// has no properties.
func (i *Introspector) IntrospectSource(ctx context.Context, index *SourceIndex, typeName string) (*Result, error) {
	ts, ok := index.LookupName(typeName)
	if !ok || !ts.IsStruct {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, typeName)
	}

	var relations RelationMetadata
	for _, m := range ts.Methods {
		if !isExported(m.Name) {
			continue
		}
		if typ, ok := i.classifier.Classify(m); ok {
			relations.add(i.nameFunc(m.Name), typ)
		}
	}

	table := ts.Table
	if table == "" {
		table = orm.DefaultTableName(ts.Name)
	}

	var properties PropertyMetadata
	if i.columns != nil {
		var err error
		if properties, err = i.properties(ctx, table); err != nil {
			return nil, err
		}
	}

	return &Result{
		Model:      ts.Name,
		Table:      table,
		Relations:  relations,
		Properties: properties,
	}, nil
}

// DiscoverRelations returns the relations declared by the model's own
// type. Methods promoted from embedded fields are never reported, and
// methods no classifier strategy recognizes are skipped silently.
func (i *Introspector) DiscoverRelations(model orm.Model) (RelationMetadata, error) {
	var relations RelationMetadata
	if isNil(model) {
		return relations, fmt.Errorf("%w: nil model", ErrModelNotFound)
	}

	for _, m := range i.declaredMethods(reflect.TypeOf(model)) {
		typ, ok := i.classifier.Classify(m)
		if !ok {
			continue
		}
		i.logger.Debug("discovered relation",
			zap.String("model", orm.ShortName(model)),
			zap.String("method", m.Name),
			zap.Stringer("type", typ),
		)
		relations.add(i.nameFunc(m.Name), typ)
	}
	return relations, nil
}

// DiscoverProperties maps the columns of the model's table through the
// type map, keeping column order and unmapped columns
func (i *Introspector) DiscoverProperties(ctx context.Context, model orm.Model) (PropertyMetadata, error) {
	if isNil(model) {
		return nil, fmt.Errorf("%w: nil model", ErrModelNotFound)
	}
	if i.columns == nil {
		return nil, fmt.Errorf("%w: no column source configured", metadata.ErrSchemaUnavailable)
	}
	return i.properties(ctx, model.TableName())
}

func (i *Introspector) properties(ctx context.Context, table string) (PropertyMetadata, error) {
	columns, err := i.columns.ColumnsOf(ctx, table)
	if err != nil {
		if errors.Is(err, metadata.ErrSchemaUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: table %s: %w", metadata.ErrSchemaUnavailable, table, err)
	}

	properties := make(PropertyMetadata, 0, len(columns))
	for _, col := range columns {
		kind, _ := schema.MapColumnKind(col.Kind)
		properties = append(properties, Property{Name: col.Name, Kind: kind})
	}
	return properties, nil
}

// declaredMethods returns the exported methods declared on t itself.
// With a source index the declarations come from source, in source
// order; otherwise methods promoted from embedded fields are removed
// from the reflected method set. A method that shadows a promoted
// method is only recognized with a source index.
func (i *Introspector) declaredMethods(t reflect.Type) []Method {
	ptr := t
	if ptr.Kind() != reflect.Pointer {
		ptr = reflect.PointerTo(t)
	}
	base := ptr.Elem()

	reflected := make(map[string]reflect.Method, ptr.NumMethod())
	for j := 0; j < ptr.NumMethod(); j++ {
		m := ptr.Method(j)
		reflected[m.Name] = m
	}

	if ts := i.sourceOf(base); ts != nil {
		methods := make([]Method, 0, len(ts.Methods))
		for _, m := range ts.Methods {
			if !isExported(m.Name) {
				continue
			}
			if rm, ok := reflected[m.Name]; ok {
				if ref := resultOf(rm); !ref.IsZero() {
					m.Result = ref
				}
			}
			methods = append(methods, m)
		}
		return methods
	}

	promoted := promotedMethods(base)
	methods := make([]Method, 0, ptr.NumMethod())
	for j := 0; j < ptr.NumMethod(); j++ {
		rm := ptr.Method(j)
		if promoted[rm.Name] {
			continue
		}
		methods = append(methods, Method{Name: rm.Name, Result: resultOf(rm)})
	}
	return methods
}

func (i *Introspector) sourceOf(t reflect.Type) *TypeSource {
	if i.source == nil || t.Name() == "" {
		return nil
	}
	if ts, ok := i.source.Lookup(t.PkgPath(), t.Name()); ok {
		return ts
	}
	if ts, ok := i.source.LookupName(t.Name()); ok {
		return ts
	}
	return nil
}

// resultOf returns the single result type of a reflected method
func resultOf(m reflect.Method) TypeRef {
	if m.Type.NumOut() != 1 {
		return TypeRef{}
	}
	return typeRefOf(m.Type.Out(0))
}

// promotedMethods returns the names of methods a struct type gains
// from its embedded fields
func promotedMethods(t reflect.Type) map[string]bool {
	promoted := make(map[string]bool)
	if t.Kind() != reflect.Struct {
		return promoted
	}
	for j := 0; j < t.NumField(); j++ {
		field := t.Field(j)
		if !field.Anonymous {
			continue
		}
		ft := field.Type
		if ft.Kind() != reflect.Pointer && ft.Kind() != reflect.Interface {
			ft = reflect.PointerTo(ft)
		}
		for k := 0; k < ft.NumMethod(); k++ {
			promoted[ft.Method(k).Name] = true
		}
	}
	return promoted
}

func isNil(model orm.Model) bool {
	if model == nil {
		return true
	}
	v := reflect.ValueOf(model)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
