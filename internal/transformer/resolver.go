package transformer

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/smokescreen/pkg/orm"
	"github.com/conduit-lang/smokescreen/pkg/resource"
	"github.com/conduit-lang/smokescreen/pkg/transform"
)

// Resolver finds the transformer of a resource by convention
type Resolver struct {
	naming       Naming
	instantiator Instantiator
	modelName    func(orm.Model) string
	logger       *zap.Logger

	// model name -> identifier
	identifiers sync.Map
}

// Option configures a Resolver
type Option func(*Resolver)

// WithModelName overrides how a model's name is derived; the default is
// its short type name
func WithModelName(fn func(orm.Model) string) Option {
	return func(r *Resolver) { r.modelName = fn }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a resolver constructing transformers through inst
func NewResolver(naming Naming, inst Instantiator, opts ...Option) *Resolver {
	r := &Resolver{
		naming:       naming,
		instantiator: inst,
		modelName:    func(m orm.Model) string { return orm.ShortName(m) },
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Naming returns the naming used to derive identifiers
func (r *Resolver) Naming() Naming {
	return r.naming
}

// Resolve returns the transformer of res. A transformer already set on
// the resource is returned as-is; a resolved one is set on it, so a
// second call constructs nothing. Resources without a model resolve to
// (nil, nil).
func (r *Resolver) Resolve(res *resource.Resource) (transform.Transformer, error) {
	if res == nil {
		return nil, nil
	}
	if res.HasTransformer() {
		return res.Transformer(), nil
	}

	model, err := r.ModelOf(res)
	if err != nil || model == nil {
		return nil, err
	}

	name := r.modelName(model)
	identifier := r.identifier(name)

	t, err := r.instantiator.Construct(identifier)
	if err != nil {
		return nil, &UnresolvedTransformerError{Model: name, Identifier: identifier, Cause: err}
	}

	r.logger.Debug("resolved transformer",
		zap.String("model", name),
		zap.String("identifier", identifier),
	)
	res.SetTransformer(t)
	return t, nil
}

func (r *Resolver) identifier(name string) string {
	if id, ok := r.identifiers.Load(name); ok {
		return id.(string)
	}
	id := r.naming.Identifier(name)
	r.identifiers.Store(name, id)
	return id
}

// ModelOf returns the single model a resource's data is made of: the
// data itself for items, the first element for collections. It returns
// nil when there is none, and an error when a collection mixes models
// with other values.
func (r *Resolver) ModelOf(res *resource.Resource) (orm.Model, error) {
	data := res.Data()

	if res.Kind() != resource.Collection {
		model, ok := data.(orm.Model)
		if !ok || isNilModel(model) {
			return nil, nil
		}
		return model, nil
	}

	switch d := data.(type) {
	case orm.Query:
		return d.Model(), nil
	case orm.Paginator:
		return r.consistentModel(d.Items().All())
	case *orm.Collection:
		if d == nil {
			return nil, nil
		}
		return r.consistentModel(d.All())
	}

	rv := reflect.ValueOf(data)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, nil
	}
	elements := make([]any, rv.Len())
	for i := range elements {
		elements[i] = rv.Index(i).Interface()
	}
	return r.consistentModel(elements)
}

func (r *Resolver) consistentModel(elements any) (orm.Model, error) {
	var values []any
	switch e := elements.(type) {
	case []orm.Model:
		values = make([]any, len(e))
		for i, m := range e {
			values[i] = m
		}
	case []any:
		values = e
	}
	if len(values) == 0 {
		return nil, nil
	}

	first, ok := values[0].(orm.Model)
	if !ok || isNilModel(first) {
		return nil, nil
	}

	name := r.modelName(first)
	for _, v := range values[1:] {
		m, ok := v.(orm.Model)
		if !ok || isNilModel(m) || r.modelName(m) != name {
			return nil, &UnresolvedTransformerError{Model: name, Reason: "cannot determine model"}
		}
	}
	return first, nil
}

func isNilModel(m orm.Model) bool {
	if m == nil {
		return true
	}
	v := reflect.ValueOf(m)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
