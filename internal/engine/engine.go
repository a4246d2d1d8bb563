// Package engine walks a resource graph: it transforms items and
// collection elements, expands declared includes into nested resources
// and shapes the result with a serializer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/smokescreen/pkg/orm"
	"github.com/conduit-lang/smokescreen/pkg/resource"
	"github.com/conduit-lang/smokescreen/pkg/transform"
)

// DefaultMaxDepth bounds include nesting
const DefaultMaxDepth = 10

var (
	// ErrNoResource is returned when rendering a nil resource
	ErrNoResource = errors.New("no resource to render")

	// ErrMaxDepthExceeded is returned when includes nest deeper than allowed
	ErrMaxDepthExceeded = errors.New("maximum include depth exceeded")
)

// Engine renders resources
type Engine struct {
	serializer transform.Serializer
	resolver   resource.Resolver
	loader     resource.Loader
	includes   []string
	maxDepth   int
	logger     *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMaxDepth sets the maximum include nesting
func WithMaxDepth(depth int) Option {
	return func(e *Engine) { e.maxDepth = depth }
}

// New creates an engine using the default serializer
func New(opts ...Option) *Engine {
	e := &Engine{
		serializer: DefaultSerializer{},
		maxDepth:   DefaultMaxDepth,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetSerializer sets the serializer; nil restores the default
func (e *Engine) SetSerializer(s transform.Serializer) {
	if s == nil {
		s = DefaultSerializer{}
	}
	e.serializer = s
}

// SetResolver sets the resolver used for resources without transformer
func (e *Engine) SetResolver(r resource.Resolver) {
	e.resolver = r
}

// SetRelationLoader sets the loader. It is called for the outermost
// collection of each include branch, with nested include paths passed on
// as dotted keys, so nested collections are never loaded one by one.
func (e *Engine) SetRelationLoader(l resource.Loader) {
	e.loader = l
}

// HasRelationLoader reports whether a loader is set
func (e *Engine) HasRelationLoader() bool {
	return e.loader != nil
}

// ParseIncludes parses a comma-separated include string, with dots
// separating nested includes ("author,comments.author"), and makes it
// the include set of following renders. Blank entries and duplicates
// are dropped.
func (e *Engine) ParseIncludes(includes string) []string {
	var parsed []string
	seen := make(map[string]bool)
	for _, path := range strings.Split(includes, ",") {
		segments := strings.Split(strings.TrimSpace(path), ".")
		kept := segments[:0]
		for _, seg := range segments {
			if seg = strings.TrimSpace(seg); seg != "" {
				kept = append(kept, seg)
			}
		}
		if len(kept) == 0 {
			continue
		}
		path = strings.Join(kept, ".")
		if !seen[path] {
			seen[path] = true
			parsed = append(parsed, path)
		}
	}
	e.includes = parsed
	return parsed
}

// Includes returns the current include set
func (e *Engine) Includes() []string {
	return e.includes
}

// Render transforms and serializes r with the current include set
func (e *Engine) Render(ctx context.Context, r *resource.Resource) (any, error) {
	if r == nil {
		return nil, ErrNoResource
	}
	return e.render(ctx, r, e.includes, 0, true)
}

func (e *Engine) render(ctx context.Context, r *resource.Resource, paths []string, depth int, load bool) (any, error) {
	if depth > e.maxDepth {
		return nil, fmt.Errorf("%w: %d", ErrMaxDepthExceeded, e.maxDepth)
	}

	t, err := e.transformerFor(r)
	if err != nil {
		return nil, err
	}
	active := activeIncludes(t, paths)

	if !r.IsCollection() {
		out, err := e.transformOne(ctx, r.Data(), t, active, paths, depth, load)
		if err != nil {
			return nil, err
		}
		return e.serializer.Item(r.Key(), out), nil
	}

	r, err = materialize(ctx, r)
	if err != nil {
		return nil, err
	}
	if load && e.loader != nil && len(active) > 0 {
		if err := e.loader.Load(ctx, r, loadPaths(active, paths)); err != nil {
			return nil, err
		}
	}

	elements := Elements(r.Data())
	items := make([]any, len(elements))
	for i, el := range elements {
		if items[i], err = e.transformOne(ctx, el, t, active, paths, depth, false); err != nil {
			return nil, err
		}
	}

	e.logger.Debug("rendered collection",
		zap.Int("items", len(items)),
		zap.Int("depth", depth),
		zap.Strings("includes", includeNames(active)),
	)
	return e.serializer.Collection(r.Key(), items, r.Paginator()), nil
}

func (e *Engine) transformerFor(r *resource.Resource) (transform.Transformer, error) {
	if r.HasTransformer() || e.resolver == nil {
		return r.Transformer(), nil
	}
	t, err := e.resolver.Resolve(r)
	if err != nil {
		return nil, err
	}
	if t != nil {
		r.SetTransformer(t)
	}
	return t, nil
}

func (e *Engine) transformOne(ctx context.Context, data any, t transform.Transformer, active transform.Includes, paths []string, depth int, load bool) (any, error) {
	out := data
	if t != nil {
		var err error
		if out, err = t.Transform(data); err != nil {
			return nil, fmt.Errorf("transform failed: %w", err)
		}
	}
	if len(active) == 0 {
		return out, nil
	}

	fields, ok := out.(map[string]any)
	if !ok {
		return out, nil
	}
	fields = maps.Clone(fields)

	for _, inc := range active {
		value, err := includeValue(ctx, data, inc)
		if err != nil {
			return nil, fmt.Errorf("include %s: %w", inc.Name, err)
		}
		if value == nil {
			fields[inc.Name] = nil
			continue
		}

		nested := nestedResource(value, inc)
		rendered, err := e.render(ctx, nested, childPaths(paths, inc.Name), depth+1, load)
		if err != nil {
			return nil, fmt.Errorf("include %s: %w", inc.Name, err)
		}
		fields[inc.Name] = rendered
	}
	return fields, nil
}

// materialize replaces a query handle by its results
func materialize(ctx context.Context, r *resource.Resource) (*resource.Resource, error) {
	q, ok := r.Data().(orm.Query)
	if !ok {
		return r, nil
	}
	collection, err := q.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run query for %s: %w", orm.ShortName(q.Model()), err)
	}

	m := resource.NewCollection(collection)
	m.SetTransformer(r.Transformer())
	m.SetKey(r.Key())
	m.SetPaginator(r.Paginator())
	return m, nil
}

// activeIncludes returns the declared includes that are requested or
// default, in declaration order
func activeIncludes(t transform.Transformer, paths []string) transform.Includes {
	declarer, ok := t.(transform.IncludeDeclarer)
	if !ok {
		return nil
	}

	requested := make(map[string]bool, len(paths))
	for _, p := range paths {
		top, _, _ := strings.Cut(p, ".")
		requested[top] = true
	}

	var active transform.Includes
	for _, inc := range declarer.Includes() {
		if inc.Default || requested[inc.Name] {
			active = append(active, inc)
		}
	}
	return active
}

func includeNames(includes transform.Includes) []string {
	return includes.Names()
}

// loadPaths returns the names of the active includes, each extended by
// the nested paths requested under it: "comments" requested as
// "comments.author" is loaded as "comments.author"
func loadPaths(active transform.Includes, paths []string) []string {
	var out []string
	for _, inc := range active {
		children := childPaths(paths, inc.Name)
		if len(children) == 0 {
			out = append(out, inc.Name)
			continue
		}
		for _, child := range children {
			out = append(out, inc.Name+"."+child)
		}
	}
	return out
}

// childPaths returns the paths nested under name, without the prefix
func childPaths(paths []string, name string) []string {
	var children []string
	prefix := name + "."
	for _, p := range paths {
		if rest, ok := strings.CutPrefix(p, prefix); ok {
			children = append(children, rest)
		}
	}
	return children
}

func nestedResource(value any, inc transform.Include) *resource.Resource {
	switch v := value.(type) {
	case *resource.Resource:
		return v
	case *transform.Nested:
		r := newResource(v.Shape, v.Data)
		if v.Transformer != nil {
			r.SetTransformer(v.Transformer)
		}
		return r
	}
	return newResource(inc.Shape, value)
}

func newResource(shape orm.Shape, data any) *resource.Resource {
	switch shape {
	case orm.ShapeCollection:
		return resource.NewCollection(data)
	case orm.ShapeItem:
		return resource.NewItem(data)
	}
	if resource.Classify(data) == resource.Collection {
		return resource.NewCollection(data)
	}
	return resource.NewItem(data)
}
