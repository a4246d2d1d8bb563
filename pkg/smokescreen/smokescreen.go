// Package smokescreen transforms domain objects into API-ready output.
//
// Data handed to Transform is classified as an item or a collection, the
// transformer for its model is resolved by convention when none is
// given, the relations of requested includes are eager-loaded in one
// batch, and the rendered tree is cached until something changes.
//
//	s := smokescreen.Make()
//	s.Transform(posts, nil).Include("author,comments")
//	out, err := s.Render(ctx)
package smokescreen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/conduit-lang/smokescreen/internal/engine"
	"github.com/conduit-lang/smokescreen/internal/inject"
	"github.com/conduit-lang/smokescreen/internal/relations"
	"github.com/conduit-lang/smokescreen/internal/transformer"
	"github.com/conduit-lang/smokescreen/pkg/orm"
	"github.com/conduit-lang/smokescreen/pkg/resource"
	"github.com/conduit-lang/smokescreen/pkg/transform"
)

// ErrMissingResource is returned when an operation needs a resource and
// none has been set
var ErrMissingResource = errors.New("no resource has been set")

// Engine walks a resource graph and serializes it
type Engine interface {
	Render(ctx context.Context, r *resource.Resource) (any, error)
	SetRelationLoader(l resource.Loader)
	ParseIncludes(includes string) []string
	SetSerializer(s transform.Serializer)
	SetResolver(r resource.Resolver)
}

// Smokescreen holds one resource and how to render it. It is not safe
// for concurrent use.
type Smokescreen struct {
	cfg Config

	engine       Engine
	serializer   transform.Serializer
	resolver     resource.Resolver
	loader       resource.Loader
	instantiator Instantiator
	request      RequestSource
	logger       *zap.Logger

	resource     *resource.Resource
	includes     string
	hasIncludes  bool
	autoIncludes bool
	includeKey   string
	injections   []inject.Injection

	output   resource.Memo[any]
	response *Response
}

// Option configures a Smokescreen
type Option func(*Smokescreen)

// WithEngine replaces the default engine
func WithEngine(e Engine) Option {
	return func(s *Smokescreen) { s.engine = e }
}

// WithInstantiator sets what constructs conventionally named transformers,
// usually a *Registry
func WithInstantiator(inst Instantiator) Option {
	return func(s *Smokescreen) { s.instantiator = inst }
}

// WithResolver replaces the conventional transformer resolver
func WithResolver(r resource.Resolver) Option {
	return func(s *Smokescreen) { s.resolver = r }
}

// WithRelationLoader replaces the default relation loader
func WithRelationLoader(l resource.Loader) Option {
	return func(s *Smokescreen) { s.loader = l }
}

// WithRequest sets the request includes are read from
func WithRequest(r RequestSource) Option {
	return func(s *Smokescreen) { s.request = r }
}

// WithIncludeKey overrides the configured include key
func WithIncludeKey(key string) Option {
	return func(s *Smokescreen) { s.includeKey = key }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Smokescreen) { s.logger = logger }
}

// New creates a Smokescreen from cfg
func New(cfg Config, opts ...Option) (*Smokescreen, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	serializer, _ := cfg.serializer()

	s := &Smokescreen{
		cfg:          cfg,
		serializer:   serializer,
		autoIncludes: true,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.instantiator == nil {
		s.instantiator = transformer.NewRegistry()
	}
	if s.resolver == nil {
		s.resolver = transformer.NewResolver(cfg.Naming(), s.instantiator, transformer.WithLogger(s.logger))
	}
	if s.loader == nil {
		s.loader = relations.NewCoordinator(relations.WithLogger(s.logger))
	}
	if s.engine == nil {
		s.engine = engine.New(engine.WithLogger(s.logger))
	}
	return s, nil
}

// Make creates a Smokescreen with the default configuration
func Make(opts ...Option) *Smokescreen {
	s, err := New(DefaultConfig(), opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Transform sets data as the resource, classifying it as an item or a
// collection. Ambiguous data is an item; paginators classified as
// collections are paginated. t may be nil to resolve the transformer by
// convention.
func (s *Smokescreen) Transform(data any, t transform.Transformer) *Smokescreen {
	if resource.Classify(data) == resource.Collection {
		return s.Collection(data, t)
	}
	return s.Item(data, t)
}

// Item sets data as an item resource
func (s *Smokescreen) Item(data any, t transform.Transformer) *Smokescreen {
	return s.setResource(resource.NewItem(data), t)
}

// Collection sets data as a collection resource. Paginators are handed
// to Paginate.
func (s *Smokescreen) Collection(data any, t transform.Transformer) *Smokescreen {
	if p, ok := data.(orm.Paginator); ok {
		return s.Paginate(p, t)
	}
	return s.setResource(resource.NewCollection(data), t)
}

// Paginate sets the items of p as a collection resource carrying the
// pagination of p
func (s *Smokescreen) Paginate(p orm.Paginator, t transform.Transformer) *Smokescreen {
	return s.setResource(resource.NewCollection(p), t)
}

func (s *Smokescreen) setResource(r *resource.Resource, t transform.Transformer) *Smokescreen {
	if t != nil {
		r.SetTransformer(t)
	}
	s.resource = r
	s.response = nil
	s.output.Invalidate()
	return s
}

// TransformWith sets the transformer of the current resource
func (s *Smokescreen) TransformWith(t transform.Transformer) error {
	if s.resource == nil {
		return ErrMissingResource
	}
	s.resource.SetTransformer(t)
	s.output.Invalidate()
	return nil
}

// SerializeWith sets the serializer; nil restores the configured one
func (s *Smokescreen) SerializeWith(serializer transform.Serializer) *Smokescreen {
	if serializer == nil {
		serializer, _ = s.cfg.serializer()
	}
	s.serializer = serializer
	s.output.Invalidate()
	return s
}

// LoadRelationsVia sets the relation loader
func (s *Smokescreen) LoadRelationsVia(l resource.Loader) *Smokescreen {
	s.loader = l
	s.output.Invalidate()
	return s
}

// ResolveTransformerVia sets the transformer resolver
func (s *Smokescreen) ResolveTransformerVia(r resource.Resolver) *Smokescreen {
	s.resolver = r
	s.output.Invalidate()
	return s
}

// Include sets the includes explicitly, overriding the request
func (s *Smokescreen) Include(includes string) *Smokescreen {
	s.includes = includes
	s.hasIncludes = true
	s.output.Invalidate()
	return s
}

// NoIncludes disables includes, explicit and from the request
func (s *Smokescreen) NoIncludes() *Smokescreen {
	s.includes = ""
	s.hasIncludes = false
	s.autoIncludes = false
	s.output.Invalidate()
	return s
}

// SetRequest sets the request includes are read from
func (s *Smokescreen) SetRequest(r RequestSource) *Smokescreen {
	s.request = r
	s.output.Invalidate()
	return s
}

// Request returns the request, or nil
func (s *Smokescreen) Request() RequestSource {
	return s.request
}

// IncludeKey returns the request key includes are read from: the
// override, then the configured key, then "include"
func (s *Smokescreen) IncludeKey() string {
	switch {
	case s.includeKey != "":
		return s.includeKey
	case s.cfg.IncludeKey != "":
		return s.cfg.IncludeKey
	default:
		return DefaultIncludeKey
	}
}

// Inject sets value at a dotted path of the rendered output
func (s *Smokescreen) Inject(path string, value any) *Smokescreen {
	s.injections = append(s.injections, inject.Injection{Path: path, Value: value})
	s.output.Invalidate()
	return s
}

// Resource returns the current resource, or nil
func (s *Smokescreen) Resource() *resource.Resource {
	return s.resource
}

// Engine returns the engine
func (s *Smokescreen) Engine() Engine {
	return s.engine
}

// Render returns the rendered output. It is computed once and cached
// until the Smokescreen is changed.
func (s *Smokescreen) Render(ctx context.Context) (any, error) {
	return s.output.Get(func() (any, error) {
		return s.render(ctx)
	})
}

func (s *Smokescreen) render(ctx context.Context) (any, error) {
	r := s.resource
	if r == nil {
		return nil, ErrMissingResource
	}

	if !r.HasTransformer() && s.resolver != nil {
		t, err := s.resolver.Resolve(r)
		if err != nil {
			return nil, err
		}
		if t != nil {
			r.SetTransformer(t)
		}
	}

	includes := s.includeString()
	s.engine.ParseIncludes(includes)
	s.engine.SetRelationLoader(s.loader)
	s.engine.SetResolver(s.resolver)
	s.engine.SetSerializer(s.serializer)

	out, err := s.engine.Render(ctx, r)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("rendered resource",
		zap.Stringer("kind", r.Kind()),
		zap.String("includes", includes),
		zap.Int("injections", len(s.injections)),
	)

	if len(s.injections) == 0 {
		return out, nil
	}
	tree, ok := transform.Attributes(out)
	if !ok {
		return nil, fmt.Errorf("cannot inject into %T output", out)
	}
	return inject.Apply(tree, s.injections), nil
}

func (s *Smokescreen) includeString() string {
	if s.hasIncludes {
		return s.includes
	}
	if s.autoIncludes && s.request != nil {
		if v, ok := s.request.InputValue(s.IncludeKey()); ok {
			return v
		}
	}
	return ""
}

// ToJSON returns the JSON encoding of the rendered output
func (s *Smokescreen) ToJSON(ctx context.Context) ([]byte, error) {
	out, err := s.Render(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	return data, nil
}

// Response returns a JSON response of the rendered output. The response
// is created once: later calls return it unchanged, whatever their
// arguments, until ClearResponse or a new resource.
func (s *Smokescreen) Response(ctx context.Context, status int, header http.Header) (*Response, error) {
	if s.response != nil {
		return s.response, nil
	}
	if status == 0 {
		status = http.StatusOK
	}

	out, err := s.Render(ctx)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}

	h := make(http.Header)
	for key, values := range header {
		h[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}

	s.response = &Response{Status: status, Header: h, Data: out, Body: body}
	return s.response, nil
}

// FreshResponse renders again and replaces the cached response
func (s *Smokescreen) FreshResponse(ctx context.Context, status int, header http.Header) (*Response, error) {
	s.ClearResponse()
	s.output.Invalidate()
	return s.Response(ctx, status, header)
}

// ClearResponse drops the cached response
func (s *Smokescreen) ClearResponse() *Smokescreen {
	s.response = nil
	return s
}

// WithResponse applies fn to the response, creating it with status 200
// when needed
func (s *Smokescreen) WithResponse(ctx context.Context, fn func(*Response)) error {
	resp, err := s.Response(ctx, http.StatusOK, nil)
	if err != nil {
		return err
	}
	fn(resp)
	return nil
}

// WriteResponse writes the response to w, creating it with status 200
// when needed
func (s *Smokescreen) WriteResponse(ctx context.Context, w http.ResponseWriter) error {
	resp, err := s.Response(ctx, http.StatusOK, nil)
	if err != nil {
		return err
	}
	return resp.Write(w)
}
