// Package transformer locates the transformer of a resource from the
// model it holds, through an explicit registry of constructors keyed by
// conventional identifiers such as "transformers.PostTransformer".
package transformer

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/conduit-lang/smokescreen/pkg/orm"
	"github.com/conduit-lang/smokescreen/pkg/transform"
)

// Constructor builds a transformer
type Constructor func() (transform.Transformer, error)

// Of adapts an infallible constructor
func Of[T transform.Transformer](fn func() T) Constructor {
	return func() (transform.Transformer, error) {
		return fn(), nil
	}
}

// Instantiator builds the transformer registered under an identifier
type Instantiator interface {
	Construct(identifier string) (transform.Transformer, error)
}

// InstantiatorFunc adapts a function to the Instantiator interface
type InstantiatorFunc func(identifier string) (transform.Transformer, error)

// Construct implements Instantiator
func (f InstantiatorFunc) Construct(identifier string) (transform.Transformer, error) {
	return f(identifier)
}

// Registry maps identifiers to transformer constructors
type Registry struct {
	ctors map[string]Constructor
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a constructor under identifier
func (r *Registry) Register(identifier string, ctor Constructor) error {
	if identifier == "" || ctor == nil {
		return fmt.Errorf("transformer registration requires an identifier and a constructor")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ctors[identifier]; exists {
		return fmt.Errorf("transformer %s is already registered", identifier)
	}
	r.ctors[identifier] = ctor
	return nil
}

// RegisterConventional registers ctor under the identifier naming
// derives for model
func (r *Registry) RegisterConventional(naming Naming, model orm.Model, ctor Constructor) error {
	return r.Register(naming.Identifier(orm.ShortName(model)), ctor)
}

// Lookup returns the constructor registered under identifier
func (r *Registry) Lookup(identifier string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctor, ok := r.ctors[identifier]
	return ctor, ok
}

// Construct implements Instantiator
func (r *Registry) Construct(identifier string) (transform.Transformer, error) {
	ctor, ok := r.Lookup(identifier)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, identifier)
	}
	t, err := ctor()
	if err != nil {
		return nil, fmt.Errorf("failed to construct %s: %w", identifier, err)
	}
	if t == nil {
		return nil, fmt.Errorf("constructor of %s returned no transformer", identifier)
	}
	return t, nil
}

// Identifiers returns the sorted registered identifiers
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.ctors))
	for id := range r.ctors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Naming derives transformer identifiers from model names
type Naming struct {
	Namespace    string
	NameTemplate string
}

// DefaultNaming returns the default naming: transformers.{ModelName}Transformer
func DefaultNaming() Naming {
	return Naming{
		Namespace:    "transformers",
		NameTemplate: "{ModelName}Transformer",
	}
}

var modelNamePlaceholder = regexp.MustCompile(`(?i)\{modelname\}`)

// TypeName substitutes modelName into the template
func (n Naming) TypeName(modelName string) string {
	return modelNamePlaceholder.ReplaceAllLiteralString(n.NameTemplate, modelName)
}

// Identifier substitutes modelName into the template and prefixes the
// namespace, if any
func (n Naming) Identifier(modelName string) string {
	name := n.TypeName(modelName)
	if n.Namespace == "" {
		return name
	}
	return n.Namespace + "." + name
}

// Validate checks that the template has a model name placeholder
func (n Naming) Validate() error {
	if !modelNamePlaceholder.MatchString(n.NameTemplate) {
		return fmt.Errorf("transformer name template %q must contain {ModelName}", n.NameTemplate)
	}
	return nil
}
