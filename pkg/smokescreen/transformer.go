package smokescreen

import (
	"github.com/conduit-lang/smokescreen/internal/transformer"
)

type (
	// Constructor builds a transformer
	Constructor = transformer.Constructor
	// Instantiator builds the transformer registered under an identifier
	Instantiator = transformer.Instantiator
	// Registry maps transformer identifiers to constructors
	Registry = transformer.Registry
	// Naming derives transformer identifiers from model names
	Naming = transformer.Naming
	// UnresolvedTransformerError reports a model whose transformer could
	// not be built
	UnresolvedTransformerError = transformer.UnresolvedTransformerError
)

// ErrUnresolvedTransformer matches every *UnresolvedTransformerError
var ErrUnresolvedTransformer = transformer.ErrUnresolvedTransformer

// NewRegistry creates an empty transformer registry
func NewRegistry() *Registry {
	return transformer.NewRegistry()
}
