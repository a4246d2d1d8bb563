package resource

import (
	"context"

	"github.com/conduit-lang/smokescreen/pkg/transform"
)

// Resolver finds the transformer of a resource that has none. A nil
// transformer with a nil error means the resource is rendered as-is.
type Resolver interface {
	Resolve(r *Resource) (transform.Transformer, error)
}

// Loader eager-loads what the requested includes of a resource need
type Loader interface {
	Load(ctx context.Context, r *Resource, includes []string) error
}
