// Package relations reconciles the includes requested for a resource with
// the relations its transformer declares and eager-loads them in a single
// batched call.
package relations

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/smokescreen/pkg/orm"
	"github.com/conduit-lang/smokescreen/pkg/resource"
	"github.com/conduit-lang/smokescreen/pkg/transform"
)

// Coordinator eager-loads the declared relations of collection resources
type Coordinator struct {
	logger *zap.Logger
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// NewCoordinator creates a coordinator
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reconcile returns the relation keys to load for r given the requested
// include names. Only materialized model collections have keys; only
// includes declared by the resource's transformer contribute, in
// declaration order and without duplicates. Nested include paths are
// folded into dotted keys: an include "comments" declaring relation
// "comments" and requested as "comments.author" yields
// "comments.author", so one call loads every level. Relations declared
// with a dotted key are loaded as declared.
func (c *Coordinator) Reconcile(r *resource.Resource, requested []string) []string {
	if r == nil || len(requested) == 0 {
		return nil
	}
	if _, ok := r.Data().(*orm.Collection); !ok {
		return nil
	}
	declarer, ok := r.Transformer().(transform.IncludeDeclarer)
	if !ok {
		return nil
	}

	// include name -> nested paths requested under it
	wanted := make(map[string][]string, len(requested))
	for _, name := range requested {
		top, rest, _ := strings.Cut(name, ".")
		if rest != "" {
			wanted[top] = append(wanted[top], rest)
		} else if _, ok := wanted[top]; !ok {
			wanted[top] = nil
		}
	}

	var keys []string
	seen := make(map[string]bool)
	add := func(key string) {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for _, inc := range declarer.Includes() {
		nested, ok := wanted[inc.Name]
		if !ok {
			continue
		}
		for _, key := range inc.Relations {
			if len(nested) == 0 || strings.Contains(key, ".") {
				add(key)
				continue
			}
			for _, rest := range nested {
				add(key + "." + rest)
			}
		}
	}
	return keys
}

// Load issues one batched load of the reconciled keys. Nothing is loaded
// when there are no keys.
func (c *Coordinator) Load(ctx context.Context, r *resource.Resource, requested []string) error {
	keys := c.Reconcile(r, requested)
	if len(keys) == 0 {
		return nil
	}

	collection := r.Data().(*orm.Collection)
	c.logger.Debug("loading relations",
		zap.Strings("keys", keys),
		zap.Int("models", collection.Len()),
	)
	if err := collection.Load(ctx, keys...); err != nil {
		return fmt.Errorf("failed to load relations %s: %w", strings.Join(keys, ","), err)
	}
	return nil
}
