package orm

import (
	"context"
	"fmt"
)

// Loader eager-loads relations for a set of models in batched operations
type Loader interface {
	LoadRelations(ctx context.Context, models []Model, keys []string) error
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context, models []Model, keys []string) error

// LoadRelations implements Loader
func (f LoaderFunc) LoadRelations(ctx context.Context, models []Model, keys []string) error {
	return f(ctx, models, keys)
}

// Collection is a materialized, ordered set of models
type Collection struct {
	models []Model
	loader Loader
}

// NewCollection creates a collection of models
func NewCollection(models ...Model) *Collection {
	return &Collection{models: models}
}

// WithLoader sets the loader used by Load and returns the collection
func (c *Collection) WithLoader(loader Loader) *Collection {
	c.loader = loader
	return c
}

// Len returns the number of models
func (c *Collection) Len() int {
	return len(c.models)
}

// At returns the model at position i
func (c *Collection) At(i int) Model {
	return c.models[i]
}

// First returns the first model, or nil when the collection is empty
func (c *Collection) First() Model {
	if len(c.models) == 0 {
		return nil
	}
	return c.models[0]
}

// All returns the underlying models
func (c *Collection) All() []Model {
	return c.models
}

// Load eager-loads the given relation keys for every model in one
// batched call to the collection's loader.
func (c *Collection) Load(ctx context.Context, keys ...string) error {
	if len(keys) == 0 || len(c.models) == 0 {
		return nil
	}
	if c.loader == nil {
		return fmt.Errorf("collection of %s has no relation loader", ShortName(c.models[0]))
	}
	return c.loader.LoadRelations(ctx, c.models, keys)
}
