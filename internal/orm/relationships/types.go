// Package relationships eager-loads model relations with one batched SQL
// query per relation key, whatever the number of parent records.
package relationships

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/conduit-lang/smokescreen/internal/orm/schema"
)

// Querier is an interface for executing SQL queries, allowing for testing and instrumentation
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Loader loads relations of orm.Record models declared in a schema registry
type Loader struct {
	db       Querier
	registry *schema.Registry
	maxDepth int
	logger   *zap.Logger
}

// Option configures a Loader
type Option func(*Loader)

// WithLogger sets the logger used for query tracing
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithMaxDepth limits how deep dotted relation keys may nest
func WithMaxDepth(depth int) Option {
	return func(l *Loader) {
		l.maxDepth = depth
	}
}

// NewLoader creates a new relationship loader
func NewLoader(db Querier, registry *schema.Registry, opts ...Option) *Loader {
	l := &Loader{
		db:       db,
		registry: registry,
		maxDepth: 10,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// loadContext tracks the resources on the current nesting path
type loadContext struct {
	visited  map[string]bool
	depth    int
	maxDepth int
}

func newLoadContext(maxDepth int) *loadContext {
	return &loadContext{
		visited:  make(map[string]bool),
		maxDepth: maxDepth,
	}
}

// enter marks a resource as being loaded. It returns false when the
// resource is already on the current path.
func (lc *loadContext) enter(resource string) (bool, error) {
	if lc.depth+1 > lc.maxDepth {
		return false, ErrMaxDepthExceeded
	}
	if lc.visited[resource] {
		return false, nil
	}
	lc.depth++
	lc.visited[resource] = true
	return true, nil
}

func (lc *loadContext) leave(resource string) {
	lc.depth--
	delete(lc.visited, resource)
}
