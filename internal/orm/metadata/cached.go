package metadata

import (
	"context"
	"time"

	"github.com/conduit-lang/smokescreen/internal/cache"
	"github.com/conduit-lang/smokescreen/internal/orm/schema"
)

// CachedSource memoizes the columns of another source in a cache
type CachedSource struct {
	source ColumnSource
	cache  cache.Cache
	ttl    time.Duration
}

// NewCachedSource wraps source with a cache. A zero ttl uses the cache
// backend default.
func NewCachedSource(source ColumnSource, c cache.Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{source: source, cache: c, ttl: ttl}
}

// ColumnsOf implements ColumnSource. Cache failures fall back to the
// wrapped source; failures of the wrapped source are never cached.
func (s *CachedSource) ColumnsOf(ctx context.Context, table string) ([]schema.Column, error) {
	var sourceErr error
	load := func(ctx context.Context) ([]schema.Column, error) {
		columns, err := s.source.ColumnsOf(ctx, table)
		sourceErr = err
		return columns, err
	}

	columns, err := cache.Remember(ctx, s.cache, "columns:"+table, s.ttl, load)
	if err == nil {
		return columns, nil
	}
	if sourceErr != nil {
		return nil, sourceErr
	}
	if columns != nil {
		// loaded, but storing the entry failed
		return columns, nil
	}
	return s.source.ColumnsOf(ctx, table)
}

// Invalidate drops the cached columns of table
func (s *CachedSource) Invalidate(ctx context.Context, table string) error {
	return s.cache.Delete(ctx, "columns:"+table)
}
