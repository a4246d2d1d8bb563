package commands

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/conduit-lang/smokescreen/internal/cache"
	"github.com/conduit-lang/smokescreen/internal/cli/config"
	"github.com/conduit-lang/smokescreen/internal/orm/metadata"
)

// openDatabase opens and pings the configured database
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, metadata.Dialect, error) {
	if cfg.URL == "" {
		return nil, 0, fmt.Errorf("database.url is not configured (set it in smokescreen.yml or %s_DATABASE_URL)", config.EnvPrefix)
	}
	dialect, err := metadata.DialectFor(cfg.Driver)
	if err != nil {
		return nil, 0, err
	}

	db, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("%w: %w", metadata.ErrSchemaUnavailable, err)
	}
	return db, dialect, nil
}

// columnSource reads columns from db through the configured cache. The
// returned cache must be closed by the caller when it is a redis cache.
func columnSource(ctx context.Context, cfg *config.Config, db *sql.DB, dialect metadata.Dialect, logger *zap.Logger) (*metadata.SQLSource, metadata.ColumnSource, func() error, error) {
	sqlSource := metadata.NewSQLSource(db, dialect)
	cacheConfig := cache.Config{DefaultTTL: cfg.Cache.TTL, Prefix: cfg.Cache.Prefix}

	if cfg.Cache.RedisAddr == "" {
		c := cache.NewMemoryCacheWithConfig(cacheConfig)
		return sqlSource, metadata.NewCachedSource(sqlSource, c, cfg.Cache.TTL), func() error { return nil }, nil
	}

	c, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.Cache.RedisAddr, Config: cacheConfig})
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Debug("column cache on redis", zap.String("addr", cfg.Cache.RedisAddr))
	return sqlSource, metadata.NewCachedSource(sqlSource, c, cfg.Cache.TTL), c.Close, nil
}
