// Package db selects a store driver from configuration.
package db

import (
	"context"

	"github.com/pkg/errors"

	"github.com/orchestra-mcp/relay/config"
	"github.com/orchestra-mcp/relay/src/store"
	"github.com/orchestra-mcp/relay/src/store/db/mysql"
	"github.com/orchestra-mcp/relay/src/store/db/postgres"
	"github.com/orchestra-mcp/relay/src/store/db/redis"
	"github.com/orchestra-mcp/relay/src/store/db/sqlite"
)

// NewDriver opens the driver named by cfg.Driver.
func NewDriver(ctx context.Context, cfg config.StoreConfig) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch cfg.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(cfg.DSN)
	case "postgres":
		driver, err = postgres.NewDB(ctx, cfg.DSN)
	case "mysql":
		driver, err = mysql.NewDB(cfg.DSN)
	case "redis":
		driver, err = redis.NewDB(ctx, redis.Config{URL: cfg.DSN, Prefix: cfg.RedisPrefix})
	default:
		return nil, errors.Errorf("unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s driver", cfg.Driver)
	}
	return driver, nil
}
