// Package redis is a store driver that keeps accounts and chat history in
// Redis. Users live in JSON strings indexed by email, and each user's
// history is a list appended in order.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/orchestra-mcp/relay/src/store"
)

// Config holds the connection settings.
type Config struct {
	URL    string
	Prefix string
}

type DB struct {
	rdb    *redis.Client
	prefix string
}

func NewDB(ctx context.Context, cfg Config) (store.Driver, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "relay"
	}
	return &DB{rdb: rdb, prefix: prefix}, nil
}

// Migrate is a no-op; Redis keys need no schema.
func (d *DB) Migrate(context.Context) error { return nil }

func (d *DB) Close() error {
	return d.rdb.Close()
}

func (d *DB) seqKey(kind string) string       { return d.prefix + ":seq:" + kind }
func (d *DB) userKey(id int64) string         { return fmt.Sprintf("%s:user:%d", d.prefix, id) }
func (d *DB) emailKey(email string) string    { return d.prefix + ":user:email:" + email }
func (d *DB) messagesKey(userID int64) string { return fmt.Sprintf("%s:messages:%d", d.prefix, userID) }
