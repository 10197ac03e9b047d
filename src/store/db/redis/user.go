package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orchestra-mcp/relay/src/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.CreateUser) (*store.User, error) {
	id, err := d.rdb.Incr(ctx, d.seqKey("user")).Result()
	if err != nil {
		return nil, err
	}
	// The email index is claimed first so concurrent registrations race on
	// a single SETNX.
	ok, err := d.rdb.SetNX(ctx, d.emailKey(create.Email), id, 0).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrDuplicate
	}

	u := &store.User{
		ID:           id,
		Email:        create.Email,
		FullName:     create.FullName,
		PasswordHash: create.PasswordHash,
		CreatedTs:    time.Now().Unix(),
	}
	b, err := json.Marshal(userRecord{User: u, PasswordHash: u.PasswordHash})
	if err != nil {
		return nil, err
	}
	if err := d.rdb.Set(ctx, d.userKey(id), b, 0).Err(); err != nil {
		d.rdb.Del(ctx, d.emailKey(create.Email))
		return nil, err
	}
	return u, nil
}

func (d *DB) GetUser(ctx context.Context, find *store.FindUser) (*store.User, error) {
	var id int64
	switch {
	case find.ID != nil:
		id = *find.ID
	case find.Email != nil:
		raw, err := d.rdb.Get(ctx, d.emailKey(*find.Email)).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if id, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}

	raw, err := d.rdb.Get(ctx, d.userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	if find.Email != nil && rec.User.Email != *find.Email {
		return nil, nil
	}
	rec.User.PasswordHash = rec.PasswordHash
	return rec.User, nil
}

// userRecord carries the password hash, which store.User hides from JSON.
type userRecord struct {
	*store.User
	PasswordHash string `json:"passwordHash"`
}
