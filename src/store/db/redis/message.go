package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/orchestra-mcp/relay/src/store"
)

func (d *DB) CreateMessage(ctx context.Context, create *store.CreateMessage) (*store.Message, error) {
	id, err := d.rdb.Incr(ctx, d.seqKey("message")).Result()
	if err != nil {
		return nil, err
	}
	m := &store.Message{
		ID:        id,
		UserID:    create.UserID,
		Role:      create.Role,
		Content:   create.Content,
		CreatedTs: time.Now().Unix(),
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := d.rdb.RPush(ctx, d.messagesKey(create.UserID), b).Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	start := int64(0)
	if find.Limit > 0 {
		start = -int64(find.Limit)
	}
	vals, err := d.rdb.LRange(ctx, d.messagesKey(find.UserID), start, -1).Result()
	if err != nil {
		return nil, err
	}
	list := make([]*store.Message, 0, len(vals))
	for _, v := range vals {
		m := &store.Message{}
		if err := json.Unmarshal([]byte(v), m); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, nil
}

func (d *DB) DeleteMessages(ctx context.Context, userID int64) error {
	return d.rdb.Del(ctx, d.messagesKey(userID)).Err()
}
