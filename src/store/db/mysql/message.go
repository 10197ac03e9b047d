package mysql

import (
	"context"
	"time"

	"github.com/orchestra-mcp/relay/src/store"
)

func (d *DB) CreateMessage(ctx context.Context, create *store.CreateMessage) (*store.Message, error) {
	m := &store.Message{
		UserID:    create.UserID,
		Role:      create.Role,
		Content:   create.Content,
		CreatedTs: time.Now().Unix(),
	}
	res, err := d.db.ExecContext(ctx,
		"INSERT INTO `chat_message` (`user_id`, `role`, `content`, `created_ts`) VALUES (?, ?, ?, ?)",
		m.UserID, string(m.Role), m.Content, m.CreatedTs,
	)
	if err != nil {
		return nil, err
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	query := "SELECT `id`, `user_id`, `role`, `content`, `created_ts` FROM `chat_message` WHERE `user_id` = ? ORDER BY `id` ASC"
	args := []any{find.UserID}
	if find.Limit > 0 {
		query = "SELECT `id`, `user_id`, `role`, `content`, `created_ts` FROM (" +
			"SELECT `id`, `user_id`, `role`, `content`, `created_ts` FROM `chat_message` WHERE `user_id` = ? ORDER BY `id` DESC LIMIT ?" +
			") AS `recent` ORDER BY `id` ASC"
		args = append(args, find.Limit)
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.Message
	for rows.Next() {
		m := &store.Message{}
		var role string
		if err := rows.Scan(&m.ID, &m.UserID, &role, &m.Content, &m.CreatedTs); err != nil {
			return nil, err
		}
		m.Role = store.Role(role)
		list = append(list, m)
	}
	return list, rows.Err()
}

func (d *DB) DeleteMessages(ctx context.Context, userID int64) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM `chat_message` WHERE `user_id` = ?", userID)
	return err
}
