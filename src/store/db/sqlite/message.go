package sqlite

import (
	"context"

	"github.com/orchestra-mcp/relay/src/store"
)

func (d *DB) CreateMessage(ctx context.Context, create *store.CreateMessage) (*store.Message, error) {
	stmt := `INSERT INTO chat_message (user_id, role, content)
	         VALUES (?, ?, ?)
	         RETURNING id, created_ts`
	m := &store.Message{
		UserID:  create.UserID,
		Role:    create.Role,
		Content: create.Content,
	}
	if err := d.db.QueryRowContext(ctx, stmt, create.UserID, create.Role, create.Content).
		Scan(&m.ID, &m.CreatedTs); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	query := `SELECT id, user_id, role, content, created_ts
	          FROM chat_message WHERE user_id = ? ORDER BY id ASC`
	args := []any{find.UserID}
	if find.Limit > 0 {
		query = `SELECT id, user_id, role, content, created_ts FROM (
		           SELECT id, user_id, role, content, created_ts
		           FROM chat_message WHERE user_id = ? ORDER BY id DESC LIMIT ?
		         ) ORDER BY id ASC`
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
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.CreatedTs); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (d *DB) DeleteMessages(ctx context.Context, userID int64) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM chat_message WHERE user_id = ?`, userID)
	return err
}
