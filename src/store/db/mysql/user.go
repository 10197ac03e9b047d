package mysql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orchestra-mcp/relay/src/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.CreateUser) (*store.User, error) {
	u := &store.User{
		Email:        create.Email,
		FullName:     create.FullName,
		PasswordHash: create.PasswordHash,
		CreatedTs:    time.Now().Unix(),
	}
	res, err := d.db.ExecContext(ctx,
		"INSERT INTO `account` (`email`, `full_name`, `password_hash`, `created_ts`) VALUES (?, ?, ?, ?)",
		u.Email, u.FullName, u.PasswordHash, u.CreatedTs,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return u, nil
}

func (d *DB) GetUser(ctx context.Context, find *store.FindUser) (*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "`id` = ?"), append(args, *v)
	}
	if v := find.Email; v != nil {
		where, args = append(where, "`email` = ?"), append(args, *v)
	}
	query := fmt.Sprintf(
		"SELECT `id`, `email`, `full_name`, `password_hash`, `created_ts` FROM `account` WHERE %s ORDER BY `id` ASC LIMIT 1",
		strings.Join(where, " AND "),
	)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	u := &store.User{}
	if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.CreatedTs); err != nil {
		return nil, err
	}
	return u, rows.Err()
}
