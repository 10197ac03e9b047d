package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/orchestra-mcp/relay/src/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.CreateUser) (*store.User, error) {
	stmt := `INSERT INTO account (email, full_name, password_hash)
	         VALUES ($1, $2, $3)
	         RETURNING id, created_ts`
	u := &store.User{
		Email:        create.Email,
		FullName:     create.FullName,
		PasswordHash: create.PasswordHash,
	}
	if err := d.pool.QueryRow(ctx, stmt, create.Email, create.FullName, create.PasswordHash).
		Scan(&u.ID, &u.CreatedTs); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

func (d *DB) GetUser(ctx context.Context, find *store.FindUser) (*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Email; v != nil {
		where, args = append(where, "email = "+placeholder(len(args)+1)), append(args, *v)
	}
	query := fmt.Sprintf(
		`SELECT id, email, full_name, password_hash, created_ts
		 FROM account WHERE %s ORDER BY id ASC LIMIT 1`,
		strings.Join(where, " AND "),
	)
	u := &store.User{}
	err := d.pool.QueryRow(ctx, query, args...).
		Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.CreatedTs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
