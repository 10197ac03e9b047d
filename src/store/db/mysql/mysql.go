// Package mysql is the store driver for MySQL and MariaDB.
package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/orchestra-mcp/relay/src/store"
)

const errDupEntry = 1062

type DB struct {
	db *sql.DB
}

func NewDB(dsn string) (store.Driver, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn is required")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MultiStatements = false
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return &DB{db: sql.OpenDB(connector)}, nil
}

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS `account` (" +
			"`id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
			"`email` VARCHAR(255) NOT NULL UNIQUE," +
			"`full_name` VARCHAR(255) NOT NULL DEFAULT ''," +
			"`password_hash` VARCHAR(255) NOT NULL," +
			"`created_ts` BIGINT NOT NULL" +
			")",
		"CREATE TABLE IF NOT EXISTS `chat_message` (" +
			"`id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
			"`user_id` BIGINT NOT NULL," +
			"`role` VARCHAR(32) NOT NULL," +
			"`content` MEDIUMTEXT NOT NULL," +
			"`created_ts` BIGINT NOT NULL," +
			"INDEX `idx_chat_message_user` (`user_id`)," +
			"FOREIGN KEY (`user_id`) REFERENCES `account`(`id`) ON DELETE CASCADE" +
			")",
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDupEntry
}
