package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		email VARCHAR(255) NOT NULL,
		username VARCHAR(100) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		refresh_token TEXT NULL,
		reset_token_hash CHAR(64) NULL,
		reset_expires_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_users_email (email),
		UNIQUE KEY uq_users_username (username),
		KEY idx_users_reset_token_hash (reset_token_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS todos (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		title VARCHAR(100) NOT NULL,
		description VARCHAR(200) NOT NULL,
		priority VARCHAR(16) NOT NULL DEFAULT 'medium',
		status VARCHAR(16) NOT NULL DEFAULT 'todo',
		deadline DATETIME(6) NULL,
		completed_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY idx_todos_user_created (user_id, created_at),
		CONSTRAINT fk_todos_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL,
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		refresh_token TEXT,
		reset_token_hash CHAR(64),
		reset_expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_users_email UNIQUE (email),
		CONSTRAINT uq_users_username UNIQUE (username)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_reset_token_hash ON users (reset_token_hash)`,
	`CREATE TABLE IF NOT EXISTS todos (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		title VARCHAR(100) NOT NULL,
		description VARCHAR(200) NOT NULL,
		priority TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'todo',
		deadline TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_user_created ON todos (user_id, created_at DESC)`,
}

// EnsureSchema creates the users and todos tables if they do not exist.
// Statements run one at a time since the MySQL driver rejects multi-statement
// Exec by default.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	var stmts []string
	switch db.DriverName() {
	case "mysql":
		stmts = mysqlSchema
	case "postgres":
		stmts = postgresSchema
	default:
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
