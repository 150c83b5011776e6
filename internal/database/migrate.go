package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id              TEXT PRIMARY KEY,
		account_number  TEXT NOT NULL UNIQUE,
		holder_name     TEXT NOT NULL,
		balance         BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		status          TEXT NOT NULL CHECK (status IN ('ACTIVE', 'INACTIVE')),
		transaction_ids TEXT[] NOT NULL DEFAULT '{}',
		version         INTEGER NOT NULL DEFAULT 1,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS account_transactions (
		seq                        BIGSERIAL,
		id                         TEXT PRIMARY KEY,
		account_id                 TEXT NOT NULL,
		type                       TEXT NOT NULL CHECK (type IN ('DEPOSIT', 'WITHDRAW', 'TRANSFER')),
		amount                     BIGINT NOT NULL CHECK (amount > 0),
		note                       TEXT NOT NULL DEFAULT '',
		source_account_number      TEXT,
		destination_account_number TEXT,
		created_at                 TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_account_transactions_account
		ON account_transactions (account_id, created_at, seq)`,
}

// Migrate creates the ledger tables inside one transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}
