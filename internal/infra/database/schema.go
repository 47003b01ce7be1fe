package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements create the tables the bot needs. Every statement is
// idempotent so EnsureSchema runs on each start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS subscribers (
		id            BIGSERIAL PRIMARY KEY,
		telegram_id   BIGINT NOT NULL,
		first_name    VARCHAR(255) NOT NULL DEFAULT '',
		city          VARCHAR(255) NOT NULL,
		country       VARCHAR(255) NOT NULL,
		ramadan_start DATE,
		eid_date      DATE,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT subscribers_telegram_id_key UNIQUE (telegram_id),
		CONSTRAINT subscribers_anchor_order CHECK (eid_date IS NULL OR ramadan_start IS NULL OR eid_date > ramadan_start)
	)`,
	`CREATE INDEX IF NOT EXISTS subscribers_active_idx ON subscribers (is_active)`,
	`CREATE TABLE IF NOT EXISTS notification_cycles (
		id            BIGSERIAL PRIMARY KEY,
		subscriber_id BIGINT NOT NULL REFERENCES subscribers (id) ON DELETE CASCADE,
		cycle_date    DATE NOT NULL,
		boundary_at   TIMESTAMPTZ NOT NULL,
		fired_at      TIMESTAMPTZ NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT notification_cycles_subscriber_boundary_key UNIQUE (subscriber_id, boundary_at)
	)`,
	`CREATE INDEX IF NOT EXISTS notification_cycles_date_idx ON notification_cycles (cycle_date)`,
}

// EnsureSchema creates missing tables and indexes in a single transaction.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	txn, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	for _, stmt := range schemaStatements {
		if _, err := txn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}
