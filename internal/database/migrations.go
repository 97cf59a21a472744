package database

import (
	"context"
	"fmt"
)

// Tables lists the schema's tables, children before parents.
var Tables = []string{
	"expense_participants",
	"expenses",
	"group_members",
	"chat_messages",
	"transactions",
	"groups",
}

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, db PGXDB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			budget NUMERIC CHECK (budget IS NULL OR budget >= 0),
			currency TEXT NOT NULL DEFAULT 'EUR',
			color TEXT NOT NULL DEFAULT '',
			closed BOOLEAN NOT NULL DEFAULT FALSE,
			position INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS group_members (
			group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			member_id TEXT NOT NULL,
			name TEXT NOT NULL,
			contact_id TEXT NOT NULL DEFAULT '',
			balance NUMERIC NOT NULL DEFAULT 0,
			position INTEGER NOT NULL,
			PRIMARY KEY (group_id, member_id)
		)`,

		`CREATE TABLE IF NOT EXISTS expenses (
			id TEXT PRIMARY KEY,
			group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			description TEXT NOT NULL DEFAULT '',
			amount NUMERIC NOT NULL CHECK (amount > 0),
			payer_id TEXT NOT NULL,
			split_mode TEXT NOT NULL CHECK (split_mode IN ('equal', 'shares', 'percentage')),
			category TEXT NOT NULL DEFAULT 'other',
			position INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS expense_participants (
			expense_id TEXT NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
			member_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			weight NUMERIC,
			share NUMERIC NOT NULL,
			PRIMARY KEY (expense_id, member_id)
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			group_id TEXT NOT NULL,
			from_member_id TEXT NOT NULL,
			to_member_id TEXT NOT NULL,
			amount NUMERIC NOT NULL CHECK (amount > 0),
			kind TEXT NOT NULL CHECK (kind IN ('payment', 'request')),
			status TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'cancelled')),
			description TEXT NOT NULL DEFAULT '',
			position BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			group_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			sender_name TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('text', 'expense', 'system')),
			related_expense_id TEXT,
			position BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_expenses_group_id ON expenses(group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_group_id ON transactions(group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_from_member ON transactions(from_member_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_to_member ON transactions(to_member_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_group_id ON chat_messages(group_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
