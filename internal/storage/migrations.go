package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS cards (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL DEFAULT '',
					name TEXT NOT NULL,
					last_four TEXT NOT NULL DEFAULT '',
					brand TEXT NOT NULL DEFAULT 'other',
					due_day INTEGER NOT NULL CHECK (due_day BETWEEN 1 AND 31),
					version INTEGER NOT NULL DEFAULT 0,
					last_closed_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				// Amounts are stored as exact decimal strings, never REAL.
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL DEFAULT '',
					card_id TEXT NOT NULL DEFAULT '',
					category_id INTEGER NOT NULL DEFAULT 0,
					statement_id TEXT NOT NULL DEFAULT '',
					establishment TEXT NOT NULL DEFAULT '',
					kind TEXT NOT NULL,
					amount TEXT NOT NULL,
					date DATETIME NOT NULL,
					hash TEXT UNIQUE NOT NULL,
					included_in_statement INTEGER NOT NULL DEFAULT 0,
					is_installment INTEGER NOT NULL DEFAULT 0,
					installment_group_id TEXT NOT NULL DEFAULT '',
					installment_number INTEGER NOT NULL DEFAULT 0,
					total_installments INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_card ON transactions(card_id)`,
				`CREATE INDEX idx_transactions_statement ON transactions(statement_id)`,
				`CREATE INDEX idx_transactions_group ON transactions(installment_group_id)`,

				`CREATE TABLE IF NOT EXISTS statements (
					id TEXT PRIMARY KEY,
					card_id TEXT NOT NULL REFERENCES cards(id),
					owner_id TEXT NOT NULL DEFAULT '',
					total_amount TEXT NOT NULL,
					transaction_count INTEGER NOT NULL,
					cycle_end DATETIME NOT NULL,
					closed_at DATETIME NOT NULL,
					description TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX idx_statements_card ON statements(card_id)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					is_active BOOLEAN DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add recurring bills",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS recurring_bills (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL DEFAULT '',
					name TEXT NOT NULL,
					amount TEXT NOT NULL,
					due_day INTEGER NOT NULL CHECK (due_day BETWEEN 1 AND 31),
					card_id TEXT NOT NULL DEFAULT '',
					category_id INTEGER NOT NULL DEFAULT 0,
					active BOOLEAN DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)
			`)
			return err
		},
	},
	{
		Version:     3,
		Description: "Link superseded purchases to their installment group",
		Up: func(tx *sql.Tx) error {
			// Replaces the old same-day heuristic for detecting purchases
			// converted into installment plans with an explicit reference.
			queries := []string{
				`ALTER TABLE transactions ADD COLUMN superseded_by_group_id TEXT NOT NULL DEFAULT ''`,
				`CREATE INDEX idx_transactions_superseded ON transactions(superseded_by_group_id)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Add idempotency keys to statements",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE statements ADD COLUMN idempotency_key TEXT NOT NULL DEFAULT ''`,
				`CREATE UNIQUE INDEX idx_statements_idempotency_key
					ON statements(idempotency_key) WHERE idempotency_key <> ''`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
