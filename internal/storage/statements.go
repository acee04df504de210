package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pmoura/fatura/internal/common"
	"github.com/pmoura/fatura/internal/model"
)

const statementColumns = `id, card_id, owner_id, total_amount, transaction_count,
	cycle_end, closed_at, description, idempotency_key`

// CreateStatement inserts a closed statement. Statements are immutable; there
// is no update path.
func (s *SQLiteStorage) CreateStatement(ctx context.Context, statement *model.Statement) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateStatement(statement); err != nil {
		return err
	}
	return s.createStatementTx(ctx, s.db, statement)
}

func (s *SQLiteStorage) createStatementTx(ctx context.Context, q queryable, statement *model.Statement) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO statements (
			id, card_id, owner_id, total_amount, transaction_count,
			cycle_end, closed_at, description, idempotency_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		statement.ID,
		statement.CardID,
		statement.OwnerID,
		statement.TotalAmount.String(),
		statement.TransactionCount,
		statement.CycleEnd,
		statement.ClosedAt,
		statement.Description,
		statement.IdempotencyKey,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: statement %s", common.ErrDuplicateEntry, statement.ID)
		}
		return fmt.Errorf("failed to insert statement: %w", err)
	}
	return nil
}

// GetStatement retrieves a statement by ID.
func (s *SQLiteStorage) GetStatement(ctx context.Context, id string) (*model.Statement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getStatementTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getStatementTx(ctx context.Context, q queryable, id string) (*model.Statement, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+statementColumns+`
		FROM statements
		WHERE id = ?
	`, id)
	return scanStatementRow(row)
}

// GetStatementByIdempotencyKey retrieves the statement a previous close
// created under the given key, or ErrNotFound.
func (s *SQLiteStorage) GetStatementByIdempotencyKey(ctx context.Context, key string) (*model.Statement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}
	return s.getStatementByIdempotencyKeyTx(ctx, s.db, key)
}

func (s *SQLiteStorage) getStatementByIdempotencyKeyTx(ctx context.Context, q queryable, key string) (*model.Statement, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+statementColumns+`
		FROM statements
		WHERE idempotency_key = ?
	`, key)
	return scanStatementRow(row)
}

// ListStatements returns a card's statements, newest first.
func (s *SQLiteStorage) ListStatements(ctx context.Context, cardID string) ([]model.Statement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(cardID, "cardID"); err != nil {
		return nil, err
	}
	return s.listStatementsTx(ctx, s.db, cardID)
}

func (s *SQLiteStorage) listStatementsTx(ctx context.Context, q queryable, cardID string) ([]model.Statement, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+statementColumns+`
		FROM statements
		WHERE card_id = ?
		ORDER BY closed_at DESC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query statements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var statements []model.Statement
	for rows.Next() {
		statement, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		statements = append(statements, *statement)
	}
	return statements, rows.Err()
}

func scanStatementRow(row *sql.Row) (*model.Statement, error) {
	statement, err := scanStatement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statement: %w", err)
	}
	return statement, nil
}

func scanStatement(row rowScanner) (*model.Statement, error) {
	var statement model.Statement
	var total string

	err := row.Scan(
		&statement.ID,
		&statement.CardID,
		&statement.OwnerID,
		&total,
		&statement.TransactionCount,
		&statement.CycleEnd,
		&statement.ClosedAt,
		&statement.Description,
		&statement.IdempotencyKey,
	)
	if err != nil {
		return nil, err
	}

	statement.TotalAmount, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("failed to parse statement total %q: %w", total, err)
	}
	return &statement, nil
}
