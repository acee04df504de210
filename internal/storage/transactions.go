package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pmoura/fatura/internal/common"
	"github.com/pmoura/fatura/internal/model"
	"github.com/pmoura/fatura/internal/service"
)

const transactionColumns = `id, owner_id, card_id, category_id, statement_id, establishment,
	kind, amount, date, hash, included_in_statement, is_installment,
	installment_group_id, installment_number, total_installments,
	superseded_by_group_id, created_at`

// SaveTransactions saves multiple transactions to the database. Rows whose
// content hash already exists are skipped, which makes re-importing the same
// OFX file harmless.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveTransactionsTx(ctx, tx, transactions); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveTransactionsTx(ctx context.Context, q queryable, transactions []model.Transaction) error {
	for _, txn := range transactions {
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}

		_, err := q.ExecContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				id, owner_id, card_id, category_id, statement_id, establishment,
				kind, amount, date, hash, included_in_statement, is_installment,
				installment_group_id, installment_number, total_installments,
				superseded_by_group_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			txn.ID,
			txn.OwnerID,
			txn.CardID,
			txn.CategoryID,
			txn.StatementID,
			txn.Establishment,
			string(txn.Kind),
			txn.Amount.String(),
			txn.Date,
			txn.Hash,
			txn.IncludedInStatement,
			txn.IsInstallment,
			txn.InstallmentGroupID,
			txn.InstallmentNumber,
			txn.TotalInstallments,
			txn.SupersededByGroupID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}
	return nil
}

// InsertTransaction inserts exactly one transaction. Unlike SaveTransactions
// it never deduplicates: a hash or ID collision is ErrDuplicateEntry, so a
// write the caller depends on cannot disappear into the unique index.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return s.insertTransactionTx(ctx, s.db, txn)
}

func (s *SQLiteStorage) insertTransactionTx(ctx context.Context, q queryable, txn *model.Transaction) error {
	if txn.Hash == "" {
		txn.Hash = txn.GenerateHash()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions (
			id, owner_id, card_id, category_id, statement_id, establishment,
			kind, amount, date, hash, included_in_statement, is_installment,
			installment_group_id, installment_number, total_installments,
			superseded_by_group_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ID,
		txn.OwnerID,
		txn.CardID,
		txn.CategoryID,
		txn.StatementID,
		txn.Establishment,
		string(txn.Kind),
		txn.Amount.String(),
		txn.Date,
		txn.Hash,
		txn.IncludedInStatement,
		txn.IsInstallment,
		txn.InstallmentGroupID,
		txn.InstallmentNumber,
		txn.TotalInstallments,
		txn.SupersededByGroupID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transaction %s", common.ErrDuplicateEntry, txn.ID)
		}
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}
	return nil
}

// GetTransactionByID retrieves a single transaction by ID.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransactionByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getTransactionByIDTx(ctx context.Context, q queryable, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ?
	`, id)

	txn, err := scanTransactionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactions retrieves transactions matching the filter, newest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransactionsTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) getTransactionsTx(ctx context.Context, q queryable, filter service.TransactionFilter) ([]model.Transaction, error) {
	var conditions []string
	var args []any

	if filter.CardID != "" {
		conditions = append(conditions, "card_id = ?")
		args = append(args, filter.CardID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.StartDate != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, *filter.EndDate)
	}
	if !filter.IncludeSettled {
		conditions = append(conditions, "included_in_statement = 0")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetCardExpenses returns every expense transaction on the card, settled or
// not. The billing filter decides cycle eligibility so previews and closes
// share identical selection semantics.
func (s *SQLiteStorage) GetCardExpenses(ctx context.Context, cardID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(cardID, "cardID"); err != nil {
		return nil, err
	}
	return s.getCardExpensesTx(ctx, s.db, cardID)
}

func (s *SQLiteStorage) getCardExpensesTx(ctx context.Context, q queryable, cardID string) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE card_id = ? AND kind = ?
		ORDER BY date ASC
	`, cardID, string(model.KindExpense))
	if err != nil {
		return nil, fmt.Errorf("failed to query card expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// MarkTransactionsInStatement folds the given transactions into a statement.
// Every update is guarded on included_in_statement = 0: if any row was
// already folded, a concurrent close got there first and the caller's
// transaction must roll back.
func (s *SQLiteStorage) MarkTransactionsInStatement(ctx context.Context, ids []string, statementID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(statementID, "statementID"); err != nil {
		return err
	}
	return s.markTransactionsInStatementTx(ctx, s.db, ids, statementID)
}

func (s *SQLiteStorage) markTransactionsInStatementTx(ctx context.Context, q queryable, ids []string, statementID string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids", ErrEmptySlice)
	}

	for _, id := range ids {
		result, err := q.ExecContext(ctx, `
			UPDATE transactions
			SET included_in_statement = 1, statement_id = ?
			WHERE id = ? AND included_in_statement = 0
		`, statementID, id)
		if err != nil {
			return fmt.Errorf("failed to fold transaction %s: %w", id, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: transaction %s already folded", common.ErrConcurrentClose, id)
		}
	}
	return nil
}

// MarkTransactionSuperseded links an original purchase to the installment
// group that replaced it, removing it from all future cycle computations.
func (s *SQLiteStorage) MarkTransactionSuperseded(ctx context.Context, id, groupID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(groupID, "groupID"); err != nil {
		return err
	}
	return s.markTransactionSupersededTx(ctx, s.db, id, groupID)
}

func (s *SQLiteStorage) markTransactionSupersededTx(ctx context.Context, q queryable, id, groupID string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET superseded_by_group_id = ?
		WHERE id = ? AND superseded_by_group_id = '' AND included_in_statement = 0
	`, groupID, id)
	if err != nil {
		return fmt.Errorf("failed to mark transaction superseded: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s cannot be superseded", common.ErrNotFound, id)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransactionRow(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var kind, amount string

	err := row.Scan(
		&txn.ID,
		&txn.OwnerID,
		&txn.CardID,
		&txn.CategoryID,
		&txn.StatementID,
		&txn.Establishment,
		&kind,
		&amount,
		&txn.Date,
		&txn.Hash,
		&txn.IncludedInStatement,
		&txn.IsInstallment,
		&txn.InstallmentGroupID,
		&txn.InstallmentNumber,
		&txn.TotalInstallments,
		&txn.SupersededByGroupID,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Kind = model.TransactionKind(kind)
	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	return &txn, nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransactionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

// GetEarliestTransactionDate returns the date of the earliest transaction.
func (s *SQLiteStorage) GetEarliestTransactionDate(ctx context.Context) (time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return time.Time{}, err
	}
	return s.getEarliestTransactionDateTx(ctx, s.db)
}

func (s *SQLiteStorage) getEarliestTransactionDateTx(ctx context.Context, q queryable) (time.Time, error) {
	var date sql.NullTime
	err := q.QueryRowContext(ctx, `SELECT MIN(date) FROM transactions`).Scan(&date)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get earliest transaction date: %w", err)
	}
	if !date.Valid {
		return time.Time{}, common.ErrNotFound
	}
	return date.Time, nil
}
