package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pmoura/fatura/internal/model"
	"github.com/pmoura/fatura/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Tx, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTx{tx: tx, storage: s}, nil
}

// sqliteTx wraps sql.Tx to implement service.Tx.
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// Card methods delegate to the main storage with the transaction.
func (t *sqliteTx) CreateCard(ctx context.Context, card *model.Card) error {
	if err := validateCard(card); err != nil {
		return err
	}
	return t.storage.createCardTx(ctx, t.tx, card)
}

func (t *sqliteTx) GetCard(ctx context.Context, id string) (*model.Card, error) {
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getCardTx(ctx, t.tx, id)
}

func (t *sqliteTx) ListCards(ctx context.Context) ([]model.Card, error) {
	return t.storage.listCardsTx(ctx, t.tx)
}

func (t *sqliteTx) UpdateCard(ctx context.Context, card *model.Card) error {
	if err := validateCard(card); err != nil {
		return err
	}
	return t.storage.updateCardTx(ctx, t.tx, card)
}

func (t *sqliteTx) DeleteCard(ctx context.Context, id string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.deleteCardTx(ctx, t.tx, id)
}

func (t *sqliteTx) MarkCardClosed(ctx context.Context, cardID string, version int64, closedAt time.Time) error {
	if err := validateString(cardID, "cardID"); err != nil {
		return err
	}
	return t.storage.markCardClosedTx(ctx, t.tx, cardID, version, closedAt)
}

func (t *sqliteTx) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateTransactions(transactions); err != nil {
		return err
	}
	return t.storage.saveTransactionsTx(ctx, t.tx, transactions)
}

func (t *sqliteTx) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return t.storage.insertTransactionTx(ctx, t.tx, txn)
}

func (t *sqliteTx) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getTransactionByIDTx(ctx, t.tx, id)
}

func (t *sqliteTx) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	return t.storage.getTransactionsTx(ctx, t.tx, filter)
}

func (t *sqliteTx) GetCardExpenses(ctx context.Context, cardID string) ([]model.Transaction, error) {
	if err := validateString(cardID, "cardID"); err != nil {
		return nil, err
	}
	return t.storage.getCardExpensesTx(ctx, t.tx, cardID)
}

func (t *sqliteTx) MarkTransactionsInStatement(ctx context.Context, ids []string, statementID string) error {
	if err := validateString(statementID, "statementID"); err != nil {
		return err
	}
	return t.storage.markTransactionsInStatementTx(ctx, t.tx, ids, statementID)
}

func (t *sqliteTx) MarkTransactionSuperseded(ctx context.Context, id, groupID string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(groupID, "groupID"); err != nil {
		return err
	}
	return t.storage.markTransactionSupersededTx(ctx, t.tx, id, groupID)
}

func (t *sqliteTx) CreateStatement(ctx context.Context, statement *model.Statement) error {
	if err := validateStatement(statement); err != nil {
		return err
	}
	return t.storage.createStatementTx(ctx, t.tx, statement)
}

func (t *sqliteTx) GetStatement(ctx context.Context, id string) (*model.Statement, error) {
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getStatementTx(ctx, t.tx, id)
}

func (t *sqliteTx) GetStatementByIdempotencyKey(ctx context.Context, key string) (*model.Statement, error) {
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}
	return t.storage.getStatementByIdempotencyKeyTx(ctx, t.tx, key)
}

func (t *sqliteTx) ListStatements(ctx context.Context, cardID string) ([]model.Statement, error) {
	if err := validateString(cardID, "cardID"); err != nil {
		return nil, err
	}
	return t.storage.listStatementsTx(ctx, t.tx, cardID)
}

func (t *sqliteTx) GetCategories(ctx context.Context) ([]model.Category, error) {
	return t.storage.getCategoriesTx(ctx, t.tx)
}

func (t *sqliteTx) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return t.storage.getCategoryByNameTx(ctx, t.tx, name)
}

func (t *sqliteTx) CreateCategory(ctx context.Context, name, description string) (*model.Category, error) {
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return t.storage.createCategoryTx(ctx, t.tx, name, description)
}

func (t *sqliteTx) DeleteCategory(ctx context.Context, id int) error {
	return t.storage.deleteCategoryTx(ctx, t.tx, id)
}

func (t *sqliteTx) CreateRecurringBill(ctx context.Context, bill *model.RecurringBill) error {
	if err := validateRecurringBill(bill); err != nil {
		return err
	}
	return t.storage.createRecurringBillTx(ctx, t.tx, bill)
}

func (t *sqliteTx) ListRecurringBills(ctx context.Context) ([]model.RecurringBill, error) {
	return t.storage.listRecurringBillsTx(ctx, t.tx)
}

func (t *sqliteTx) DeleteRecurringBill(ctx context.Context, id string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.deleteRecurringBillTx(ctx, t.tx, id)
}

func (t *sqliteTx) GetCategorySummary(ctx context.Context, start, end time.Time) (map[string]service.CategorySummary, error) {
	return t.storage.getCategorySummaryTx(ctx, t.tx, start, end)
}

func (t *sqliteTx) GetEarliestTransactionDate(ctx context.Context) (time.Time, error) {
	return t.storage.getEarliestTransactionDateTx(ctx, t.tx)
}

func (t *sqliteTx) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTx) BeginTx(_ context.Context) (service.Tx, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTx) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
