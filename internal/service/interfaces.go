// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pmoura/fatura/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate      *time.Time
	EndDate        *time.Time
	CardID         string
	Kind           model.TransactionKind
	IncludeSettled bool
	Limit          int
	Offset         int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Card operations
	CreateCard(ctx context.Context, card *model.Card) error
	GetCard(ctx context.Context, id string) (*model.Card, error)
	ListCards(ctx context.Context) ([]model.Card, error)
	UpdateCard(ctx context.Context, card *model.Card) error
	DeleteCard(ctx context.Context, id string) error
	// MarkCardClosed records a successful statement close on the card row.
	// The update is a compare-and-swap on version: if the stored version no
	// longer matches, ErrConcurrentClose is returned and nothing changes.
	MarkCardClosed(ctx context.Context, cardID string, version int64, closedAt time.Time) error

	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	// InsertTransaction inserts a single transaction strictly: a content-hash
	// collision returns ErrDuplicateEntry instead of silently skipping the
	// row. SaveTransactions is the dedup path for imports; writes that must
	// not vanish go through here.
	InsertTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	// GetCardExpenses returns every expense transaction referencing the card,
	// settled or not. Cycle eligibility is decided by the billing filter so
	// that previews and closes share one set of selection semantics.
	GetCardExpenses(ctx context.Context, cardID string) ([]model.Transaction, error)
	// MarkTransactionsInStatement folds the given transactions into a
	// statement. Each update is guarded: a transaction that is already part
	// of a statement causes ErrConcurrentClose.
	MarkTransactionsInStatement(ctx context.Context, ids []string, statementID string) error
	MarkTransactionSuperseded(ctx context.Context, id, groupID string) error

	// Statement operations
	CreateStatement(ctx context.Context, statement *model.Statement) error
	GetStatement(ctx context.Context, id string) (*model.Statement, error)
	GetStatementByIdempotencyKey(ctx context.Context, key string) (*model.Statement, error)
	ListStatements(ctx context.Context, cardID string) ([]model.Statement, error)

	// Category operations
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*model.Category, error)
	DeleteCategory(ctx context.Context, id int) error

	// Recurring bill operations
	CreateRecurringBill(ctx context.Context, bill *model.RecurringBill) error
	ListRecurringBills(ctx context.Context) ([]model.RecurringBill, error)
	DeleteRecurringBill(ctx context.Context, id string) error

	// Reporting
	GetCategorySummary(ctx context.Context, start, end time.Time) (map[string]CategorySummary, error)
	GetEarliestTransactionDate(ctx context.Context) (time.Time, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx represents a database transaction. All statement-close writes run inside
// one Tx so they commit or roll back as a unit.
type Tx interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within the transaction
	Storage
}

// CategorySummary contains aggregated statistics for a category.
type CategorySummary struct {
	Amount decimal.Decimal
	Count  int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
