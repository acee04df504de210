package billing

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pmoura/fatura/internal/common"
	"github.com/pmoura/fatura/internal/model"
	"github.com/pmoura/fatura/internal/service"
)

// consolidatedDueDays is how far after the cycle boundary the consolidated
// ledger entry falls due.
const consolidatedDueDays = 30

// Closer performs the statement close state transition.
type Closer struct {
	storage service.Storage
}

// NewCloser creates a statement closer backed by the given storage.
func NewCloser(storage service.Storage) *Closer {
	return &Closer{storage: storage}
}

// CloseOptions configures a single close attempt.
type CloseOptions struct {
	// IdempotencyKey, when set, makes retries safe: a key that already
	// produced a statement returns that statement instead of closing again.
	IdempotencyKey string
}

// CyclePreview is the read-only view of the open cycle. It is computed with
// the same filter the close uses, so the number a summary shows is the number
// a close would consolidate.
type CyclePreview struct {
	CycleEnd     time.Time
	Total        decimal.Decimal
	Transactions []model.Transaction
	Count        int
}

// Preview resolves the open cycle for a card and reports its pending charges
// without mutating anything.
func (c *Closer) Preview(ctx context.Context, cardID string, now time.Time) (*CyclePreview, error) {
	card, err := c.storage.GetCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to load card: %w", err)
	}

	cycleEnd, err := ResolveCycleEnd(card.DueDay, now)
	if err != nil {
		return nil, err
	}

	candidates, err := c.storage.GetCardExpenses(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to load card expenses: %w", err)
	}

	pending := FilterCycleTransactions(candidates, cardID, cycleEnd)
	total, count := Aggregate(pending)

	return &CyclePreview{
		CycleEnd:     cycleEnd,
		Transactions: pending,
		Total:        total,
		Count:        count,
	}, nil
}

// CloseStatement closes the card's open billing cycle: it folds every pending
// charge into a new statement and inserts one consolidated expense in their
// place. All writes happen in a single storage transaction; a failure at any
// step rolls the whole close back.
//
// Two guards serialize concurrent closes of the same card. Each folded
// transaction is marked with a guarded update that fails if the row was
// already settled, and the card row's version is advanced by compare-and-swap.
// Either guard tripping surfaces ErrConcurrentClose and aborts cleanly.
func (c *Closer) CloseStatement(ctx context.Context, cardID string, now time.Time, opts CloseOptions) (*model.Statement, error) {
	if opts.IdempotencyKey != "" {
		statement, err := c.storage.GetStatementByIdempotencyKey(ctx, opts.IdempotencyKey)
		if err == nil {
			slog.Info("Close already performed for idempotency key",
				"card_id", cardID,
				"statement_id", statement.ID)
			return statement, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	tx, err := c.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin close transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	card, err := tx.GetCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to load card: %w", err)
	}

	cycleEnd, err := ResolveCycleEnd(card.DueDay, now)
	if err != nil {
		return nil, err
	}

	candidates, err := tx.GetCardExpenses(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to load card expenses: %w", err)
	}

	pending := FilterCycleTransactions(candidates, cardID, cycleEnd)
	if len(pending) == 0 {
		return nil, common.ErrNoPendingTransactions
	}
	total, count := Aggregate(pending)

	statement := &model.Statement{
		ID:               uuid.NewString(),
		CardID:           card.ID,
		OwnerID:          card.OwnerID,
		TotalAmount:      total,
		TransactionCount: count,
		CycleEnd:         cycleEnd,
		ClosedAt:         now,
		Description:      fmt.Sprintf("Statement %s", card.Name),
		IdempotencyKey:   opts.IdempotencyKey,
	}
	if err := tx.CreateStatement(ctx, statement); err != nil {
		if opts.IdempotencyKey != "" && errors.Is(err, common.ErrDuplicateEntry) {
			// A close with the same key committed between the pre-check and
			// this insert. Release the transaction and hand back its statement.
			_ = tx.Rollback()
			existing, lookupErr := c.storage.GetStatementByIdempotencyKey(ctx, opts.IdempotencyKey)
			if lookupErr == nil {
				slog.Info("Close already performed for idempotency key",
					"card_id", cardID,
					"statement_id", existing.ID)
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create statement: %w", err)
	}

	ids := make([]string, len(pending))
	for i, txn := range pending {
		ids[i] = txn.ID
	}
	if err := tx.MarkTransactionsInStatement(ctx, ids, statement.ID); err != nil {
		return nil, fmt.Errorf("failed to fold transactions into statement: %w", err)
	}

	consolidated := model.Transaction{
		ID:            uuid.NewString(),
		OwnerID:       card.OwnerID,
		Establishment: fmt.Sprintf("Statement %s (%d transactions)", card.Name, count),
		Kind:          model.KindExpense,
		Amount:        total,
		// No card reference: the consolidated entry must never be picked up
		// by a future cycle on the same card.
		Date: startOfDay(cycleEnd).AddDate(0, 0, consolidatedDueDays),
	}
	consolidated.Hash = consolidatedHash(statement.ID)
	if err := tx.InsertTransaction(ctx, &consolidated); err != nil {
		return nil, fmt.Errorf("failed to insert consolidated transaction: %w", err)
	}

	if err := tx.MarkCardClosed(ctx, card.ID, card.Version, now); err != nil {
		return nil, fmt.Errorf("failed to advance card close marker: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit close: %w", err)
	}
	committed = true

	slog.Info("Closed statement",
		"card", card.Name,
		"statement_id", statement.ID,
		"total", total.StringFixed(2),
		"transactions", count)

	return statement, nil
}

// consolidatedHash derives the consolidated entry's dedup hash from the
// statement it settles rather than from its content. Two cycles of the same
// card can legitimately produce the same total and count, so a content hash
// would collide with the earlier entry.
func consolidatedHash(statementID string) string {
	sum := sha256.Sum256([]byte("statement-consolidated:" + statementID))
	return fmt.Sprintf("%x", sum)
}
