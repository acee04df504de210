package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pmoura/fatura/internal/common"
	"github.com/pmoura/fatura/internal/model"
	"github.com/pmoura/fatura/internal/service"
)

func TestTransaction_GenerateHash(t *testing.T) {
	base := model.Transaction{
		ID:            "txn1",
		Date:          time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Establishment: "STARBUCKS",
		CardID:        "card-1",
		Amount:        decimal.RequireFromString("5.25"),
		Kind:          model.KindExpense,
	}

	tests := []struct {
		mutate   func(*model.Transaction)
		name     string
		wantSame bool
	}{
		{
			name:     "identical transactions have same hash",
			mutate:   func(_ *model.Transaction) {},
			wantSame: true,
		},
		{
			name:     "different time of day has same hash",
			mutate:   func(txn *model.Transaction) { txn.Date = txn.Date.Add(5 * time.Hour) },
			wantSame: true,
		},
		{
			name:     "different amounts produce different hashes",
			mutate:   func(txn *model.Transaction) { txn.Amount = decimal.RequireFromString("6.25") },
			wantSame: false,
		},
		{
			name:     "different dates produce different hashes",
			mutate:   func(txn *model.Transaction) { txn.Date = txn.Date.AddDate(0, 0, 1) },
			wantSame: false,
		},
		{
			name:     "different establishments produce different hashes",
			mutate:   func(txn *model.Transaction) { txn.Establishment = "COFFEE SHOP" },
			wantSame: false,
		},
		{
			name:     "different cards produce different hashes",
			mutate:   func(txn *model.Transaction) { txn.CardID = "card-2" },
			wantSame: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.mutate(&other)

			hash1 := base.GenerateHash()
			hash2 := other.GenerateHash()
			if (hash1 == hash2) != tt.wantSame {
				t.Errorf("Hash comparison failed: hash1=%s, hash2=%s, wantSame=%v",
					hash1, hash2, tt.wantSame)
			}

			// Verify hash is consistent
			if hash1 != base.GenerateHash() {
				t.Error("Hash generation is not consistent")
			}
		})
	}
}

func TestSQLiteStorage_SaveTransactionsDeduplication(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	card := createTestCard(t, store, "card-1", 10)

	txn := createTestExpense("txn-1", card.ID, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "50.00")
	if err := store.SaveTransactions(ctx, []model.Transaction{txn}); err != nil {
		t.Fatalf("Failed to save transaction: %v", err)
	}

	// Same content under a new ID is silently skipped by the hash index.
	dup := txn
	dup.ID = "txn-1-reimport"
	if err := store.SaveTransactions(ctx, []model.Transaction{dup}); err != nil {
		t.Fatalf("Failed to save duplicate: %v", err)
	}

	got, err := store.GetTransactions(ctx, serviceFilterAll())
	if err != nil {
		t.Fatalf("Failed to get transactions: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 transaction after duplicate import, got %d", len(got))
	}
}

func TestSQLiteStorage_InsertTransactionStrict(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	card := createTestCard(t, store, "card-1", 10)

	txn := createTestExpense("txn-1", card.ID, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "50.00")
	if err := store.InsertTransaction(ctx, &txn); err != nil {
		t.Fatalf("Failed to insert transaction: %v", err)
	}

	// Same content under a new ID: the strict path reports the collision
	// instead of skipping the row the way SaveTransactions does.
	dup := txn
	dup.ID = "txn-1-copy"
	if err := store.InsertTransaction(ctx, &dup); !errors.Is(err, common.ErrDuplicateEntry) {
		t.Errorf("Expected ErrDuplicateEntry for colliding hash, got %v", err)
	}

	got, err := store.GetTransactions(ctx, serviceFilterAll())
	if err != nil {
		t.Fatalf("Failed to get transactions: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 transaction after rejected duplicate, got %d", len(got))
	}
}

func TestSQLiteStorage_SaveTransactionsValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		txns []model.Transaction
	}{
		{name: "nil slice", txns: nil},
		{name: "empty slice", txns: []model.Transaction{}},
		{
			name: "missing id",
			txns: []model.Transaction{{Date: date, Kind: model.KindExpense}},
		},
		{
			name: "missing date",
			txns: []model.Transaction{{ID: "t1", Kind: model.KindExpense}},
		},
		{
			name: "unknown kind",
			txns: []model.Transaction{{ID: "t1", Date: date, Kind: "transfer"}},
		},
		{
			name: "installment without group",
			txns: []model.Transaction{{
				ID: "t1", Date: date, Kind: model.KindExpense,
				IsInstallment: true, InstallmentNumber: 1, TotalInstallments: 3,
			}},
		},
		{
			name: "installment number out of range",
			txns: []model.Transaction{{
				ID: "t1", Date: date, Kind: model.KindExpense,
				IsInstallment: true, InstallmentGroupID: "g1",
				InstallmentNumber: 4, TotalInstallments: 3,
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.SaveTransactions(ctx, tt.txns); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestSQLiteStorage_GetTransactionsFilter(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	card := createTestCard(t, store, "card-1", 10)
	other := createTestCard(t, store, "card-2", 20)

	txns := []model.Transaction{
		createTestExpense("txn-1", card.ID, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "10.00"),
		createTestExpense("txn-2", card.ID, time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC), "20.00"),
		createTestExpense("txn-3", other.ID, time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC), "30.00"),
	}
	income := createTestExpense("txn-4", "", time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC), "500.00")
	income.Kind = model.KindIncome
	income.Hash = income.GenerateHash()
	txns = append(txns, income)

	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}

	byCard, err := store.GetTransactions(ctx, service.TransactionFilter{CardID: card.ID})
	if err != nil {
		t.Fatalf("Failed to filter by card: %v", err)
	}
	if len(byCard) != 2 {
		t.Errorf("Expected 2 transactions for card, got %d", len(byCard))
	}

	byKind, err := store.GetTransactions(ctx, service.TransactionFilter{Kind: model.KindIncome})
	if err != nil {
		t.Fatalf("Failed to filter by kind: %v", err)
	}
	if len(byKind) != 1 || byKind[0].ID != "txn-4" {
		t.Errorf("Expected only the income transaction, got %v", byKind)
	}

	start := time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)
	byDate, err := store.GetTransactions(ctx, service.TransactionFilter{StartDate: &start, EndDate: &end})
	if err != nil {
		t.Fatalf("Failed to filter by date: %v", err)
	}
	if len(byDate) != 2 {
		t.Errorf("Expected 2 transactions in range, got %d", len(byDate))
	}

	limited, err := store.GetTransactions(ctx, service.TransactionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("Failed to limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected limit of 2, got %d", len(limited))
	}
	// Newest first
	if limited[0].ID != "txn-4" {
		t.Errorf("Expected newest transaction first, got %s", limited[0].ID)
	}
}

func TestSQLiteStorage_GetCardExpensesIncludesSettled(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	card := createTestCard(t, store, "card-1", 10)

	txns := []model.Transaction{
		createTestExpense("txn-1", card.ID, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "10.00"),
		createTestExpense("txn-2", card.ID, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), "20.00"),
	}
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}

	statement := testStatement("stmt-1", card.ID, "10.00", 1)
	if err := store.CreateStatement(ctx, statement); err != nil {
		t.Fatalf("Failed to create statement: %v", err)
	}
	if err := store.MarkTransactionsInStatement(ctx, []string{"txn-1"}, statement.ID); err != nil {
		t.Fatalf("Failed to fold transaction: %v", err)
	}

	expenses, err := store.GetCardExpenses(ctx, card.ID)
	if err != nil {
		t.Fatalf("Failed to get card expenses: %v", err)
	}
	if len(expenses) != 2 {
		t.Errorf("Expected settled rows included, got %d of 2", len(expenses))
	}
}

func TestSQLiteStorage_MarkTransactionsInStatementGuard(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	card := createTestCard(t, store, "card-1", 10)

	txn := createTestExpense("txn-1", card.ID, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "10.00")
	if err := store.SaveTransactions(ctx, []model.Transaction{txn}); err != nil {
		t.Fatalf("Failed to save transaction: %v", err)
	}
	if err := store.CreateStatement(ctx, testStatement("stmt-1", card.ID, "10.00", 1)); err != nil {
		t.Fatalf("Failed to create statement: %v", err)
	}
	if err := store.MarkTransactionsInStatement(ctx, []string{"txn-1"}, "stmt-1"); err != nil {
		t.Fatalf("Failed to fold transaction: %v", err)
	}

	// Folding an already-folded row means a concurrent close raced us.
	err := store.MarkTransactionsInStatement(ctx, []string{"txn-1"}, "stmt-2")
	if !errors.Is(err, common.ErrConcurrentClose) {
		t.Errorf("Expected ErrConcurrentClose, got %v", err)
	}

	got, err := store.GetTransactionByID(ctx, "txn-1")
	if err != nil {
		t.Fatalf("Failed to get transaction: %v", err)
	}
	if got.StatementID != "stmt-1" {
		t.Errorf("Statement assignment must not change, got %s", got.StatementID)
	}
}

func TestSQLiteStorage_MarkTransactionSuperseded(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	card := createTestCard(t, store, "card-1", 10)

	txn := createTestExpense("txn-1", card.ID, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "90.00")
	if err := store.SaveTransactions(ctx, []model.Transaction{txn}); err != nil {
		t.Fatalf("Failed to save transaction: %v", err)
	}

	if err := store.MarkTransactionSuperseded(ctx, "txn-1", "group-1"); err != nil {
		t.Fatalf("Failed to mark superseded: %v", err)
	}

	got, err := store.GetTransactionByID(ctx, "txn-1")
	if err != nil {
		t.Fatalf("Failed to get transaction: %v", err)
	}
	if got.SupersededByGroupID != "group-1" {
		t.Errorf("Expected superseded by group-1, got %q", got.SupersededByGroupID)
	}

	// Superseding twice, or superseding a settled row, is a conflict.
	err = store.MarkTransactionSuperseded(ctx, "txn-1", "group-2")
	if !errors.Is(err, common.ErrConcurrentClose) {
		t.Errorf("Expected ErrConcurrentClose on double supersede, got %v", err)
	}
}

func TestSQLiteStorage_GetEarliestTransactionDate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := store.GetEarliestTransactionDate(ctx); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on empty ledger, got %v", err)
	}

	card := createTestCard(t, store, "card-1", 10)
	txns := []model.Transaction{
		createTestExpense("txn-1", card.ID, time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC), "10.00"),
		createTestExpense("txn-2", card.ID, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), "20.00"),
	}
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}

	earliest, err := store.GetEarliestTransactionDate(ctx)
	if err != nil {
		t.Fatalf("Failed to get earliest date: %v", err)
	}
	if earliest.Year() != 2024 || earliest.Month() != 3 || earliest.Day() != 2 {
		t.Errorf("Expected 2024-03-02, got %v", earliest)
	}
}
