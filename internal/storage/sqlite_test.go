package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pmoura/fatura/internal/model"
	"github.com/pmoura/fatura/internal/service"
)

// serviceFilterAll matches every transaction, settled or not.
func serviceFilterAll() service.TransactionFilter {
	return service.TransactionFilter{IncludeSettled: true}
}

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func createTestCard(t *testing.T, store *SQLiteStorage, id string, dueDay int) *model.Card {
	t.Helper()
	card := &model.Card{
		ID:      id,
		OwnerID: "owner-1",
		Name:    "card " + id,
		Brand:   model.BrandVisa,
		DueDay:  dueDay,
	}
	if err := store.CreateCard(context.Background(), card); err != nil {
		t.Fatalf("Failed to create card: %v", err)
	}
	return card
}

func createTestExpense(id, cardID string, date time.Time, amount string) model.Transaction {
	txn := model.Transaction{
		ID:            id,
		OwnerID:       "owner-1",
		CardID:        cardID,
		Establishment: "Shop " + id,
		Kind:          model.KindExpense,
		Amount:        decimal.RequireFromString(amount),
		Date:          date,
	}
	txn.Hash = txn.GenerateHash()
	return txn
}

func TestSQLiteStorage_TxMisuse(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Migrate(ctx); err == nil {
		t.Error("Expected error migrating inside a transaction")
	}
	if _, err := tx.BeginTx(ctx); err == nil {
		t.Error("Expected error nesting transactions")
	}
	if err := tx.Close(); err == nil {
		t.Error("Expected error closing a transaction")
	}
}

func TestSQLiteStorage_TxRollback(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	card := createTestCard(t, store, "card-1", 10)

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}

	txns := []model.Transaction{
		createTestExpense("txn-1", card.ID, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "10.00"),
	}
	if err := tx.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions in tx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Failed to rollback: %v", err)
	}

	got, err := store.GetTransactions(ctx, serviceFilterAll())
	if err != nil {
		t.Fatalf("Failed to get transactions: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected 0 transactions after rollback, got %d", len(got))
	}
}

func TestSQLiteStorage_AmountsRoundTripExactly(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	card := createTestCard(t, store, "card-1", 10)

	amounts := []string{"0.01", "99.99", "1234.56", "0.10"}
	txns := make([]model.Transaction, len(amounts))
	for i, amount := range amounts {
		txns[i] = createTestExpense(
			fmt.Sprintf("txn-%d", i+1), card.ID,
			time.Date(2024, 5, 1+i, 0, 0, 0, 0, time.UTC), amount)
	}
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}

	for i, txn := range txns {
		got, err := store.GetTransactionByID(ctx, txn.ID)
		if err != nil {
			t.Fatalf("Failed to get transaction %s: %v", txn.ID, err)
		}
		want := decimal.RequireFromString(amounts[i])
		if !got.Amount.Equal(want) {
			t.Errorf("Amount %s round-tripped as %s", want, got.Amount)
		}
	}
}
