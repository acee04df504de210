package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pmoura/fatura/internal/common"
	"github.com/pmoura/fatura/internal/model"
)

func TestSQLiteStorage_RecurringBillLifecycle(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	bill := &model.RecurringBill{
		ID:      "bill-1",
		OwnerID: "owner-1",
		Name:    "Streaming",
		Amount:  decimal.RequireFromString("49.90"),
		DueDay:  5,
	}
	if err := store.CreateRecurringBill(ctx, bill); err != nil {
		t.Fatalf("Failed to create recurring bill: %v", err)
	}

	later := &model.RecurringBill{
		ID:     "bill-2",
		Name:   "Gym",
		Amount: decimal.RequireFromString("120.00"),
		DueDay: 2,
	}
	if err := store.CreateRecurringBill(ctx, later); err != nil {
		t.Fatalf("Failed to create second bill: %v", err)
	}

	bills, err := store.ListRecurringBills(ctx)
	if err != nil {
		t.Fatalf("Failed to list recurring bills: %v", err)
	}
	if len(bills) != 2 {
		t.Fatalf("Expected 2 bills, got %d", len(bills))
	}
	// Ordered by due day
	if bills[0].ID != "bill-2" {
		t.Errorf("Expected bill-2 first (due day 2), got %s", bills[0].ID)
	}
	if !bills[1].Amount.Equal(decimal.RequireFromString("49.90")) {
		t.Errorf("Amount did not round-trip: %s", bills[1].Amount)
	}

	if err := store.DeleteRecurringBill(ctx, "bill-1"); err != nil {
		t.Fatalf("Failed to delete recurring bill: %v", err)
	}
	bills, err = store.ListRecurringBills(ctx)
	if err != nil {
		t.Fatalf("Failed to list after delete: %v", err)
	}
	if len(bills) != 1 || bills[0].ID != "bill-2" {
		t.Errorf("Expected only bill-2 to remain, got %v", bills)
	}

	if err := store.DeleteRecurringBill(ctx, "bill-1"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestRecurringBill_Materialize(t *testing.T) {
	bill := model.RecurringBill{
		OwnerID: "owner-1",
		Name:    "Rent",
		Amount:  decimal.RequireFromString("1800.00"),
		DueDay:  31,
	}

	tests := []struct {
		name string
		ref  time.Time
		want time.Time
	}{
		{
			name: "full-length month keeps the due day",
			ref:  time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "leap february clamps to 29",
			ref:  time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "april clamps to 30",
			ref:  time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := bill.Materialize(tt.ref)
			if !txn.Date.Equal(tt.want) {
				t.Errorf("Expected date %v, got %v", tt.want, txn.Date)
			}
			if txn.Kind != model.KindExpense {
				t.Errorf("Expected expense, got %s", txn.Kind)
			}
			if !txn.Amount.Equal(bill.Amount) {
				t.Errorf("Expected amount %s, got %s", bill.Amount, txn.Amount)
			}
			if txn.Establishment != "Rent" {
				t.Errorf("Expected establishment Rent, got %s", txn.Establishment)
			}
		})
	}
}
