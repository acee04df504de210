package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind distinguishes money coming in from money going out.
type TransactionKind string

// Transaction kinds.
const (
	KindIncome  TransactionKind = "income"
	KindExpense TransactionKind = "expense"
)

// Transaction represents a single ledger entry. CardID is empty for cash
// transactions. Amounts are exact decimals; float64 is never used for money.
type Transaction struct {
	Date      time.Time
	CreatedAt time.Time
	Amount    decimal.Decimal

	ID            string
	OwnerID       string
	CardID        string
	StatementID   string
	Establishment string
	Hash          string
	Kind          TransactionKind

	// Installment markers. A purchase split into N payments produces N sibling
	// transactions sharing InstallmentGroupID, numbered 1..TotalInstallments.
	InstallmentGroupID string
	InstallmentNumber  int
	TotalInstallments  int
	IsInstallment      bool

	// SupersededByGroupID links an original purchase to the installment group
	// that replaced it. A superseded transaction never enters a billing cycle.
	SupersededByGroupID string

	CategoryID int

	// IncludedInStatement flips to true exactly once, when a statement close
	// folds this transaction. It is never reset.
	IncludedInStatement bool
}

// GenerateHash creates a content hash for duplicate detection on import.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.Establishment,
		t.CardID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ValidateInstallment checks the installment invariants: a transaction marked
// as an installment must carry its group id and a number within 1..total.
func (t *Transaction) ValidateInstallment() error {
	if !t.IsInstallment {
		return nil
	}
	if t.InstallmentGroupID == "" {
		return fmt.Errorf("installment transaction %s has no group id", t.ID)
	}
	if t.InstallmentNumber < 1 || t.InstallmentNumber > t.TotalInstallments {
		return fmt.Errorf("installment transaction %s has number %d outside 1..%d",
			t.ID, t.InstallmentNumber, t.TotalInstallments)
	}
	return nil
}
