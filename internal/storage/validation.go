// Package storage provides the data persistence layer for the fatura application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pmoura/fatura/internal/common"
	"github.com/pmoura/fatura/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrEmptySlice       = errors.New("slice cannot be empty")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidCard      = errors.New("invalid card")
	ErrInvalidTxn       = errors.New("invalid transaction")
	ErrInvalidStatement = errors.New("invalid statement")
	ErrInvalidRecurring = errors.New("invalid recurring bill")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateCard validates a card.
func validateCard(card *model.Card) error {
	if card == nil {
		return fmt.Errorf("%w: card", ErrNilParameter)
	}
	if card.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidCard)
	}
	if strings.TrimSpace(card.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCard)
	}
	if card.DueDay < 1 || card.DueDay > 31 {
		return fmt.Errorf("%w: %d", common.ErrInvalidDueDay, card.DueDay)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTxn)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTxn)
	}
	switch txn.Kind {
	case model.KindIncome, model.KindExpense:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTxn, txn.Kind)
	}
	if err := txn.ValidateInstallment(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTxn, err)
	}
	return nil
}

// validateStatement validates a statement.
func validateStatement(statement *model.Statement) error {
	if statement == nil {
		return fmt.Errorf("%w: statement", ErrNilParameter)
	}
	if statement.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidStatement)
	}
	if statement.CardID == "" {
		return fmt.Errorf("%w: missing card ID", ErrInvalidStatement)
	}
	if statement.CycleEnd.IsZero() {
		return fmt.Errorf("%w: missing cycle end", ErrInvalidStatement)
	}
	if statement.TransactionCount < 1 {
		return fmt.Errorf("%w: statement must fold at least one transaction", ErrInvalidStatement)
	}
	return nil
}

// validateRecurringBill validates a recurring bill.
func validateRecurringBill(bill *model.RecurringBill) error {
	if bill == nil {
		return fmt.Errorf("%w: bill", ErrNilParameter)
	}
	if bill.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRecurring)
	}
	if strings.TrimSpace(bill.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRecurring)
	}
	if bill.DueDay < 1 || bill.DueDay > 31 {
		return fmt.Errorf("%w: %d", common.ErrInvalidDueDay, bill.DueDay)
	}
	return nil
}
