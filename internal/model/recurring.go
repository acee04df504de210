package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecurringBill is a template for a bill that repeats every month on DueDay.
// Applying a recurring bill materializes one Transaction for the given month.
type RecurringBill struct {
	CreatedAt  time.Time
	Amount     decimal.Decimal
	ID         string
	OwnerID    string
	Name       string
	CardID     string
	CategoryID int
	DueDay     int
	Active     bool
}

// Materialize builds the concrete transaction for this bill in the month
// containing ref. The due day clamps to the last day of short months.
func (r *RecurringBill) Materialize(ref time.Time) Transaction {
	year, month, _ := ref.Date()
	day := r.DueDay
	if last := time.Date(year, month+1, 0, 0, 0, 0, 0, ref.Location()).Day(); day > last {
		day = last
	}
	return Transaction{
		OwnerID:       r.OwnerID,
		CardID:        r.CardID,
		CategoryID:    r.CategoryID,
		Establishment: r.Name,
		Kind:          KindExpense,
		Amount:        r.Amount,
		Date:          time.Date(year, month, day, 0, 0, 0, 0, ref.Location()),
	}
}
