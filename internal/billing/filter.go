package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pmoura/fatura/internal/model"
)

// FilterCycleTransactions selects, from the card's candidate transactions, the
// pending charges that belong to the open cycle ending at cycleEnd.
//
// A transaction qualifies when it is an expense on the given card, has not
// been folded into a previous statement, has not been superseded by an
// installment plan, and its calendar day is on or before cycleEnd's. Dates are
// compared at day granularity, so a charge dated anywhere on the boundary day
// is included. Installment siblings qualify individually; each one is its own
// pending charge.
func FilterCycleTransactions(candidates []model.Transaction, cardID string, cycleEnd time.Time) []model.Transaction {
	var pending []model.Transaction
	for _, txn := range candidates {
		if txn.Kind != model.KindExpense || txn.CardID != cardID {
			continue
		}
		if txn.IncludedInStatement {
			continue
		}
		if txn.SupersededByGroupID != "" {
			continue
		}
		if startOfDay(txn.Date.In(cycleEnd.Location())).After(cycleEnd) {
			continue
		}
		pending = append(pending, txn)
	}
	return pending
}

// Aggregate sums the amounts of an already-filtered pending set. Decimal
// arithmetic keeps the total exact across any number of runs.
func Aggregate(transactions []model.Transaction) (decimal.Decimal, int) {
	total := decimal.Zero
	for _, txn := range transactions {
		total = total.Add(txn.Amount)
	}
	return total, len(transactions)
}
