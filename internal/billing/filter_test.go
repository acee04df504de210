package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmoura/fatura/internal/model"
)

const testCardID = "card-1"

func expense(id string, date time.Time, amount string) model.Transaction {
	return model.Transaction{
		ID:            id,
		CardID:        testCardID,
		Establishment: "Shop " + id,
		Kind:          model.KindExpense,
		Amount:        decimal.RequireFromString(amount),
		Date:          date,
	}
}

func TestFilterCycleTransactions(t *testing.T) {
	cycleEnd := time.Date(2024, 5, 10, 23, 59, 59, 0, time.UTC)

	beforeEnd := expense("t1", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), "50.00")
	onBoundaryLate := expense("t2", time.Date(2024, 5, 10, 23, 0, 0, 0, time.UTC), "30.00")
	afterEnd := expense("t3", time.Date(2024, 5, 12, 8, 0, 0, 0, time.UTC), "20.00")

	settled := expense("t4", time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), "15.00")
	settled.IncludedInStatement = true
	settled.StatementID = "stmt-old"

	superseded := expense("t5", time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), "99.00")
	superseded.SupersededByGroupID = "group-1"

	otherCard := expense("t6", time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC), "12.00")
	otherCard.CardID = "card-2"

	income := expense("t7", time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC), "500.00")
	income.Kind = model.KindIncome

	candidates := []model.Transaction{
		beforeEnd, onBoundaryLate, afterEnd, settled, superseded, otherCard, income,
	}

	pending := FilterCycleTransactions(candidates, testCardID, cycleEnd)

	ids := make([]string, len(pending))
	for i, txn := range pending {
		ids[i] = txn.ID
	}
	assert.Equal(t, []string{"t1", "t2"}, ids)
}

func TestFilterCycleTransactionsBoundaryDayIsInclusive(t *testing.T) {
	// A charge at any instant of the boundary day belongs to the cycle, even
	// one timestamped after the 23:59:59 cutoff in a finer resolution.
	cycleEnd := time.Date(2024, 5, 10, 23, 59, 59, 0, time.UTC)
	late := expense("late", time.Date(2024, 5, 10, 23, 59, 59, 999000000, time.UTC), "10.00")

	pending := FilterCycleTransactions([]model.Transaction{late}, testCardID, cycleEnd)
	require.Len(t, pending, 1)

	nextDay := expense("next", time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), "10.00")
	pending = FilterCycleTransactions([]model.Transaction{nextDay}, testCardID, cycleEnd)
	assert.Empty(t, pending)
}

func TestFilterCycleTransactionsInstallmentSiblings(t *testing.T) {
	// Only the installments dated inside the cycle are pending; later siblings
	// wait for their own cycles.
	cycleEnd := time.Date(2024, 5, 10, 23, 59, 59, 0, time.UTC)

	first := expense("i1", time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC), "100.00")
	first.IsInstallment = true
	first.InstallmentGroupID = "g1"
	first.InstallmentNumber = 1
	first.TotalInstallments = 3

	second := first
	second.ID = "i2"
	second.InstallmentNumber = 2
	second.Date = time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	third := first
	third.ID = "i3"
	third.InstallmentNumber = 3
	third.Date = time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)

	pending := FilterCycleTransactions([]model.Transaction{first, second, third}, testCardID, cycleEnd)
	require.Len(t, pending, 1)
	assert.Equal(t, "i1", pending[0].ID)
}

func TestAggregate(t *testing.T) {
	txns := []model.Transaction{
		expense("a", time.Now(), "120.50"),
		expense("b", time.Now(), "35.00"),
		expense("c", time.Now(), "9.99"),
	}

	total, count := Aggregate(txns)
	assert.Equal(t, 3, count)
	assert.True(t, total.Equal(decimal.RequireFromString("165.49")),
		"got %s, want 165.49", total)
}

func TestAggregateEmpty(t *testing.T) {
	total, count := Aggregate(nil)
	assert.Zero(t, count)
	assert.True(t, total.IsZero())
}

func TestAggregateRepeatedCentsStaysExact(t *testing.T) {
	// 0.10 a hundred times is exactly 10.00; float arithmetic would drift.
	txns := make([]model.Transaction, 100)
	for i := range txns {
		txns[i] = expense("r", time.Now(), "0.10")
	}

	total, _ := Aggregate(txns)
	assert.True(t, total.Equal(decimal.RequireFromString("10.00")),
		"got %s, want 10.00", total)
}
