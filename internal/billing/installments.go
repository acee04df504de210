package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pmoura/fatura/internal/model"
)

// BuildInstallmentPlan splits a purchase into n monthly installments starting
// at base.Date. The amounts divide the purchase exactly: every installment
// carries the rounded share and the final one absorbs the remainder, so the
// plan always sums back to base.Amount.
func BuildInstallmentPlan(base model.Transaction, n int) ([]model.Transaction, string, error) {
	if n < 2 {
		return nil, "", fmt.Errorf("installment plan needs at least 2 installments, got %d", n)
	}
	if base.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, "", fmt.Errorf("installment plan needs a positive amount, got %s", base.Amount)
	}

	groupID := uuid.NewString()
	share := base.Amount.DivRound(decimal.NewFromInt(int64(n)), 2)
	lastShare := base.Amount.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))

	installments := make([]model.Transaction, 0, n)
	for i := 1; i <= n; i++ {
		amount := share
		if i == n {
			amount = lastShare
		}
		txn := model.Transaction{
			ID:                 uuid.NewString(),
			OwnerID:            base.OwnerID,
			CardID:             base.CardID,
			CategoryID:         base.CategoryID,
			Establishment:      fmt.Sprintf("%s (%d/%d)", base.Establishment, i, n),
			Kind:               model.KindExpense,
			Amount:             amount,
			Date:               addMonthsClamped(base.Date, i-1),
			IsInstallment:      true,
			InstallmentGroupID: groupID,
			InstallmentNumber:  i,
			TotalInstallments:  n,
		}
		txn.Hash = txn.GenerateHash()
		installments = append(installments, txn)
	}
	return installments, groupID, nil
}

// addMonthsClamped advances t by the given number of months, clamping the day
// to the target month's length instead of letting Jan 31 spill into March.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	month += time.Month(months)
	if last := daysInMonth(year, month, t.Location()); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
