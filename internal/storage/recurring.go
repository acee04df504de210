package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pmoura/fatura/internal/common"
	"github.com/pmoura/fatura/internal/model"
)

// CreateRecurringBill inserts a recurring bill template.
func (s *SQLiteStorage) CreateRecurringBill(ctx context.Context, bill *model.RecurringBill) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecurringBill(bill); err != nil {
		return err
	}
	return s.createRecurringBillTx(ctx, s.db, bill)
}

func (s *SQLiteStorage) createRecurringBillTx(ctx context.Context, q queryable, bill *model.RecurringBill) error {
	now := time.Now()
	_, err := q.ExecContext(ctx, `
		INSERT INTO recurring_bills (id, owner_id, name, amount, due_day, card_id, category_id, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, bill.ID, bill.OwnerID, bill.Name, bill.Amount.String(), bill.DueDay, bill.CardID, bill.CategoryID, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: recurring bill %s", common.ErrDuplicateEntry, bill.ID)
		}
		return fmt.Errorf("failed to insert recurring bill: %w", err)
	}
	bill.CreatedAt = now
	bill.Active = true
	return nil
}

// ListRecurringBills returns all active recurring bills ordered by due day.
func (s *SQLiteStorage) ListRecurringBills(ctx context.Context) ([]model.RecurringBill, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listRecurringBillsTx(ctx, s.db)
}

func (s *SQLiteStorage) listRecurringBillsTx(ctx context.Context, q queryable) ([]model.RecurringBill, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, owner_id, name, amount, due_day, card_id, category_id, active, created_at
		FROM recurring_bills
		WHERE active = 1
		ORDER BY due_day ASC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring bills: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bills []model.RecurringBill
	for rows.Next() {
		var bill model.RecurringBill
		var amount string
		if err := rows.Scan(
			&bill.ID,
			&bill.OwnerID,
			&bill.Name,
			&amount,
			&bill.DueDay,
			&bill.CardID,
			&bill.CategoryID,
			&bill.Active,
			&bill.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan recurring bill: %w", err)
		}
		bill.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}

// DeleteRecurringBill deactivates a recurring bill.
func (s *SQLiteStorage) DeleteRecurringBill(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deleteRecurringBillTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteRecurringBillTx(ctx context.Context, q queryable, id string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE recurring_bills SET active = 0 WHERE id = ? AND active = 1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recurring bill: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}
