package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pmoura/fatura/internal/common"
	"github.com/pmoura/fatura/internal/model"
	"github.com/pmoura/fatura/internal/service"
)

// GetCategories returns all active categories ordered by name.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategoriesTx(ctx, s.db)
}

func (s *SQLiteStorage) getCategoriesTx(ctx context.Context, q queryable) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, description, is_active, created_at
		FROM categories
		WHERE is_active = 1
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Description, &cat.IsActive, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

// GetCategoryByName retrieves a category by its unique name.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.getCategoryByNameTx(ctx, s.db, name)
}

func (s *SQLiteStorage) getCategoryByNameTx(ctx context.Context, q queryable, name string) (*model.Category, error) {
	var cat model.Category
	err := q.QueryRowContext(ctx, `
		SELECT id, name, description, is_active, created_at
		FROM categories
		WHERE name = ? AND is_active = 1
	`, name).Scan(&cat.ID, &cat.Name, &cat.Description, &cat.IsActive, &cat.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &cat, nil
}

// CreateCategory inserts a new category and returns it with its assigned ID.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, name, description string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.createCategoryTx(ctx, s.db, name, description)
}

func (s *SQLiteStorage) createCategoryTx(ctx context.Context, q queryable, name, description string) (*model.Category, error) {
	now := time.Now()
	result, err := q.ExecContext(ctx, `
		INSERT INTO categories (name, description, is_active, created_at)
		VALUES (?, ?, 1, ?)
	`, name, description, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %q", common.ErrDuplicateEntry, name)
		}
		return nil, fmt.Errorf("failed to insert category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category id: %w", err)
	}

	return &model.Category{
		ID:          int(id),
		Name:        name,
		Description: description,
		IsActive:    true,
		CreatedAt:   now,
	}, nil
}

// DeleteCategory deactivates a category. Transactions keep their reference;
// the category simply stops being offered.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, id int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.deleteCategoryTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteCategoryTx(ctx context.Context, q queryable, id int) error {
	result, err := q.ExecContext(ctx, `
		UPDATE categories SET is_active = 0 WHERE id = ? AND is_active = 1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
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

// GetCategorySummary aggregates expense totals by category name for a date
// range. Uncategorized transactions group under "(uncategorized)". Sums are
// computed in Go on exact decimals rather than in SQL over text columns.
func (s *SQLiteStorage) GetCategorySummary(ctx context.Context, start, end time.Time) (map[string]service.CategorySummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, end, start)
	}
	return s.getCategorySummaryTx(ctx, s.db, start, end)
}

func (s *SQLiteStorage) getCategorySummaryTx(ctx context.Context, q queryable, start, end time.Time) (map[string]service.CategorySummary, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT COALESCE(c.name, '(uncategorized)'), t.amount
		FROM transactions t
		LEFT JOIN categories c ON t.category_id = c.id
		WHERE t.kind = ? AND t.date >= ? AND t.date <= ?
	`, string(model.KindExpense), start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query category summary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summary := make(map[string]service.CategorySummary)
	for rows.Next() {
		var name, amount string
		if err := rows.Scan(&name, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan category summary: %w", err)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
		}
		entry := summary[name]
		entry.Amount = entry.Amount.Add(value)
		entry.Count++
		summary[name] = entry
	}
	return summary, rows.Err()
}
