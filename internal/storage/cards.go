package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pmoura/fatura/internal/common"
	"github.com/pmoura/fatura/internal/model"
)

// CreateCard inserts a new card.
func (s *SQLiteStorage) CreateCard(ctx context.Context, card *model.Card) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCard(card); err != nil {
		return err
	}
	return s.createCardTx(ctx, s.db, card)
}

func (s *SQLiteStorage) createCardTx(ctx context.Context, q queryable, card *model.Card) error {
	now := time.Now()
	_, err := q.ExecContext(ctx, `
		INSERT INTO cards (id, owner_id, name, last_four, brand, due_day, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, card.ID, card.OwnerID, card.Name, card.LastFour, string(card.Brand), card.DueDay, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: card %s", common.ErrDuplicateEntry, card.ID)
		}
		return fmt.Errorf("failed to insert card: %w", err)
	}
	card.CreatedAt = now
	card.UpdatedAt = now
	return nil
}

// GetCard retrieves a single card by ID.
func (s *SQLiteStorage) GetCard(ctx context.Context, id string) (*model.Card, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getCardTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getCardTx(ctx context.Context, q queryable, id string) (*model.Card, error) {
	var card model.Card
	var brand string
	var lastClosedAt sql.NullTime

	err := q.QueryRowContext(ctx, `
		SELECT id, owner_id, name, last_four, brand, due_day, version, last_closed_at, created_at, updated_at
		FROM cards
		WHERE id = ?
	`, id).Scan(
		&card.ID,
		&card.OwnerID,
		&card.Name,
		&card.LastFour,
		&brand,
		&card.DueDay,
		&card.Version,
		&lastClosedAt,
		&card.CreatedAt,
		&card.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}

	card.Brand = model.CardBrand(brand)
	if lastClosedAt.Valid {
		card.LastClosedAt = &lastClosedAt.Time
	}
	return &card, nil
}

// ListCards returns all cards ordered by name.
func (s *SQLiteStorage) ListCards(ctx context.Context) ([]model.Card, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listCardsTx(ctx, s.db)
}

func (s *SQLiteStorage) listCardsTx(ctx context.Context, q queryable) ([]model.Card, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, owner_id, name, last_four, brand, due_day, version, last_closed_at, created_at, updated_at
		FROM cards
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cards []model.Card
	for rows.Next() {
		var card model.Card
		var brand string
		var lastClosedAt sql.NullTime
		if err := rows.Scan(
			&card.ID,
			&card.OwnerID,
			&card.Name,
			&card.LastFour,
			&brand,
			&card.DueDay,
			&card.Version,
			&lastClosedAt,
			&card.CreatedAt,
			&card.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		card.Brand = model.CardBrand(brand)
		if lastClosedAt.Valid {
			card.LastClosedAt = &lastClosedAt.Time
		}
		cards = append(cards, card)
	}

	return cards, rows.Err()
}

// UpdateCard updates a card's own fields. The concurrency token and close
// marker only change through MarkCardClosed.
func (s *SQLiteStorage) UpdateCard(ctx context.Context, card *model.Card) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCard(card); err != nil {
		return err
	}
	return s.updateCardTx(ctx, s.db, card)
}

func (s *SQLiteStorage) updateCardTx(ctx context.Context, q queryable, card *model.Card) error {
	result, err := q.ExecContext(ctx, `
		UPDATE cards
		SET name = ?, last_four = ?, brand = ?, due_day = ?, updated_at = ?
		WHERE id = ?
	`, card.Name, card.LastFour, string(card.Brand), card.DueDay, time.Now(), card.ID)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
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

// DeleteCard removes a card.
func (s *SQLiteStorage) DeleteCard(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deleteCardTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteCardTx(ctx context.Context, q queryable, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
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

// MarkCardClosed advances the card's close marker with a compare-and-swap on
// the version column. The card row is read without any lock earlier in the
// close, so this CAS is the only guard against two overlapping closes of the
// same card both committing. A stale version means another close committed
// first and surfaces as ErrConcurrentClose.
func (s *SQLiteStorage) MarkCardClosed(ctx context.Context, cardID string, version int64, closedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(cardID, "cardID"); err != nil {
		return err
	}
	return s.markCardClosedTx(ctx, s.db, cardID, version, closedAt)
}

func (s *SQLiteStorage) markCardClosedTx(ctx context.Context, q queryable, cardID string, version int64, closedAt time.Time) error {
	result, err := q.ExecContext(ctx, `
		UPDATE cards
		SET version = version + 1, last_closed_at = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`, closedAt, time.Now(), cardID, version)
	if err != nil {
		return fmt.Errorf("failed to mark card closed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: card %s version %d is stale", common.ErrConcurrentClose, cardID, version)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
