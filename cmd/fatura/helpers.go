package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pmoura/fatura/internal/config"
	"github.com/pmoura/fatura/internal/model"
	"github.com/pmoura/fatura/internal/service"
	"github.com/pmoura/fatura/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDBPath
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// currentOwner returns the configured owner id for new records. A single-user
// install can leave it unset.
func currentOwner() string {
	return viper.GetString("owner")
}

// findCard resolves a card by id or by (case-insensitive) name.
func findCard(ctx context.Context, store service.Storage, ref string) (*model.Card, error) {
	card, err := store.GetCard(ctx, ref)
	if err == nil {
		return card, nil
	}

	cards, err := store.ListCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	for i := range cards {
		if strings.EqualFold(cards[i].Name, ref) {
			return &cards[i], nil
		}
	}
	return nil, fmt.Errorf("no card matches %q", ref)
}
