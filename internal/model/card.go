package model

import "time"

// CardBrand identifies the card network.
type CardBrand string

// Known card brands.
const (
	BrandVisa       CardBrand = "visa"
	BrandMastercard CardBrand = "mastercard"
	BrandElo        CardBrand = "elo"
	BrandAmex       CardBrand = "amex"
	BrandOther      CardBrand = "other"
)

// Card represents a credit card whose statement closes on DueDay of each month.
type Card struct {
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastClosedAt *time.Time
	ID           string
	OwnerID      string
	Name         string
	LastFour     string
	Brand        CardBrand
	DueDay       int
	// Version is an optimistic concurrency token. Every successful statement
	// close increments it; a stale version observed at close time means
	// another close won the race.
	Version int64
}
