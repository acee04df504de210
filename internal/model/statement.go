package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Statement is a closed credit card bill ("fatura fechada"). It is created
// exactly once by the statement closer and never modified afterwards.
type Statement struct {
	CycleEnd         time.Time
	ClosedAt         time.Time
	TotalAmount      decimal.Decimal
	ID               string
	CardID           string
	OwnerID          string
	Description      string
	IdempotencyKey   string
	TransactionCount int
}
