package model

import "time"

// Category represents an expense category assignable to transactions.
type Category struct {
	CreatedAt   time.Time
	Name        string
	Description string
	ID          int
	IsActive    bool
}
