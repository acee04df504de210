// Package billing implements billing cycle resolution and statement closing
// for credit cards. The cycle math and the transaction filter are pure
// functions; the Closer drives the atomic close against storage.
package billing

import (
	"fmt"
	"time"

	"github.com/pmoura/fatura/internal/common"
)

// ResolveCycleEnd computes the end-of-day boundary of the currently open
// billing cycle for a card whose statement closes on dueDay of each month.
//
// When today's day-of-month has not yet passed dueDay, the open cycle ends at
// dueDay of the current month. Once the due date has passed, unbilled charges
// roll into the cycle ending at dueDay of the next month. A dueDay that
// exceeds the length of the target month clamps to that month's last day.
func ResolveCycleEnd(dueDay int, today time.Time) (time.Time, error) {
	if dueDay < 1 || dueDay > 31 {
		return time.Time{}, fmt.Errorf("%w: got %d", common.ErrInvalidDueDay, dueDay)
	}

	year, month, day := today.Date()
	if day > dueDay {
		month++ // normalized by time.Date below
	}

	closeDay := dueDay
	if last := daysInMonth(year, month, today.Location()); closeDay > last {
		closeDay = last
	}

	return time.Date(year, month, closeDay, 23, 59, 59, 0, today.Location()), nil
}

// daysInMonth returns the number of days in the given month. Day zero of the
// following month is the last day of this one.
func daysInMonth(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
