package workflow

import (
	"time"

	"github.com/moneymap/fintrack_backend/models"
)

// ClassifyIncome derives the lifecycle status of a single income against an
// explicit today. Pure; callers persist the result only as snapshots.
func ClassifyIncome(income *models.Income, today time.Time) models.EntryStatus {
	return income.DeriveStatus(today)
}

// ClassifyIncomes stamps derived statuses onto a batch. Today is sampled once
// from the clock so every entry in the batch sees the same calendar day, even
// when the pass straddles midnight.
func ClassifyIncomes(incomes []*models.Income, clock Clock) {
	today := clock.Now()
	for _, income := range incomes {
		income.Status = income.DeriveStatus(today)
	}
}
