package models

import (
	"context"
	"time"

	"github.com/moneymap/fintrack_backend/config"
)

const (
	SweepStatusPending    = "PENDING"
	SweepStatusProcessing = "PROCESSING"
	SweepStatusSucceeded  = "SUCCEEDED"
	SweepStatusFailed     = "FAILED"
	SweepStatusDead       = "DEAD"
)

// SweepFailureRecord tracks a per-entry sweep failure so later ticks retry it
// on a backoff schedule. One row per income; terminal DEAD rows stop being
// retried but keep the last error for operators.
type SweepFailureRecord struct {
	ID            int        `gorm:"primary_key" json:"id"`
	UserId        string     `gorm:"size:64;index;not null" json:"user_id"`
	IncomeId      int        `gorm:"uniqueIndex;not null" json:"income_id"`
	IncomeName    string     `gorm:"size:100" json:"income_name"`
	Status        string     `gorm:"size:20;index;not null;default:'PENDING'" json:"status"` // PENDING|PROCESSING|SUCCEEDED|FAILED|DEAD
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt *time.Time `gorm:"index" json:"next_attempt_at"`
	LastError     *string    `gorm:"type:text" json:"last_error"`
	CorrelationId string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SweepRetryDue reports whether the income is backing off: a FAILED record
// with a future next_attempt_at defers the entry, a DEAD record drops it.
func SweepRetryDue(ctx context.Context, incomeId int, now time.Time) (bool, error) {
	db := config.GetDB()

	var rec SweepFailureRecord
	err := db.WithContext(ctx).
		Select("id,status,next_attempt_at").
		Where("income_id = ?", incomeId).
		First(&rec).Error
	if err != nil {
		// No failure history: due immediately.
		return true, nil
	}
	if rec.Status == SweepStatusDead {
		return false, nil
	}
	if rec.NextAttemptAt != nil && rec.NextAttemptAt.After(now) {
		return false, nil
	}
	return true, nil
}

// ClearSweepFailure removes retry bookkeeping once the entry finally retires.
func ClearSweepFailure(ctx context.Context, incomeId int) error {
	db := config.GetDB()
	return db.WithContext(ctx).
		Where("income_id = ?", incomeId).
		Delete(&SweepFailureRecord{}).Error
}
