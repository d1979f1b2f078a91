package main

import (
	"context"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/moneymap/fintrack_backend/config"
	"github.com/moneymap/fintrack_backend/models"
	"github.com/moneymap/fintrack_backend/utils"
	"github.com/sirupsen/logrus"
)

type sweepRetryConfig struct {
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func getSweepRetryConfig() sweepRetryConfig {
	cfg := sweepRetryConfig{
		maxAttempts: 5,
		baseBackoff: 2 * time.Second,
		maxBackoff:  10 * time.Minute,
	}

	if v := os.Getenv("SWEEP_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.maxAttempts = n
		}
	}
	if v := os.Getenv("SWEEP_BASE_BACKOFF_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.baseBackoff = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("SWEEP_MAX_BACKOFF_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.maxBackoff = time.Duration(n) * time.Second
		}
	}

	return cfg
}

func sweepBackoff(attempt int, cfg sweepRetryConfig) time.Duration {
	if attempt <= 0 {
		return cfg.baseBackoff
	}
	// base * 2^(attempt-1), capped. Compare before converting so a large
	// exponent cannot overflow time.Duration.
	exp := float64(attempt - 1)
	delay := float64(cfg.baseBackoff) * math.Pow(2, exp)
	if delay > float64(cfg.maxBackoff) {
		return cfg.maxBackoff
	}
	return time.Duration(delay)
}

// markSweepFailure records a per-entry failure for backoff scheduling and
// returns whether the record is now DEAD.
func markSweepFailure(ctx context.Context, logger *logrus.Logger, income *models.Income, err error) bool {
	if income == nil || income.ID <= 0 {
		return false
	}

	cfg := getSweepRetryConfig()
	now := time.Now().UTC()
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}

	db := config.GetDB()

	// Fetch current attempts for stable backoff and DEAD cutoff.
	var rec models.SweepFailureRecord
	if qerr := db.WithContext(ctx).
		Select("id,income_id,attempts").
		Where("income_id = ?", income.ID).
		First(&rec).Error; qerr != nil {
		rec = models.SweepFailureRecord{
			UserId:     income.UserId,
			IncomeId:   income.ID,
			IncomeName: income.Name,
		}
	}

	attempts := rec.Attempts + 1
	status := models.SweepStatusFailed

	var nextAttemptAt *time.Time
	if attempts >= cfg.maxAttempts {
		status = models.SweepStatusDead
		nextAttemptAt = nil
	} else {
		t := now.Add(sweepBackoff(attempts, cfg))
		nextAttemptAt = &t
	}

	rec.Attempts = attempts
	rec.Status = status
	rec.NextAttemptAt = nextAttemptAt
	rec.LastError = &errMsg
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		rec.CorrelationId = cid
	}

	_ = db.WithContext(ctx).Save(&rec).Error

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":     "ExpirationSweep",
			"user_id":   income.UserId,
			"income_id": income.ID,
			"status":    status,
			"attempts":  attempts,
		}).Error("sweep entry failed: " + errMsg)
	}

	return status == models.SweepStatusDead
}

func markSweepSuccess(ctx context.Context, logger *logrus.Logger, income *models.Income) {
	if income == nil || income.ID <= 0 {
		return
	}
	if err := models.ClearSweepFailure(ctx, income.ID); err != nil {
		config.LogError(logger, "sweep_processing_retry.go", "markSweepSuccess", "ClearSweepFailure", income.ID, err)
		return
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":     "ExpirationSweep",
			"user_id":   income.UserId,
			"income_id": income.ID,
			"status":    models.SweepStatusSucceeded,
		}).Info("sweep entry retired")
	}
}
