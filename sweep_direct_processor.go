package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/moneymap/fintrack_backend/config"
	"github.com/moneymap/fintrack_backend/models"
	"github.com/moneymap/fintrack_backend/utils"
	"github.com/moneymap/fintrack_backend/workflow"
	"github.com/sirupsen/logrus"
)

// DirectSweepProcessor runs the expiration sweep on its own interval without
// an external scheduler. This is the safety net for environments where Cloud
// Scheduler / Pub/Sub push is not configured; the sweep is idempotent, so a
// push tick and a direct tick landing on the same day is harmless.
type DirectSweepProcessor struct {
	Logger   *logrus.Logger
	WorkerID string
	Interval time.Duration
	LockTTL  time.Duration
}

func NewDirectSweepProcessor(logger *logrus.Logger) *DirectSweepProcessor {
	interval := 24 * time.Hour
	if v := os.Getenv("SWEEP_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			interval = time.Duration(n) * time.Second
		}
	}
	return &DirectSweepProcessor{
		Logger:   logger,
		WorkerID: "direct-" + time.Now().Format("20060102-150405.000"),
		Interval: interval,
		LockTTL:  5 * time.Minute,
	}
}

func shouldRunDirectSweepProcessor() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv("SWEEP_DIRECT_PROCESSING")))
	if val == "true" {
		return true
	}
	if val == "false" {
		return false
	}
	// Default: run as a safety-net even when an external trigger is configured.
	// Retiring an income twice is impossible (the eligibility query only sees
	// rows that still exist), so at-least-once triggering is safe.
	return true
}

func (p *DirectSweepProcessor) Run(ctx context.Context) {
	if p == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *DirectSweepProcessor) processOnce(ctx context.Context) {
	if config.GetDB() == nil {
		return
	}

	// Redis lock is a best-effort optimization so idle instances skip the
	// tick cheaply. Correctness must not depend on Redis: the sweep also
	// serializes via a MySQL advisory lock below.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "ExpirationSweep:direct", p.LockTTL, nil)
		if err == redislock.ErrNotObtained {
			return
		}
		if err == nil {
			defer lock.Release(ctx)
		}
	}

	runExpirationSweep(ctx, p.Logger, p.WorkerID)
}

// runExpirationSweep is the single entry point for one sweep tick, shared by
// the direct processor and the Pub/Sub push handler.
func runExpirationSweep(ctx context.Context, logger *logrus.Logger, workerID string) workflow.SweepResult {
	db := config.GetDB()

	sweepCtx := utils.SetSkipOwnerScopeInContext(ctx)
	sweepCtx = utils.SetUserNameInContext(sweepCtx, "System")

	if err := workflow.AcquireSweepLock(db, "expiration"); err != nil {
		config.LogError(logger, "sweep_direct_processor.go", "runExpirationSweep", "AcquireSweepLock", workerID, err)
		return workflow.SweepResult{}
	}
	defer workflow.ReleaseSweepLock(db, "expiration")

	sweeper := workflow.NewExpirationSweeper(models.NewGormSweepStore(), workflow.SystemClock{}, logger)
	sweeper.RetryDue = models.SweepRetryDue
	sweeper.PublishEvent = config.PublishEntryLifecycleEvent

	result, err := sweeper.RunOnce(sweepCtx)
	if err != nil {
		config.LogError(logger, "sweep_direct_processor.go", "runExpirationSweep", "RunOnce", workerID, err)
		return result
	}

	for _, income := range result.Retired {
		markSweepSuccess(sweepCtx, logger, income)
	}
	for _, failure := range result.Failures {
		markSweepFailure(sweepCtx, logger, failure.Income, failure.Err)
	}
	return result
}
