package workflow

import (
	"context"
	"time"

	"github.com/moneymap/fintrack_backend/config"
	"github.com/moneymap/fintrack_backend/models"
	"github.com/moneymap/fintrack_backend/utils"
	"github.com/sirupsen/logrus"
)

// SweepStore is the narrow entity-store seam the sweep runs against. The
// production implementation is models.GormSweepStore; tests use an in-memory
// fake.
type SweepStore interface {
	// ListExpiredIncomes returns non-recurring incomes whose end date has
	// strictly passed, across all users, oldest id first.
	ListExpiredIncomes(ctx context.Context, today time.Time, limit int) ([]*models.Income, error)
	// RetireIncome deletes the income and terminally marks its audit
	// transaction. The pair must be atomic per entry.
	RetireIncome(ctx context.Context, income *models.Income, today time.Time) error
}

type SweepEntryError struct {
	Income *models.Income
	Err    error
}

type SweepResult struct {
	Retired  []*models.Income
	Skipped  int
	Failures []SweepEntryError
}

// ExpirationSweeper retires expired non-recurring incomes. One call to
// RunOnce is one sweep pass: entries are processed independently, a failure
// on entry i never blocks entry i+1, and re-running with an unchanged clock
// is a no-op because retired rows no longer match the eligibility query.
type ExpirationSweeper struct {
	Store        SweepStore
	Clock        Clock
	Logger       *logrus.Logger
	BatchSize    int
	EntryTimeout time.Duration

	// RetryDue defers entries that are backing off after earlier failures.
	// Nil means every eligible entry is due.
	RetryDue func(ctx context.Context, incomeId int, now time.Time) (bool, error)

	// PublishEvent surfaces the expired-entry fact for an external notifier.
	// Best-effort: a publish error is logged and never fails the entry.
	PublishEvent func(event config.EntryLifecycleEvent) error
}

func NewExpirationSweeper(store SweepStore, clock Clock, logger *logrus.Logger) *ExpirationSweeper {
	return &ExpirationSweeper{
		Store:        store,
		Clock:        clock,
		Logger:       logger,
		BatchSize:    200,
		EntryTimeout: 10 * time.Second,
	}
}

// RunOnce executes a single sweep pass. The returned error covers only the
// eligibility listing; per-entry failures are collected in the result.
func (s *ExpirationSweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	// One consistent view of "today" for the whole pass.
	now := s.Clock.Now()
	today := utils.TruncateToDay(now)

	expired, err := s.Store.ListExpiredIncomes(ctx, today, s.BatchSize)
	if err != nil {
		return result, err
	}

	for _, income := range expired {
		if ctx.Err() != nil {
			// Cancelled mid-sweep: already-retired entries stay final,
			// the rest are picked up by the next tick.
			return result, ctx.Err()
		}

		if s.RetryDue != nil {
			due, derr := s.RetryDue(ctx, income.ID, now)
			if derr != nil {
				config.LogError(s.Logger, "expirationSweep", "RunOnce", "RetryDue", income.ID, derr)
			} else if !due {
				result.Skipped++
				continue
			}
		}

		if err := s.retireOne(ctx, income, today); err != nil {
			config.LogError(s.Logger, "expirationSweep", "RunOnce", "RetireIncome", map[string]interface{}{
				"income_id": income.ID,
				"user_id":   income.UserId,
			}, err)
			result.Failures = append(result.Failures, SweepEntryError{Income: income, Err: err})
			continue
		}

		result.Retired = append(result.Retired, income)
		s.publishExpired(income, now)
	}

	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"module":    "expirationSweep",
			"processed": len(result.Retired),
			"skipped":   result.Skipped,
			"failed":    len(result.Failures),
			"today":     today.Format("2006-01-02"),
		}).Info("expiration sweep pass finished")
	}
	return result, nil
}

func (s *ExpirationSweeper) retireOne(ctx context.Context, income *models.Income, today time.Time) error {
	entryCtx := ctx
	if s.EntryTimeout > 0 {
		var cancel context.CancelFunc
		entryCtx, cancel = context.WithTimeout(ctx, s.EntryTimeout)
		defer cancel()
	}
	return s.Store.RetireIncome(entryCtx, income, today)
}

func (s *ExpirationSweeper) publishExpired(income *models.Income, now time.Time) {
	if s.PublishEvent == nil || !config.LifecycleEventsEnabled() {
		return
	}
	endDate := now
	if income.EndDate != nil {
		endDate = *income.EndDate
	}
	event := config.EntryLifecycleEvent{
		UserId:        income.UserId,
		ReferenceType: string(models.ReferenceTypeIncome),
		ReferenceId:   income.ID,
		Name:          income.Name,
		Status:        string(models.EntryStatusExpired),
		Reason:        models.ExpirationRemark(income.Name, endDate),
		OccurredAt:    now,
	}
	if err := s.PublishEvent(event); err != nil {
		config.LogError(s.Logger, "expirationSweep", "publishExpired", "PublishEvent", income.ID, err)
	}
}
