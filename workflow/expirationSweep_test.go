package workflow_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/moneymap/fintrack_backend/config"
	"github.com/moneymap/fintrack_backend/models"
	"github.com/moneymap/fintrack_backend/utils"
	"github.com/moneymap/fintrack_backend/workflow"
	"github.com/sirupsen/logrus"
)

// fakeSweepStore mirrors the semantics of the real store: a retired income
// disappears from the listing (what makes re-running the sweep a no-op), and
// every retirement marks the income's audit transaction in the same step, so
// tests can assert the delete and the mark always land as a pair.
type fakeSweepStore struct {
	incomes     []*models.Income
	failIDs     map[int]error
	retireCalls int
	marks       map[int]string // income id -> expiration remark
}

func (s *fakeSweepStore) ListExpiredIncomes(_ context.Context, today time.Time, limit int) ([]*models.Income, error) {
	var out []*models.Income
	for _, income := range s.incomes {
		if income.IncomeType != models.EntryTypeNonRecurring || income.EndDate == nil {
			continue
		}
		if utils.TruncateToDay(today).After(utils.TruncateToDay(*income.EndDate)) {
			out = append(out, income)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeSweepStore) RetireIncome(_ context.Context, income *models.Income, today time.Time) error {
	s.retireCalls++
	if err, ok := s.failIDs[income.ID]; ok {
		return err
	}
	for i, existing := range s.incomes {
		if existing.ID == income.ID {
			s.incomes = append(s.incomes[:i], s.incomes[i+1:]...)
			endDate := today
			if income.EndDate != nil {
				endDate = *income.EndDate
			}
			if s.marks == nil {
				s.marks = make(map[int]string)
			}
			s.marks[income.ID] = models.ExpirationRemark(income.Name, endDate)
			return nil
		}
	}
	return errors.New("income not found")
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func expiredIncome(id int, endDate time.Time) *models.Income {
	return &models.Income{
		ID:         id,
		UserId:     "user-1",
		Name:       "Freelance gig",
		IncomeType: models.EntryTypeNonRecurring,
		EndDate:    datePtr(endDate),
	}
}

func TestExpirationSweeper_RetiresOnlyStrictlyPastEndDates(t *testing.T) {
	store := &fakeSweepStore{incomes: []*models.Income{
		expiredIncome(1, day(2024, time.January, 10)),
		expiredIncome(2, day(2024, time.January, 11)), // ends today: stays
		expiredIncome(3, day(2024, time.February, 1)),
	}}
	sweeper := workflow.NewExpirationSweeper(store, workflow.FixedClock{T: day(2024, time.January, 11)}, quietLogger())

	result, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(result.Retired) != 1 || result.Retired[0].ID != 1 {
		t.Fatalf("retired = %+v, want only income 1", result.Retired)
	}
	if len(store.incomes) != 2 {
		t.Fatalf("store left with %d incomes, want 2", len(store.incomes))
	}
}

func TestExpirationSweeper_RetirePairsDeleteWithTransactionMark(t *testing.T) {
	endDate := day(2024, time.January, 10)
	boom := errors.New("lock wait timeout")
	store := &fakeSweepStore{
		incomes: []*models.Income{
			expiredIncome(1, endDate),
			expiredIncome(2, endDate),
		},
		failIDs: map[int]error{2: boom},
	}
	sweeper := workflow.NewExpirationSweeper(store, workflow.FixedClock{T: day(2024, time.January, 11)}, quietLogger())

	if _, err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	// Retired entry: deleted and its transaction marked, as one pair.
	remark, ok := store.marks[1]
	if !ok {
		t.Fatal("income 1 retired without marking its transaction")
	}
	if !strings.Contains(remark, "2024-01-10") {
		t.Fatalf("remark %q does not name the end date", remark)
	}

	// Failed entry: neither deleted nor marked; no half-finished state.
	if _, ok := store.marks[2]; ok {
		t.Fatal("failed income 2 must not have a transaction mark")
	}
	if len(store.incomes) != 1 || store.incomes[0].ID != 2 {
		t.Fatalf("store = %+v, want income 2 still present", store.incomes)
	}
}

func TestExpirationSweeper_RerunIsNoOp(t *testing.T) {
	store := &fakeSweepStore{incomes: []*models.Income{
		expiredIncome(1, day(2024, time.January, 10)),
	}}

	first := workflow.NewExpirationSweeper(store, workflow.FixedClock{T: day(2024, time.January, 11)}, quietLogger())
	result, err := first.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	if len(result.Retired) != 1 {
		t.Fatalf("first pass retired %d, want 1", len(result.Retired))
	}

	// Next day's pass finds nothing left to do.
	second := workflow.NewExpirationSweeper(store, workflow.FixedClock{T: day(2024, time.January, 12)}, quietLogger())
	result, err = second.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if len(result.Retired) != 0 || len(result.Failures) != 0 {
		t.Fatalf("second pass = %+v, want empty", result)
	}
	if store.retireCalls != 1 {
		t.Fatalf("retire called %d times, want 1", store.retireCalls)
	}
}

func TestExpirationSweeper_FailureDoesNotBlockLaterEntries(t *testing.T) {
	boom := errors.New("deadlock")
	store := &fakeSweepStore{
		incomes: []*models.Income{
			expiredIncome(1, day(2024, time.January, 1)),
			expiredIncome(2, day(2024, time.January, 2)),
			expiredIncome(3, day(2024, time.January, 3)),
		},
		failIDs: map[int]error{2: boom},
	}
	sweeper := workflow.NewExpirationSweeper(store, workflow.FixedClock{T: day(2024, time.February, 1)}, quietLogger())

	result, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(result.Retired) != 2 {
		t.Fatalf("retired %d, want 2", len(result.Retired))
	}
	if len(result.Failures) != 1 || result.Failures[0].Income.ID != 2 {
		t.Fatalf("failures = %+v, want income 2", result.Failures)
	}
	if !errors.Is(result.Failures[0].Err, boom) {
		t.Fatalf("failure err = %v, want wrapped deadlock", result.Failures[0].Err)
	}

	// The failed entry stays eligible for the next pass.
	remaining, _ := store.ListExpiredIncomes(context.Background(), day(2024, time.February, 1), 10)
	if len(remaining) != 1 || remaining[0].ID != 2 {
		t.Fatalf("remaining = %+v, want income 2 only", remaining)
	}
}

func TestExpirationSweeper_RetryDueSkipsBackingOffEntries(t *testing.T) {
	store := &fakeSweepStore{incomes: []*models.Income{
		expiredIncome(1, day(2024, time.January, 1)),
		expiredIncome(2, day(2024, time.January, 1)),
	}}
	sweeper := workflow.NewExpirationSweeper(store, workflow.FixedClock{T: day(2024, time.February, 1)}, quietLogger())
	sweeper.RetryDue = func(_ context.Context, incomeId int, _ time.Time) (bool, error) {
		return incomeId != 2, nil
	}

	result, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(result.Retired) != 1 || result.Retired[0].ID != 1 {
		t.Fatalf("retired = %+v, want only income 1", result.Retired)
	}
	if result.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", result.Skipped)
	}
}

func TestExpirationSweeper_CancelledContextStopsPass(t *testing.T) {
	store := &fakeSweepStore{incomes: []*models.Income{
		expiredIncome(1, day(2024, time.January, 1)),
	}}
	sweeper := workflow.NewExpirationSweeper(store, workflow.FixedClock{T: day(2024, time.February, 1)}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sweeper.RunOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if store.retireCalls != 0 {
		t.Fatalf("retire called %d times after cancel, want 0", store.retireCalls)
	}
}

func TestExpirationSweeper_PublishesExpiredFact(t *testing.T) {
	t.Setenv("LIFECYCLE_EVENTS_ENABLED", "true")

	endDate := day(2024, time.January, 10)
	store := &fakeSweepStore{incomes: []*models.Income{expiredIncome(7, endDate)}}
	sweeper := workflow.NewExpirationSweeper(store, workflow.FixedClock{T: day(2024, time.January, 11)}, quietLogger())

	var published []config.EntryLifecycleEvent
	sweeper.PublishEvent = func(event config.EntryLifecycleEvent) error {
		published = append(published, event)
		return nil
	}

	if _, err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(published) != 1 {
		t.Fatalf("published %d events, want 1", len(published))
	}
	event := published[0]
	if event.ReferenceId != 7 || event.Status != string(models.EntryStatusExpired) {
		t.Fatalf("event = %+v", event)
	}
	if !strings.Contains(event.Reason, "2024-01-10") {
		t.Fatalf("reason %q does not name the end date", event.Reason)
	}
}

func TestExpirationSweeper_PublishErrorDoesNotFailEntry(t *testing.T) {
	t.Setenv("LIFECYCLE_EVENTS_ENABLED", "true")

	store := &fakeSweepStore{incomes: []*models.Income{expiredIncome(1, day(2024, time.January, 1))}}
	sweeper := workflow.NewExpirationSweeper(store, workflow.FixedClock{T: day(2024, time.February, 1)}, quietLogger())
	sweeper.PublishEvent = func(config.EntryLifecycleEvent) error {
		return errors.New("topic unavailable")
	}

	result, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(result.Retired) != 1 || len(result.Failures) != 0 {
		t.Fatalf("result = %+v, want one retired and no failures", result)
	}
}
