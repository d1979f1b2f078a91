package workflow_test

import (
	"testing"
	"time"

	"github.com/moneymap/fintrack_backend/models"
	"github.com/moneymap/fintrack_backend/workflow"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(t time.Time) *time.Time { return &t }

func TestClassifyIncome_NonRecurringEndDateBoundary(t *testing.T) {
	endDate := day(2024, time.January, 10)
	income := &models.Income{
		IncomeType: models.EntryTypeNonRecurring,
		EndDate:    datePtr(endDate),
	}

	// Ending today is still current; expiry starts the next day.
	if got := workflow.ClassifyIncome(income, day(2024, time.January, 10)); got != models.EntryStatusCurrent {
		t.Fatalf("on end date: got %q, want current", got)
	}
	if got := workflow.ClassifyIncome(income, day(2024, time.January, 11)); got != models.EntryStatusExpired {
		t.Fatalf("day after end date: got %q, want expired", got)
	}
	if got := workflow.ClassifyIncome(income, day(2024, time.January, 9)); got != models.EntryStatusCurrent {
		t.Fatalf("before end date: got %q, want current", got)
	}
}

func TestClassifyIncome_NonRecurringWithoutEndDateNeverExpires(t *testing.T) {
	income := &models.Income{IncomeType: models.EntryTypeNonRecurring}
	if got := workflow.ClassifyIncome(income, day(2030, time.December, 31)); got != models.EntryStatusCurrent {
		t.Fatalf("got %q, want current", got)
	}
}

func TestClassifyIncome_Recurring(t *testing.T) {
	monthly := models.FrequencyMonthly
	cases := []struct {
		name  string
		start time.Time
		today time.Time
		want  models.EntryStatus
	}{
		{"starts today", day(2024, time.May, 5), day(2024, time.May, 5), models.EntryStatusCurrent},
		{"starts in the future", day(2024, time.May, 6), day(2024, time.May, 5), models.EntryStatusUpcoming},
		{"already running", day(2024, time.April, 1), day(2024, time.May, 5), models.EntryStatusCurrent},
	}
	for _, c := range cases {
		income := &models.Income{
			IncomeType: models.EntryTypeRecurring,
			Frequency:  &monthly,
			StartDate:  datePtr(c.start),
		}
		if got := workflow.ClassifyIncome(income, c.today); got != c.want {
			t.Fatalf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}

func TestClassifyIncome_RecurringIgnoresTimeOfDay(t *testing.T) {
	monthly := models.FrequencyMonthly
	income := &models.Income{
		IncomeType: models.EntryTypeRecurring,
		Frequency:  &monthly,
		StartDate:  datePtr(time.Date(2024, time.May, 5, 23, 30, 0, 0, time.UTC)),
	}
	today := time.Date(2024, time.May, 5, 1, 0, 0, 0, time.UTC)
	if got := workflow.ClassifyIncome(income, today); got != models.EntryStatusCurrent {
		t.Fatalf("same calendar day with later clock: got %q, want current", got)
	}
}

func TestClassifyIncomes_SamplesClockOnce(t *testing.T) {
	endDate := day(2024, time.January, 10)
	incomes := []*models.Income{
		{IncomeType: models.EntryTypeNonRecurring, EndDate: datePtr(endDate)},
		{IncomeType: models.EntryTypeNonRecurring, EndDate: datePtr(endDate)},
	}
	clock := workflow.FixedClock{T: day(2024, time.January, 11)}
	workflow.ClassifyIncomes(incomes, clock)
	for i, income := range incomes {
		if income.Status != models.EntryStatusExpired {
			t.Fatalf("income %d: got %q, want expired", i, income.Status)
		}
	}
}
