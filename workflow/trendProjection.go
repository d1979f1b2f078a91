package workflow

import (
	"sort"
	"time"

	"github.com/moneymap/fintrack_backend/models"
	"github.com/moneymap/fintrack_backend/utils"
	"github.com/shopspring/decimal"
)

// weeksPerCatchupMonth is the fixed approximation a weekly budget contributes
// in every month after its creation month. Actual months hold 4 to 5 weeks;
// the flat 4 is a deliberate, documented simplification of the chart, not a
// bug to correct.
const weeksPerCatchupMonth = 4

var twelve = decimal.NewFromInt(12)

// MonthlyBudgetPoint is one point of the trend chart, total rounded to the
// nearest whole unit of currency.
type MonthlyBudgetPoint struct {
	Month       string `json:"month"` // "2006-01"
	TotalBudget int64  `json:"total_budget"`
}

// ProjectBudgetTrend builds the monthly series of expected budget totals from
// each budget's creation month through today's month, apportioning budgets
// created mid-month. A budget with no usable creation date is skipped so one
// malformed row cannot blank the whole chart.
func ProjectBudgetTrend(budgets []*models.Budget, today time.Time) []MonthlyBudgetPoint {
	today = utils.TruncateToDay(today)
	totals := make(map[string]decimal.Decimal)

	for _, budget := range budgets {
		if budget == nil || budget.CreatedAt.IsZero() {
			continue
		}
		accumulateBudget(totals, budget, today)
	}

	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	// "2006-01" keys sort chronologically as strings.
	sort.Strings(keys)

	series := make([]MonthlyBudgetPoint, 0, len(keys))
	for _, k := range keys {
		series = append(series, MonthlyBudgetPoint{
			Month:       k,
			TotalBudget: totals[k].Round(0).IntPart(),
		})
	}
	return series
}

func accumulateBudget(totals map[string]decimal.Decimal, budget *models.Budget, today time.Time) {
	created := utils.TruncateToDay(budget.CreatedAt)
	if created.After(today) {
		return
	}

	// One-time budget: the full amount lands in the creation month only.
	if !budget.IsRecurring() || budget.Frequency == nil {
		addToMonth(totals, created, budget.Amount)
		return
	}

	switch *budget.Frequency {
	case models.FrequencyMonthly:
		forEachMonth(created, today, func(month time.Time, _ bool) {
			addToMonth(totals, month, budget.Amount)
		})
	case models.FrequencyYearly:
		// Spread the annual amount evenly rather than lumping it into the
		// anniversary month.
		monthly := budget.Amount.Div(twelve)
		forEachMonth(created, today, func(month time.Time, _ bool) {
			addToMonth(totals, month, monthly)
		})
	case models.FrequencyDaily:
		forEachMonth(created, today, func(month time.Time, first bool) {
			days := utils.DaysInMonth(month)
			if first {
				days = utils.RemainingDaysInMonth(created)
			}
			addToMonth(totals, month, budget.Amount.Mul(decimal.NewFromInt(int64(days))))
		})
	case models.FrequencyWeekly:
		forEachMonth(created, today, func(month time.Time, first bool) {
			weeks := weeksPerCatchupMonth
			if first {
				weeks = ceilDiv(utils.RemainingDaysInMonth(created), 7)
			}
			addToMonth(totals, month, budget.Amount.Mul(decimal.NewFromInt(int64(weeks))))
		})
	}
}

// forEachMonth walks calendar months from the creation month through today's
// month inclusive, flagging the creation month.
func forEachMonth(created, today time.Time, fn func(month time.Time, first bool)) {
	current := utils.StartOfMonth(created)
	last := utils.StartOfMonth(today)
	first := true
	for !current.After(last) {
		fn(current, first)
		first = false
		current = current.AddDate(0, 1, 0)
	}
}

func addToMonth(totals map[string]decimal.Decimal, month time.Time, amount decimal.Decimal) {
	key := utils.MonthKey(month)
	totals[key] = totals[key].Add(amount)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// TrendPercentage is the month-over-month change of the two newest points.
// ok is false when fewer than two months exist or the previous total is zero;
// callers render that as "no trend", never as a division blowing up.
func TrendPercentage(series []MonthlyBudgetPoint) (decimal.Decimal, bool) {
	if len(series) < 2 {
		return decimal.Zero, false
	}
	previous := decimal.NewFromInt(series[len(series)-2].TotalBudget)
	latest := decimal.NewFromInt(series[len(series)-1].TotalBudget)
	if previous.IsZero() {
		return decimal.Zero, false
	}
	return latest.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)), true
}
