package models

import (
	"context"
	"errors"
	"time"

	"github.com/moneymap/fintrack_backend/config"
	"github.com/moneymap/fintrack_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Income struct {
	ID            int             `gorm:"primary_key" json:"id"`
	UserId        string          `gorm:"size:64;index;not null" json:"user_id" binding:"required"`
	Name          string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Category      string          `gorm:"size:100" json:"category"`
	IncomeType    EntryType       `gorm:"type:enum('recurring', 'non-recurring');not null" json:"income_type" binding:"required"`
	Frequency     *Frequency      `gorm:"type:enum('daily', 'weekly', 'monthly', 'yearly');default:null" json:"frequency"`
	StartDate     *time.Time      `gorm:"default:null" json:"start_date"`
	EndDate       *time.Time      `gorm:"index;default:null" json:"end_date"`
	LastProcessed *time.Time      `gorm:"default:null" json:"last_processed"`
	// Status is derived from the dates on every read; never persisted here.
	Status    EntryStatus `gorm:"-" json:"status,omitempty"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewIncome struct {
	Name       string          `json:"name" binding:"required" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Category   string          `json:"category"`
	IncomeType EntryType       `json:"income_type" binding:"required" validate:"required"`
	Frequency  *Frequency      `json:"frequency"`
	StartDate  *time.Time      `json:"start_date"`
	EndDate    *time.Time      `json:"end_date"`
}

func (obj Income) GetId() int {
	return obj.ID
}

func (obj Income) IsRecurring() bool {
	return obj.IncomeType == EntryTypeRecurring
}

// DeriveStatus classifies the income relative to today. Pure; today is
// sampled once per batch by the caller so one pass sees one consistent view.
func (obj Income) DeriveStatus(today time.Time) EntryStatus {
	today = utils.TruncateToDay(today)

	if obj.IsRecurring() {
		if obj.StartDate == nil {
			return EntryStatusCurrent
		}
		start := utils.TruncateToDay(*obj.StartDate)
		if utils.IsSameCalendarDay(start, today) {
			return EntryStatusCurrent
		}
		if start.After(today) {
			return EntryStatusUpcoming
		}
		// Already started and keeps recurring.
		return EntryStatusCurrent
	}

	// Non-recurring: expired strictly after the end date. An income ending
	// today is still current; it expires starting tomorrow.
	if obj.EndDate != nil && today.After(utils.TruncateToDay(*obj.EndDate)) {
		return EntryStatusExpired
	}
	return EntryStatusCurrent
}

// NextRecurringDate computes the next occurrence after the start date for a
// recurring income; nil for non-recurring ones.
func (obj Income) NextRecurringDate() *time.Time {
	if !obj.IsRecurring() || obj.Frequency == nil || obj.StartDate == nil {
		return nil
	}
	next := obj.Frequency.NextOccurrence(utils.TruncateToDay(*obj.StartDate))
	return &next
}

func validateIncomeDates(input *NewIncome) error {
	if input.IncomeType == EntryTypeRecurring {
		if input.Frequency == nil {
			return utils.ErrorFrequencyRequired
		}
		if input.StartDate == nil {
			return errors.New("start date is required for recurring incomes")
		}
		if input.EndDate != nil {
			return errors.New("recurring incomes cannot carry an end date")
		}
		return nil
	}
	if input.Frequency != nil {
		return utils.ErrorFrequencyNotAllowed
	}
	return nil
}

func CreateIncome(ctx context.Context, input *NewIncome, today time.Time) (*Income, error) {
	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	if err := validateIncomeDates(input); err != nil {
		return nil, err
	}

	income := Income{
		UserId:     userId,
		Name:       input.Name,
		Amount:     input.Amount,
		Category:   input.Category,
		IncomeType: input.IncomeType,
		Frequency:  input.Frequency,
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
	}

	// Non-recurring incomes always end; default to one month out so the
	// sweep has a concrete date to compare against.
	if income.IncomeType == EntryTypeNonRecurring && income.EndDate == nil {
		base := utils.TruncateToDay(today)
		if income.StartDate != nil {
			base = utils.TruncateToDay(*income.StartDate)
		}
		end := utils.AddMonths(base, 1)
		income.EndDate = &end
	}

	income.Status = income.DeriveStatus(today)

	// Income row and its audit transaction land together or not at all.
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&income).Error; err != nil {
			return err
		}
		txn := NewEntryTransactionFromIncome(&income)
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}

	return &income, nil
}

// DeleteIncome removes an income on explicit user action and terminally marks
// its audit transaction, same as the sweep would.
func DeleteIncome(ctx context.Context, id int, today time.Time) (*Income, error) {
	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	result, err := utils.FetchModel[Income](ctx, userId, id)
	if err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(result).Error; err != nil {
			return err
		}
		remark := "Income " + result.Name + " was deleted by its owner"
		return markEntryTransactionExpired(tx, ReferenceTypeIncome, result.ID, today, remark)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetIncome reads one income with its status derived against today.
func GetIncome(ctx context.Context, id int, today time.Time) (*Income, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	if err := utils.ValidateResourceId[Income](ctx, userId, id); err != nil {
		return nil, err
	}
	result, err := utils.FetchSingleModel[Income](ctx, id)
	if err != nil {
		return nil, err
	}
	result.Status = result.DeriveStatus(today)
	return result, nil
}

// GetIncomes lists the owner's incomes with statuses derived against a single
// today value.
func GetIncomes(ctx context.Context, today time.Time) ([]*Income, error) {
	db := config.GetDB()
	var results []*Income

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	for _, income := range results {
		income.Status = income.DeriveStatus(today)
	}
	return results, nil
}

// ListExpiredNonRecurringIncomes selects sweep-eligible incomes across all
// users: non-recurring with an end date strictly before today. Rows already
// deleted by an earlier pass simply no longer match, which is what makes the
// sweep idempotent.
func ListExpiredNonRecurringIncomes(ctx context.Context, today time.Time, limit int) ([]*Income, error) {
	db := config.GetDB()
	var results []*Income

	err := db.WithContext(ctx).
		Where("income_type = ?", EntryTypeNonRecurring).
		Where("end_date IS NOT NULL AND end_date < ?", utils.TruncateToDay(today)).
		Order("id ASC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
