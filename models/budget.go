package models

import (
	"context"
	"errors"
	"time"

	"github.com/moneymap/fintrack_backend/config"
	"github.com/moneymap/fintrack_backend/utils"
	"github.com/shopspring/decimal"
)

type Budget struct {
	ID         int             `gorm:"primary_key" json:"id"`
	UserId     string          `gorm:"size:64;index;not null" json:"user_id" binding:"required"`
	Name       string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Category   string          `gorm:"size:100" json:"category"`
	BudgetType *EntryType      `gorm:"type:enum('recurring', 'non-recurring');default:null" json:"budget_type"`
	Frequency  *Frequency      `gorm:"type:enum('daily', 'weekly', 'monthly', 'yearly');default:null" json:"frequency"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBudget struct {
	Name       string          `json:"name" binding:"required" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Category   string          `json:"category"`
	BudgetType *EntryType      `json:"budget_type"`
	Frequency  *Frequency      `json:"frequency"`
}

func (obj Budget) GetId() int {
	return obj.ID
}

// IsRecurring reports whether the budget repeats. A nil BudgetType means a
// plain one-time budget.
func (obj Budget) IsRecurring() bool {
	return obj.BudgetType != nil && *obj.BudgetType == EntryTypeRecurring
}

// frequency present if and only if the budget is recurring
func validateBudgetFrequency(budgetType *EntryType, frequency *Frequency) error {
	recurring := budgetType != nil && *budgetType == EntryTypeRecurring
	if recurring && frequency == nil {
		return utils.ErrorFrequencyRequired
	}
	if !recurring && frequency != nil {
		return utils.ErrorFrequencyNotAllowed
	}
	return nil
}

func CreateBudget(ctx context.Context, input *NewBudget) (*Budget, error) {
	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	if err := validateBudgetFrequency(input.BudgetType, input.Frequency); err != nil {
		return nil, err
	}

	budget := Budget{
		UserId:     userId,
		Name:       input.Name,
		Amount:     input.Amount,
		Category:   input.Category,
		BudgetType: input.BudgetType,
		Frequency:  input.Frequency,
	}

	if err := db.WithContext(ctx).Create(&budget).Error; err != nil {
		return nil, err
	}

	return &budget, nil
}

func UpdateBudget(ctx context.Context, id int, input *NewBudget) (*Budget, error) {
	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	if err := validateBudgetFrequency(input.BudgetType, input.Frequency); err != nil {
		return nil, err
	}

	existing, err := utils.FetchModel[Budget](ctx, userId, id)
	if err != nil {
		return nil, err
	}

	existing.Name = input.Name
	existing.Amount = input.Amount
	existing.Category = input.Category
	existing.BudgetType = input.BudgetType
	existing.Frequency = input.Frequency

	if err := db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, err
	}

	return existing, nil
}

// DeleteBudget removes a budget on explicit user action. Budgets are never
// retired by the expiration sweep.
func DeleteBudget(ctx context.Context, id int) (*Budget, error) {
	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	result, err := utils.FetchModel[Budget](ctx, userId, id)
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).Delete(result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func GetBudget(ctx context.Context, id int) (*Budget, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	if err := utils.ValidateResourceId[Budget](ctx, userId, id); err != nil {
		return nil, err
	}
	return utils.FetchSingleModel[Budget](ctx, id)
}

func GetBudgets(ctx context.Context, name *string) ([]*Budget, error) {
	db := config.GetDB()
	var results []*Budget

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	dbCtx := db.WithContext(ctx).Where("user_id = ?", userId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.
		Order("created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
