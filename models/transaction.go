package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moneymap/fintrack_backend/config"
	"github.com/moneymap/fintrack_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReferenceType string

const (
	ReferenceTypeIncome ReferenceType = "income"
	ReferenceTypeBudget ReferenceType = "budget"
)

// EntryTransaction is the audit projection of an Income or Budget event.
// It carries a denormalized snapshot and outlives its source: when the source
// is deleted it is terminally marked expired with a remark, the durable
// record that the source existed and why it ended.
type EntryTransaction struct {
	ID                int             `gorm:"primary_key" json:"id"`
	UserId            string          `gorm:"size:64;index;not null" json:"user_id" binding:"required"`
	ReferenceType     ReferenceType   `gorm:"type:enum('income', 'budget');not null;index:idx_entry_reference,priority:1" json:"reference_type"`
	ReferenceId       int             `gorm:"not null;index:idx_entry_reference,priority:2" json:"reference_id"`
	Name              string          `gorm:"size:100;not null" json:"name"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Category          string          `gorm:"size:100" json:"category"`
	IsRecurring       bool            `gorm:"not null;default:false" json:"is_recurring"`
	Frequency         *Frequency      `gorm:"type:enum('daily', 'weekly', 'monthly', 'yearly');default:null" json:"frequency"`
	NextRecurringDate *time.Time      `gorm:"default:null" json:"next_recurring_date"`
	Status            EntryStatus     `gorm:"type:enum('current', 'upcoming', 'expired');not null" json:"status"`
	LastProcessed     *time.Time      `gorm:"default:null" json:"last_processed"`
	DeletionRemark    *string         `gorm:"type:text" json:"deletion_remark"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj EntryTransaction) GetId() int {
	return obj.ID
}

// NewEntryTransactionFromIncome snapshots an income at creation time. The
// income's Status must already be derived.
func NewEntryTransactionFromIncome(income *Income) *EntryTransaction {
	return &EntryTransaction{
		UserId:            income.UserId,
		ReferenceType:     ReferenceTypeIncome,
		ReferenceId:       income.ID,
		Name:              income.Name,
		Amount:            income.Amount,
		Category:          income.Category,
		IsRecurring:       income.IsRecurring(),
		Frequency:         income.Frequency,
		NextRecurringDate: income.NextRecurringDate(),
		Status:            income.Status,
		LastProcessed:     income.LastProcessed,
	}
}

// markEntryTransactionExpired terminally expires the audit transaction of a
// deleted source. Idempotent: re-marking an already-expired row rewrites the
// same terminal state.
func markEntryTransactionExpired(tx *gorm.DB, refType ReferenceType, refId int, today time.Time, remark string) error {
	return tx.Model(&EntryTransaction{}).
		Where("reference_type = ? AND reference_id = ?", refType, refId).
		Updates(map[string]interface{}{
			"status":          EntryStatusExpired,
			"last_processed":  utils.TruncateToDay(today),
			"deletion_remark": &remark,
		}).Error
}

// ExpirationRemark is the canonical remark the sweep writes; the end date is
// rendered as a plain calendar day.
func ExpirationRemark(name string, endDate time.Time) string {
	return fmt.Sprintf("Income %s has expired on %s", name, endDate.Format("2006-01-02"))
}

func GetEntryTransactions(ctx context.Context) ([]*EntryTransaction, error) {
	db := config.GetDB()
	var results []*EntryTransaction

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
