package models

import (
	"context"
	"time"

	"github.com/moneymap/fintrack_backend/config"
	"gorm.io/gorm"
)

// GormSweepStore is the production entity store behind the expiration sweep.
// The sweep itself stays DB-free and talks to this through a narrow interface.
type GormSweepStore struct{}

func NewGormSweepStore() *GormSweepStore { return &GormSweepStore{} }

func (s *GormSweepStore) ListExpiredIncomes(ctx context.Context, today time.Time, limit int) ([]*Income, error) {
	return ListExpiredNonRecurringIncomes(ctx, today, limit)
}

// RetireIncome deletes the income and terminally marks its audit transaction
// in one database transaction, so readers never observe a deleted income with
// an unmarked transaction.
func (s *GormSweepStore) RetireIncome(ctx context.Context, income *Income, today time.Time) error {
	db := config.GetDB()

	endDate := today
	if income.EndDate != nil {
		endDate = *income.EndDate
	}
	remark := ExpirationRemark(income.Name, endDate)

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Income{}, income.ID).Error; err != nil {
			return err
		}
		return markEntryTransactionExpired(tx, ReferenceTypeIncome, income.ID, today, remark)
	})
}
