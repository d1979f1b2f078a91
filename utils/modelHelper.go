package utils

import (
	"context"

	"github.com/moneymap/fintrack_backend/config"
)

/* DB fetching */

// fetch model from db
// (may return RecordNotFound)
func FetchSingleModel[T any](ctx context.Context, id int) (*T, error) {

	db := config.GetDB()
	var result T
	err := db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch model from db
// (ctx's user_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, userId string, id int) (*T, error) {

	db := config.GetDB()
	var result T
	err := db.WithContext(ctx).Where("user_id = ?", userId).First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// count records, using WHERE user_id = ? AND $condition
// user_id can be blank for batch jobs
func ResourceCountWhere[T any](ctx context.Context, userId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if userId != "" {
		dbCtx.Where("user_id = ?", userId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// check if id exists, using ctx's user_id in WHERE, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, userId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, userId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}
