package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireSweepLock serializes the expiration sweep across instances using a
// MySQL advisory lock.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will run the sweep's writes.
func AcquireSweepLock(tx *gorm.DB, name string) error {
	lockName := fmt.Sprintf("sweep:%s", name)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire sweep lock %q", lockName)
	}
	return nil
}

func ReleaseSweepLock(tx *gorm.DB, name string) {
	lockName := fmt.Sprintf("sweep:%s", name)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
