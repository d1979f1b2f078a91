package models

import (
	"log"

	"github.com/moneymap/fintrack_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Budget{},
		&Income{},
		&EntryTransaction{},
		&SweepFailureRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
