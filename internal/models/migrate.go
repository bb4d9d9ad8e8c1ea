package models

import (
	"fmt"

	"gorm.io/gorm"
)

// AutoMigrate создает таблицы в БД
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Material{},
		&MaterialGauge{},
		&ProfileBatch{},
		&SimpleBatch{},
		&StockTransaction{},
		&FabricationOrder{},
		&OrderItem{},
		&RequiredCut{},
		&MaterialDemand{},
		&CuttingPlan{},
		&MaterialPlan{},
	)
	if err != nil {
		return fmt.Errorf("ошибка миграции: %w", err)
	}
	return nil
}
