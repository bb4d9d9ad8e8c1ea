package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockTransactionType представляет тип движения по складскому журналу
type StockTransactionType string

const (
	StockTxInward          StockTransactionType = "inward"            // Оприходование партии
	StockTxOutwardOrderCut StockTransactionType = "outward_order_cut" // Списание под раскрой заказа
	StockTxOutwardManual   StockTransactionType = "outward_manual"    // Ручное списание
	StockTxScrap           StockTransactionType = "scrap"             // Списание в брак/обрезки
	StockTxCorrection      StockTransactionType = "correction"        // Корректировка после инвентаризации
	StockTxInitialStock    StockTransactionType = "initial_stock"     // Начальный остаток при заведении склада
)

// StockTransaction представляет запись складского журнала.
// Журнал только на добавление: записи никогда не изменяются и не удаляются,
// история остается проверяемой независимо от текущего состояния партий
type StockTransaction struct {
	ID         string               `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID   string               `json:"tenant_id" gorm:"type:uuid;not null;index"`
	MaterialID string               `json:"material_id" gorm:"type:uuid;not null;index"`
	Material   *Material            `gorm:"foreignKey:MaterialID" json:"material,omitempty"`
	BatchID    *string              `json:"batch_id" gorm:"type:uuid;index"` // NULL для движений без привязки к партии
	Type       StockTransactionType `json:"type" gorm:"type:varchar(30);not null;index"`

	Quantity float64 `json:"quantity" gorm:"type:decimal(12,3);not null"` // Положительное = приход, отрицательное = расход
	Unit     string  `json:"unit" gorm:"type:varchar(20);not null"`
	// Цена на момент операции — цена конкретной партии, не средневзвешенная
	RateAtTransaction float64 `json:"rate_at_transaction" gorm:"type:decimal(12,4);not null"`
	TotalValueChange  float64 `json:"total_value_change" gorm:"type:decimal(15,2);not null"` // Quantity * RateAtTransaction

	RelatedDocType string  `json:"related_doc_type" gorm:"type:varchar(30)"` // 'order', 'cutting_plan', 'batch'
	RelatedDocID   *string `json:"related_doc_id" gorm:"type:uuid;index"`

	PerformedBy string    `json:"performed_by" gorm:"type:varchar(255)"`
	Notes       string    `json:"notes" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName указывает имя таблицы
func (StockTransaction) TableName() string {
	return "stock_transactions"
}

// BeforeCreate генерирует UUID и вычисляет стоимость операции
func (st *StockTransaction) BeforeCreate(tx *gorm.DB) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	if st.TotalValueChange == 0 {
		st.TotalValueChange = st.Quantity * st.RateAtTransaction
	}
	return nil
}
