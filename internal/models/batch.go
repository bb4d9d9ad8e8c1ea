package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileBatch представляет закупленную партию профиля: N хлыстов одной
// стандартной длины и одного калибра. Инвариант: 0 <= CurrentQuantity <= OriginalQuantity
type ProfileBatch struct {
	ID         string `json:"id" gorm:"type:uuid;primaryKey"`
	MaterialID string `json:"material_id" gorm:"type:uuid;not null;index"`
	Material   *Material `gorm:"foreignKey:MaterialID" json:"material,omitempty"`
	TenantID   string `json:"tenant_id" gorm:"type:uuid;not null;index"`

	Gauge          string  `json:"gauge" gorm:"type:varchar(20);not null;index"`
	StandardLength float64 `json:"standard_length" gorm:"type:decimal(10,3);not null"` // Длина хлыста
	LengthUnit     string  `json:"length_unit" gorm:"type:varchar(10);not null"`

	OriginalQuantity float64 `json:"original_quantity" gorm:"type:decimal(10,2);not null"` // Хлыстов закуплено
	CurrentQuantity  float64 `json:"current_quantity" gorm:"type:decimal(10,2);not null"`  // Хлыстов осталось

	ActualWeight      float64 `json:"actual_weight" gorm:"type:decimal(12,3);default:0"` // Фактический вес партии по накладной
	RatePerPiece      float64 `json:"rate_per_piece" gorm:"type:decimal(12,4);not null"` // Цена за хлыст
	RatePerWeightUnit float64 `json:"rate_per_weight_unit" gorm:"type:decimal(12,4);default:0"`

	PurchaseDate time.Time `json:"purchase_date" gorm:"type:date;not null;index"`
	SupplierName string    `json:"supplier_name" gorm:"type:varchar(255)"`
	LotNumber    string    `json:"lot_number" gorm:"type:varchar(100)"`

	// Партия закрывается когда CurrentQuantity достигает нуля
	// и больше не участвует в списаниях
	IsCompleted bool           `json:"is_completed" gorm:"default:false;index"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName указывает имя таблицы
func (ProfileBatch) TableName() string {
	return "profile_batches"
}

// BeforeCreate генерирует UUID и устанавливает остаток равным закупке
func (b *ProfileBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CurrentQuantity == 0 && !b.IsCompleted {
		b.CurrentQuantity = b.OriginalQuantity
	}
	return nil
}

// IsConsumable возвращает true, если из партии можно списывать
func (b *ProfileBatch) IsConsumable() bool {
	return !b.IsCompleted && b.CurrentQuantity > 0
}

// SimpleBatch представляет партию нештучного материала (стекло, фурнитура,
// сетка, расходники) — количество без привязки к длине
type SimpleBatch struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey"`
	MaterialID string    `json:"material_id" gorm:"type:uuid;not null;index"`
	Material   *Material `gorm:"foreignKey:MaterialID" json:"material,omitempty"`
	TenantID   string    `json:"tenant_id" gorm:"type:uuid;not null;index"`

	OriginalQuantity float64 `json:"original_quantity" gorm:"type:decimal(12,3);not null"`
	CurrentQuantity  float64 `json:"current_quantity" gorm:"type:decimal(12,3);not null"`
	Unit             string  `json:"unit" gorm:"type:varchar(20);not null"`
	RatePerUnit      float64 `json:"rate_per_unit" gorm:"type:decimal(12,4);not null"`

	PurchaseDate time.Time `json:"purchase_date" gorm:"type:date;not null;index"`
	SupplierName string    `json:"supplier_name" gorm:"type:varchar(255)"`
	LotNumber    string    `json:"lot_number" gorm:"type:varchar(100)"`

	IsCompleted bool           `json:"is_completed" gorm:"default:false;index"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName указывает имя таблицы
func (SimpleBatch) TableName() string {
	return "simple_batches"
}

// BeforeCreate генерирует UUID и устанавливает остаток равным закупке
func (b *SimpleBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CurrentQuantity == 0 && !b.IsCompleted {
		b.CurrentQuantity = b.OriginalQuantity
	}
	return nil
}

// IsConsumable возвращает true, если из партии можно списывать
func (b *SimpleBatch) IsConsumable() bool {
	return !b.IsCompleted && b.CurrentQuantity > 0
}
