package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaterialCategory представляет категорию материала
type MaterialCategory string

const (
	MaterialCategoryProfile  MaterialCategory = "profile"   // Алюминиевый профиль (учет по длине)
	MaterialCategoryGlass    MaterialCategory = "glass"     // Стекло (учет по площади/штукам)
	MaterialCategoryHardware MaterialCategory = "hardware"  // Фурнитура (учет по штукам)
	MaterialCategoryWireMesh MaterialCategory = "wire_mesh" // Сетка (учет по площади)
	MaterialCategorySimple   MaterialCategory = "simple"    // Прочие расходники
)

// IsLengthBased возвращает true для материалов, которые закупаются хлыстами
// стандартной длины и требуют раскроя
func (mc MaterialCategory) IsLengthBased() bool {
	return mc == MaterialCategoryProfile
}

// Material представляет материал склада (профиль, стекло, фурнитура и т.д.)
type Material struct {
	ID         string           `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID   string           `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Name       string           `json:"name" gorm:"type:varchar(255);not null"`
	Category   MaterialCategory `json:"category" gorm:"type:varchar(30);not null;index"`
	UsageUnit  string           `json:"usage_unit" gorm:"type:varchar(20);not null"`        // Единица расхода: pcs, sqft, kg
	LengthUnit string           `json:"length_unit" gorm:"type:varchar(10)"`                // Единица длины для профилей: ft, mm, m
	// Минимальный шаг реза. Все требуемые длины округляются вверх до кратного
	// этому значению перед раскроем. 0 = значение по умолчанию для единицы длины
	CutTolerance float64 `json:"cut_tolerance" gorm:"type:decimal(10,4);default:0"`
	// Средневзвешенная цена по активным партиям. Пересчитывается при оприходовании,
	// используется ТОЛЬКО для отображения — списание всегда идет по цене конкретной партии
	CurrentRate   float64        `json:"current_rate" gorm:"type:decimal(12,4);default:0"`
	MinStockLevel float64        `json:"min_stock_level" gorm:"type:decimal(10,2);default:0"`
	IsActive      bool           `json:"is_active" gorm:"default:true;index"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	// Relations
	Gauges []MaterialGauge `json:"gauges,omitempty" gorm:"foreignKey:MaterialID"`
}

// TableName указывает имя таблицы
func (Material) TableName() string {
	return "materials"
}

// BeforeCreate генерирует UUID
func (m *Material) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// MaterialGauge представляет калибр (толщину) профиля.
// Калибр задается явно при создании партии — вывод калибра из веса запрещен,
// так как отображение вес→калибр неоднозначно
type MaterialGauge struct {
	ID         string `json:"id" gorm:"type:uuid;primaryKey"`
	MaterialID string `json:"material_id" gorm:"type:uuid;not null;index:idx_gauge_material_code,unique"`
	Code       string `json:"code" gorm:"type:varchar(20);not null;index:idx_gauge_material_code,unique"` // Например "20G"
	// Вес одной единицы длины хлыста (в единицах веса материала на length_unit).
	// Используется для расчета веса хлыста в плане раскроя
	WeightPerLength float64   `json:"weight_per_length" gorm:"type:decimal(12,6);default:0"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName указывает имя таблицы
func (MaterialGauge) TableName() string {
	return "material_gauges"
}

// BeforeCreate генерирует UUID
func (g *MaterialGauge) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	return nil
}
