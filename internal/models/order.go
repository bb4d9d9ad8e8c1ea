package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus представляет статус производственного заказа
type OrderStatus string

const (
	OrderStatusDraft            OrderStatus = "draft"             // Черновик
	OrderStatusConfirmed        OrderStatus = "confirmed"         // Подтвержден клиентом
	OrderStatusReadyToCut       OrderStatus = "ready_to_cut"      // План раскроя сгенерирован
	OrderStatusCuttingCommitted OrderStatus = "cutting_committed" // Склад списан, раскрой в работе
	OrderStatusAssembly         OrderStatus = "assembly"          // Сборка
	OrderStatusQualityCheck     OrderStatus = "quality_check"     // Контроль качества
	OrderStatusDispatched       OrderStatus = "dispatched"        // Отгружен
	OrderStatusCancelled        OrderStatus = "cancelled"         // Отменен
)

// orderStatusTransitions задает допустимые переходы статусов.
// После списания склада (cutting_committed) отмена невозможна —
// только корректирующие записи журнала
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:            {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:        {OrderStatusReadyToCut, OrderStatusCancelled},
	OrderStatusReadyToCut:       {OrderStatusCuttingCommitted, OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusCuttingCommitted: {OrderStatusAssembly},
	OrderStatusAssembly:         {OrderStatusQualityCheck},
	OrderStatusQualityCheck:     {OrderStatusDispatched, OrderStatusAssembly},
	OrderStatusDispatched:       {},
	OrderStatusCancelled:        {},
}

// CanTransitionTo проверяет допустимость перехода статуса
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// FabricationOrder представляет производственный заказ на изготовление окон
type FabricationOrder struct {
	ID          string      `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID    string      `json:"tenant_id" gorm:"type:uuid;not null;index"`
	OrderNumber string      `json:"order_number" gorm:"type:varchar(50);uniqueIndex;not null"` // ORD-2026-0001
	ClientName  string      `json:"client_name" gorm:"type:varchar(255);not null"`
	ClientPhone string      `json:"client_phone" gorm:"type:varchar(30)"`
	Status      OrderStatus `json:"status" gorm:"type:varchar(30);not null;default:'draft';index"`
	Notes       string      `json:"notes" gorm:"type:text"`

	// Ссылка на план раскроя только по ID — без встречной вложенной ссылки,
	// чтобы не плодить циклы при сериализации
	CuttingPlanID *string `json:"cutting_plan_id" gorm:"type:uuid;index"`

	CreatedBy string         `json:"created_by" gorm:"type:varchar(255)"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	// Relations
	Items           []OrderItem      `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	RequiredCuts    []RequiredCut    `json:"required_cuts,omitempty" gorm:"foreignKey:OrderID"`
	MaterialDemands []MaterialDemand `json:"material_demands,omitempty" gorm:"foreignKey:OrderID"`
}

// TableName указывает имя таблицы
func (FabricationOrder) TableName() string {
	return "fabrication_orders"
}

// BeforeCreate генерирует UUID и статус по умолчанию
func (o *FabricationOrder) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = OrderStatusDraft
	}
	return nil
}

// OrderItem представляет одну позицию заказа (окно/дверь определенного размера)
type OrderItem struct {
	ID          string  `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID     string  `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductName string  `json:"product_name" gorm:"type:varchar(255);not null"` // "Sliding Window 2-Track"
	WidthMM     float64 `json:"width_mm" gorm:"type:decimal(10,2)"`
	HeightMM    float64 `json:"height_mm" gorm:"type:decimal(10,2)"`
	Quantity    int     `json:"quantity" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName указывает имя таблицы
func (OrderItem) TableName() string {
	return "order_items"
}

// BeforeCreate генерирует UUID
func (oi *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if oi.ID == "" {
		oi.ID = uuid.New().String()
	}
	return nil
}

// RequiredCut представляет один требуемый рез профиля.
// Список резов поступает от расчета формул изделия и принимается как данность —
// корректность формул здесь не проверяется. Только для профильных материалов
type RequiredCut struct {
	ID          string  `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID     string  `json:"order_id" gorm:"type:uuid;not null;index"`
	OrderItemID *string `json:"order_item_id" gorm:"type:uuid;index"`
	MaterialID  string  `json:"material_id" gorm:"type:uuid;not null;index"`
	Length      float64 `json:"length" gorm:"type:decimal(10,3);not null"`
	LengthUnit  string  `json:"length_unit" gorm:"type:varchar(10);not null"`
	Identifier  string  `json:"identifier" gorm:"type:varchar(100);not null"` // Например "W1-track-left"

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName указывает имя таблицы
func (RequiredCut) TableName() string {
	return "required_cuts"
}

// BeforeCreate генерирует UUID
func (rc *RequiredCut) BeforeCreate(tx *gorm.DB) error {
	if rc.ID == "" {
		rc.ID = uuid.New().String()
	}
	return nil
}

// MaterialDemand представляет потребность заказа в нештучном материале
// (стекло, фурнитура, сетка) — простое количество без раскроя
type MaterialDemand struct {
	ID         string  `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID    string  `json:"order_id" gorm:"type:uuid;not null;index"`
	MaterialID string  `json:"material_id" gorm:"type:uuid;not null;index"`
	Quantity   float64 `json:"quantity" gorm:"type:decimal(12,3);not null"`
	Unit       string  `json:"unit" gorm:"type:varchar(20);not null"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName указывает имя таблицы
func (MaterialDemand) TableName() string {
	return "material_demands"
}

// BeforeCreate генерирует UUID
func (md *MaterialDemand) BeforeCreate(tx *gorm.DB) error {
	if md.ID == "" {
		md.ID = uuid.New().String()
	}
	return nil
}
