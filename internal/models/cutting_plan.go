package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CuttingPlanStatus представляет статус плана раскроя
type CuttingPlanStatus string

const (
	// PlanStatusGenerated — предпросмотр: склад не затронут, план можно удалить
	PlanStatusGenerated CuttingPlanStatus = "generated"
	// PlanStatusCommitted — склад списан, статус терминальный, отката нет
	// (только корректирующие записи журнала задним числом)
	PlanStatusCommitted CuttingPlanStatus = "committed"
)

// CuttingPlan представляет план раскроя заказа: какие резы на какие хлысты
// назначены и из каких партий хлысты берутся. Один план на заказ
type CuttingPlan struct {
	ID       string            `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID  string            `json:"order_id" gorm:"type:uuid;not null;uniqueIndex"`
	TenantID string            `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Status   CuttingPlanStatus `json:"status" gorm:"type:varchar(20);not null;default:'generated';index"`

	TotalWeight float64    `json:"total_weight" gorm:"type:decimal(12,3);default:0"` // Суммарный вес профиля по плану
	GeneratedAt time.Time  `json:"generated_at" gorm:"not null"`
	CommittedAt *time.Time `json:"committed_at"`
	CommittedBy string     `json:"committed_by" gorm:"type:varchar(255)"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	// Relations
	MaterialPlans []MaterialPlan `json:"material_plans,omitempty" gorm:"foreignKey:CuttingPlanID"`
}

// TableName указывает имя таблицы
func (CuttingPlan) TableName() string {
	return "cutting_plans"
}

// BeforeCreate генерирует UUID
func (cp *CuttingPlan) BeforeCreate(tx *gorm.DB) error {
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.GeneratedAt.IsZero() {
		cp.GeneratedAt = time.Now()
	}
	return nil
}

// IsCommitted проверяет, списан ли план на склад
func (cp *CuttingPlan) IsCommitted() bool {
	return cp.Status == PlanStatusCommitted
}

// CutEntry представляет один рез, размещенный на хлысте
type CutEntry struct {
	Length     float64 `json:"length"`
	Identifier string  `json:"identifier"` // Например "W1-track-left"
}

// PipeUsage представляет один хлыст стандартной длины с назначенными резами.
// Инвариант: ScrapLength = StandardLength - TotalCutLength >= 0
type PipeUsage struct {
	StandardLength float64    `json:"standard_length"`
	LengthUnit     string     `json:"length_unit"`
	Cuts           []CutEntry `json:"cuts"`
	TotalCutLength float64    `json:"total_cut_length"`
	ScrapLength    float64    `json:"scrap_length"`
	Weight         float64    `json:"weight,omitempty"` // Вес хлыста по калибру, 0 если вес не отслеживается
}

// LengthSummary представляет сводку по одной стандартной длине
type LengthSummary struct {
	StandardLength float64 `json:"standard_length"`
	PipeCount      int     `json:"pipe_count"`
	TotalScrap     float64 `json:"total_scrap"`
}

// PlanShortfall представляет нехватку хлыстов, обнаруженную при предпросмотре.
// План в статусе generated сохраняется и с нехваткой — докупка решается отдельно
type PlanShortfall struct {
	StandardLength float64 `json:"standard_length"`
	LengthUnit     string  `json:"length_unit"`
	Gauge          string  `json:"gauge"`
	Quantity       float64 `json:"quantity"`
}

// MaterialPlan представляет раскрой одного материала внутри плана заказа.
// Имя, калибр и единицы — снимок на момент генерации: план остается валидным
// даже если карточку материала потом изменят
type MaterialPlan struct {
	ID            string `json:"id" gorm:"type:uuid;primaryKey"`
	CuttingPlanID string `json:"cutting_plan_id" gorm:"type:uuid;not null;index"`
	MaterialID    string `json:"material_id" gorm:"type:uuid;not null;index"`

	// Снимок материала
	MaterialName string `json:"material_name" gorm:"type:varchar(255);not null"`
	Gauge        string `json:"gauge" gorm:"type:varchar(20)"`
	UsageUnit    string `json:"usage_unit" gorm:"type:varchar(20)"`
	LengthUnit   string `json:"length_unit" gorm:"type:varchar(10)"`

	// Для нештучных материалов — требуемое количество вместо раскроя
	UnitDemand float64 `json:"unit_demand" gorm:"type:decimal(12,3);default:0"`

	Pipes      string  `json:"-" gorm:"type:jsonb"` // JSON массив PipeUsage
	Summary    string  `json:"-" gorm:"type:jsonb"` // JSON массив LengthSummary
	Shortfalls string  `json:"-" gorm:"type:jsonb"` // JSON массив PlanShortfall (только предпросмотр)
	TotalWeight float64 `json:"total_weight" gorm:"type:decimal(12,3);default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName указывает имя таблицы
func (MaterialPlan) TableName() string {
	return "material_plans"
}

// BeforeCreate генерирует UUID
func (mp *MaterialPlan) BeforeCreate(tx *gorm.DB) error {
	if mp.ID == "" {
		mp.ID = uuid.New().String()
	}
	return nil
}

// GetPipes возвращает хлысты плана из JSON колонки
func (mp *MaterialPlan) GetPipes() ([]PipeUsage, error) {
	if mp.Pipes == "" {
		return []PipeUsage{}, nil
	}
	var pipes []PipeUsage
	if err := json.Unmarshal([]byte(mp.Pipes), &pipes); err != nil {
		return nil, err
	}
	return pipes, nil
}

// SetPipes сериализует хлысты плана в JSON колонку
func (mp *MaterialPlan) SetPipes(pipes []PipeUsage) error {
	data, err := json.Marshal(pipes)
	if err != nil {
		return err
	}
	mp.Pipes = string(data)
	return nil
}

// GetSummary возвращает сводку по стандартным длинам из JSON колонки
func (mp *MaterialPlan) GetSummary() ([]LengthSummary, error) {
	if mp.Summary == "" {
		return []LengthSummary{}, nil
	}
	var summary []LengthSummary
	if err := json.Unmarshal([]byte(mp.Summary), &summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// SetSummary сериализует сводку в JSON колонку
func (mp *MaterialPlan) SetSummary(summary []LengthSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	mp.Summary = string(data)
	return nil
}

// GetShortfalls возвращает нехватки из JSON колонки
func (mp *MaterialPlan) GetShortfalls() ([]PlanShortfall, error) {
	if mp.Shortfalls == "" {
		return []PlanShortfall{}, nil
	}
	var shortfalls []PlanShortfall
	if err := json.Unmarshal([]byte(mp.Shortfalls), &shortfalls); err != nil {
		return nil, err
	}
	return shortfalls, nil
}

// SetShortfalls сериализует нехватки в JSON колонку
func (mp *MaterialPlan) SetShortfalls(shortfalls []PlanShortfall) error {
	data, err := json.Marshal(shortfalls)
	if err != nil {
		return err
	}
	mp.Shortfalls = string(data)
	return nil
}
