package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"alumfab/server/internal/models"

	"gorm.io/gorm"
)

// OrderService управляет производственными заказами и их жизненным циклом
type OrderService struct {
	db *gorm.DB
}

// NewOrderService создает новый экземпляр OrderService
func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// CreateOrderItemInput — позиция заказа
type CreateOrderItemInput struct {
	ProductName string  `json:"product_name"`
	WidthMM     float64 `json:"width_mm"`
	HeightMM    float64 `json:"height_mm"`
	Quantity    int     `json:"quantity"`
}

// CreateRequiredCutInput — требуемый рез профиля
type CreateRequiredCutInput struct {
	MaterialID string  `json:"material_id"`
	Length     float64 `json:"length"`
	LengthUnit string  `json:"length_unit"`
	Identifier string  `json:"identifier"`
}

// CreateMaterialDemandInput — количественная потребность в материале
type CreateMaterialDemandInput struct {
	MaterialID string  `json:"material_id"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
}

// CreateOrderInput — данные создания заказа
type CreateOrderInput struct {
	TenantID        string
	ClientName      string
	ClientPhone     string
	Notes           string
	CreatedBy       string
	Items           []CreateOrderItemInput
	RequiredCuts    []CreateRequiredCutInput
	MaterialDemands []CreateMaterialDemandInput
}

// CreateOrder создает заказ в статусе draft с позициями, резами и потребностями.
// Номер заказа выдается последовательно в пределах года: ORD-2026-0001
func (s *OrderService) CreateOrder(input CreateOrderInput) (*models.FabricationOrder, error) {
	if input.ClientName == "" {
		return nil, fmt.Errorf("имя клиента обязательно")
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("заказ должен содержать хотя бы одну позицию")
	}
	for _, item := range input.Items {
		if item.ProductName == "" {
			return nil, fmt.Errorf("название изделия обязательно")
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("количество изделия %q должно быть положительным", item.ProductName)
		}
	}
	for _, cut := range input.RequiredCuts {
		if cut.Length <= 0 {
			return nil, fmt.Errorf("рез %q имеет недопустимую длину %v", cut.Identifier, cut.Length)
		}
		if !IsValidLengthUnit(cut.LengthUnit) {
			return nil, fmt.Errorf("рез %q: недопустимая единица длины %q", cut.Identifier, cut.LengthUnit)
		}
		if cut.MaterialID == "" {
			return nil, fmt.Errorf("рез %q не привязан к материалу", cut.Identifier)
		}
	}
	for _, demand := range input.MaterialDemands {
		if demand.Quantity <= 0 {
			return nil, fmt.Errorf("потребность в материале %s должна быть положительной", demand.MaterialID)
		}
	}

	var order models.FabricationOrder
	err := s.db.Transaction(func(tx *gorm.DB) error {
		number, err := s.nextOrderNumber(tx, input.TenantID)
		if err != nil {
			return err
		}

		order = models.FabricationOrder{
			TenantID:    input.TenantID,
			OrderNumber: number,
			ClientName:  input.ClientName,
			ClientPhone: input.ClientPhone,
			Notes:       input.Notes,
			CreatedBy:   input.CreatedBy,
			Status:      models.OrderStatusDraft,
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("ошибка создания заказа: %w", err)
		}

		for _, item := range input.Items {
			oi := models.OrderItem{
				OrderID:     order.ID,
				ProductName: item.ProductName,
				WidthMM:     item.WidthMM,
				HeightMM:    item.HeightMM,
				Quantity:    item.Quantity,
			}
			if err := tx.Create(&oi).Error; err != nil {
				return fmt.Errorf("ошибка создания позиции заказа: %w", err)
			}
		}
		for _, cut := range input.RequiredCuts {
			rc := models.RequiredCut{
				OrderID:    order.ID,
				MaterialID: cut.MaterialID,
				Length:     cut.Length,
				LengthUnit: cut.LengthUnit,
				Identifier: cut.Identifier,
			}
			if err := tx.Create(&rc).Error; err != nil {
				return fmt.Errorf("ошибка создания реза: %w", err)
			}
		}
		for _, demand := range input.MaterialDemands {
			md := models.MaterialDemand{
				OrderID:    order.ID,
				MaterialID: demand.MaterialID,
				Quantity:   demand.Quantity,
				Unit:       demand.Unit,
			}
			if err := tx.Create(&md).Error; err != nil {
				return fmt.Errorf("ошибка создания потребности: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🆕 Создан заказ %s (%d позиций, %d резов)", order.OrderNumber, len(input.Items), len(input.RequiredCuts))
	return s.GetOrder(input.TenantID, order.ID)
}

// GetOrders возвращает заказы арендатора, опционально по статусу, новые первыми
func (s *OrderService) GetOrders(tenantID string, status string, limit int) ([]models.FabricationOrder, error) {
	var orders []models.FabricationOrder
	query := s.db.Preload("Items").Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if err := query.Order("created_at DESC").Limit(limit).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки заказов: %w", err)
	}
	return orders, nil
}

// GetOrder возвращает заказ со всеми связями
func (s *OrderService) GetOrder(tenantID, orderID string) (*models.FabricationOrder, error) {
	var order models.FabricationOrder
	err := s.db.Preload("Items").Preload("RequiredCuts").Preload("MaterialDemands").
		Where("id = ? AND tenant_id = ?", orderID, tenantID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("заказ не найден: %s", orderID)
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus переводит заказ в новый статус с проверкой допустимости перехода.
// Переход в cutting_committed вручную запрещен — он выполняется только
// списанием плана раскроя, иначе склад разойдется с производством
func (s *OrderService) UpdateStatus(tenantID, orderID string, next models.OrderStatus) (*models.FabricationOrder, error) {
	order, err := s.GetOrder(tenantID, orderID)
	if err != nil {
		return nil, err
	}

	if next == models.OrderStatusCuttingCommitted {
		return nil, fmt.Errorf("переход в %s выполняется только списанием плана раскроя", next)
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("недопустимый переход статуса: %s -> %s", order.Status, next)
	}
	// Откат ready_to_cut -> confirmed выполняется удалением плана раскроя
	if order.Status == models.OrderStatusReadyToCut && next == models.OrderStatusConfirmed && order.CuttingPlanID != nil {
		return nil, fmt.Errorf("у заказа есть план раскроя — сначала удалите план")
	}

	order.Status = next
	if err := s.db.Save(order).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления статуса: %w", err)
	}

	log.Printf("🔄 Заказ %s: статус %s", order.OrderNumber, next)
	return order, nil
}

// nextOrderNumber выдает следующий номер заказа в пределах года арендатора
func (s *OrderService) nextOrderNumber(tx *gorm.DB, tenantID string) (string, error) {
	year := time.Now().Year()
	prefix := fmt.Sprintf("ORD-%d-", year)

	var count int64
	err := tx.Model(&models.FabricationOrder{}).
		Unscoped().
		Where("tenant_id = ? AND order_number LIKE ?", tenantID, prefix+"%").
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}
