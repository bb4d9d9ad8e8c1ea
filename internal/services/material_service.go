package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"alumfab/server/internal/models"

	"gorm.io/gorm"
)

// MaterialService управляет каталогом материалов, партиями и складским журналом
type MaterialService struct {
	db *gorm.DB
}

// NewMaterialService создает новый экземпляр MaterialService
func NewMaterialService(db *gorm.DB) *MaterialService {
	return &MaterialService{db: db}
}

// CreateMaterialInput — данные для создания материала
type CreateMaterialInput struct {
	TenantID      string
	Name          string
	Category      models.MaterialCategory
	UsageUnit     string
	LengthUnit    string
	CutTolerance  float64
	MinStockLevel float64
}

// CreateMaterial создает материал каталога
func (s *MaterialService) CreateMaterial(input CreateMaterialInput) (*models.Material, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("название материала обязательно")
	}
	if input.UsageUnit == "" {
		return nil, fmt.Errorf("единица расхода обязательна")
	}

	material := models.Material{
		TenantID:      input.TenantID,
		Name:          input.Name,
		Category:      input.Category,
		UsageUnit:     input.UsageUnit,
		MinStockLevel: input.MinStockLevel,
		IsActive:      true,
	}

	if input.Category.IsLengthBased() {
		if !IsValidLengthUnit(input.LengthUnit) {
			return nil, fmt.Errorf("недопустимая единица длины: %q", input.LengthUnit)
		}
		material.LengthUnit = input.LengthUnit
		material.CutTolerance = input.CutTolerance
		if material.CutTolerance <= 0 {
			material.CutTolerance = DefaultCutTolerance(input.LengthUnit)
		}
	}

	if err := s.db.Create(&material).Error; err != nil {
		return nil, fmt.Errorf("ошибка создания материала: %w", err)
	}

	log.Printf("📦 Создан материал %s (%s)", material.Name, material.Category)
	return &material, nil
}

// UpdateMaterial обновляет редактируемые поля материала.
// Категория и единицы после создания не меняются — от них зависят партии и планы
func (s *MaterialService) UpdateMaterial(tenantID, materialID string, updates map[string]interface{}) (*models.Material, error) {
	material, err := s.GetMaterial(tenantID, materialID)
	if err != nil {
		return nil, err
	}

	allowed := map[string]bool{
		"name":            true,
		"cut_tolerance":   true,
		"min_stock_level": true,
		"is_active":       true,
	}
	filtered := make(map[string]interface{})
	for key, value := range updates {
		if allowed[key] {
			filtered[key] = value
		}
	}
	if len(filtered) == 0 {
		return material, nil
	}

	if err := s.db.Model(material).Updates(filtered).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления материала: %w", err)
	}
	return s.GetMaterial(tenantID, materialID)
}

// DeleteMaterial мягко удаляет материал. Материал с открытыми партиями
// удалить нельзя — сначала списываются остатки
func (s *MaterialService) DeleteMaterial(tenantID, materialID string) error {
	material, err := s.GetMaterial(tenantID, materialID)
	if err != nil {
		return err
	}

	var openBatches int64
	if material.Category.IsLengthBased() {
		s.db.Model(&models.ProfileBatch{}).
			Where("material_id = ? AND is_completed = false AND current_quantity > 0", materialID).
			Count(&openBatches)
	} else {
		s.db.Model(&models.SimpleBatch{}).
			Where("material_id = ? AND is_completed = false AND current_quantity > 0", materialID).
			Count(&openBatches)
	}
	if openBatches > 0 {
		return fmt.Errorf("нельзя удалить материал %q: есть открытые партии (%d)", material.Name, openBatches)
	}

	if err := s.db.Delete(material).Error; err != nil {
		return fmt.Errorf("ошибка удаления материала: %w", err)
	}
	log.Printf("🗑️ Материал %s удален", material.Name)
	return nil
}

// GetMaterials возвращает материалы арендатора, опционально по категории
func (s *MaterialService) GetMaterials(tenantID string, category string, activeOnly bool) ([]models.Material, error) {
	var materials []models.Material
	query := s.db.Preload("Gauges").Where("tenant_id = ?", tenantID)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if activeOnly {
		query = query.Where("is_active = true")
	}
	if err := query.Order("name ASC").Find(&materials).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки материалов: %w", err)
	}
	return materials, nil
}

// GetMaterial возвращает материал по ID в рамках арендатора
func (s *MaterialService) GetMaterial(tenantID, materialID string) (*models.Material, error) {
	var material models.Material
	err := s.db.Preload("Gauges").
		Where("id = ? AND tenant_id = ?", materialID, tenantID).
		First(&material).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("материал не найден: %s", materialID)
		}
		return nil, err
	}
	return &material, nil
}

// AddGauge добавляет калибр профильному материалу
func (s *MaterialService) AddGauge(tenantID, materialID, code string, weightPerLength float64) (*models.MaterialGauge, error) {
	material, err := s.GetMaterial(tenantID, materialID)
	if err != nil {
		return nil, err
	}
	if !material.Category.IsLengthBased() {
		return nil, fmt.Errorf("калибры применимы только к профильным материалам")
	}
	if code == "" {
		return nil, fmt.Errorf("код калибра обязателен")
	}

	gauge := models.MaterialGauge{
		MaterialID:      materialID,
		Code:            code,
		WeightPerLength: weightPerLength,
	}
	if err := s.db.Create(&gauge).Error; err != nil {
		return nil, fmt.Errorf("ошибка создания калибра %s: %w", code, err)
	}
	return &gauge, nil
}

// ReceiveProfileBatchInput — данные оприходования партии профиля
type ReceiveProfileBatchInput struct {
	TenantID       string
	MaterialID     string
	Gauge          string
	StandardLength float64
	LengthUnit     string
	Quantity       float64
	ActualWeight   float64
	RatePerPiece   float64
	PurchaseDate   time.Time
	SupplierName   string
	LotNumber      string
	PerformedBy    string
	InitialStock   bool // true при заведении начальных остатков
}

// ReceiveProfileBatch приходует партию хлыстов: создает партию, пишет запись
// журнала и пересчитывает отображаемую среднюю цену материала. Все в одной
// транзакции — партия без записи журнала существовать не должна
func (s *MaterialService) ReceiveProfileBatch(input ReceiveProfileBatchInput) (*models.ProfileBatch, error) {
	material, err := s.GetMaterial(input.TenantID, input.MaterialID)
	if err != nil {
		return nil, err
	}
	if !material.Category.IsLengthBased() {
		return nil, fmt.Errorf("материал %q не является профильным, используйте оприходование по количеству", material.Name)
	}
	if input.Gauge == "" {
		return nil, fmt.Errorf("калибр партии обязателен и задается явно")
	}
	if !s.gaugeExists(input.MaterialID, input.Gauge) {
		return nil, fmt.Errorf("калибр %q не заведен для материала %q", input.Gauge, material.Name)
	}
	if input.StandardLength <= 0 {
		return nil, fmt.Errorf("стандартная длина должна быть положительной")
	}
	if !IsValidLengthUnit(input.LengthUnit) {
		return nil, fmt.Errorf("недопустимая единица длины: %q", input.LengthUnit)
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("количество хлыстов должно быть положительным")
	}
	if input.RatePerPiece < 0 {
		return nil, fmt.Errorf("цена за хлыст не может быть отрицательной")
	}
	if input.PurchaseDate.IsZero() {
		input.PurchaseDate = time.Now()
	}

	batch := models.ProfileBatch{
		MaterialID:       input.MaterialID,
		TenantID:         input.TenantID,
		Gauge:            input.Gauge,
		StandardLength:   input.StandardLength,
		LengthUnit:       input.LengthUnit,
		OriginalQuantity: input.Quantity,
		ActualWeight:     input.ActualWeight,
		RatePerPiece:     input.RatePerPiece,
		PurchaseDate:     input.PurchaseDate,
		SupplierName:     input.SupplierName,
		LotNumber:        input.LotNumber,
	}
	if input.ActualWeight > 0 && input.Quantity > 0 {
		batch.RatePerWeightUnit = input.RatePerPiece * input.Quantity / input.ActualWeight
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&batch).Error; err != nil {
			return fmt.Errorf("ошибка создания партии: %w", err)
		}

		txType := models.StockTxInward
		notes := fmt.Sprintf("Оприходование партии %s, %s", input.Gauge, FormatLength(input.StandardLength, input.LengthUnit))
		if input.InitialStock {
			txType = models.StockTxInitialStock
			notes = "Начальный остаток"
		}
		record := models.StockTransaction{
			TenantID:          input.TenantID,
			MaterialID:        input.MaterialID,
			BatchID:           &batch.ID,
			Type:              txType,
			Quantity:          input.Quantity,
			Unit:              "pcs",
			RateAtTransaction: input.RatePerPiece,
			RelatedDocType:    "batch",
			RelatedDocID:      &batch.ID,
			PerformedBy:       input.PerformedBy,
			Notes:             notes,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("ошибка записи в складской журнал: %w", err)
		}

		return s.recomputeDisplayRate(tx, material)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📦 Оприходована партия: %s %s x%.0f (%s)", material.Name, input.Gauge, input.Quantity, FormatLength(input.StandardLength, input.LengthUnit))
	return &batch, nil
}

// ReceiveSimpleBatchInput — данные оприходования партии без раскроя
type ReceiveSimpleBatchInput struct {
	TenantID     string
	MaterialID   string
	Quantity     float64
	Unit         string
	RatePerUnit  float64
	PurchaseDate time.Time
	SupplierName string
	LotNumber    string
	PerformedBy  string
	InitialStock bool
}

// ReceiveSimpleBatch приходует партию материала без раскроя (стекло, фурнитура)
func (s *MaterialService) ReceiveSimpleBatch(input ReceiveSimpleBatchInput) (*models.SimpleBatch, error) {
	material, err := s.GetMaterial(input.TenantID, input.MaterialID)
	if err != nil {
		return nil, err
	}
	if material.Category.IsLengthBased() {
		return nil, fmt.Errorf("материал %q профильный, используйте оприходование хлыстами", material.Name)
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("количество должно быть положительным")
	}
	if input.Unit == "" {
		input.Unit = material.UsageUnit
	}
	if input.PurchaseDate.IsZero() {
		input.PurchaseDate = time.Now()
	}

	batch := models.SimpleBatch{
		MaterialID:       input.MaterialID,
		TenantID:         input.TenantID,
		OriginalQuantity: input.Quantity,
		Unit:             input.Unit,
		RatePerUnit:      input.RatePerUnit,
		PurchaseDate:     input.PurchaseDate,
		SupplierName:     input.SupplierName,
		LotNumber:        input.LotNumber,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&batch).Error; err != nil {
			return fmt.Errorf("ошибка создания партии: %w", err)
		}

		txType := models.StockTxInward
		notes := "Оприходование партии"
		if input.InitialStock {
			txType = models.StockTxInitialStock
			notes = "Начальный остаток"
		}
		record := models.StockTransaction{
			TenantID:          input.TenantID,
			MaterialID:        input.MaterialID,
			BatchID:           &batch.ID,
			Type:              txType,
			Quantity:          input.Quantity,
			Unit:              input.Unit,
			RateAtTransaction: input.RatePerUnit,
			RelatedDocType:    "batch",
			RelatedDocID:      &batch.ID,
			PerformedBy:       input.PerformedBy,
			Notes:             notes,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("ошибка записи в складской журнал: %w", err)
		}

		return s.recomputeDisplayRate(tx, material)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📦 Оприходована партия: %s x%.2f %s", material.Name, input.Quantity, input.Unit)
	return &batch, nil
}

// StandardLengthOptions возвращает стандартные длины, доступные на складе
// для профильного материала и калибра, в заданной единице
func (s *MaterialService) StandardLengthOptions(tenantID, materialID, gauge string) ([]StandardLengthOption, error) {
	var batches []models.ProfileBatch
	query := s.db.Where("tenant_id = ? AND material_id = ? AND is_completed = false AND current_quantity > 0", tenantID, materialID)
	if gauge != "" {
		query = query.Where("gauge = ?", gauge)
	}
	if err := query.Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки партий: %w", err)
	}

	options := make([]StandardLengthOption, 0, len(batches))
	for _, b := range batches {
		options = append(options, StandardLengthOption{
			Length:     b.StandardLength,
			LengthUnit: b.LengthUnit,
			Rate:       b.RatePerPiece,
			Available:  b.CurrentQuantity,
		})
	}
	return options, nil
}

// ManualAdjustmentInput — ручная корректировка остатка партии
type ManualAdjustmentInput struct {
	TenantID    string
	MaterialID  string
	BatchID     string
	Type        models.StockTransactionType // outward_manual, scrap или correction
	Quantity    float64                     // Для списаний — сколько списать, для correction — новый остаток
	PerformedBy string
	Notes       string
}

// ManualAdjustment выполняет ручное движение по партии профиля:
// списание, брак или корректировку после инвентаризации
func (s *MaterialService) ManualAdjustment(input ManualAdjustmentInput) (*models.StockTransaction, error) {
	switch input.Type {
	case models.StockTxOutwardManual, models.StockTxScrap, models.StockTxCorrection:
	default:
		return nil, fmt.Errorf("недопустимый тип ручного движения: %s", input.Type)
	}

	material, err := s.GetMaterial(input.TenantID, input.MaterialID)
	if err != nil {
		return nil, err
	}

	var record *models.StockTransaction
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var batch models.ProfileBatch
		if err := tx.Where("id = ? AND tenant_id = ? AND material_id = ?", input.BatchID, input.TenantID, input.MaterialID).
			First(&batch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("партия не найдена: %s", input.BatchID)
			}
			return err
		}

		var delta float64
		switch input.Type {
		case models.StockTxCorrection:
			// Quantity — новый фактический остаток по инвентаризации
			if input.Quantity < 0 {
				return fmt.Errorf("остаток не может быть отрицательным")
			}
			if input.Quantity > batch.OriginalQuantity {
				return fmt.Errorf("остаток не может превышать закупленное количество (%.0f)", batch.OriginalQuantity)
			}
			delta = input.Quantity - batch.CurrentQuantity
			batch.CurrentQuantity = input.Quantity
		default:
			if input.Quantity <= 0 {
				return fmt.Errorf("количество списания должно быть положительным")
			}
			if input.Quantity > batch.CurrentQuantity {
				return fmt.Errorf("нельзя списать %.0f: в партии осталось %.0f", input.Quantity, batch.CurrentQuantity)
			}
			delta = -input.Quantity
			batch.CurrentQuantity -= input.Quantity
		}

		batch.IsCompleted = batch.CurrentQuantity <= 0
		if err := tx.Save(&batch).Error; err != nil {
			return fmt.Errorf("ошибка обновления партии: %w", err)
		}

		record = &models.StockTransaction{
			TenantID:          input.TenantID,
			MaterialID:        input.MaterialID,
			BatchID:           &batch.ID,
			Type:              input.Type,
			Quantity:          delta,
			Unit:              "pcs",
			RateAtTransaction: batch.RatePerPiece,
			PerformedBy:       input.PerformedBy,
			Notes:             input.Notes,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("ошибка записи в складской журнал: %w", err)
		}

		return s.recomputeDisplayRate(tx, material)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✏️ Ручное движение %s по партии %s: %.0f", input.Type, input.BatchID, record.Quantity)
	return record, nil
}

// StockSummary возвращает сводку остатков по материалам арендатора
func (s *MaterialService) StockSummary(tenantID string) ([]map[string]interface{}, error) {
	materials, err := s.GetMaterials(tenantID, "", false)
	if err != nil {
		return nil, err
	}

	result := make([]map[string]interface{}, 0, len(materials))
	for _, material := range materials {
		var currentStock, stockValue float64
		var batchCount int64

		if material.Category.IsLengthBased() {
			var batches []models.ProfileBatch
			if err := s.db.Where("material_id = ? AND is_completed = false AND current_quantity > 0", material.ID).
				Find(&batches).Error; err != nil {
				return nil, err
			}
			batchCount = int64(len(batches))
			for _, b := range batches {
				currentStock += b.CurrentQuantity
				stockValue += b.CurrentQuantity * b.RatePerPiece
			}
		} else {
			var batches []models.SimpleBatch
			if err := s.db.Where("material_id = ? AND is_completed = false AND current_quantity > 0", material.ID).
				Find(&batches).Error; err != nil {
				return nil, err
			}
			batchCount = int64(len(batches))
			for _, b := range batches {
				currentStock += b.CurrentQuantity
				stockValue += b.CurrentQuantity * b.RatePerUnit
			}
		}

		status := "in_stock"
		if currentStock <= 0 {
			status = "out_of_stock"
		} else if currentStock < material.MinStockLevel {
			status = "low_stock"
		}

		result = append(result, map[string]interface{}{
			"material_id":   material.ID,
			"material_name": material.Name,
			"category":      material.Category,
			"usage_unit":    material.UsageUnit,
			"current_stock": currentStock,
			"min_stock":     material.MinStockLevel,
			"current_rate":  material.CurrentRate,
			"stock_value":   stockValue,
			"batch_count":   batchCount,
			"status":        status,
		})
	}
	return result, nil
}

// TransactionFilter — фильтры выборки складского журнала
type TransactionFilter struct {
	MaterialID string
	BatchID    string
	Type       string
	From       *time.Time
	To         *time.Time
	Limit      int
}

// GetTransactions возвращает записи складского журнала, новые первыми
func (s *MaterialService) GetTransactions(tenantID string, filter TransactionFilter) ([]models.StockTransaction, error) {
	var transactions []models.StockTransaction
	query := s.db.Preload("Material").Where("tenant_id = ?", tenantID)
	if filter.MaterialID != "" {
		query = query.Where("material_id = ?", filter.MaterialID)
	}
	if filter.BatchID != "" {
		query = query.Where("batch_id = ?", filter.BatchID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if err := query.Order("created_at DESC").Limit(limit).Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки журнала: %w", err)
	}
	return transactions, nil
}

// gaugeExists проверяет, что калибр заведен у материала
func (s *MaterialService) gaugeExists(materialID, code string) bool {
	var count int64
	s.db.Model(&models.MaterialGauge{}).
		Where("material_id = ? AND code = ?", materialID, code).
		Count(&count)
	return count > 0
}

// recomputeDisplayRate пересчитывает средневзвешенную цену материала
// по открытым партиям. Значение только для отображения — списания всегда
// идут по цене конкретной партии
func (s *MaterialService) recomputeDisplayRate(tx *gorm.DB, material *models.Material) error {
	var totalQty, totalValue float64

	if material.Category.IsLengthBased() {
		var batches []models.ProfileBatch
		if err := tx.Where("material_id = ? AND is_completed = false AND current_quantity > 0", material.ID).
			Find(&batches).Error; err != nil {
			return err
		}
		for _, b := range batches {
			totalQty += b.CurrentQuantity
			totalValue += b.CurrentQuantity * b.RatePerPiece
		}
	} else {
		var batches []models.SimpleBatch
		if err := tx.Where("material_id = ? AND is_completed = false AND current_quantity > 0", material.ID).
			Find(&batches).Error; err != nil {
			return err
		}
		for _, b := range batches {
			totalQty += b.CurrentQuantity
			totalValue += b.CurrentQuantity * b.RatePerUnit
		}
	}

	rate := 0.0
	if totalQty > 0 {
		rate = totalValue / totalQty
	}
	return tx.Model(&models.Material{}).Where("id = ?", material.ID).
		Update("current_rate", rate).Error
}
