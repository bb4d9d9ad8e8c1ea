package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"alumfab/server/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CuttingPlanService генерирует планы раскроя и выполняет атомарное списание склада
type CuttingPlanService struct {
	db              *gorm.DB
	materialService *MaterialService
	lockTimeoutMS   int
}

// NewCuttingPlanService создает новый экземпляр CuttingPlanService
func NewCuttingPlanService(db *gorm.DB, materialService *MaterialService, lockTimeoutMS int) *CuttingPlanService {
	if lockTimeoutMS <= 0 {
		lockTimeoutMS = 5000
	}
	return &CuttingPlanService{
		db:              db,
		materialService: materialService,
		lockTimeoutMS:   lockTimeoutMS,
	}
}

// Generate строит план раскроя для заказа: группирует резы по материалам,
// оптимизирует укладку в хлысты и сохраняет план со снимком материалов.
// Существующий несписанный план заменяется. Нехватка остатков план
// не блокирует — она фиксируется в плане как предпросмотр для закупки
func (s *CuttingPlanService) Generate(tenantID, orderID string) (*models.CuttingPlan, error) {
	var order models.FabricationOrder
	err := s.db.Preload("RequiredCuts").Preload("MaterialDemands").
		Where("id = ? AND tenant_id = ?", orderID, tenantID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("заказ не найден: %s", orderID)
		}
		return nil, err
	}

	if order.Status != models.OrderStatusConfirmed && order.Status != models.OrderStatusReadyToCut {
		return nil, fmt.Errorf("план раскроя генерируется только для подтвержденного заказа, текущий статус: %s", order.Status)
	}
	if len(order.RequiredCuts) == 0 && len(order.MaterialDemands) == 0 {
		return nil, fmt.Errorf("у заказа %s нет ни резов, ни потребностей в материалах", order.OrderNumber)
	}

	// Резы группируются по материалу, материалы обрабатываются в стабильном порядке
	cutsByMaterial := make(map[string][]models.RequiredCut)
	var materialOrder []string
	for _, cut := range order.RequiredCuts {
		if _, ok := cutsByMaterial[cut.MaterialID]; !ok {
			materialOrder = append(materialOrder, cut.MaterialID)
		}
		cutsByMaterial[cut.MaterialID] = append(cutsByMaterial[cut.MaterialID], cut)
	}
	sort.Strings(materialOrder)

	plan := models.CuttingPlan{
		OrderID:  order.ID,
		TenantID: tenantID,
		Status:   models.PlanStatusGenerated,
	}
	var materialPlans []models.MaterialPlan
	var totalWeight float64

	for _, materialID := range materialOrder {
		material, err := s.materialService.GetMaterial(tenantID, materialID)
		if err != nil {
			return nil, err
		}
		if !material.Category.IsLengthBased() {
			return nil, fmt.Errorf("материал %q не профильный, резы для него недопустимы", material.Name)
		}

		gauge, err := s.selectGauge(material)
		if err != nil {
			return nil, err
		}

		options, err := s.materialService.StandardLengthOptions(tenantID, materialID, gauge)
		if err != nil {
			return nil, err
		}
		// Нет партий нужного калибра — раскрой считать не от чего.
		// Фоллбэк: все заведенные длины закупки материала из любых партий
		if len(options) == 0 {
			options, err = s.materialService.StandardLengthOptions(tenantID, materialID, "")
			if err != nil {
				return nil, err
			}
			if len(options) == 0 {
				return nil, fmt.Errorf("для материала %q нет партий на складе — неизвестны стандартные длины хлыстов", material.Name)
			}
		}

		weightPerLength := gaugeWeight(material, gauge)
		cfg := OptimizerConfig{
			MaterialID:      material.ID,
			MaterialName:    material.Name,
			LengthUnit:      material.LengthUnit,
			CutTolerance:    material.CutTolerance,
			WeightPerLength: weightPerLength,
		}
		if cfg.CutTolerance <= 0 {
			cfg.CutTolerance = DefaultCutTolerance(material.LengthUnit)
		}

		cuts := make([]RequiredCutInput, 0, len(cutsByMaterial[materialID]))
		for _, rc := range cutsByMaterial[materialID] {
			cuts = append(cuts, RequiredCutInput{
				Length:     rc.Length,
				LengthUnit: rc.LengthUnit,
				Identifier: rc.Identifier,
			})
		}

		pipes, err := OptimizeCuts(cuts, options, cfg)
		if err != nil {
			return nil, err
		}

		// Предпросмотр доступности: FIFO-раскладка без записи в БД
		var batches []models.ProfileBatch
		if err := s.db.Where("tenant_id = ? AND material_id = ? AND is_completed = false AND current_quantity > 0",
			tenantID, materialID).Find(&batches).Error; err != nil {
			return nil, err
		}
		_, shortfalls := PlanProfileConsumption(batches, gauge, DemandFromPipes(pipes),
			MaterialRef{ID: material.ID, Name: material.Name})

		var materialWeight float64
		for _, p := range pipes {
			materialWeight += p.Weight
		}
		totalWeight += materialWeight

		mp := models.MaterialPlan{
			MaterialID:   material.ID,
			MaterialName: material.Name,
			Gauge:        gauge,
			UsageUnit:    material.UsageUnit,
			LengthUnit:   material.LengthUnit,
			TotalWeight:  materialWeight,
		}
		if err := mp.SetPipes(pipes); err != nil {
			return nil, fmt.Errorf("ошибка сериализации раскроя: %w", err)
		}
		if err := mp.SetSummary(SummarizePipes(pipes)); err != nil {
			return nil, fmt.Errorf("ошибка сериализации сводки: %w", err)
		}
		if err := mp.SetShortfalls(toPlanShortfalls(shortfalls)); err != nil {
			return nil, fmt.Errorf("ошибка сериализации нехватки: %w", err)
		}
		materialPlans = append(materialPlans, mp)
	}

	// Нештучные потребности заказа (стекло, фурнитура) входят в план как количества
	for _, demand := range order.MaterialDemands {
		material, err := s.materialService.GetMaterial(tenantID, demand.MaterialID)
		if err != nil {
			return nil, err
		}
		if material.Category.IsLengthBased() {
			return nil, fmt.Errorf("материал %q профильный, он задается резами, а не количеством", material.Name)
		}

		var batches []models.SimpleBatch
		if err := s.db.Where("tenant_id = ? AND material_id = ? AND is_completed = false AND current_quantity > 0",
			tenantID, demand.MaterialID).Find(&batches).Error; err != nil {
			return nil, err
		}
		_, shortfalls := PlanSimpleConsumption(batches, demand.Quantity, demand.Unit,
			MaterialRef{ID: material.ID, Name: material.Name})

		mp := models.MaterialPlan{
			MaterialID:   material.ID,
			MaterialName: material.Name,
			UsageUnit:    material.UsageUnit,
			UnitDemand:   demand.Quantity,
		}
		if err := mp.SetShortfalls(toPlanShortfalls(shortfalls)); err != nil {
			return nil, fmt.Errorf("ошибка сериализации нехватки: %w", err)
		}
		materialPlans = append(materialPlans, mp)
	}

	plan.TotalWeight = totalWeight

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Списанный план заменить нельзя, несписанный — удаляется и создается заново
		var existing models.CuttingPlan
		err := tx.Where("order_id = ?", order.ID).First(&existing).Error
		if err == nil {
			if existing.IsCommitted() {
				return &AlreadyCommittedError{PlanID: existing.ID, CommittedAt: *existing.CommittedAt}
			}
			if err := tx.Where("cutting_plan_id = ?", existing.ID).Delete(&models.MaterialPlan{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Delete(&existing).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(&plan).Error; err != nil {
			return fmt.Errorf("ошибка сохранения плана: %w", err)
		}
		for i := range materialPlans {
			materialPlans[i].CuttingPlanID = plan.ID
			if err := tx.Create(&materialPlans[i]).Error; err != nil {
				return fmt.Errorf("ошибка сохранения раскроя материала: %w", err)
			}
		}

		order.CuttingPlanID = &plan.ID
		if order.Status == models.OrderStatusConfirmed {
			order.Status = models.OrderStatusReadyToCut
		}
		return tx.Save(&order).Error
	})
	if err != nil {
		return nil, err
	}

	plan.MaterialPlans = materialPlans
	log.Printf("📐 Сгенерирован план раскроя %s для заказа %s (%d материалов)", plan.ID, order.OrderNumber, len(materialPlans))
	return &plan, nil
}

// GetByOrder возвращает план раскроя заказа
func (s *CuttingPlanService) GetByOrder(tenantID, orderID string) (*models.CuttingPlan, error) {
	var plan models.CuttingPlan
	err := s.db.Preload("MaterialPlans").
		Where("order_id = ? AND tenant_id = ?", orderID, tenantID).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("план раскроя для заказа %s не найден", orderID)
		}
		return nil, err
	}
	return &plan, nil
}

// Discard удаляет несписанный план и возвращает заказ в статус confirmed
func (s *CuttingPlanService) Discard(tenantID, orderID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var plan models.CuttingPlan
		err := tx.Where("order_id = ? AND tenant_id = ?", orderID, tenantID).First(&plan).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("план раскроя для заказа %s не найден", orderID)
			}
			return err
		}
		if plan.IsCommitted() {
			return &AlreadyCommittedError{PlanID: plan.ID, CommittedAt: *plan.CommittedAt}
		}

		if err := tx.Where("cutting_plan_id = ?", plan.ID).Delete(&models.MaterialPlan{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&plan).Error; err != nil {
			return err
		}

		var order models.FabricationOrder
		if err := tx.Where("id = ?", orderID).First(&order).Error; err != nil {
			return err
		}
		order.CuttingPlanID = nil
		if order.Status == models.OrderStatusReadyToCut {
			order.Status = models.OrderStatusConfirmed
		}
		return tx.Save(&order).Error
	})
}

// CommitResult — итог списания плана
type CommitResult struct {
	Plan         *models.CuttingPlan        `json:"plan"`
	Order        *models.FabricationOrder   `json:"order"`
	Transactions int                        `json:"transactions"`
	Shortfalls   []Shortfall                `json:"shortfalls,omitempty"` // Непокрытая часть при частичном списании
	Instructions []ConsumptionInstruction   `json:"instructions"`
}

// Commit атомарно списывает склад по плану раскроя. Все или ничего:
// блокируются план и партии, потребление пересчитывается по свежим остаткам
// (между генерацией и списанием склад мог измениться), партии уменьшаются FIFO,
// на каждую затронутую партию пишется запись журнала. Повторное списание
// отклоняется, при нехватке без allowPartial транзакция откатывается целиком
func (s *CuttingPlanService) Commit(tenantID, orderID string, allowPartial bool, performedBy string) (*CommitResult, error) {
	result := &CommitResult{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Ограничение ожидания блокировок: параллельное списание получает
		// быстрый повторяемый отказ вместо зависания
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeoutMS)).Error; err != nil {
			return err
		}

		var plan models.CuttingPlan
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ? AND tenant_id = ?", orderID, tenantID).
			First(&plan).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("план раскроя для заказа %s не найден", orderID)
			}
			return lockError("план раскроя", err)
		}
		if plan.IsCommitted() {
			return &AlreadyCommittedError{PlanID: plan.ID, CommittedAt: *plan.CommittedAt}
		}

		var order models.FabricationOrder
		if err := tx.Where("id = ? AND tenant_id = ?", orderID, tenantID).First(&order).Error; err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(models.OrderStatusCuttingCommitted) {
			return fmt.Errorf("списание недоступно в статусе заказа %s", order.Status)
		}

		var materialPlans []models.MaterialPlan
		if err := tx.Where("cutting_plan_id = ?", plan.ID).
			Order("material_id ASC").
			Find(&materialPlans).Error; err != nil {
			return err
		}

		var allInstructions []ConsumptionInstruction
		var allShortfalls []Shortfall

		// Материалы обходятся в порядке material_id: все конкурирующие списания
		// захватывают партии в одном порядке, взаимные блокировки исключены
		for i := range materialPlans {
			mp := &materialPlans[i]

			if mp.LengthUnit != "" {
				pipes, err := mp.GetPipes()
				if err != nil {
					return fmt.Errorf("ошибка чтения раскроя материала %s: %w", mp.MaterialName, err)
				}
				if len(pipes) == 0 {
					continue
				}

				var batches []models.ProfileBatch
				err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
					Where("tenant_id = ? AND material_id = ? AND is_completed = false AND current_quantity > 0",
						tenantID, mp.MaterialID).
					Order("purchase_date ASC, created_at ASC, id ASC").
					Find(&batches).Error
				if err != nil {
					return lockError(mp.MaterialName, err)
				}

				instructions, shortfalls := PlanProfileConsumption(batches, mp.Gauge, DemandFromPipes(pipes),
					MaterialRef{ID: mp.MaterialID, Name: mp.MaterialName})
				allShortfalls = append(allShortfalls, shortfalls...)
				if len(shortfalls) > 0 && !allowPartial {
					continue // Решение об откате принимается после полного обхода
				}

				if err := s.applyProfileInstructions(tx, &plan, mp, batches, instructions, performedBy); err != nil {
					return err
				}
				allInstructions = append(allInstructions, instructions...)
			} else if mp.UnitDemand > 0 {
				var batches []models.SimpleBatch
				err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
					Where("tenant_id = ? AND material_id = ? AND is_completed = false AND current_quantity > 0",
						tenantID, mp.MaterialID).
					Order("purchase_date ASC, created_at ASC, id ASC").
					Find(&batches).Error
				if err != nil {
					return lockError(mp.MaterialName, err)
				}

				instructions, shortfalls := PlanSimpleConsumption(batches, mp.UnitDemand, mp.UsageUnit,
					MaterialRef{ID: mp.MaterialID, Name: mp.MaterialName})
				allShortfalls = append(allShortfalls, shortfalls...)
				if len(shortfalls) > 0 && !allowPartial {
					continue
				}

				if err := s.applySimpleInstructions(tx, &plan, mp, batches, instructions, performedBy); err != nil {
					return err
				}
				allInstructions = append(allInstructions, instructions...)
			}
		}

		if len(allShortfalls) > 0 && !allowPartial {
			return &InsufficientStockError{Shortfalls: allShortfalls}
		}

		now := time.Now()
		plan.Status = models.PlanStatusCommitted
		plan.CommittedAt = &now
		plan.CommittedBy = performedBy
		if err := tx.Save(&plan).Error; err != nil {
			return fmt.Errorf("ошибка фиксации плана: %w", err)
		}

		order.Status = models.OrderStatusCuttingCommitted
		if err := tx.Save(&order).Error; err != nil {
			return fmt.Errorf("ошибка обновления заказа: %w", err)
		}

		plan.MaterialPlans = materialPlans
		result.Plan = &plan
		result.Order = &order
		result.Transactions = len(allInstructions)
		result.Shortfalls = allShortfalls
		result.Instructions = allInstructions
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🔒 План %s списан: заказ %s, записей журнала %d, нехватка %d позиций",
		result.Plan.ID, result.Order.OrderNumber, result.Transactions, len(result.Shortfalls))
	return result, nil
}

// applyProfileInstructions уменьшает остатки партий профиля и пишет журнал
func (s *CuttingPlanService) applyProfileInstructions(tx *gorm.DB, plan *models.CuttingPlan, mp *models.MaterialPlan, batches []models.ProfileBatch, instructions []ConsumptionInstruction, performedBy string) error {
	batchByID := make(map[string]*models.ProfileBatch, len(batches))
	for i := range batches {
		batchByID[batches[i].ID] = &batches[i]
	}

	for _, instr := range instructions {
		batch, ok := batchByID[instr.BatchID]
		if !ok {
			return fmt.Errorf("партия %s не заблокирована при списании", instr.BatchID)
		}
		if batch.CurrentQuantity < instr.Quantity {
			// Инструкции считались по этим же заблокированным партиям
			return fmt.Errorf("остаток партии %s меньше списываемого количества", batch.ID)
		}

		batch.CurrentQuantity -= instr.Quantity
		if batch.CurrentQuantity <= 0 {
			batch.CurrentQuantity = 0
			batch.IsCompleted = true
		}
		if err := tx.Save(batch).Error; err != nil {
			return fmt.Errorf("ошибка обновления партии %s: %w", batch.ID, err)
		}

		record := models.StockTransaction{
			TenantID:          plan.TenantID,
			MaterialID:        mp.MaterialID,
			BatchID:           &batch.ID,
			Type:              models.StockTxOutwardOrderCut,
			Quantity:          -instr.Quantity,
			Unit:              "pcs",
			RateAtTransaction: instr.Rate,
			RelatedDocType:    "cutting_plan",
			RelatedDocID:      &plan.ID,
			PerformedBy:       performedBy,
			Notes:             fmt.Sprintf("Списание под раскрой: %s %s", mp.Gauge, FormatLength(instr.StandardLength, instr.LengthUnit)),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("ошибка записи в складской журнал: %w", err)
		}
	}
	return nil
}

// applySimpleInstructions уменьшает остатки партий без раскроя и пишет журнал
func (s *CuttingPlanService) applySimpleInstructions(tx *gorm.DB, plan *models.CuttingPlan, mp *models.MaterialPlan, batches []models.SimpleBatch, instructions []ConsumptionInstruction, performedBy string) error {
	batchByID := make(map[string]*models.SimpleBatch, len(batches))
	for i := range batches {
		batchByID[batches[i].ID] = &batches[i]
	}

	for _, instr := range instructions {
		batch, ok := batchByID[instr.BatchID]
		if !ok {
			return fmt.Errorf("партия %s не заблокирована при списании", instr.BatchID)
		}

		batch.CurrentQuantity -= instr.Quantity
		if batch.CurrentQuantity <= 0 {
			batch.CurrentQuantity = 0
			batch.IsCompleted = true
		}
		if err := tx.Save(batch).Error; err != nil {
			return fmt.Errorf("ошибка обновления партии %s: %w", batch.ID, err)
		}

		record := models.StockTransaction{
			TenantID:          plan.TenantID,
			MaterialID:        mp.MaterialID,
			BatchID:           &batch.ID,
			Type:              models.StockTxOutwardOrderCut,
			Quantity:          -instr.Quantity,
			Unit:              batch.Unit,
			RateAtTransaction: instr.Rate,
			RelatedDocType:    "cutting_plan",
			RelatedDocID:      &plan.ID,
			PerformedBy:       performedBy,
			Notes:             "Списание под заказ",
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("ошибка записи в складской журнал: %w", err)
		}
	}
	return nil
}

// selectGauge выбирает калибр для раскроя: единственный калибр материала,
// иначе калибр с наибольшим остатком хлыстов на складе
func (s *CuttingPlanService) selectGauge(material *models.Material) (string, error) {
	if len(material.Gauges) == 0 {
		return "", nil // Материал без калибров — вес не считается
	}
	if len(material.Gauges) == 1 {
		return material.Gauges[0].Code, nil
	}

	type gaugeStock struct {
		Gauge string
		Total float64
	}
	var rows []gaugeStock
	err := s.db.Model(&models.ProfileBatch{}).
		Select("gauge, SUM(current_quantity) as total").
		Where("material_id = ? AND is_completed = false AND current_quantity > 0", material.ID).
		Group("gauge").
		Order("total DESC, gauge ASC").
		Scan(&rows).Error
	if err != nil {
		return "", err
	}
	if len(rows) > 0 {
		return rows[0].Gauge, nil
	}
	// Склад пуст — берем первый заведенный калибр для расчета веса
	return material.Gauges[0].Code, nil
}

// gaugeWeight возвращает вес единицы длины для калибра, 0 если не задан
func gaugeWeight(material *models.Material, gauge string) float64 {
	for _, g := range material.Gauges {
		if g.Code == gauge {
			return g.WeightPerLength
		}
	}
	return 0
}

// toPlanShortfalls конвертирует нехватку планировщика в формат хранения плана
func toPlanShortfalls(shortfalls []Shortfall) []models.PlanShortfall {
	result := make([]models.PlanShortfall, 0, len(shortfalls))
	for _, s := range shortfalls {
		result = append(result, models.PlanShortfall{
			StandardLength: s.StandardLength,
			LengthUnit:     s.LengthUnit,
			Gauge:          s.Gauge,
			Quantity:       s.Quantity,
		})
	}
	return result
}

// lockError распознает таймаут блокировки Postgres (55P03) и заворачивает его
// в повторяемую ошибку конкуренции за склад
func lockError(scope string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "55P03") || strings.Contains(strings.ToLower(msg), "lock timeout") ||
		strings.Contains(strings.ToLower(msg), "canceling statement due to lock timeout") {
		return &StockContentionError{Scope: scope, Err: err}
	}
	return err
}
