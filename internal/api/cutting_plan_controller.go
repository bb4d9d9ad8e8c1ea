package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"alumfab/server/internal/models"
	"alumfab/server/internal/services"

	"github.com/gin-gonic/gin"
)

// CuttingPlanController управляет API endpoints планов раскроя
type CuttingPlanController struct {
	planService     *services.CuttingPlanService
	stockController *StockController
	producer        *OrderEventProducer
}

// NewCuttingPlanController создает новый контроллер планов раскроя
func NewCuttingPlanController(planService *services.CuttingPlanService, stockController *StockController, producer *OrderEventProducer) *CuttingPlanController {
	return &CuttingPlanController{
		planService:     planService,
		stockController: stockController,
		producer:        producer,
	}
}

// GeneratePlan генерирует план раскроя для заказа
// POST /api/v1/orders/:id/cutting-plan
func (cc *CuttingPlanController) GeneratePlan(c *gin.Context) {
	plan, err := cc.planService.Generate(tenantID(c), c.Param("id"))
	if err != nil {
		cc.respondPlanError(c, err)
		return
	}
	c.JSON(http.StatusCreated, planResponse(plan))
}

// GetPlan возвращает план раскроя заказа
// GET /api/v1/orders/:id/cutting-plan
func (cc *CuttingPlanController) GetPlan(c *gin.Context) {
	plan, err := cc.planService.GetByOrder(tenantID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "План раскроя не найден",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, planResponse(plan))
}

// DiscardPlan удаляет несписанный план раскроя
// DELETE /api/v1/orders/:id/cutting-plan
func (cc *CuttingPlanController) DiscardPlan(c *gin.Context) {
	if err := cc.planService.Discard(tenantID(c), c.Param("id")); err != nil {
		cc.respondPlanError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "План раскроя удален"})
}

// CommitPlan атомарно списывает склад по плану раскроя
// POST /api/v1/orders/:id/cutting-plan/commit?allow_partial=false
func (cc *CuttingPlanController) CommitPlan(c *gin.Context) {
	allowPartial, _ := strconv.ParseBool(c.DefaultQuery("allow_partial", "false"))

	var request struct {
		PerformedBy string `json:"performed_by"`
	}
	// Тело опционально
	_ = c.ShouldBindJSON(&request)

	tenant := tenantID(c)
	result, err := cc.planService.Commit(tenant, c.Param("id"), allowPartial, request.PerformedBy)
	if err != nil {
		cc.respondPlanError(c, err)
		return
	}

	// Склад изменился: сбрасываем кэш, уведомляем цех и внешние системы
	cc.stockController.InvalidateSummaryCache(tenant)
	if cc.producer != nil {
		// Экраны цеха получат событие через Kafka consumer
		cc.producer.PublishStatusChange(result.Order, result.Plan.ID)
	} else {
		cc.broadcastCommit(result)
	}

	c.JSON(http.StatusOK, gin.H{
		"plan":         planResponse(result.Plan),
		"order":        result.Order,
		"transactions": result.Transactions,
		"shortfalls":   result.Shortfalls,
	})
}

// respondPlanError транслирует доменные ошибки в HTTP статусы:
// невыполнимый рез — 422, нехватка остатков — 409 с раскладкой нехватки,
// повторное списание — 409, конкуренция за склад — 503 с флагом retryable
func (cc *CuttingPlanController) respondPlanError(c *gin.Context, err error) {
	var infeasible *services.InfeasibleCutError
	if errors.As(err, &infeasible) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Рез невыполним",
			"details": infeasible.Error(),
			"cut":     infeasible,
		})
		return
	}

	var insufficient *services.InsufficientStockError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusConflict, gin.H{
			"error":      "Недостаточно остатков",
			"details":    insufficient.Error(),
			"shortfalls": insufficient.Shortfalls,
		})
		return
	}

	var committed *services.AlreadyCommittedError
	if errors.As(err, &committed) {
		c.JSON(http.StatusConflict, gin.H{
			"error":        "План уже списан",
			"details":      committed.Error(),
			"committed_at": committed.CommittedAt,
		})
		return
	}

	var contention *services.StockContentionError
	if errors.As(err, &contention) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "Склад занят параллельным списанием",
			"details":   contention.Error(),
			"retryable": true,
		})
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Ошибка плана раскроя",
		"details": err.Error(),
	})
}

// broadcastCommit рассылает списанный план на экраны цеха
func (cc *CuttingPlanController) broadcastCommit(result *services.CommitResult) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":         "cutting_committed",
		"order_id":     result.Order.ID,
		"order_number": result.Order.OrderNumber,
		"plan_id":      result.Plan.ID,
		"status":       result.Order.Status,
	})
	if err != nil {
		return
	}
	WorkshopHub.BroadcastMessage(payload)
}

// planResponse разворачивает jsonb-колонки раскроя в читаемый ответ API
func planResponse(plan *models.CuttingPlan) gin.H {
	materials := make([]gin.H, 0, len(plan.MaterialPlans))
	for i := range plan.MaterialPlans {
		mp := &plan.MaterialPlans[i]
		pipes, _ := mp.GetPipes()
		summary, _ := mp.GetSummary()
		shortfalls, _ := mp.GetShortfalls()
		materials = append(materials, gin.H{
			"material_id":   mp.MaterialID,
			"material_name": mp.MaterialName,
			"gauge":         mp.Gauge,
			"usage_unit":    mp.UsageUnit,
			"length_unit":   mp.LengthUnit,
			"unit_demand":   mp.UnitDemand,
			"total_weight":  mp.TotalWeight,
			"pipes":         pipes,
			"summary":       summary,
			"shortfalls":    shortfalls,
		})
	}
	return gin.H{
		"id":           plan.ID,
		"order_id":     plan.OrderID,
		"status":       plan.Status,
		"total_weight": plan.TotalWeight,
		"generated_at": plan.GeneratedAt,
		"committed_at": plan.CommittedAt,
		"committed_by": plan.CommittedBy,
		"materials":    materials,
	}
}
