package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"alumfab/server/internal/models"
	"alumfab/server/internal/services"
	"alumfab/server/internal/utils"

	"github.com/gin-gonic/gin"
)

// StockController управляет API endpoints склада: сводка, журнал, ручные движения
type StockController struct {
	materialService *services.MaterialService
	redisUtil       *utils.RedisClient
	cacheTTL        time.Duration
}

// NewStockController создает новый контроллер склада
func NewStockController(materialService *services.MaterialService, redisUtil *utils.RedisClient, cacheTTL time.Duration) *StockController {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &StockController{
		materialService: materialService,
		redisUtil:       redisUtil,
		cacheTTL:        cacheTTL,
	}
}

// stockSummaryCacheKey — ключ кэша сводки остатков по арендатору
func stockSummaryCacheKey(tenant string) string {
	return fmt.Sprintf("stock:summary:%s", tenant)
}

// InvalidateSummaryCache сбрасывает кэш сводки после изменения склада
func (sc *StockController) InvalidateSummaryCache(tenant string) {
	if sc.redisUtil == nil {
		return
	}
	if err := sc.redisUtil.Delete(stockSummaryCacheKey(tenant)); err != nil {
		log.Printf("⚠️ Redis: не удалось сбросить кэш сводки: %v", err)
	}
}

// GetStockSummary возвращает сводку остатков по материалам.
// Сводка кэшируется в Redis — экраны цеха опрашивают ее часто
// GET /api/v1/stock/summary
func (sc *StockController) GetStockSummary(c *gin.Context) {
	tenant := tenantID(c)

	if sc.redisUtil != nil {
		cached, err := sc.redisUtil.Get(stockSummaryCacheKey(tenant))
		if err == nil && cached != "" {
			var summary []map[string]interface{}
			if json.Unmarshal([]byte(cached), &summary) == nil {
				c.JSON(http.StatusOK, gin.H{
					"summary": summary,
					"count":   len(summary),
					"cached":  true,
				})
				return
			}
		}
	}

	summary, err := sc.materialService.StockSummary(tenant)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Ошибка получения сводки остатков",
			"details": err.Error(),
		})
		return
	}

	if sc.redisUtil != nil {
		if payload, err := json.Marshal(summary); err == nil {
			if err := sc.redisUtil.SetBytes(stockSummaryCacheKey(tenant), payload, sc.cacheTTL); err != nil {
				log.Printf("⚠️ Redis: не удалось закэшировать сводку: %v", err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
		"count":   len(summary),
		"cached":  false,
	})
}

// GetTransactions возвращает складской журнал
// GET /api/v1/stock/transactions?material_id=xxx&type=inward&from=2026-01-01&to=2026-02-01&limit=100
func (sc *StockController) GetTransactions(c *gin.Context) {
	filter := services.TransactionFilter{
		MaterialID: c.DefaultQuery("material_id", ""),
		BatchID:    c.DefaultQuery("batch_id", ""),
		Type:       c.DefaultQuery("type", ""),
	}
	if limitStr := c.DefaultQuery("limit", ""); limitStr != "" {
		filter.Limit, _ = strconv.Atoi(limitStr)
	}
	if fromStr := c.DefaultQuery("from", ""); fromStr != "" {
		from, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат даты from, ожидается YYYY-MM-DD"})
			return
		}
		filter.From = &from
	}
	if toStr := c.DefaultQuery("to", ""); toStr != "" {
		to, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат даты to, ожидается YYYY-MM-DD"})
			return
		}
		// Включительно до конца дня
		to = to.Add(24*time.Hour - time.Nanosecond)
		filter.To = &to
	}

	transactions, err := sc.materialService.GetTransactions(tenantID(c), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Ошибка получения журнала",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// ManualAdjustment выполняет ручное движение по партии:
// списание, брак или корректировку после инвентаризации
// POST /api/v1/stock/adjustments
func (sc *StockController) ManualAdjustment(c *gin.Context) {
	var request struct {
		MaterialID  string  `json:"material_id" binding:"required"`
		BatchID     string  `json:"batch_id" binding:"required"`
		Type        string  `json:"type" binding:"required"` // outward_manual, scrap, correction
		Quantity    float64 `json:"quantity" binding:"required"`
		PerformedBy string  `json:"performed_by" binding:"required"`
		Notes       string  `json:"notes"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные параметры запроса",
			"details": err.Error(),
		})
		return
	}

	tenant := tenantID(c)
	record, err := sc.materialService.ManualAdjustment(services.ManualAdjustmentInput{
		TenantID:    tenant,
		MaterialID:  request.MaterialID,
		BatchID:     request.BatchID,
		Type:        models.StockTransactionType(request.Type),
		Quantity:    request.Quantity,
		PerformedBy: request.PerformedBy,
		Notes:       request.Notes,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Ошибка ручного движения",
			"details": err.Error(),
		})
		return
	}

	sc.InvalidateSummaryCache(tenant)
	c.JSON(http.StatusCreated, record)
}
