package api

import (
	"net/http"
	"strconv"
	"time"

	"alumfab/server/internal/models"
	"alumfab/server/internal/services"

	"github.com/gin-gonic/gin"
)

// MaterialController управляет API endpoints каталога материалов и партий
type MaterialController struct {
	materialService *services.MaterialService
}

// NewMaterialController создает новый контроллер материалов
func NewMaterialController(materialService *services.MaterialService) *MaterialController {
	return &MaterialController{
		materialService: materialService,
	}
}

// GetMaterials возвращает материалы арендатора
// GET /api/v1/materials?category=profile&active_only=true
func (mc *MaterialController) GetMaterials(c *gin.Context) {
	category := c.DefaultQuery("category", "")
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active_only", "false"))

	materials, err := mc.materialService.GetMaterials(tenantID(c), category, activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Ошибка получения материалов",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"materials": materials,
		"count":     len(materials),
	})
}

// GetMaterial возвращает материал по ID
// GET /api/v1/materials/:id
func (mc *MaterialController) GetMaterial(c *gin.Context) {
	material, err := mc.materialService.GetMaterial(tenantID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Материал не найден",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, material)
}

// CreateMaterial создает материал
// POST /api/v1/materials
func (mc *MaterialController) CreateMaterial(c *gin.Context) {
	var request struct {
		Name          string  `json:"name" binding:"required"`
		Category      string  `json:"category" binding:"required"`
		UsageUnit     string  `json:"usage_unit" binding:"required"`
		LengthUnit    string  `json:"length_unit"`
		CutTolerance  float64 `json:"cut_tolerance"`
		MinStockLevel float64 `json:"min_stock_level"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные параметры запроса",
			"details": err.Error(),
		})
		return
	}

	material, err := mc.materialService.CreateMaterial(services.CreateMaterialInput{
		TenantID:      tenantID(c),
		Name:          request.Name,
		Category:      models.MaterialCategory(request.Category),
		UsageUnit:     request.UsageUnit,
		LengthUnit:    request.LengthUnit,
		CutTolerance:  request.CutTolerance,
		MinStockLevel: request.MinStockLevel,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Ошибка создания материала",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, material)
}

// UpdateMaterial обновляет материал
// PATCH /api/v1/materials/:id
func (mc *MaterialController) UpdateMaterial(c *gin.Context) {
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные параметры запроса",
			"details": err.Error(),
		})
		return
	}

	material, err := mc.materialService.UpdateMaterial(tenantID(c), c.Param("id"), updates)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Ошибка обновления материала",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, material)
}

// DeleteMaterial удаляет материал без открытых партий
// DELETE /api/v1/materials/:id
func (mc *MaterialController) DeleteMaterial(c *gin.Context) {
	if err := mc.materialService.DeleteMaterial(tenantID(c), c.Param("id")); err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Ошибка удаления материала",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Материал удален"})
}

// AddGauge добавляет калибр профильному материалу
// POST /api/v1/materials/:id/gauges
func (mc *MaterialController) AddGauge(c *gin.Context) {
	var request struct {
		Code            string  `json:"code" binding:"required"`
		WeightPerLength float64 `json:"weight_per_length"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные параметры запроса",
			"details": err.Error(),
		})
		return
	}

	gauge, err := mc.materialService.AddGauge(tenantID(c), c.Param("id"), request.Code, request.WeightPerLength)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Ошибка создания калибра",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gauge)
}

// ReceiveProfileBatch приходует партию хлыстов профиля
// POST /api/v1/materials/:id/batches/profile
func (mc *MaterialController) ReceiveProfileBatch(c *gin.Context) {
	var request struct {
		Gauge          string  `json:"gauge" binding:"required"`
		StandardLength float64 `json:"standard_length" binding:"required"`
		LengthUnit     string  `json:"length_unit" binding:"required"`
		Quantity       float64 `json:"quantity" binding:"required"`
		ActualWeight   float64 `json:"actual_weight"`
		RatePerPiece   float64 `json:"rate_per_piece"`
		PurchaseDate   string  `json:"purchase_date"` // YYYY-MM-DD
		SupplierName   string  `json:"supplier_name"`
		LotNumber      string  `json:"lot_number"`
		PerformedBy    string  `json:"performed_by"`
		InitialStock   bool    `json:"initial_stock"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные параметры запроса",
			"details": err.Error(),
		})
		return
	}

	var purchaseDate time.Time
	if request.PurchaseDate != "" {
		parsed, err := time.Parse("2006-01-02", request.PurchaseDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Неверный формат даты закупки, ожидается YYYY-MM-DD",
				"details": err.Error(),
			})
			return
		}
		purchaseDate = parsed
	}

	batch, err := mc.materialService.ReceiveProfileBatch(services.ReceiveProfileBatchInput{
		TenantID:       tenantID(c),
		MaterialID:     c.Param("id"),
		Gauge:          request.Gauge,
		StandardLength: request.StandardLength,
		LengthUnit:     request.LengthUnit,
		Quantity:       request.Quantity,
		ActualWeight:   request.ActualWeight,
		RatePerPiece:   request.RatePerPiece,
		PurchaseDate:   purchaseDate,
		SupplierName:   request.SupplierName,
		LotNumber:      request.LotNumber,
		PerformedBy:    request.PerformedBy,
		InitialStock:   request.InitialStock,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Ошибка оприходования партии",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, batch)
}

// ReceiveSimpleBatch приходует партию материала без раскроя
// POST /api/v1/materials/:id/batches/simple
func (mc *MaterialController) ReceiveSimpleBatch(c *gin.Context) {
	var request struct {
		Quantity     float64 `json:"quantity" binding:"required"`
		Unit         string  `json:"unit"`
		RatePerUnit  float64 `json:"rate_per_unit"`
		PurchaseDate string  `json:"purchase_date"`
		SupplierName string  `json:"supplier_name"`
		LotNumber    string  `json:"lot_number"`
		PerformedBy  string  `json:"performed_by"`
		InitialStock bool    `json:"initial_stock"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные параметры запроса",
			"details": err.Error(),
		})
		return
	}

	var purchaseDate time.Time
	if request.PurchaseDate != "" {
		parsed, err := time.Parse("2006-01-02", request.PurchaseDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Неверный формат даты закупки, ожидается YYYY-MM-DD",
				"details": err.Error(),
			})
			return
		}
		purchaseDate = parsed
	}

	batch, err := mc.materialService.ReceiveSimpleBatch(services.ReceiveSimpleBatchInput{
		TenantID:     tenantID(c),
		MaterialID:   c.Param("id"),
		Quantity:     request.Quantity,
		Unit:         request.Unit,
		RatePerUnit:  request.RatePerUnit,
		PurchaseDate: purchaseDate,
		SupplierName: request.SupplierName,
		LotNumber:    request.LotNumber,
		PerformedBy:  request.PerformedBy,
		InitialStock: request.InitialStock,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Ошибка оприходования партии",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, batch)
}

// GetStandardLengths возвращает стандартные длины, доступные на складе
// GET /api/v1/materials/:id/standard-lengths?gauge=20G
func (mc *MaterialController) GetStandardLengths(c *gin.Context) {
	options, err := mc.materialService.StandardLengthOptions(tenantID(c), c.Param("id"), c.DefaultQuery("gauge", ""))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Ошибка получения стандартных длин",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"options": options,
		"count":   len(options),
	})
}
