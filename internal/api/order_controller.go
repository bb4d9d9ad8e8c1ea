package api

import (
	"net/http"
	"strconv"

	"alumfab/server/internal/models"
	"alumfab/server/internal/services"

	"github.com/gin-gonic/gin"
)

// OrderController управляет API endpoints производственных заказов
type OrderController struct {
	orderService *services.OrderService
	producer     *OrderEventProducer
}

// NewOrderController создает новый контроллер заказов
func NewOrderController(orderService *services.OrderService, producer *OrderEventProducer) *OrderController {
	return &OrderController{
		orderService: orderService,
		producer:     producer,
	}
}

// GetOrders возвращает заказы арендатора
// GET /api/v1/orders?status=confirmed&limit=50
func (oc *OrderController) GetOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	orders, err := oc.orderService.GetOrders(tenantID(c), c.DefaultQuery("status", ""), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Ошибка получения заказов",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrder возвращает заказ со всеми позициями и резами
// GET /api/v1/orders/:id
func (oc *OrderController) GetOrder(c *gin.Context) {
	order, err := oc.orderService.GetOrder(tenantID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Заказ не найден",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, order)
}

// CreateOrder создает заказ
// POST /api/v1/orders
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var request struct {
		ClientName      string                               `json:"client_name" binding:"required"`
		ClientPhone     string                               `json:"client_phone"`
		Notes           string                               `json:"notes"`
		CreatedBy       string                               `json:"created_by"`
		Items           []services.CreateOrderItemInput      `json:"items" binding:"required"`
		RequiredCuts    []services.CreateRequiredCutInput    `json:"required_cuts"`
		MaterialDemands []services.CreateMaterialDemandInput `json:"material_demands"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные параметры запроса",
			"details": err.Error(),
		})
		return
	}

	order, err := oc.orderService.CreateOrder(services.CreateOrderInput{
		TenantID:        tenantID(c),
		ClientName:      request.ClientName,
		ClientPhone:     request.ClientPhone,
		Notes:           request.Notes,
		CreatedBy:       request.CreatedBy,
		Items:           request.Items,
		RequiredCuts:    request.RequiredCuts,
		MaterialDemands: request.MaterialDemands,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Ошибка создания заказа",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, order)
}

// UpdateOrderStatus переводит заказ в новый статус
// PATCH /api/v1/orders/:id/status
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	var request struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные параметры запроса",
			"details": err.Error(),
		})
		return
	}

	order, err := oc.orderService.UpdateStatus(tenantID(c), c.Param("id"), models.OrderStatus(request.Status))
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Ошибка перехода статуса",
			"details": err.Error(),
		})
		return
	}

	oc.producer.PublishStatusChange(order, "")
	c.JSON(http.StatusOK, order)
}
