package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const tenantHeader = "X-Tenant-ID"

// TenantMiddleware требует заголовок X-Tenant-ID на всех запросах API.
// Данные арендаторов полностью изолированы — запрос без арендатора не обслуживается
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(tenantHeader)
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Заголовок X-Tenant-ID обязателен",
			})
			return
		}
		c.Set("tenant_id", tenantID)
		c.Next()
	}
}

// tenantID возвращает арендатора текущего запроса
func tenantID(c *gin.Context) string {
	return c.GetString("tenant_id")
}
