package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TenantIDKey is the gin context key handlers set once they know the tenant
const TenantIDKey = "tenant_id"

// GetTenantID returns the tenant a request concerns: the value a handler
// stored under TenantIDKey, else a well-formed tenant_id query parameter.
// Malformed query values are ignored so they never reach metric labels.
func GetTenantID(c *gin.Context) string {
	if id := c.GetString(TenantIDKey); id != "" {
		return id
	}
	q := c.Query("tenant_id")
	if q == "" {
		return ""
	}
	if _, err := uuid.Parse(q); err != nil {
		return ""
	}
	return q
}
