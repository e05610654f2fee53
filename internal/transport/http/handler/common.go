package handler

import (
	"github.com/gin-gonic/gin"

	"vecbridge/internal/transport/http/middleware"
)

// getTenantFromContext returns the authenticated user's ID, which scopes
// every document and query. Tokens are validated upstream by AuthJWT.
func getTenantFromContext(c *gin.Context) (uint, bool) {
	v, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}
