package middleware

import (
	"net/http"

	"pwashop/models"
	"pwashop/utils"

	"github.com/gin-gonic/gin"
)

// AdminOnly must run after JWTAuthUserMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, utils.ErrorResponse{Message: "Admin access required"})
			return
		}
		c.Set("isAdmin", true)
		c.Next()
	}
}
