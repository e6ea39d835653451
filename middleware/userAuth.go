package middleware

import (
	"errors"
	"net/http"
	"strings"

	userRepo "pwashop/database/repository/user"
	"pwashop/models"
	"pwashop/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ContextUserID = "userID"
	ContextUser   = "user"
	ContextRole   = "role"
)

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{Message: msg})
}

// JWTAuthUserMiddleware validates the bearer token issued by the origin and
// loads the user it names.
func JWTAuthUserMiddleware(users userRepo.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "No token, authorization denied")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			abortUnauthorized(c, "No token, authorization denied")
			return
		}

		userID, err := utils.ExtractIDFromToken(tokenString)
		if err != nil {
			zap.L().Debug("rejected token", zap.Error(err))
			abortUnauthorized(c, "Token is not valid")
			return
		}

		usr, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			if !errors.Is(err, userRepo.ErrUserNotFound) {
				zap.L().Error("JWTAuthUserMiddleware: user lookup failed", zap.String("userID", userID), zap.Error(err))
			}
			abortUnauthorized(c, "Token is not valid")
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, usr.Role)
		c.Set(ContextUser, usr)
		c.Next()
	}
}

// CurrentUser returns the user set by JWTAuthUserMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}
