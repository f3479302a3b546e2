package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cordon_errors "github.com/cordon-dev/cordon/errors"
	logger "github.com/cordon-dev/cordon/logging"
	"github.com/cordon-dev/cordon/service"
	"github.com/cordon-dev/cordon/util"
)

// Identity resolves the bearer token to the acting identity's context and
// rejects the request when the token is missing, expired, or invalidated.
func Identity(tokenService service.ITokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			c.Abort()
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		ictx, err := tokenService.FetchContext(c, token)
		if err != nil {
			if !errors.Is(err, cordon_errors.ErrTokenNotFound) {
				logger.Error("Token resolution failed", zap.Error(err))
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		util.SetIdentity(c, ictx)
		c.Next()
	}
}
