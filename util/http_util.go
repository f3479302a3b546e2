package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cordon_errors "github.com/cordon-dev/cordon/errors"
	logger "github.com/cordon-dev/cordon/logging"
	"github.com/cordon-dev/cordon/model"
)

const identityKey = "identity"

func RespondWithError(c *gin.Context, code int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method))
	c.JSON(code, gin.H{"error": message})
}

// RespondWithKernelError maps a kernel error kind to an HTTP status.
func RespondWithKernelError(c *gin.Context, err error) {
	switch cordon_errors.KindOf(err) {
	case cordon_errors.KindNotFound:
		RespondWithError(c, http.StatusNotFound, err.Error(), err)
	case cordon_errors.KindConflict:
		RespondWithError(c, http.StatusConflict, err.Error(), err)
	case cordon_errors.KindUnauthorized:
		RespondWithError(c, http.StatusForbidden, err.Error(), err)
	case cordon_errors.KindBadRequest:
		RespondWithError(c, http.StatusBadRequest, err.Error(), err)
	default:
		RespondWithError(c, http.StatusInternalServerError, "internal error", err)
	}
}

// SetIdentity stores the authenticated identity on the gin context.
func SetIdentity(c *gin.Context, ictx *model.Context) {
	c.Set(identityKey, ictx)
}

// GetIdentity returns the authenticated identity, or false when the request
// carried no valid token.
func GetIdentity(c *gin.Context) (*model.Context, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	ictx, ok := v.(*model.Context)
	return ictx, ok
}
