package controller

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	cordon_errors "github.com/cordon-dev/cordon/errors"
	"github.com/cordon-dev/cordon/service"
	"github.com/cordon-dev/cordon/util"
)

type PassportController struct {
	tokenService service.ITokenService
}

func NewPassportController(tokenService service.ITokenService) *PassportController {
	return &PassportController{
		tokenService: tokenService,
	}
}

// RegisterRoutes registers the API routes for sessions. Login stays outside
// the identity middleware; logout and context run behind it.
func (pc *PassportController) RegisterRoutes(public, private *gin.RouterGroup) {
	public.POST("/passport/login", pc.Login)
	private.POST("/passport/logout", pc.Logout)
	private.GET("/passport/context", pc.Context)
}

type loginReq struct {
	AccountID string `json:"account_id" binding:"required"`
}

// Login endpoint
func (pc *PassportController) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid login data", err)
		return
	}

	token, ictx, err := pc.tokenService.IssueToken(c, req.AccountID)
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "context": ictx})
}

// Logout endpoint
func (pc *PassportController) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	if err := pc.tokenService.Logout(c, token); err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Context endpoint returns the caller's resolved identity.
func (pc *PassportController) Context(c *gin.Context) {
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, ictx)
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
