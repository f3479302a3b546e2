package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cordon-dev/cordon/controller"
	"github.com/cordon-dev/cordon/middleware"
	"github.com/cordon-dev/cordon/service"
)

func SetupRouter(
	controllers *controller.Controllers,
	tokenService service.ITokenService,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))

	public := router.Group("/api/v1")
	private := router.Group("/api/v1")
	private.Use(middleware.Identity(tokenService))

	controllers.Passport.RegisterRoutes(public, private)
	controllers.Item.RegisterRoutes(private)
	controllers.Rel.RegisterRoutes(private)

	return router
}
