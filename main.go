package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cordon-dev/cordon/audit"
	"github.com/cordon-dev/cordon/config"
	"github.com/cordon-dev/cordon/controller"
	"github.com/cordon-dev/cordon/dao"
	"github.com/cordon-dev/cordon/db"
	cordon_errors "github.com/cordon-dev/cordon/errors"
	logger "github.com/cordon-dev/cordon/logging"
	"github.com/cordon-dev/cordon/model"
	"github.com/cordon-dev/cordon/router"
	"github.com/cordon-dev/cordon/service"
	"github.com/cordon-dev/cordon/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Neo4j
	if err := db.InitNeo4j(); err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}
	defer db.CloseNeo4j()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize utilities
	validationUtil := util.NewValidationUtil()
	cache := util.NewRedisCache()
	auditRepository, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Fatal("Failed to initialize audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)

	// The item DAO constructor ensures the graph constraints; resolve the
	// bootstrap admin roles against it before the services come up.
	itemDAO := dao.NewItemDAO(db.Neo4jDriver, model.DefaultKindRegistry())
	relationDAO := dao.NewRelationDAO(db.Neo4jDriver)
	basic, err := resolveBasic(ctx, itemDAO)
	if err != nil {
		logger.Fatal("Failed to resolve bootstrap roles", zap.Error(err))
	}

	// Initialize services
	services, err := service.InitializeServices(itemDAO, relationDAO, cache, validationUtil, auditService, basic)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	services.IdentCache.Start(ctx)

	// Initialize controllers
	controllers := controller.InitializeControllers(services)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	engine := router.SetupRouter(controllers, services.Token, 100, time.Minute)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engine,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Drain outstanding token invalidations before exit
	drainTimeout, err := time.ParseDuration(config.GetDuration("invalidation.drainTimeout"))
	if err != nil {
		drainTimeout = 10 * time.Second
	}
	services.IdentCache.Stop(drainTimeout)

	logger.Info("Server exiting")
}

// resolveBasic looks up the well-known admin roles by code. A fresh install
// has none yet; the ids stay empty until the roles are created.
func resolveBasic(ctx context.Context, items dao.ItemStore) (*config.Basic, error) {
	basic := &config.Basic{}
	for _, entry := range []struct {
		code string
		dst  *string
	}{
		{config.RoleCodeSysAdmin, &basic.RoleSysAdminID},
		{config.RoleCodeTenantAdmin, &basic.RoleTenantAdminID},
		{config.RoleCodeAppAdmin, &basic.RoleAppAdminID},
	} {
		role, err := items.GetByCode(ctx, model.KindRole, entry.code)
		if err != nil {
			if errors.Is(err, cordon_errors.ErrItemNotFound) {
				continue
			}
			return nil, err
		}
		*entry.dst = role.ID
	}
	return basic, nil
}
