package service

import (
	"time"

	"github.com/cordon-dev/cordon/audit"
	"github.com/cordon-dev/cordon/config"
	"github.com/cordon-dev/cordon/dao"
	"github.com/cordon-dev/cordon/util"
)

type Services struct {
	Item       IItemService
	Rel        IRelService
	Token      ITokenService
	ResCache   IResCacheService
	IdentCache *IdentCacheService
}

func InitializeServices(
	itemDAO *dao.ItemDAO,
	relationDAO *dao.RelationDAO,
	cache util.Cache,
	validationUtil *util.ValidationUtil,
	auditService audit.Service,
	basic *config.Basic,
) (*Services, error) {
	tokenTTL, err := time.ParseDuration(config.GetDuration("cache.tokenTTL"))
	if err != nil {
		tokenTTL = 24 * time.Hour
	}

	resCache := NewResCacheService(itemDAO, relationDAO, cache,
		config.GetString("cache.resRelKey"),
		config.GetInt("cache.writeRetries"))
	identCache := NewIdentCacheService(itemDAO, relationDAO, cache, IdentCacheOptions{
		TokenPrefix:        config.GetString("cache.tokenPrefix"),
		AccountTokenPrefix: config.GetString("cache.accountTokenPrefix"),
		RelPageSize:        config.GetInt("invalidation.relPageSize"),
		QueueSize:          config.GetInt("invalidation.queueSize"),
		WorkRetries:        config.GetInt("invalidation.workRetries"),
	})

	services := &Services{
		ResCache:   resCache,
		IdentCache: identCache,
		Item: NewItemService(itemDAO, relationDAO, itemDAO.Registry, validationUtil, cache,
			identCache, resCache, auditService, basic,
			config.GetString("cache.roleInfoPrefix")),
		Rel: NewRelService(itemDAO, relationDAO, resCache, identCache,
			validationUtil, auditService, basic),
		Token: NewTokenService(itemDAO, relationDAO, cache, auditService,
			config.GetString("cache.tokenPrefix"),
			config.GetString("cache.accountTokenPrefix"),
			tokenTTL),
	}
	return services, nil
}
