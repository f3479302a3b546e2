package service

import (
	"context"
	"testing"
	"time"

	"github.com/cordon-dev/cordon/config"
	logger "github.com/cordon-dev/cordon/logging"
	"github.com/cordon-dev/cordon/model"
	"github.com/cordon-dev/cordon/test/mock"
	"github.com/cordon-dev/cordon/util"
)

// testEnv wires the whole service layer against in-memory collaborators.
// The redis lock is disabled: recomputation is idempotent and the fakes run
// in one process.
type testEnv struct {
	graph *mock.Graph
	cache *mock.FakeCache
	basic *config.Basic

	res   *ResCacheService
	ident *IdentCacheService
	item  *ItemService
	rel   *RelService
	token *TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger.InitLogger(t.TempDir())

	graph := mock.NewGraph()
	cache := mock.NewFakeCache()
	basic := &config.Basic{RoleSysAdminID: "sys-admin-role"}
	validation := util.NewValidationUtil()

	res := NewResCacheService(graph.Items(), graph.Rels(), cache, "res:rel", 2)
	res.lock = nil
	ident := NewIdentCacheService(graph.Items(), graph.Rels(), cache, IdentCacheOptions{
		TokenPrefix:        "token:",
		AccountTokenPrefix: "acct:",
		RelPageSize:        2,
		QueueSize:          64,
		WorkRetries:        1,
	})
	item := NewItemService(graph.Items(), graph.Rels(), model.DefaultKindRegistry(),
		validation, cache, ident, res, nil, basic, "role:info:")
	rel := NewRelService(graph.Items(), graph.Rels(), res, ident, validation, nil, basic)
	token := NewTokenService(graph.Items(), graph.Rels(), cache, nil, "token:", "acct:", time.Hour)

	return &testEnv{
		graph: graph,
		cache: cache,
		basic: basic,
		res:   res,
		ident: ident,
		item:  item,
		rel:   rel,
		token: token,
	}
}

// failingHashCache wraps the fake cache and refuses hash writes, standing
// in for a Redis outage during authorization cache sync.
type failingHashCache struct {
	util.Cache
	err error
}

func (c *failingHashCache) HSet(ctx context.Context, key, field, value string) error {
	return c.err
}

func (c *failingHashCache) HDel(ctx context.Context, key, field string) error {
	return c.err
}

// breakResCache swaps the authorization cache service onto a cache whose
// hash writes fail with err.
func (e *testEnv) breakResCache(err error) {
	res := NewResCacheService(e.graph.Items(), e.graph.Rels(),
		&failingHashCache{Cache: e.cache, err: err}, "res:rel", 1)
	res.lock = nil
	e.res = res
	e.rel.resCache = res
	e.item.resCache = res
}

func (e *testEnv) seedAccount(id, ownPaths string) string {
	return e.graph.SeedItem(&model.Item{
		ID: id, Kind: model.KindAccount, Name: id,
		ScopeLevel: model.ScopeLevelPrivate, OwnPaths: ownPaths,
	})
}

func (e *testEnv) seedRole(id, ownPaths string, scopeLevel int) string {
	return e.graph.SeedItem(&model.Item{
		ID: id, Kind: model.KindRole, Code: id, Name: id,
		ScopeLevel: scopeLevel, OwnPaths: ownPaths,
	})
}

func (e *testEnv) seedAPI(id, method, uri, ownPaths string) string {
	return e.graph.SeedItem(&model.Item{
		ID: id, Kind: model.KindResource, Code: uri, Name: id,
		ScopeLevel: model.ScopeLevelTenant, OwnPaths: ownPaths,
		Ext: map[string]any{"res_kind": model.ResKindAPI, "method": method},
	})
}

func (e *testEnv) seedMenu(id, ownPaths string) string {
	return e.graph.SeedItem(&model.Item{
		ID: id, Kind: model.KindResource, Code: id, Name: id,
		ScopeLevel: model.ScopeLevelTenant, OwnPaths: ownPaths,
		Ext: map[string]any{"res_kind": model.ResKindMenu},
	})
}
