package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cordon_errors "github.com/cordon-dev/cordon/errors"
	"github.com/cordon-dev/cordon/model"
)

func tenantAdminCtx() *model.Context {
	return &model.Context{OwnPaths: "t1", Owner: "admin"}
}

func TestAddRelAccountRole(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	e.seedAccount("a1", "t1")
	e.seedRole("ops", "t1", model.ScopeLevelTenant)

	id, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{
		Tag: model.RelAccountRole, FromID: "a1", ToID: "ops",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	exists, err := e.rel.ExistsRel(ctx, model.RelAccountRole, "a1", "ops")
	require.NoError(t, err)
	assert.True(t, exists)

	// Without an explicit validity the edge is effectively permanent.
	rels, err := e.rel.FindFromRels(ctx, ictx, model.RelAccountRole, "a1")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Greater(t, rels[0].Validity.EndTs, time.Now().AddDate(99, 0, 0).Unix())
	assert.Equal(t, "t1", rels[0].ToOwnPaths)
}

func TestAddRelDuplicateRefused(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	e.seedAccount("a1", "t1")
	e.seedRole("ops", "t1", model.ScopeLevelTenant)

	_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: model.RelAccountRole, FromID: "a1", ToID: "ops"})
	require.NoError(t, err)

	_, err = e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: model.RelAccountRole, FromID: "a1", ToID: "ops"})
	assert.ErrorIs(t, err, cordon_errors.ErrRelationConflict)
}

func TestAddRelValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	e.seedAccount("a1", "t1")
	e.seedRole("ops", "t1", model.ScopeLevelTenant)

	t.Run("self relation", func(t *testing.T) {
		_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: model.RelAccountRole, FromID: "a1", ToID: "a1"})
		assert.ErrorIs(t, err, cordon_errors.ErrRelationSelf)
	})

	t.Run("inverted validity window", func(t *testing.T) {
		now := time.Now().Unix()
		_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{
			Tag: model.RelAccountRole, FromID: "a1", ToID: "ops",
			Validity: &model.Validity{StartTs: now + 100, EndTs: now},
		})
		assert.ErrorIs(t, err, cordon_errors.ErrInvalidValidity)
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: "Bogus", FromID: "a1", ToID: "ops"})
		assert.ErrorIs(t, err, cordon_errors.ErrInvalidRelData)
	})

	t.Run("wrong endpoint kind", func(t *testing.T) {
		_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: model.RelAccountRole, FromID: "ops", ToID: "a1"})
		assert.ErrorIs(t, err, cordon_errors.ErrInvalidRelData)
	})
}

func TestAddRelTenantIsolation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	e.seedAccount("a1", "t1")
	e.seedRole("other", "t2", model.ScopeLevelTenant)

	_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: model.RelAccountRole, FromID: "a1", ToID: "other"})
	assert.ErrorIs(t, err, cordon_errors.ErrItemNotVisible)
}

func TestAddRelRoleEscalation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	e.seedAccount("a1", "t1")
	e.seedRole("global-auditor", "", model.ScopeLevelGlobal)

	t.Run("tenant admin cannot grant a global role", func(t *testing.T) {
		_, err := e.rel.AddRel(ctx, tenantAdminCtx(), &model.RelAddReq{
			Tag: model.RelAccountRole, FromID: "a1", ToID: "global-auditor",
		})
		assert.ErrorIs(t, err, cordon_errors.ErrScopeEscalation)
	})

	t.Run("sys admin can", func(t *testing.T) {
		ictx := &model.Context{OwnPaths: "t1", Owner: "admin", Roles: []string{e.basic.RoleSysAdminID}}
		_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{
			Tag: model.RelAccountRole, FromID: "a1", ToID: "global-auditor",
		})
		assert.NoError(t, err)
	})
}

func TestExpiredEdgeIsNotLive(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()
	now := time.Now().Unix()

	e.seedAccount("a1", "t1")
	e.seedRole("ops", "t1", model.ScopeLevelTenant)

	_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{
		Tag: model.RelAccountRole, FromID: "a1", ToID: "ops",
		Validity: &model.Validity{StartTs: now - 7200, EndTs: now - 3600},
	})
	require.NoError(t, err)

	exists, err := e.rel.ExistsRel(ctx, model.RelAccountRole, "a1", "ops")
	require.NoError(t, err)
	assert.False(t, exists)

	rels, err := e.rel.FindFromRels(ctx, ictx, model.RelAccountRole, "a1")
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestDeleteRelResRoleSyncsAuthorizationCache(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	e.seedAPI("api1", "GET", "/order/list", "t1")
	e.seedRole("viewer", "t1", model.ScopeLevelTenant)

	_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: model.RelResRole, FromID: "api1", ToID: "viewer"})
	require.NoError(t, err)

	entry, err := e.res.GetEntry(ctx, "GET", "/order/list")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []string{"viewer"}, entry.Roles)

	require.NoError(t, e.rel.DeleteRel(ctx, ictx, model.RelResRole, "api1", "viewer"))

	entry, err = e.res.GetEntry(ctx, "GET", "/order/list")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestAddRelSurfacesCacheSyncFailure(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	e.seedAPI("api1", "GET", "/order/list", "t1")
	e.seedRole("viewer", "t1", model.ScopeLevelTenant)
	e.breakResCache(errors.New("connection refused"))

	id, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: model.RelResRole, FromID: "api1", ToID: "viewer"})
	require.ErrorIs(t, err, cordon_errors.ErrCacheOperation)
	assert.NotEmpty(t, id)

	// The edge itself is committed; only the cache sync failed.
	exists, err := e.rel.ExistsRel(ctx, model.RelResRole, "api1", "viewer")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteRelSurfacesCacheSyncFailure(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	e.seedAPI("api1", "GET", "/order/list", "t1")
	e.seedRole("viewer", "t1", model.ScopeLevelTenant)
	_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: model.RelResRole, FromID: "api1", ToID: "viewer"})
	require.NoError(t, err)

	e.breakResCache(errors.New("connection refused"))
	err = e.rel.DeleteRel(ctx, ictx, model.RelResRole, "api1", "viewer")
	require.ErrorIs(t, err, cordon_errors.ErrCacheOperation)

	exists, err := e.rel.ExistsRel(ctx, model.RelResRole, "api1", "viewer")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteRelAccountRoleInvalidatesTokens(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	e.seedAccount("a1", "t1")
	e.seedRole("ops", "t1", model.ScopeLevelTenant)
	_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: model.RelAccountRole, FromID: "a1", ToID: "ops"})
	require.NoError(t, err)

	token, _, err := e.token.IssueToken(ctx, "a1")
	require.NoError(t, err)

	e.ident.Start(ctx)
	require.NoError(t, e.rel.DeleteRel(ctx, ictx, model.RelAccountRole, "a1", "ops"))
	e.ident.Stop(5 * time.Second)

	_, err = e.token.FetchContext(ctx, token)
	assert.ErrorIs(t, err, cordon_errors.ErrTokenNotFound)
}

func TestDeleteRelMissingIsNoop(t *testing.T) {
	e := newTestEnv(t)

	err := e.rel.DeleteRel(context.Background(), tenantAdminCtx(), model.RelAccountRole, "a1", "ops")
	assert.NoError(t, err)
}

func TestResApiEndpointRules(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	e.seedAPI("api1", "GET", "/order/list", "t1")
	e.seedMenu("menu1", "t1")

	t.Run("menu to api is accepted", func(t *testing.T) {
		_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: model.RelResApi, FromID: "menu1", ToID: "api1"})
		assert.NoError(t, err)
	})

	t.Run("api to api is refused", func(t *testing.T) {
		e.seedAPI("api2", "GET", "/order/detail", "t1")
		_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: model.RelResApi, FromID: "api2", ToID: "api1"})
		assert.ErrorIs(t, err, cordon_errors.ErrInvalidRelData)
	})

	t.Run("menu to menu is refused", func(t *testing.T) {
		e.seedMenu("menu2", "t1")
		_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: model.RelResApi, FromID: "menu1", ToID: "menu2"})
		assert.ErrorIs(t, err, cordon_errors.ErrInvalidRelData)
	})
}

func TestRelListingSurface(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	e.seedAccount("a1", "t1")
	for _, role := range []string{"r1", "r2", "r3"} {
		e.seedRole(role, "t1", model.ScopeLevelTenant)
		_, err := e.rel.AddRel(ctx, ictx, &model.RelAddReq{Tag: model.RelAccountRole, FromID: "a1", ToID: role})
		require.NoError(t, err)
	}

	bones, err := e.rel.FindFromBones(ctx, ictx, model.RelAccountRole, "a1", false)
	require.NoError(t, err)
	require.Len(t, bones, 3)
	assert.Equal(t, "r1", bones[0].ItemID)
	assert.Equal(t, "r1", bones[0].Name)

	count, err := e.rel.CountFrom(ctx, ictx, model.RelAccountRole, "a1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	page, err := e.rel.PaginateFromIDs(ctx, ictx, model.RelAccountRole, "a1", false, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, []string{"r3"}, page.Records)

	toCount, err := e.rel.CountTo(ctx, ictx, model.RelAccountRole, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), toCount)
}
