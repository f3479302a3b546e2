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

func globalAdminCtx() *model.Context {
	return &model.Context{OwnPaths: "", Owner: "root"}
}

func TestAddItemLifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	tenantID, err := e.item.AddItem(ctx, globalAdminCtx(), &model.ItemAddReq{
		Kind: model.KindTenant, Code: "acme", Name: "Acme", ScopeLevel: model.ScopeLevelGlobal,
	})
	require.NoError(t, err)

	got, err := e.item.GetItem(ctx, globalAdminCtx(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, model.KindTenant, got.Kind)
	assert.Equal(t, "Acme", got.Name)
	assert.Equal(t, "root", got.Owner)
	assert.Equal(t, "", got.OwnPaths)
}

func TestAddItemCodeConflict(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	_, err := e.item.AddItem(ctx, ictx, &model.ItemAddReq{
		Kind: model.KindRole, Code: "ops", Name: "Ops", ScopeLevel: model.ScopeLevelTenant,
	})
	require.NoError(t, err)

	_, err = e.item.AddItem(ctx, ictx, &model.ItemAddReq{
		Kind: model.KindRole, Code: "ops", Name: "Ops Again", ScopeLevel: model.ScopeLevelTenant,
	})
	assert.ErrorIs(t, err, cordon_errors.ErrItemConflict)
}

func TestAddItemScopeMismatchRefused(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// Above the caller: a tenant admin cannot mint a global item.
	_, err := e.item.AddItem(ctx, tenantAdminCtx(), &model.ItemAddReq{
		Kind: model.KindRole, Code: "g", Name: "Global", ScopeLevel: model.ScopeLevelGlobal,
	})
	assert.ErrorIs(t, err, cordon_errors.ErrInvalidScope)

	// Below the caller: an app-level item does not belong on a tenant path.
	_, err = e.item.AddItem(ctx, tenantAdminCtx(), &model.ItemAddReq{
		Kind: model.KindRole, Code: "deep", Name: "Deep", ScopeLevel: model.ScopeLevelApp,
	})
	assert.ErrorIs(t, err, cordon_errors.ErrInvalidScope)

	// Private items are always allowed regardless of caller depth.
	_, err = e.item.AddItem(ctx, tenantAdminCtx(), &model.ItemAddReq{
		Kind: model.KindAccount, Name: "bob", ScopeLevel: model.ScopeLevelPrivate,
	})
	assert.NoError(t, err)
}

func TestModifyItemScopeMismatchRefused(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	id, err := e.item.AddItem(ctx, ictx, &model.ItemAddReq{
		Kind: model.KindRole, Code: "ops", Name: "Ops", ScopeLevel: model.ScopeLevelTenant,
	})
	require.NoError(t, err)

	deeper := model.ScopeLevelApp
	_, err = e.item.ModifyItem(ctx, ictx, id, &model.ItemModifyReq{ScopeLevel: &deeper})
	assert.ErrorIs(t, err, cordon_errors.ErrInvalidScope)
}

func TestAddItemAPIResourceRequiresMethod(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.item.AddItem(ctx, tenantAdminCtx(), &model.ItemAddReq{
		Kind: model.KindResource, Code: "/order", Name: "Order API",
		ScopeLevel: model.ScopeLevelTenant,
		Ext:        map[string]any{"res_kind": model.ResKindAPI},
	})
	assert.ErrorIs(t, err, cordon_errors.ErrInvalidItemData)
}

func TestModifyItemPartialPatch(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	id, err := e.item.AddItem(ctx, ictx, &model.ItemAddReq{
		Kind: model.KindRole, Code: "ops", Name: "Ops", ScopeLevel: model.ScopeLevelTenant,
	})
	require.NoError(t, err)

	name := "Operations"
	updated, err := e.item.ModifyItem(ctx, ictx, id, &model.ItemModifyReq{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Operations", updated.Name)
	assert.Equal(t, "ops", updated.Code)
	assert.Equal(t, model.ScopeLevelTenant, updated.ScopeLevel)
	assert.Equal(t, "admin", updated.Updater)
}

func TestModifyItemEmptyPatchIsNoop(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	id, err := e.item.AddItem(ctx, ictx, &model.ItemAddReq{
		Kind: model.KindRole, Code: "ops", Name: "Ops", ScopeLevel: model.ScopeLevelTenant,
	})
	require.NoError(t, err)

	got, err := e.item.ModifyItem(ctx, ictx, id, &model.ItemModifyReq{})
	require.NoError(t, err)
	assert.Equal(t, "Ops", got.Name)
}

func TestModifyItemOutsideScopeRefused(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	id, err := e.item.AddItem(ctx, tenantAdminCtx(), &model.ItemAddReq{
		Kind: model.KindRole, Code: "ops", Name: "Ops", ScopeLevel: model.ScopeLevelTenant,
	})
	require.NoError(t, err)

	sibling := &model.Context{OwnPaths: "t2", Owner: "other"}
	name := "Hijacked"
	_, err = e.item.ModifyItem(ctx, sibling, id, &model.ItemModifyReq{Name: &name})
	assert.ErrorIs(t, err, cordon_errors.ErrItemNotVisible)
}

func TestDisableRoleInvalidatesItsAccounts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	roleID, err := e.item.AddItem(ctx, ictx, &model.ItemAddReq{
		Kind: model.KindRole, Code: "ops", Name: "Ops", ScopeLevel: model.ScopeLevelTenant,
	})
	require.NoError(t, err)
	e.seedAccount("a1", "t1")
	seedAccountRole(t, e, "a1", roleID)
	token, _, err := e.token.IssueToken(ctx, "a1")
	require.NoError(t, err)

	disabled := true
	e.ident.Start(ctx)
	_, err = e.item.ModifyItem(ctx, ictx, roleID, &model.ItemModifyReq{Disabled: &disabled})
	require.NoError(t, err)
	e.ident.Stop(5 * time.Second)

	_, err = e.token.FetchContext(ctx, token)
	assert.ErrorIs(t, err, cordon_errors.ErrTokenNotFound)
}

func TestModifyItemSurfacesCacheSyncFailure(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	id, err := e.item.AddItem(ctx, ictx, &model.ItemAddReq{
		Kind: model.KindResource, Code: "/order/list", Name: "List API",
		ScopeLevel: model.ScopeLevelTenant,
		Ext:        map[string]any{"res_kind": model.ResKindAPI, "method": "GET"},
	})
	require.NoError(t, err)
	e.breakResCache(errors.New("connection refused"))

	name := "Order list"
	_, err = e.item.ModifyItem(ctx, ictx, id, &model.ItemModifyReq{Name: &name})
	assert.ErrorIs(t, err, cordon_errors.ErrCacheOperation)
}

func TestDeleteTenantForbidden(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	id, err := e.item.AddItem(ctx, globalAdminCtx(), &model.ItemAddReq{
		Kind: model.KindTenant, Code: "acme", Name: "Acme", ScopeLevel: model.ScopeLevelGlobal,
	})
	require.NoError(t, err)

	err = e.item.DeleteItem(ctx, globalAdminCtx(), id)
	assert.ErrorIs(t, err, cordon_errors.ErrItemDeleteForbidden)
}

func TestDeleteBootstrapAdminRoleForbidden(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	e.seedRole("sys-admin-role", "", model.ScopeLevelGlobal)
	err := e.item.DeleteItem(ctx, globalAdminCtx(), "sys-admin-role")
	assert.ErrorIs(t, err, cordon_errors.ErrItemDeleteForbidden)
}

func TestDeleteItemWithLiveEdgesRefused(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	roleID, err := e.item.AddItem(ctx, ictx, &model.ItemAddReq{
		Kind: model.KindRole, Code: "ops", Name: "Ops", ScopeLevel: model.ScopeLevelTenant,
	})
	require.NoError(t, err)
	e.seedAccount("a1", "t1")
	seedAccountRole(t, e, "a1", roleID)

	err = e.item.DeleteItem(ctx, ictx, roleID)
	require.ErrorIs(t, err, cordon_errors.ErrItemAttached)
	assert.Contains(t, err.Error(), string(model.RelAccountRole))

	// After the edge is gone the delete goes through.
	_, err = e.graph.Rels().DeleteEdges(ctx, model.RelAccountRole, "a1", roleID)
	require.NoError(t, err)
	require.NoError(t, e.item.DeleteItem(ctx, ictx, roleID))

	_, err = e.item.GetItem(ctx, ictx, roleID)
	assert.ErrorIs(t, err, cordon_errors.ErrItemNotFound)
}

func TestDeleteAccountInvalidatesTokens(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	e.seedAccount("a1", "t1")
	token, _, err := e.token.IssueToken(ctx, "a1")
	require.NoError(t, err)

	e.ident.Start(ctx)
	require.NoError(t, e.item.DeleteItem(ctx, ictx, "a1"))
	e.ident.Stop(5 * time.Second)

	_, err = e.token.FetchContext(ctx, token)
	assert.ErrorIs(t, err, cordon_errors.ErrTokenNotFound)
}

func TestGetItemVisibility(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	roleID, err := e.item.AddItem(ctx, tenantAdminCtx(), &model.ItemAddReq{
		Kind: model.KindRole, Code: "ops", Name: "Ops", ScopeLevel: model.ScopeLevelTenant,
	})
	require.NoError(t, err)

	t.Run("sibling tenant cannot see it", func(t *testing.T) {
		sibling := &model.Context{OwnPaths: "t2", Owner: "other"}
		_, err := e.item.GetItem(ctx, sibling, roleID)
		assert.ErrorIs(t, err, cordon_errors.ErrItemNotVisible)
	})

	t.Run("descendant scope sees it", func(t *testing.T) {
		app := &model.Context{OwnPaths: "t1/app1", Owner: "dev"}
		got, err := e.item.GetItem(ctx, app, roleID)
		require.NoError(t, err)
		assert.Equal(t, roleID, got.ID)
	})

	t.Run("global items are visible to everyone", func(t *testing.T) {
		globalID, err := e.item.AddItem(ctx, globalAdminCtx(), &model.ItemAddReq{
			Kind: model.KindRole, Code: "auditor", Name: "Auditor", ScopeLevel: model.ScopeLevelGlobal,
		})
		require.NoError(t, err)
		sibling := &model.Context{OwnPaths: "t2", Owner: "other"}
		_, err = e.item.GetItem(ctx, sibling, globalID)
		assert.NoError(t, err)
	})
}

func TestGetRoleServedFromInfoCache(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ictx := tenantAdminCtx()

	roleID, err := e.item.AddItem(ctx, ictx, &model.ItemAddReq{
		Kind: model.KindRole, Code: "ops", Name: "Ops", ScopeLevel: model.ScopeLevelTenant,
	})
	require.NoError(t, err)

	// First read populates the role info cache.
	_, err = e.item.GetItem(ctx, ictx, roleID)
	require.NoError(t, err)
	_, found, err := e.cache.Get(ctx, "role:info:"+roleID)
	require.NoError(t, err)
	assert.True(t, found)

	// A direct store change is not seen until the cache entry is refreshed.
	_, err = e.graph.Items().Update(ctx, model.KindRole, roleID, map[string]any{"name": "Changed"})
	require.NoError(t, err)
	got, err := e.item.GetItem(ctx, ictx, roleID)
	require.NoError(t, err)
	assert.Equal(t, "Ops", got.Name)
}

func TestFindItemsClampedToCallerScope(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.item.AddItem(ctx, tenantAdminCtx(), &model.ItemAddReq{
		Kind: model.KindRole, Code: "t1-ops", Name: "T1 Ops", ScopeLevel: model.ScopeLevelTenant,
	})
	require.NoError(t, err)
	other := &model.Context{OwnPaths: "t2", Owner: "other"}
	_, err = e.item.AddItem(ctx, other, &model.ItemAddReq{
		Kind: model.KindRole, Code: "t2-ops", Name: "T2 Ops", ScopeLevel: model.ScopeLevelTenant,
	})
	require.NoError(t, err)

	items, err := e.item.FindItems(ctx, tenantAdminCtx(), &model.ItemFilter{Kind: model.KindRole})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "t1-ops", items[0].Code)

	page, err := e.item.PaginateItems(ctx, tenantAdminCtx(), &model.ItemFilter{Kind: model.KindRole}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}
