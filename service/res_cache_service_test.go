package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cordon-dev/cordon/model"
)

func seedResRole(t *testing.T, e *testEnv, resID, roleID string, v model.Validity) {
	t.Helper()
	_, err := e.graph.Rels().Insert(context.Background(), &model.Relation{
		Tag: model.RelResRole, FromID: resID, ToID: roleID,
		ToOwnPaths: "t1", Validity: v,
	})
	require.NoError(t, err)
}

func seedResApi(t *testing.T, e *testEnv, menuID, apiID string, v model.Validity) {
	t.Helper()
	_, err := e.graph.Rels().Insert(context.Background(), &model.Relation{
		Tag: model.RelResApi, FromID: menuID, ToID: apiID,
		ToOwnPaths: "t1", Validity: v,
	})
	require.NoError(t, err)
}

func TestResCacheDirectBinding(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().Unix()

	e.seedAPI("api1", "GET", "/order/list", "t1")
	e.seedRole("viewer", "t1", model.ScopeLevelTenant)
	seedResRole(t, e, "api1", "viewer", model.Validity{StartTs: now - 10, EndTs: now + 3600})

	api, err := e.graph.Items().Get(ctx, "api1")
	require.NoError(t, err)
	require.NoError(t, e.res.OnResRoleChanged(ctx, api))

	entry, err := e.res.GetEntry(ctx, "GET", "/order/list")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []string{"viewer"}, entry.Roles)
	require.NotNil(t, entry.StartTs)
	require.NotNil(t, entry.EndTs)
	assert.Equal(t, now-10, *entry.StartTs)
	assert.Equal(t, now+3600, *entry.EndTs)
}

func TestResCacheRoleSurvivesWhileAnyMappingRemains(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().Unix()
	window := model.Validity{StartTs: now - 10, EndTs: now + 3600}

	e.seedAPI("api1", "POST", "/order", "t1")
	e.seedMenu("menu1", "t1")
	e.seedMenu("menu2", "t1")
	e.seedRole("editor", "t1", model.ScopeLevelTenant)

	seedResApi(t, e, "menu1", "api1", window)
	seedResApi(t, e, "menu2", "api1", window)
	seedResRole(t, e, "menu1", "editor", window)
	seedResRole(t, e, "menu2", "editor", window)

	menu1, err := e.graph.Items().Get(ctx, "menu1")
	require.NoError(t, err)
	require.NoError(t, e.res.OnResRoleChanged(ctx, menu1))

	entry, err := e.res.GetEntry(ctx, "POST", "/order")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []string{"editor"}, entry.Roles)

	// Drop the first mapping: the role is still reachable through menu2.
	_, err = e.graph.Rels().DeleteEdges(ctx, model.RelResRole, "menu1", "editor")
	require.NoError(t, err)
	require.NoError(t, e.res.OnResRoleChanged(ctx, menu1))

	entry, err = e.res.GetEntry(ctx, "POST", "/order")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []string{"editor"}, entry.Roles)

	// Drop the last mapping: the bucket disappears entirely.
	_, err = e.graph.Rels().DeleteEdges(ctx, model.RelResRole, "menu2", "editor")
	require.NoError(t, err)
	menu2, err := e.graph.Items().Get(ctx, "menu2")
	require.NoError(t, err)
	require.NoError(t, e.res.OnResRoleChanged(ctx, menu2))

	entry, err = e.res.GetEntry(ctx, "POST", "/order")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestResCacheWindowUnion(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().Unix()

	e.seedAPI("api1", "GET", "/report", "t1")
	e.seedRole("r1", "t1", model.ScopeLevelTenant)
	e.seedRole("r2", "t1", model.ScopeLevelTenant)
	seedResRole(t, e, "api1", "r1", model.Validity{StartTs: now - 100, EndTs: now + 3600})
	seedResRole(t, e, "api1", "r2", model.Validity{StartTs: now - 10, EndTs: now + 7200})

	api, err := e.graph.Items().Get(ctx, "api1")
	require.NoError(t, err)
	require.NoError(t, e.res.OnResRoleChanged(ctx, api))

	entry, err := e.res.GetEntry(ctx, "GET", "/report")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.ElementsMatch(t, []string{"r1", "r2"}, entry.Roles)
	assert.Equal(t, now-100, *entry.StartTs)
	assert.Equal(t, now+7200, *entry.EndTs)
}

func TestResCacheExpiredEdgesExcluded(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().Unix()

	e.seedAPI("api1", "GET", "/stale", "t1")
	e.seedRole("r1", "t1", model.ScopeLevelTenant)
	seedResRole(t, e, "api1", "r1", model.Validity{StartTs: now - 7200, EndTs: now - 3600})

	api, err := e.graph.Items().Get(ctx, "api1")
	require.NoError(t, err)
	require.NoError(t, e.res.OnResRoleChanged(ctx, api))

	entry, err := e.res.GetEntry(ctx, "GET", "/stale")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestResCacheNonAPIResourceIgnored(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	e.seedMenu("menu1", "t1")
	menu, err := e.graph.Items().Get(ctx, "menu1")
	require.NoError(t, err)

	// A menu with no ResApi mapping affects no action key.
	require.NoError(t, e.res.OnResRoleChanged(ctx, menu))
	require.NoError(t, e.res.OnResApiChanged(ctx, menu))
	assert.Empty(t, e.cache.Keys())
}
