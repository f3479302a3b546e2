package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cordon-dev/cordon/model"
)

func TestActionKey(t *testing.T) {
	assert.Equal(t, "get##/order/list", model.ActionKey("GET", "/order/list"))
	assert.Equal(t, "post##/order", model.ActionKey("post", "/order"))
}

func TestResCacheEntryEmpty(t *testing.T) {
	entry := &model.ResCacheEntry{}
	assert.True(t, entry.Empty())

	entry.Roles = append(entry.Roles, "r1")
	assert.False(t, entry.Empty())
}

func TestMergeWindow(t *testing.T) {
	entry := &model.ResCacheEntry{}
	entry.MergeWindow(model.Validity{StartTs: 100, EndTs: 200})
	entry.MergeWindow(model.Validity{StartTs: 50, EndTs: 150})
	entry.MergeWindow(model.Validity{StartTs: 120, EndTs: 300})

	assert.Equal(t, int64(50), *entry.StartTs)
	assert.Equal(t, int64(300), *entry.EndTs)
}

func TestValidityLive(t *testing.T) {
	v := model.Validity{StartTs: 100, EndTs: 200}
	assert.False(t, v.Live(99))
	assert.True(t, v.Live(100))
	assert.True(t, v.Live(200))
	assert.False(t, v.Live(201))
}
