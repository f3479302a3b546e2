// test/mock/cache.go
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/cordon-dev/cordon/util"
)

// FakeCache is an in-memory util.Cache. TTLs are recorded but never
// expire on their own; tests assert on content, not on clock behavior.
type FakeCache struct {
	mu     sync.Mutex
	values map[string]string
	hashes map[string]map[string]string
}

var _ util.Cache = &FakeCache{}

func NewFakeCache() *FakeCache {
	return &FakeCache{
		values: make(map[string]string),
		hashes: make(map[string]map[string]string),
	}
}

func (c *FakeCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.values[key]
	return val, ok, nil
}

func (c *FakeCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *FakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	delete(c.hashes, key)
	return nil
}

func (c *FakeCache) HGet(ctx context.Context, key, field string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash, ok := c.hashes[key]
	if !ok {
		return "", false, nil
	}
	val, ok := hash[field]
	return val, ok, nil
}

func (c *FakeCache) HSet(ctx context.Context, key, field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash, ok := c.hashes[key]
	if !ok {
		hash = make(map[string]string)
		c.hashes[key] = hash
	}
	hash[field] = value
	return nil
}

func (c *FakeCache) HDel(ctx context.Context, key, field string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hash, ok := c.hashes[key]; ok {
		delete(hash, field)
	}
	return nil
}

func (c *FakeCache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string)
	for field, val := range c.hashes[key] {
		out[field] = val
	}
	return out, nil
}

// Keys returns the plain keys currently set, for assertions.
func (c *FakeCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	return keys
}
