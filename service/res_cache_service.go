package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cordon-dev/cordon/dao"
	"github.com/cordon-dev/cordon/db"
	cordon_errors "github.com/cordon-dev/cordon/errors"
	logger "github.com/cordon-dev/cordon/logging"
	"github.com/cordon-dev/cordon/model"
	"github.com/cordon-dev/cordon/util"
)

// IResCacheService keeps the denormalized authorization cache in sync with
// the relation graph: one hash field per API action key, holding the subject
// sets currently permitted.
type IResCacheService interface {
	OnResRoleChanged(ctx context.Context, res *model.Item) error
	OnResApiChanged(ctx context.Context, apiRes *model.Item) error
	GetEntry(ctx context.Context, method, uri string) (*model.ResCacheEntry, error)
}

// ResCacheService recomputes entries from the full current edge set rather
// than applying diffs, so concurrent or retried writers converge on the same
// value. The entry window is the union of the live contributing edges'
// windows (min start, max end).
type ResCacheService struct {
	items   dao.ItemStore
	rels    dao.RelationStore
	cache   util.Cache
	hashKey string
	retries int

	// lock serializes recomputation of one action key across processes.
	// Nil (as in tests) means no cross-process lock; recomputation is
	// idempotent either way.
	lock func(ctx context.Context, name string) (release func(), err error)
}

var _ IResCacheService = &ResCacheService{}

func NewResCacheService(items dao.ItemStore, rels dao.RelationStore, cache util.Cache, hashKey string, retries int) *ResCacheService {
	return &ResCacheService{
		items:   items,
		rels:    rels,
		cache:   cache,
		hashKey: hashKey,
		retries: retries,
		lock:    redisActionKeyLock,
	}
}

func redisActionKeyLock(ctx context.Context, name string) (func(), error) {
	locked, err := db.LockResource(ctx, name, 5*time.Second)
	if err != nil || !locked {
		// A held or failing lock never blocks the mutation: recomputation
		// is idempotent, the last writer recomputes the same value.
		return func() {}, nil
	}
	return func() {
		if err := db.UnlockResource(context.WithoutCancel(ctx), name); err != nil {
			logger.Warn("Failed to release action key lock", zap.String("name", name), zap.Error(err))
		}
	}, nil
}

// OnResRoleChanged handles a ResRole edge mutation on the given resource.
// For an API resource the resource's own action key is recomputed; for a
// menu/element resource every API it governs (via ResApi edges) is.
func (s *ResCacheService) OnResRoleChanged(ctx context.Context, res *model.Item) error {
	apis, err := s.affectedAPIs(ctx, res)
	if err != nil {
		return err
	}
	for _, api := range apis {
		if err := s.refreshActionKey(ctx, api); err != nil {
			return err
		}
	}
	return nil
}

// OnResApiChanged handles a ResApi edge mutation: the API side's action key
// is recomputed. A role stays in the bucket as long as any menu/element
// resource still maps it to this API.
func (s *ResCacheService) OnResApiChanged(ctx context.Context, apiRes *model.Item) error {
	if !apiRes.IsAPIResource() {
		return nil
	}
	return s.refreshActionKey(ctx, apiRes)
}

// GetEntry reads the current cache entry for an action key, or nil when no
// subject is authorized.
func (s *ResCacheService) GetEntry(ctx context.Context, method, uri string) (*model.ResCacheEntry, error) {
	raw, found, err := s.cache.HGet(ctx, s.hashKey, model.ActionKey(method, uri))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cordon_errors.ErrCacheOperation, err)
	}
	if !found {
		return nil, nil
	}
	var entry model.ResCacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("%w: corrupt entry: %v", cordon_errors.ErrCacheOperation, err)
	}
	return &entry, nil
}

func (s *ResCacheService) affectedAPIs(ctx context.Context, res *model.Item) ([]*model.Item, error) {
	if res.IsAPIResource() {
		return []*model.Item{res}, nil
	}
	apiIDs, err := s.rels.FindFromIDs(ctx, model.RelResApi, res.ID, false, "")
	if err != nil {
		return nil, err
	}
	if len(apiIDs) == 0 {
		return nil, nil
	}
	items, err := s.items.Find(ctx, &model.ItemFilter{IDs: apiIDs, Kind: model.KindResource})
	if err != nil {
		return nil, err
	}
	apis := make([]*model.Item, 0, len(items))
	for _, item := range items {
		if item.IsAPIResource() {
			apis = append(apis, item)
		}
	}
	return apis, nil
}

func (s *ResCacheService) refreshActionKey(ctx context.Context, api *model.Item) error {
	field := model.ActionKey(api.ExtString("method"), api.Code)

	if s.lock != nil {
		release, err := s.lock(ctx, "res:rel:"+field)
		if err == nil {
			defer release()
		}
	}

	entry, err := s.computeEntry(ctx, api)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if entry.Empty() {
			lastErr = s.cache.HDel(ctx, s.hashKey, field)
		} else {
			raw, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("failed to marshal cache entry: %w", err)
			}
			lastErr = s.cache.HSet(ctx, s.hashKey, field, string(raw))
		}
		if lastErr == nil {
			logger.Debug("Authorization cache entry refreshed",
				zap.String("actionKey", field),
				zap.Int("roles", len(entry.Roles)))
			return nil
		}
		logger.Warn("Authorization cache write failed",
			zap.String("actionKey", field),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}
	// A silently stale authorization cache is a security defect: surface
	// the failure so the owning mutation fails loudly.
	return fmt.Errorf("%w: %v", cordon_errors.ErrCacheOperation, lastErr)
}

// computeEntry derives the subject sets for one API resource from the full
// current edge set: roles bound to the API directly by ResRole edges plus
// roles of every menu/element resource mapped to it by ResApi edges.
func (s *ResCacheService) computeEntry(ctx context.Context, api *model.Item) (*model.ResCacheEntry, error) {
	entry := &model.ResCacheEntry{}
	seen := make(map[string]bool)

	collect := func(fromID string) error {
		edges, err := s.rels.FindEdges(ctx, &model.RelQuery{Tag: model.RelResRole, FromID: fromID})
		if err != nil {
			return err
		}
		for _, edge := range edges {
			if !seen[edge.ToID] {
				seen[edge.ToID] = true
				entry.Roles = append(entry.Roles, edge.ToID)
			}
			entry.MergeWindow(edge.Validity)
		}
		return nil
	}

	if err := collect(api.ID); err != nil {
		return nil, err
	}

	menuIDs, err := s.rels.FindToIDs(ctx, model.RelResApi, api.ID, "")
	if err != nil {
		return nil, err
	}
	for _, menuID := range menuIDs {
		if err := collect(menuID); err != nil {
			return nil, err
		}
	}

	return entry, nil
}
