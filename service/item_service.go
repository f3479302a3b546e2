package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cordon-dev/cordon/audit"
	"github.com/cordon-dev/cordon/config"
	"github.com/cordon-dev/cordon/dao"
	cordon_errors "github.com/cordon-dev/cordon/errors"
	logger "github.com/cordon-dev/cordon/logging"
	"github.com/cordon-dev/cordon/model"
	"github.com/cordon-dev/cordon/scope"
	"github.com/cordon-dev/cordon/util"
)

// IItemService runs the item lifecycle: create, patch, disable, delete and
// the scoped read surface. Every operation takes the acting identity's
// context and enforces the scope visibility rule before touching the store.
type IItemService interface {
	AddItem(ctx context.Context, ictx *model.Context, req *model.ItemAddReq) (string, error)
	ModifyItem(ctx context.Context, ictx *model.Context, id string, req *model.ItemModifyReq) (*model.Item, error)
	DeleteItem(ctx context.Context, ictx *model.Context, id string) error
	GetItem(ctx context.Context, ictx *model.Context, id string) (*model.Item, error)
	FindItems(ctx context.Context, ictx *model.Context, filter *model.ItemFilter) ([]*model.Item, error)
	PaginateItems(ctx context.Context, ictx *model.Context, filter *model.ItemFilter, pageNumber, pageSize int) (*model.ItemPage, error)
}

type ItemService struct {
	items      dao.ItemStore
	rels       dao.RelationStore
	registry   *model.KindRegistry
	validation *util.ValidationUtil
	cache      util.Cache
	identCache IIdentCacheService
	resCache   IResCacheService
	auditSvc   audit.Service
	basic      *config.Basic

	roleInfoPrefix string
}

var _ IItemService = &ItemService{}

func NewItemService(items dao.ItemStore, rels dao.RelationStore, registry *model.KindRegistry, validation *util.ValidationUtil, cache util.Cache, identCache IIdentCacheService, resCache IResCacheService, auditSvc audit.Service, basic *config.Basic, roleInfoPrefix string) *ItemService {
	return &ItemService{
		items:          items,
		rels:           rels,
		registry:       registry,
		validation:     validation,
		cache:          cache,
		identCache:     identCache,
		resCache:       resCache,
		auditSvc:       auditSvc,
		basic:          basic,
		roleInfoPrefix: roleInfoPrefix,
	}
}

// AddItem creates an item at the caller's position in the hierarchy. The
// requested scope level must equal the depth of that position (private
// items excepted): an account inside tenant t1 can mint neither a global
// item nor an app-level one.
func (s *ItemService) AddItem(ctx context.Context, ictx *model.Context, req *model.ItemAddReq) (string, error) {
	if err := s.validation.ValidateItemAdd(req); err != nil {
		return "", err
	}
	spec, err := s.registry.Get(req.Kind)
	if err != nil {
		return "", fmt.Errorf("%w: %v", cordon_errors.ErrInvalidItemData, err)
	}
	ext, err := spec.PackAdd(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", cordon_errors.ErrInvalidItemData, err)
	}
	if req.ScopeLevel != model.ScopeLevelPrivate && req.ScopeLevel != scope.Depth(ictx.OwnPaths) {
		return "", fmt.Errorf("%w: scope level %d does not match caller depth %d",
			cordon_errors.ErrInvalidScope, req.ScopeLevel, scope.Depth(ictx.OwnPaths))
	}
	if req.Code != "" {
		existing, err := s.items.GetByCode(ctx, req.Kind, req.Code)
		if err != nil && !errors.Is(err, cordon_errors.ErrItemNotFound) {
			return "", err
		}
		if existing != nil {
			return "", fmt.Errorf("%w: %s code %q", cordon_errors.ErrItemConflict, req.Kind, req.Code)
		}
	}

	item := &model.Item{
		Kind:       req.Kind,
		Code:       req.Code,
		Name:       req.Name,
		Disabled:   req.Disabled,
		ScopeLevel: req.ScopeLevel,
		OwnPaths:   ictx.OwnPaths,
		Owner:      ictx.Owner,
		Ext:        ext,
	}
	id, err := s.items.Insert(ctx, item)
	if err != nil {
		return "", err
	}
	logger.Info("Item added",
		zap.String("kind", string(req.Kind)),
		zap.String("id", id),
		zap.String("ownPaths", ictx.OwnPaths))
	s.logAudit(ctx, ictx, audit.ActionAddItem, id, req)
	return id, nil
}

// ModifyItem applies a partial patch. Only a caller positioned at or above
// the item may change it. Disabling an item fans out to the identity cache:
// the grants behind existing sessions just changed.
func (s *ItemService) ModifyItem(ctx context.Context, ictx *model.Context, id string, req *model.ItemModifyReq) (*model.Item, error) {
	if err := s.validation.ValidateItemModify(req); err != nil {
		return nil, err
	}
	if req.Empty() {
		return s.GetItem(ctx, ictx, id)
	}
	current, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.IsPrefix(ictx.OwnPaths, current.OwnPaths) {
		return nil, fmt.Errorf("%w: %s", cordon_errors.ErrItemNotVisible, id)
	}
	spec, err := s.registry.Get(current.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cordon_errors.ErrInvalidItemData, err)
	}
	ext, err := spec.PackModify(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cordon_errors.ErrInvalidItemData, err)
	}
	if req.ScopeLevel != nil && *req.ScopeLevel != model.ScopeLevelPrivate && *req.ScopeLevel != scope.Depth(current.OwnPaths) {
		return nil, fmt.Errorf("%w: scope level %d does not match item depth %d",
			cordon_errors.ErrInvalidScope, *req.ScopeLevel, scope.Depth(current.OwnPaths))
	}
	if req.Code != nil && *req.Code != current.Code {
		existing, err := s.items.GetByCode(ctx, current.Kind, *req.Code)
		if err != nil && !errors.Is(err, cordon_errors.ErrItemNotFound) {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, fmt.Errorf("%w: %s code %q", cordon_errors.ErrItemConflict, current.Kind, *req.Code)
		}
	}

	props := make(map[string]any)
	if req.Code != nil {
		props["code"] = *req.Code
	}
	if req.Name != nil {
		props["name"] = *req.Name
	}
	if req.Disabled != nil {
		props["disabled"] = *req.Disabled
	}
	if req.ScopeLevel != nil {
		props["scopeLevel"] = *req.ScopeLevel
	}
	for k, v := range ext {
		props[k] = v
	}
	props["updater"] = ictx.Owner

	updated, err := s.items.Update(ctx, current.Kind, id, props)
	if err != nil {
		return nil, err
	}
	logger.Info("Item modified",
		zap.String("kind", string(updated.Kind)),
		zap.String("id", id))
	s.logAudit(ctx, ictx, audit.ActionModifyItem, id, req)

	newlyDisabled := req.Disabled != nil && *req.Disabled && !current.Disabled
	if err := s.fanOutModify(ctx, updated, newlyDisabled); err != nil {
		return nil, fmt.Errorf("item %s updated but cache sync failed: %w", id, err)
	}
	return updated, nil
}

// fanOutModify pushes the side effects of a mutation into the caches. The
// store write has already committed when these run, so a failure surfaces
// as a cache sync error on the mutation rather than a rollback.
func (s *ItemService) fanOutModify(ctx context.Context, item *model.Item, newlyDisabled bool) error {
	switch item.Kind {
	case model.KindRole:
		if err := s.storeRoleInfo(ctx, item); err != nil {
			return err
		}
		if newlyDisabled {
			if err := s.identCache.RequestByRole(item.ID); err != nil {
				logger.Error("Failed to queue role invalidation", zap.String("roleID", item.ID), zap.Error(err))
				return fmt.Errorf("queueing role invalidation for %s: %w", item.ID, err)
			}
		}
	case model.KindTenant, model.KindApp:
		if newlyDisabled {
			if err := s.identCache.RequestByScope(item.ID, item.Kind == model.KindApp); err != nil {
				logger.Error("Failed to queue scope invalidation", zap.String("itemID", item.ID), zap.Error(err))
				return fmt.Errorf("queueing scope invalidation for %s: %w", item.ID, err)
			}
		}
	case model.KindAccount:
		if newlyDisabled {
			if err := s.identCache.RequestByAccount(item.ID); err != nil {
				logger.Error("Failed to queue account invalidation", zap.String("accountID", item.ID), zap.Error(err))
				return fmt.Errorf("queueing account invalidation for %s: %w", item.ID, err)
			}
		}
	case model.KindResource:
		if item.IsAPIResource() {
			if err := s.resCache.OnResApiChanged(ctx, item); err != nil {
				logger.Error("Authorization cache sync failed", zap.String("apiID", item.ID), zap.Error(err))
				return fmt.Errorf("syncing authorization cache for %s: %w", item.ID, err)
			}
		}
	}
	return nil
}

// DeleteItem hard-deletes an item. Tenants, apps and the bootstrap admin
// roles are never hard-deleted, only disabled; anything still referenced by
// a live edge is refused with the offending tags in the error.
func (s *ItemService) DeleteItem(ctx context.Context, ictx *model.Context, id string) error {
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return err
	}
	if !scope.IsPrefix(ictx.OwnPaths, item.OwnPaths) {
		return fmt.Errorf("%w: %s", cordon_errors.ErrItemNotVisible, id)
	}
	if item.Kind == model.KindTenant || item.Kind == model.KindApp {
		return fmt.Errorf("%w: %s items are disabled, not deleted", cordon_errors.ErrItemDeleteForbidden, item.Kind)
	}
	if item.Kind == model.KindRole && s.basic.IsAdminRole(id) {
		return fmt.Errorf("%w: bootstrap admin roles cannot be deleted", cordon_errors.ErrItemDeleteForbidden)
	}
	touching, err := s.rels.CountTouching(ctx, id)
	if err != nil {
		return err
	}
	if len(touching) > 0 {
		tags := make([]string, 0, len(touching))
		for tag := range touching {
			tags = append(tags, string(tag))
		}
		sort.Strings(tags)
		return fmt.Errorf("%w: %s still referenced by %s", cordon_errors.ErrItemAttached, id, strings.Join(tags, ", "))
	}
	if err := s.items.Delete(ctx, item.Kind, id); err != nil {
		return err
	}
	logger.Info("Item deleted",
		zap.String("kind", string(item.Kind)),
		zap.String("id", id))
	s.logAudit(ctx, ictx, audit.ActionDeleteItem, id, nil)

	switch item.Kind {
	case model.KindAccount:
		if err := s.identCache.RequestByAccount(id); err != nil {
			logger.Error("Failed to queue account invalidation", zap.String("accountID", id), zap.Error(err))
			return fmt.Errorf("item %s deleted but token invalidation failed: %w", id, err)
		}
	case model.KindRole:
		if err := s.cache.Del(ctx, s.roleInfoPrefix+id); err != nil {
			logger.Error("Failed to drop role info cache", zap.String("roleID", id), zap.Error(err))
			return fmt.Errorf("%w: dropping role info for %s: %v", cordon_errors.ErrCacheOperation, id, err)
		}
	}
	return nil
}

// GetItem reads one item, role reads served from the role info cache when
// possible. The scope rule decides visibility, not existence: an invisible
// item reads the same as a missing one.
func (s *ItemService) GetItem(ctx context.Context, ictx *model.Context, id string) (*model.Item, error) {
	if item, ok := s.cachedRole(ctx, id); ok {
		if !scope.CheckScope(item.OwnPaths, item.ScopeLevel, ictx.OwnPaths, true) {
			return nil, fmt.Errorf("%w: %s", cordon_errors.ErrItemNotVisible, id)
		}
		return item, nil
	}
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.CheckScope(item.OwnPaths, item.ScopeLevel, ictx.OwnPaths, true) {
		return nil, fmt.Errorf("%w: %s", cordon_errors.ErrItemNotVisible, id)
	}
	if item.Kind == model.KindRole {
		s.refreshRoleInfo(ctx, item)
	}
	return item, nil
}

// FindItems lists items inside the caller's scope. The filter's OwnPaths is
// clamped to the caller's position unless the caller sits above it.
func (s *ItemService) FindItems(ctx context.Context, ictx *model.Context, filter *model.ItemFilter) ([]*model.Item, error) {
	s.clampFilter(ictx, filter)
	return s.items.Find(ctx, filter)
}

func (s *ItemService) PaginateItems(ctx context.Context, ictx *model.Context, filter *model.ItemFilter, pageNumber, pageSize int) (*model.ItemPage, error) {
	s.clampFilter(ictx, filter)
	return s.items.Paginate(ctx, filter, pageNumber, pageSize)
}

func (s *ItemService) clampFilter(ictx *model.Context, filter *model.ItemFilter) {
	if filter.OwnPaths == "" || !scope.IsPrefix(ictx.OwnPaths, filter.OwnPaths) {
		filter.OwnPaths = ictx.OwnPaths
	}
}

func (s *ItemService) cachedRole(ctx context.Context, id string) (*model.Item, bool) {
	raw, found, err := s.cache.Get(ctx, s.roleInfoPrefix+id)
	if err != nil || !found {
		return nil, false
	}
	var item model.Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		logger.Warn("Corrupt role info cache entry", zap.String("roleID", id), zap.Error(err))
		return nil, false
	}
	return &item, true
}

// storeRoleInfo rewrites the role info cache entry after a role mutation.
// A failed write falls back to dropping the entry so readers never see the
// pre-mutation copy; only when the drop also fails is the error returned.
func (s *ItemService) storeRoleInfo(ctx context.Context, role *model.Item) error {
	raw, err := json.Marshal(role)
	if err != nil {
		return fmt.Errorf("%w: marshal role info for %s: %v", cordon_errors.ErrCacheOperation, role.ID, err)
	}
	if err := s.cache.Set(ctx, s.roleInfoPrefix+role.ID, string(raw), 0); err != nil {
		logger.Warn("Failed to write role info cache, dropping entry",
			zap.String("roleID", role.ID), zap.Error(err))
		if derr := s.cache.Del(ctx, s.roleInfoPrefix+role.ID); derr != nil {
			return fmt.Errorf("%w: role info for %s: %v", cordon_errors.ErrCacheOperation, role.ID, derr)
		}
	}
	return nil
}

// refreshRoleInfo is the read-path variant: the entry is absent before the
// write, so a failure just leaves the next read going to the store.
func (s *ItemService) refreshRoleInfo(ctx context.Context, role *model.Item) {
	if err := s.storeRoleInfo(ctx, role); err != nil {
		logger.Error("Failed to refresh role info cache", zap.String("roleID", role.ID), zap.Error(err))
	}
}

func (s *ItemService) logAudit(ctx context.Context, ictx *model.Context, action, targetID string, detail any) {
	if s.auditSvc == nil {
		return
	}
	entry := audit.AuditLog{
		Timestamp: time.Now(),
		Actor:     ictx.Owner,
		OwnPaths:  ictx.OwnPaths,
		Action:    action,
		TargetID:  targetID,
	}
	if detail != nil {
		if raw, err := json.Marshal(detail); err == nil {
			entry.Detail = raw
		}
	}
	if err := s.auditSvc.LogChange(ctx, entry); err != nil {
		logger.Error("Failed to write audit log", zap.Error(err))
	}
}
