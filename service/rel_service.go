package service

import (
	"context"
	"encoding/json"
	"fmt"
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

// IRelService manages the typed edges of the relation graph. Every mutation
// runs under the acting identity's context: both endpoints must be visible
// to the caller before an edge may be created.
type IRelService interface {
	AddRel(ctx context.Context, ictx *model.Context, req *model.RelAddReq) (string, error)
	DeleteRel(ctx context.Context, ictx *model.Context, tag model.RelTag, fromID, toID string) error
	FindFromRels(ctx context.Context, ictx *model.Context, tag model.RelTag, fromID string) ([]*model.Relation, error)
	FindToRels(ctx context.Context, ictx *model.Context, tag model.RelTag, toID string) ([]*model.Relation, error)
	FindFromBones(ctx context.Context, ictx *model.Context, tag model.RelTag, fromID string, withSub bool) ([]model.RelBone, error)
	FindToBones(ctx context.Context, ictx *model.Context, tag model.RelTag, toID string) ([]model.RelBone, error)
	PaginateFromIDs(ctx context.Context, ictx *model.Context, tag model.RelTag, fromID string, withSub bool, pageNumber, pageSize int) (*model.IDPage, error)
	PaginateToIDs(ctx context.Context, ictx *model.Context, tag model.RelTag, toID string, pageNumber, pageSize int) (*model.IDPage, error)
	CountFrom(ctx context.Context, ictx *model.Context, tag model.RelTag, fromID string, withSub bool) (int64, error)
	CountTo(ctx context.Context, ictx *model.Context, tag model.RelTag, toID string) (int64, error)
	ExistsRel(ctx context.Context, tag model.RelTag, fromID, toID string) (bool, error)
}

type RelService struct {
	items      dao.ItemStore
	rels       dao.RelationStore
	resCache   IResCacheService
	identCache IIdentCacheService
	validation *util.ValidationUtil
	auditSvc   audit.Service
	basic      *config.Basic

	now func() int64
}

var _ IRelService = &RelService{}

func NewRelService(items dao.ItemStore, rels dao.RelationStore, resCache IResCacheService, identCache IIdentCacheService, validation *util.ValidationUtil, auditSvc audit.Service, basic *config.Basic) *RelService {
	return &RelService{
		items:      items,
		rels:       rels,
		resCache:   resCache,
		identCache: identCache,
		validation: validation,
		auditSvc:   auditSvc,
		basic:      basic,
		now:        func() int64 { return time.Now().Unix() },
	}
}

// endpointKinds lists, per tag, the item kinds accepted at each end of an
// edge.
var endpointKinds = map[model.RelTag][2][]model.ItemKind{
	model.RelAccountRole: {{model.KindAccount}, {model.KindRole}},
	model.RelAccountApp:  {{model.KindAccount}, {model.KindApp}},
	model.RelResRole:     {{model.KindResource}, {model.KindRole}},
	model.RelResApi:      {{model.KindResource}, {model.KindResource}},
}

// AddRel links two items. The caller must be able to see both endpoints, an
// identical live edge must not already exist, and a role grant may not reach
// a role positioned above the caller's own depth unless the caller already
// holds an admin role at that height.
func (s *RelService) AddRel(ctx context.Context, ictx *model.Context, req *model.RelAddReq) (string, error) {
	if err := s.validation.ValidateRelAdd(req); err != nil {
		return "", err
	}
	kinds, ok := endpointKinds[req.Tag]
	if !ok {
		return "", fmt.Errorf("%w: unknown tag %s", cordon_errors.ErrInvalidRelData, req.Tag)
	}

	from, err := s.visibleEndpoint(ctx, ictx, req.FromID, kinds[0])
	if err != nil {
		return "", err
	}
	to, err := s.visibleEndpoint(ctx, ictx, req.ToID, kinds[1])
	if err != nil {
		return "", err
	}
	if req.Tag == model.RelResApi {
		if sub := from.ExtString("res_kind"); sub != model.ResKindMenu && sub != model.ResKindElement {
			return "", fmt.Errorf("%w: ResApi source must be a menu or element resource", cordon_errors.ErrInvalidRelData)
		}
		if !to.IsAPIResource() {
			return "", fmt.Errorf("%w: ResApi target must be an API resource", cordon_errors.ErrInvalidRelData)
		}
	}
	if req.Tag == model.RelAccountRole {
		if err := s.checkRoleEscalation(ictx, to); err != nil {
			return "", err
		}
	}

	exists, err := s.rels.Exists(ctx, req.Tag, req.FromID, req.ToID)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%w: %s %s -> %s", cordon_errors.ErrRelationConflict, req.Tag, req.FromID, req.ToID)
	}

	now := s.now()
	validity := model.Validity{
		StartTs: now,
		EndTs:   time.Unix(now, 0).AddDate(model.PermanentValidityYears, 0, 0).Unix(),
	}
	if req.Validity != nil {
		validity = *req.Validity
	}

	rel := &model.Relation{
		Tag:         req.Tag,
		FromID:      req.FromID,
		ToID:        req.ToID,
		ToOwnPaths:  ictx.OwnPaths,
		ToIsOutside: !scope.IsPrefix(ictx.OwnPaths, to.OwnPaths),
		Validity:    validity,
		Attrs:       req.Attrs,
	}
	id, err := s.rels.Insert(ctx, rel)
	if err != nil {
		return "", err
	}
	logger.Info("Relation added",
		zap.String("tag", string(req.Tag)),
		zap.String("fromID", req.FromID),
		zap.String("toID", req.ToID))
	s.logAudit(ctx, ictx, audit.ActionAddRel, id, req)

	// The edge is committed at this point; a cache failure reports the id
	// alongside the error so the caller can retry the mutation.
	if err := s.propagate(ctx, req.Tag, from, to, false); err != nil {
		return id, fmt.Errorf("relation %s committed but cache sync failed: %w", id, err)
	}
	return id, nil
}

// DeleteRel removes every matching edge. Deleting an edge that does not
// exist is a no-op, so retries and concurrent deleters are safe.
func (s *RelService) DeleteRel(ctx context.Context, ictx *model.Context, tag model.RelTag, fromID, toID string) error {
	deleted, err := s.rels.DeleteEdges(ctx, tag, fromID, toID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return nil
	}
	logger.Info("Relation deleted",
		zap.String("tag", string(tag)),
		zap.String("fromID", fromID),
		zap.String("toID", toID),
		zap.Int("count", deleted))
	s.logAudit(ctx, ictx, audit.ActionDeleteRel, fromID+"->"+toID, nil)

	from, err := s.items.Get(ctx, fromID)
	if err != nil {
		logger.Warn("Relation endpoint missing after delete", zap.String("fromID", fromID), zap.Error(err))
		from = nil
	}
	var to *model.Item
	if tag == model.RelResRole || tag == model.RelResApi {
		to, err = s.items.Get(ctx, toID)
		if err != nil {
			logger.Warn("Relation endpoint missing after delete", zap.String("toID", toID), zap.Error(err))
		}
	}
	if err := s.propagate(ctx, tag, from, to, true); err != nil {
		return fmt.Errorf("relation delete committed but cache sync failed: %w", err)
	}
	return nil
}

// propagate fans a committed graph mutation out to the caches. The edge
// change cannot be rolled back here, so a cache failure is returned to the
// owning mutation instead of swallowed: the authorization surface stays
// stale until the caller retries.
func (s *RelService) propagate(ctx context.Context, tag model.RelTag, from, to *model.Item, isDelete bool) error {
	switch tag {
	case model.RelResRole:
		if from != nil {
			if err := s.resCache.OnResRoleChanged(ctx, from); err != nil {
				logger.Error("Authorization cache sync failed", zap.String("resID", from.ID), zap.Error(err))
				return fmt.Errorf("syncing authorization cache for %s: %w", from.ID, err)
			}
		}
	case model.RelResApi:
		if to != nil {
			if err := s.resCache.OnResApiChanged(ctx, to); err != nil {
				logger.Error("Authorization cache sync failed", zap.String("apiID", to.ID), zap.Error(err))
				return fmt.Errorf("syncing authorization cache for %s: %w", to.ID, err)
			}
		}
	case model.RelAccountRole, model.RelAccountApp:
		if isDelete && from != nil {
			if err := s.identCache.RequestByAccount(from.ID); err != nil {
				logger.Error("Failed to queue token invalidation", zap.String("accountID", from.ID), zap.Error(err))
				return fmt.Errorf("queueing token invalidation for %s: %w", from.ID, err)
			}
		}
	}
	return nil
}

func (s *RelService) FindFromRels(ctx context.Context, ictx *model.Context, tag model.RelTag, fromID string) ([]*model.Relation, error) {
	return s.rels.FindEdges(ctx, &model.RelQuery{Tag: tag, FromID: fromID, CallerPaths: ictx.OwnPaths})
}

func (s *RelService) FindToRels(ctx context.Context, ictx *model.Context, tag model.RelTag, toID string) ([]*model.Relation, error) {
	return s.rels.FindEdges(ctx, &model.RelQuery{Tag: tag, ToID: toID, CallerPaths: ictx.OwnPaths})
}

func (s *RelService) FindFromBones(ctx context.Context, ictx *model.Context, tag model.RelTag, fromID string, withSub bool) ([]model.RelBone, error) {
	return s.rels.FindFromBones(ctx, tag, fromID, withSub, ictx.OwnPaths)
}

func (s *RelService) FindToBones(ctx context.Context, ictx *model.Context, tag model.RelTag, toID string) ([]model.RelBone, error) {
	return s.rels.FindToBones(ctx, tag, toID, ictx.OwnPaths)
}

func (s *RelService) PaginateFromIDs(ctx context.Context, ictx *model.Context, tag model.RelTag, fromID string, withSub bool, pageNumber, pageSize int) (*model.IDPage, error) {
	return s.rels.PaginateFromIDs(ctx, tag, fromID, withSub, ictx.OwnPaths, pageNumber, pageSize)
}

func (s *RelService) PaginateToIDs(ctx context.Context, ictx *model.Context, tag model.RelTag, toID string, pageNumber, pageSize int) (*model.IDPage, error) {
	return s.rels.PaginateToIDs(ctx, tag, toID, ictx.OwnPaths, pageNumber, pageSize)
}

func (s *RelService) CountFrom(ctx context.Context, ictx *model.Context, tag model.RelTag, fromID string, withSub bool) (int64, error) {
	return s.rels.CountFrom(ctx, tag, fromID, withSub, ictx.OwnPaths)
}

func (s *RelService) CountTo(ctx context.Context, ictx *model.Context, tag model.RelTag, toID string) (int64, error) {
	return s.rels.CountTo(ctx, tag, toID, ictx.OwnPaths)
}

// ExistsRel reports whether a live edge links the two items right now. Used
// by enforcement paths, so no visibility filter applies.
func (s *RelService) ExistsRel(ctx context.Context, tag model.RelTag, fromID, toID string) (bool, error) {
	return s.rels.Exists(ctx, tag, fromID, toID)
}

// visibleEndpoint loads an endpoint, checks its kind, and applies the scope
// visibility rule from the caller's position.
func (s *RelService) visibleEndpoint(ctx context.Context, ictx *model.Context, id string, kinds []model.ItemKind) (*model.Item, error) {
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	okKind := false
	for _, k := range kinds {
		if item.Kind == k {
			okKind = true
			break
		}
	}
	if !okKind {
		return nil, fmt.Errorf("%w: %s is a %s", cordon_errors.ErrInvalidRelData, id, item.Kind)
	}
	if !scope.CheckScope(item.OwnPaths, item.ScopeLevel, ictx.OwnPaths, true) {
		return nil, fmt.Errorf("%w: %s", cordon_errors.ErrItemNotVisible, id)
	}
	return item, nil
}

// checkRoleEscalation blocks granting a role that sits higher in the
// hierarchy than the caller, unless the caller already holds the admin role
// for that height.
func (s *RelService) checkRoleEscalation(ictx *model.Context, role *model.Item) error {
	if role.ScopeLevel >= scope.Depth(ictx.OwnPaths) {
		return nil
	}
	switch role.ScopeLevel {
	case model.ScopeLevelGlobal:
		if ictx.HasRole(s.basic.RoleSysAdminID) {
			return nil
		}
	case model.ScopeLevelTenant:
		if ictx.HasRole(s.basic.RoleSysAdminID) || ictx.HasRole(s.basic.RoleTenantAdminID) {
			return nil
		}
	case model.ScopeLevelApp:
		if ictx.HasRole(s.basic.RoleSysAdminID) || ictx.HasRole(s.basic.RoleTenantAdminID) || ictx.HasRole(s.basic.RoleAppAdminID) {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s sits above the caller's scope", cordon_errors.ErrScopeEscalation, role.ID)
}

func (s *RelService) logAudit(ctx context.Context, ictx *model.Context, action, targetID string, detail any) {
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
