package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cordon-dev/cordon/audit"
	"github.com/cordon-dev/cordon/dao"
	cordon_errors "github.com/cordon-dev/cordon/errors"
	logger "github.com/cordon-dev/cordon/logging"
	"github.com/cordon-dev/cordon/model"
	"github.com/cordon-dev/cordon/util"
)

// ITokenService issues and resolves opaque session tokens. A token maps to
// the serialized authorization context of the session; the mapping lives
// only in the cache, so bulk invalidation is a bulk key delete.
type ITokenService interface {
	IssueToken(ctx context.Context, accountID string) (string, *model.Context, error)
	FetchContext(ctx context.Context, token string) (*model.Context, error)
	Logout(ctx context.Context, token string) error
}

type TokenService struct {
	items    dao.ItemStore
	rels     dao.RelationStore
	cache    util.Cache
	auditSvc audit.Service

	tokenPrefix        string
	accountTokenPrefix string
	tokenTTL           time.Duration
}

var _ ITokenService = &TokenService{}

func NewTokenService(items dao.ItemStore, rels dao.RelationStore, cache util.Cache, auditSvc audit.Service, tokenPrefix, accountTokenPrefix string, tokenTTL time.Duration) *TokenService {
	return &TokenService{
		items:              items,
		rels:               rels,
		cache:              cache,
		auditSvc:           auditSvc,
		tokenPrefix:        tokenPrefix,
		accountTokenPrefix: accountTokenPrefix,
		tokenTTL:           tokenTTL,
	}
}

// IssueToken builds the account's current context (scope position plus live
// role grants) and stores it under a fresh opaque token. Credential checking
// happens upstream; the kernel only records the authenticated session.
func (s *TokenService) IssueToken(ctx context.Context, accountID string) (string, *model.Context, error) {
	account, err := s.items.Get(ctx, accountID)
	if err != nil {
		return "", nil, err
	}
	if account.Kind != model.KindAccount {
		return "", nil, fmt.Errorf("%w: %s is not an account", cordon_errors.ErrInvalidItemData, accountID)
	}
	if account.Disabled {
		return "", nil, cordon_errors.ErrUnauthorized
	}

	roles, err := s.rels.FindFromIDs(ctx, model.RelAccountRole, accountID, false, "")
	if err != nil {
		return "", nil, err
	}

	ictx := &model.Context{
		OwnPaths: account.OwnPaths,
		Owner:    account.ID,
		Roles:    roles,
	}
	raw, err := json.Marshal(ictx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal context: %w", err)
	}

	token := uuid.New().String()
	if err := s.cache.Set(ctx, s.tokenPrefix+token, string(raw), s.tokenTTL); err != nil {
		return "", nil, fmt.Errorf("%w: %v", cordon_errors.ErrCacheOperation, err)
	}
	if err := s.cache.HSet(ctx, s.accountTokenPrefix+accountID, token, "default"); err != nil {
		return "", nil, fmt.Errorf("%w: %v", cordon_errors.ErrCacheOperation, err)
	}

	logger.Info("Token issued", zap.String("accountID", accountID))
	s.logAudit(ctx, ictx, audit.ActionLogin, accountID)

	return token, ictx, nil
}

// FetchContext resolves a token to its cached context.
func (s *TokenService) FetchContext(ctx context.Context, token string) (*model.Context, error) {
	raw, found, err := s.cache.Get(ctx, s.tokenPrefix+token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cordon_errors.ErrCacheOperation, err)
	}
	if !found {
		return nil, cordon_errors.ErrTokenNotFound
	}
	var ictx model.Context
	if err := json.Unmarshal([]byte(raw), &ictx); err != nil {
		return nil, fmt.Errorf("%w: corrupt context: %v", cordon_errors.ErrCacheOperation, err)
	}
	return &ictx, nil
}

// Logout drops one token and its index entry.
func (s *TokenService) Logout(ctx context.Context, token string) error {
	ictx, err := s.FetchContext(ctx, token)
	if err != nil {
		return err
	}
	if err := s.cache.Del(ctx, s.tokenPrefix+token); err != nil {
		return fmt.Errorf("%w: %v", cordon_errors.ErrCacheOperation, err)
	}
	if err := s.cache.HDel(ctx, s.accountTokenPrefix+ictx.Owner, token); err != nil {
		return fmt.Errorf("%w: %v", cordon_errors.ErrCacheOperation, err)
	}
	logger.Info("Token revoked", zap.String("accountID", ictx.Owner))
	s.logAudit(ctx, ictx, audit.ActionLogout, ictx.Owner)
	return nil
}

func (s *TokenService) logAudit(ctx context.Context, ictx *model.Context, action, targetID string) {
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
	if err := s.auditSvc.LogChange(ctx, entry); err != nil {
		logger.Error("Failed to write audit log", zap.Error(err))
	}
}
