package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cordon-dev/cordon/dao"
	cordon_errors "github.com/cordon-dev/cordon/errors"
	logger "github.com/cordon-dev/cordon/logging"
	"github.com/cordon-dev/cordon/model"
	"github.com/cordon-dev/cordon/scope"
	"github.com/cordon-dev/cordon/util"
)

// IIdentCacheService invalidates cached token→context entries whenever the
// authorization surface behind an account changes. Requests are queued and
// drained by one worker; the HTTP response never waits on full completion,
// but a duplicate delivery is harmless (deleting an absent key is a no-op).
type IIdentCacheService interface {
	RequestByAccount(accountID string) error
	RequestByRole(roleID string) error
	RequestByScope(tenantOrAppID string, isApp bool) error
	InvalidateAccount(ctx context.Context, accountID string) (int, error)
}

type IdentCacheService struct {
	items dao.ItemStore
	rels  dao.RelationStore
	cache util.Cache
	queue *util.InvalidationQueue

	tokenPrefix        string
	accountTokenPrefix string
	relPageSize        int
}

var _ IIdentCacheService = &IdentCacheService{}

type IdentCacheOptions struct {
	TokenPrefix        string
	AccountTokenPrefix string
	RelPageSize        int
	QueueSize          int
	WorkRetries        int
}

func NewIdentCacheService(items dao.ItemStore, rels dao.RelationStore, cache util.Cache, opts IdentCacheOptions) *IdentCacheService {
	if opts.RelPageSize <= 0 {
		opts.RelPageSize = 100
	}
	s := &IdentCacheService{
		items:              items,
		rels:               rels,
		cache:              cache,
		tokenPrefix:        opts.TokenPrefix,
		accountTokenPrefix: opts.AccountTokenPrefix,
		relPageSize:        opts.RelPageSize,
	}
	s.queue = util.NewInvalidationQueue(opts.QueueSize, opts.WorkRetries, s.handle)
	return s
}

// Start launches the queue worker.
func (s *IdentCacheService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains outstanding invalidations.
func (s *IdentCacheService) Stop(timeout time.Duration) {
	s.queue.Stop(timeout)
}

func (s *IdentCacheService) RequestByAccount(accountID string) error {
	return s.queue.Enqueue(util.InvalidationJob{Kind: util.InvalidateByAccount, ID: accountID})
}

func (s *IdentCacheService) RequestByRole(roleID string) error {
	return s.queue.Enqueue(util.InvalidationJob{Kind: util.InvalidateByRole, ID: roleID})
}

func (s *IdentCacheService) RequestByScope(tenantOrAppID string, isApp bool) error {
	return s.queue.Enqueue(util.InvalidationJob{Kind: util.InvalidateByScope, ID: tenantOrAppID, IsApp: isApp})
}

func (s *IdentCacheService) handle(ctx context.Context, job util.InvalidationJob) error {
	switch job.Kind {
	case util.InvalidateByAccount:
		_, err := s.InvalidateAccount(ctx, job.ID)
		return err
	case util.InvalidateByRole:
		return s.invalidateRole(ctx, job.ID)
	case util.InvalidateByScope:
		return s.invalidateScope(ctx, job.ID, job.IsApp)
	default:
		return fmt.Errorf("unknown invalidation kind %d", job.Kind)
	}
}

// InvalidateAccount deletes every cached token of the account plus the
// account→token index, returning how many tokens were dropped.
func (s *IdentCacheService) InvalidateAccount(ctx context.Context, accountID string) (int, error) {
	indexKey := s.accountTokenPrefix + accountID
	tokens, err := s.cache.HGetAll(ctx, indexKey)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", cordon_errors.ErrCacheOperation, err)
	}
	for token := range tokens {
		if err := s.cache.Del(ctx, s.tokenPrefix+token); err != nil {
			return 0, fmt.Errorf("%w: %v", cordon_errors.ErrCacheOperation, err)
		}
	}
	if err := s.cache.Del(ctx, indexKey); err != nil {
		return 0, fmt.Errorf("%w: %v", cordon_errors.ErrCacheOperation, err)
	}
	if len(tokens) > 0 {
		logger.Info("Account tokens invalidated",
			zap.String("accountID", accountID),
			zap.Int("tokens", len(tokens)))
	}
	return len(tokens), nil
}

// invalidateRole walks the accounts attached to the role in pages. The page
// cursor is an offset over a createdAt-ordered result: an edge removed
// concurrently only shrinks later pages, so a short or empty page ends the
// walk instead of crashing or looping.
func (s *IdentCacheService) invalidateRole(ctx context.Context, roleID string) error {
	count, err := s.rels.CountTo(ctx, model.RelAccountRole, roleID, "")
	if err != nil {
		return err
	}
	pageNumber := 1
	for remaining := count; remaining > 0; remaining -= int64(s.relPageSize) {
		page, err := s.rels.PaginateToIDs(ctx, model.RelAccountRole, roleID, "", pageNumber, s.relPageSize)
		if err != nil {
			return err
		}
		if len(page.Records) == 0 {
			break
		}
		for _, accountID := range page.Records {
			if _, err := s.InvalidateAccount(ctx, accountID); err != nil {
				return err
			}
		}
		pageNumber++
	}
	return nil
}

// invalidateScope invalidates the direct members of a tenant or app: the
// accounts whose own_paths is exactly that scope's path. Deliberately not
// recursive into sub-apps.
func (s *IdentCacheService) invalidateScope(ctx context.Context, tenantOrAppID string, isApp bool) error {
	item, err := s.items.Get(ctx, tenantOrAppID)
	if err != nil {
		return err
	}
	path := item.OwnPaths
	if last, ok := scope.MaxLevelID(path); !ok || last != item.ID {
		path = scope.ChildPath(path, item.ID)
	}
	if isApp && !strings.Contains(path, "/") {
		logger.Warn("App item carries a tenant-depth path",
			zap.String("appID", tenantOrAppID),
			zap.String("path", path))
	}

	accounts, err := s.items.Find(ctx, &model.ItemFilter{Kind: model.KindAccount, OwnPaths: path})
	if err != nil {
		return err
	}
	for _, account := range accounts {
		if _, err := s.InvalidateAccount(ctx, account.ID); err != nil {
			return err
		}
	}
	return nil
}
