package dao

import (
	"context"

	"github.com/cordon-dev/cordon/model"
)

// ItemStore is the persistence collaborator for typed items. The services
// depend on this interface; ItemDAO is the Neo4j implementation.
type ItemStore interface {
	Insert(ctx context.Context, item *model.Item) (string, error)
	// Update applies the given node properties (common and ext merged) to an
	// existing item and returns the updated record.
	Update(ctx context.Context, kind model.ItemKind, id string, props map[string]any) (*model.Item, error)
	Delete(ctx context.Context, kind model.ItemKind, id string) error
	Get(ctx context.Context, id string) (*model.Item, error)
	GetByCode(ctx context.Context, kind model.ItemKind, code string) (*model.Item, error)
	Find(ctx context.Context, filter *model.ItemFilter) ([]*model.Item, error)
	Paginate(ctx context.Context, filter *model.ItemFilter, pageNumber, pageSize int) (*model.ItemPage, error)
}

// RelationStore is the persistence collaborator for the typed relation
// graph. Edges carry their validity window and attribute constraints; all
// read operations exclude expired and not-yet-live edges and, when a caller
// path is given, edges outside the caller's visibility.
type RelationStore interface {
	Insert(ctx context.Context, rel *model.Relation) (string, error)
	// DeleteEdges removes every (tag, from, to) edge together with its
	// validity and attribute payload, returning how many were removed.
	DeleteEdges(ctx context.Context, tag model.RelTag, fromID, toID string) (int, error)
	FindEdges(ctx context.Context, q *model.RelQuery) ([]*model.Relation, error)
	FindFromIDs(ctx context.Context, tag model.RelTag, fromID string, withSub bool, callerPaths string) ([]string, error)
	FindToIDs(ctx context.Context, tag model.RelTag, toID string, callerPaths string) ([]string, error)
	FindFromBones(ctx context.Context, tag model.RelTag, fromID string, withSub bool, callerPaths string) ([]model.RelBone, error)
	FindToBones(ctx context.Context, tag model.RelTag, toID string, callerPaths string) ([]model.RelBone, error)
	PaginateFromIDs(ctx context.Context, tag model.RelTag, fromID string, withSub bool, callerPaths string, pageNumber, pageSize int) (*model.IDPage, error)
	PaginateToIDs(ctx context.Context, tag model.RelTag, toID string, callerPaths string, pageNumber, pageSize int) (*model.IDPage, error)
	CountFrom(ctx context.Context, tag model.RelTag, fromID string, withSub bool, callerPaths string) (int64, error)
	CountTo(ctx context.Context, tag model.RelTag, toID string, callerPaths string) (int64, error)
	Exists(ctx context.Context, tag model.RelTag, fromID, toID string) (bool, error)
	// CountTouching counts live edges per tag that reference the item from
	// either endpoint, for delete guards.
	CountTouching(ctx context.Context, id string) (map[model.RelTag]int64, error)
}
