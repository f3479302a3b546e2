// test/mock/store.go
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cordon-dev/cordon/dao"
	cordon_errors "github.com/cordon-dev/cordon/errors"
	"github.com/cordon-dev/cordon/model"
)

// Graph is an in-memory stand-in for the Neo4j-backed stores. It mirrors
// the filtering, visibility, and liveness rules of the real DAOs so service
// tests can exercise whole flows without a database. Now is swappable so
// tests can move time across validity windows.
type Graph struct {
	mu    sync.Mutex
	items map[string]*model.Item
	order []string
	rels  []*model.Relation

	Now func() int64
}

func NewGraph() *Graph {
	return &Graph{
		items: make(map[string]*model.Item),
		Now:   func() int64 { return time.Now().Unix() },
	}
}

func (g *Graph) Items() *FakeItemStore   { return &FakeItemStore{g: g} }
func (g *Graph) Rels() *FakeRelationStore { return &FakeRelationStore{g: g} }

// SeedItem inserts an item directly, bypassing validation. Returns the id.
func (g *Graph) SeedItem(item *model.Item) string {
	id, _ := g.Items().Insert(context.Background(), item)
	return id
}

type FakeItemStore struct {
	g *Graph
}

var _ dao.ItemStore = &FakeItemStore{}

func (s *FakeItemStore) Insert(ctx context.Context, item *model.Item) (string, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Unix(s.g.Now(), 0)
	stored := *item
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if len(item.Ext) > 0 {
		stored.Ext = make(map[string]any, len(item.Ext))
		for k, v := range item.Ext {
			stored.Ext[k] = v
		}
	}
	s.g.items[stored.ID] = &stored
	s.g.order = append(s.g.order, stored.ID)
	return stored.ID, nil
}

func (s *FakeItemStore) Update(ctx context.Context, kind model.ItemKind, id string, props map[string]any) (*model.Item, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	item, ok := s.g.items[id]
	if !ok || item.Kind != kind {
		return nil, cordon_errors.ErrItemNotFound
	}
	for k, v := range props {
		switch k {
		case "code":
			item.Code = v.(string)
		case "name":
			item.Name = v.(string)
		case "disabled":
			item.Disabled = v.(bool)
		case "scopeLevel":
			item.ScopeLevel = v.(int)
		case "updater":
			item.Updater = v.(string)
		default:
			if item.Ext == nil {
				item.Ext = make(map[string]any)
			}
			item.Ext[k] = v
		}
	}
	item.UpdatedAt = time.Unix(s.g.Now(), 0)
	copied := *item
	return &copied, nil
}

func (s *FakeItemStore) Delete(ctx context.Context, kind model.ItemKind, id string) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	item, ok := s.g.items[id]
	if !ok || item.Kind != kind {
		return cordon_errors.ErrItemNotFound
	}
	delete(s.g.items, id)
	for i, oid := range s.g.order {
		if oid == id {
			s.g.order = append(s.g.order[:i], s.g.order[i+1:]...)
			break
		}
	}
	// DETACH DELETE drops the touching edges too.
	kept := s.g.rels[:0]
	for _, r := range s.g.rels {
		if r.FromID != id && r.ToID != id {
			kept = append(kept, r)
		}
	}
	s.g.rels = kept
	return nil
}

func (s *FakeItemStore) Get(ctx context.Context, id string) (*model.Item, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	item, ok := s.g.items[id]
	if !ok {
		return nil, cordon_errors.ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *FakeItemStore) GetByCode(ctx context.Context, kind model.ItemKind, code string) (*model.Item, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	for _, id := range s.g.order {
		item := s.g.items[id]
		if item.Kind == kind && item.Code == code {
			copied := *item
			return &copied, nil
		}
	}
	return nil, cordon_errors.ErrItemNotFound
}

func (s *FakeItemStore) Find(ctx context.Context, filter *model.ItemFilter) ([]*model.Item, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	var items []*model.Item
	for _, id := range s.g.order {
		item := s.g.items[id]
		if matchesFilter(item, filter) {
			copied := *item
			items = append(items, &copied)
		}
	}
	if filter.DescByUpdate {
		sort.SliceStable(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	} else if filter.DescByCreate {
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	}
	return items, nil
}

func (s *FakeItemStore) Paginate(ctx context.Context, filter *model.ItemFilter, pageNumber, pageSize int) (*model.ItemPage, error) {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	items, err := s.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := &model.ItemPage{Total: int64(len(items)), PageNumber: pageNumber, PageSize: pageSize}
	start := (pageNumber - 1) * pageSize
	if start < len(items) {
		end := start + pageSize
		if end > len(items) {
			end = len(items)
		}
		page.Records = items[start:end]
	}
	return page, nil
}

func matchesFilter(item *model.Item, filter *model.ItemFilter) bool {
	if len(filter.IDs) > 0 {
		found := false
		for _, id := range filter.IDs {
			if item.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Kind != "" && item.Kind != filter.Kind {
		return false
	}
	if filter.Name != "" && !strings.Contains(item.Name, filter.Name) {
		return false
	}
	if filter.Code != "" && item.Code != filter.Code {
		return false
	}
	if filter.OwnPaths != "" {
		if filter.WithSubOwnPaths {
			if item.OwnPaths != filter.OwnPaths && !strings.HasPrefix(item.OwnPaths, filter.OwnPaths+"/") {
				return false
			}
		} else if item.OwnPaths != filter.OwnPaths {
			return false
		}
	}
	if filter.Disabled != nil && item.Disabled != *filter.Disabled {
		return false
	}
	return true
}

type FakeRelationStore struct {
	g *Graph
}

var _ dao.RelationStore = &FakeRelationStore{}

func (s *FakeRelationStore) Insert(ctx context.Context, rel *model.Relation) (string, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if _, ok := s.g.items[rel.FromID]; !ok {
		return "", cordon_errors.ErrItemNotFound
	}
	if _, ok := s.g.items[rel.ToID]; !ok {
		return "", cordon_errors.ErrItemNotFound
	}
	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}
	stored := *rel
	stored.CreatedAt = time.Unix(s.g.Now(), 0)
	s.g.rels = append(s.g.rels, &stored)
	return stored.ID, nil
}

func (s *FakeRelationStore) DeleteEdges(ctx context.Context, tag model.RelTag, fromID, toID string) (int, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	deleted := 0
	kept := s.g.rels[:0]
	for _, r := range s.g.rels {
		if r.Tag == tag && r.FromID == fromID && r.ToID == toID {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.g.rels = kept
	return deleted, nil
}

func (s *FakeRelationStore) FindEdges(ctx context.Context, q *model.RelQuery) ([]*model.Relation, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	now := s.g.Now()
	var rels []*model.Relation
	for _, r := range s.g.rels {
		if r.Tag != q.Tag {
			continue
		}
		if q.FromID != "" && r.FromID != q.FromID {
			continue
		}
		if q.ToID != "" && r.ToID != q.ToID {
			continue
		}
		if !r.Validity.Live(now) || !visible(r, q.CallerPaths) {
			continue
		}
		copied := *r
		rels = append(rels, &copied)
	}
	return rels, nil
}

func (s *FakeRelationStore) FindFromIDs(ctx context.Context, tag model.RelTag, fromID string, withSub bool, callerPaths string) ([]string, error) {
	var ids []string
	for _, r := range s.matching(tag, fromID, withSub, callerPaths, true) {
		ids = append(ids, r.ToID)
	}
	return ids, nil
}

func (s *FakeRelationStore) FindToIDs(ctx context.Context, tag model.RelTag, toID string, callerPaths string) ([]string, error) {
	var ids []string
	for _, r := range s.matching(tag, toID, false, callerPaths, false) {
		ids = append(ids, r.FromID)
	}
	return ids, nil
}

func (s *FakeRelationStore) FindFromBones(ctx context.Context, tag model.RelTag, fromID string, withSub bool, callerPaths string) ([]model.RelBone, error) {
	var bones []model.RelBone
	for _, r := range s.matching(tag, fromID, withSub, callerPaths, true) {
		bones = append(bones, model.RelBone{RelID: r.ID, ItemID: r.ToID, Name: s.itemName(r.ToID)})
	}
	return bones, nil
}

func (s *FakeRelationStore) FindToBones(ctx context.Context, tag model.RelTag, toID string, callerPaths string) ([]model.RelBone, error) {
	var bones []model.RelBone
	for _, r := range s.matching(tag, toID, false, callerPaths, false) {
		bones = append(bones, model.RelBone{RelID: r.ID, ItemID: r.FromID, Name: s.itemName(r.FromID)})
	}
	return bones, nil
}

func (s *FakeRelationStore) PaginateFromIDs(ctx context.Context, tag model.RelTag, fromID string, withSub bool, callerPaths string, pageNumber, pageSize int) (*model.IDPage, error) {
	ids, _ := s.FindFromIDs(ctx, tag, fromID, withSub, callerPaths)
	return paginate(ids, pageNumber, pageSize), nil
}

func (s *FakeRelationStore) PaginateToIDs(ctx context.Context, tag model.RelTag, toID string, callerPaths string, pageNumber, pageSize int) (*model.IDPage, error) {
	ids, _ := s.FindToIDs(ctx, tag, toID, callerPaths)
	return paginate(ids, pageNumber, pageSize), nil
}

func (s *FakeRelationStore) CountFrom(ctx context.Context, tag model.RelTag, fromID string, withSub bool, callerPaths string) (int64, error) {
	return int64(len(s.matching(tag, fromID, withSub, callerPaths, true))), nil
}

func (s *FakeRelationStore) CountTo(ctx context.Context, tag model.RelTag, toID string, callerPaths string) (int64, error) {
	return int64(len(s.matching(tag, toID, false, callerPaths, false))), nil
}

func (s *FakeRelationStore) Exists(ctx context.Context, tag model.RelTag, fromID, toID string) (bool, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	now := s.g.Now()
	for _, r := range s.g.rels {
		if r.Tag == tag && r.FromID == fromID && r.ToID == toID && r.Validity.Live(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *FakeRelationStore) CountTouching(ctx context.Context, id string) (map[model.RelTag]int64, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	now := s.g.Now()
	counts := make(map[model.RelTag]int64)
	for _, r := range s.g.rels {
		if (r.FromID == id || r.ToID == id) && r.Validity.Live(now) {
			counts[r.Tag]++
		}
	}
	return counts, nil
}

func (s *FakeRelationStore) matching(tag model.RelTag, id string, withSub bool, callerPaths string, fromSide bool) []*model.Relation {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	now := s.g.Now()
	var rels []*model.Relation
	for _, r := range s.g.rels {
		if r.Tag != tag || !r.Validity.Live(now) || !visible(r, callerPaths) {
			continue
		}
		if fromSide {
			if r.FromID != id && !(withSub && s.pathContains(r.FromID, id)) {
				continue
			}
		} else if r.ToID != id {
			continue
		}
		rels = append(rels, r)
	}
	return rels
}

// pathContains mirrors the descendant-scope match: the from item's own_paths
// chain carries the given id.
func (s *FakeRelationStore) pathContains(fromID, id string) bool {
	item, ok := s.g.items[fromID]
	if !ok {
		return false
	}
	return strings.Contains("/"+item.OwnPaths+"/", "/"+id+"/")
}

func (s *FakeRelationStore) itemName(id string) string {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if item, ok := s.g.items[id]; ok {
		return item.Name
	}
	return ""
}

func visible(r *model.Relation, callerPaths string) bool {
	if r.ToIsOutside || callerPaths == "" {
		return true
	}
	return r.ToOwnPaths == callerPaths || strings.HasPrefix(r.ToOwnPaths, callerPaths+"/")
}

func paginate(ids []string, pageNumber, pageSize int) *model.IDPage {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	page := &model.IDPage{Total: int64(len(ids)), PageNumber: pageNumber, PageSize: pageSize}
	start := (pageNumber - 1) * pageSize
	if start < len(ids) {
		end := start + pageSize
		if end > len(ids) {
			end = len(ids)
		}
		page.Records = ids[start:end]
	}
	return page
}

// Dump reports the edge count, handy in failure messages.
func (g *Graph) Dump() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("%d items, %d rels", len(g.items), len(g.rels))
}
