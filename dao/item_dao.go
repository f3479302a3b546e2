package dao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	cordon_errors "github.com/cordon-dev/cordon/errors"
	logger "github.com/cordon-dev/cordon/logging"
	"github.com/cordon-dev/cordon/model"
	helper_util "github.com/cordon-dev/cordon/util/helper"
)

// ItemDAO stores typed items as Neo4j nodes labelled :Item plus the kind's
// own label. Kind-specific behavior is injected through the KindRegistry;
// there is one codepath for every kind.
type ItemDAO struct {
	Driver   neo4j.Driver
	Registry *model.KindRegistry
}

func NewItemDAO(driver neo4j.Driver, registry *model.KindRegistry) *ItemDAO {
	dao := &ItemDAO{Driver: driver, Registry: registry}
	ctx := context.Background()
	if err := dao.EnsureConstraints(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint for Item", zap.Error(err))
	}
	return dao
}

var _ ItemStore = &ItemDAO{}

func (dao *ItemDAO) EnsureConstraints(ctx context.Context) error {
	logger.Info("Ensuring unique constraint on Item ID")
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_item_id IF NOT EXISTS
        FOR (i:Item) REQUIRE i.id IS UNIQUE
        `
		if _, err := transaction.Run(query, nil); err != nil {
			return nil, err
		}
		query = `
        CREATE INDEX item_code IF NOT EXISTS
        FOR (i:Item) ON (i.kind, i.code)
        `
		_, err := transaction.Run(query, nil)
		return nil, err
	})

	if err != nil {
		logger.Error("Failed to ensure unique constraint on Item ID", zap.Error(err))
		return err
	}

	return nil
}

func (dao *ItemDAO) Insert(ctx context.Context, item *model.Item) (string, error) {
	start := time.Now()
	spec, err := dao.Registry.Get(item.Kind)
	if err != nil {
		return "", fmt.Errorf("%w: %v", cordon_errors.ErrInvalidItemData, err)
	}
	logger.Info("Creating new item",
		zap.String("kind", string(item.Kind)),
		zap.String("name", item.Name))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
			MERGE (i:Item:` + spec.Label() + ` {id: $id})
			ON CREATE SET
				i.kind = $kind,
				i.code = $code,
				i.name = $name,
				i.disabled = $disabled,
				i.scopeLevel = $scopeLevel,
				i.ownPaths = $ownPaths,
				i.owner = $owner,
				i.createdAt = $createdAt,
				i.updatedAt = $updatedAt
		`
		if len(item.Ext) > 0 {
			query += `
			SET i += $ext
			`
		}
		query += `
			RETURN i.id as id
		`

		now := time.Now().Format(time.RFC3339)
		params := map[string]interface{}{
			"id":         item.ID,
			"kind":       string(item.Kind),
			"code":       item.Code,
			"name":       item.Name,
			"disabled":   item.Disabled,
			"scopeLevel": item.ScopeLevel,
			"ownPaths":   item.OwnPaths,
			"owner":      item.Owner,
			"createdAt":  now,
			"updatedAt":  now,
		}
		if len(item.Ext) > 0 {
			params["ext"] = item.Ext
		}

		result, err := transaction.Run(query, params)
		if err != nil {
			logger.Error("Failed to execute create item query", zap.Error(err))
			return nil, cordon_errors.ErrDatabaseOperation
		}

		if result.Next() {
			return result.Record().Values[0], nil
		}

		return nil, cordon_errors.ErrInternalServer
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to create item",
			zap.Error(err),
			zap.String("kind", string(item.Kind)),
			zap.String("name", item.Name),
			zap.Duration("duration", duration))
		return "", err
	}

	itemID := fmt.Sprintf("%v", result)
	logger.Info("Item created successfully",
		zap.String("itemID", itemID),
		zap.Duration("duration", duration))

	return itemID, nil
}

func (dao *ItemDAO) Update(ctx context.Context, kind model.ItemKind, id string, props map[string]any) (*model.Item, error) {
	start := time.Now()
	spec, err := dao.Registry.Get(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cordon_errors.ErrInvalidItemData, err)
	}
	logger.Info("Updating item", zap.String("itemID", id))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	var updated *model.Item
	_, err = session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (i:Item:` + spec.Label() + ` {id: $id})
        SET i += $props
        RETURN i
        `
		props["updatedAt"] = time.Now().Format(time.RFC3339)
		params := map[string]interface{}{
			"id":    id,
			"props": props,
		}

		result, err := transaction.Run(query, params)
		if err != nil {
			logger.Error("Failed to execute update item query", zap.Error(err))
			return nil, cordon_errors.ErrDatabaseOperation
		}

		if result.Next() {
			node := result.Record().Values[0].(neo4j.Node)
			updated = dao.mapNodeToItem(node)
			return nil, nil
		}

		return nil, cordon_errors.ErrItemNotFound
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to update item",
			zap.Error(err),
			zap.String("itemID", id),
			zap.Duration("duration", duration))
		return nil, err
	}

	logger.Info("Item updated successfully",
		zap.String("itemID", id),
		zap.Duration("duration", duration))

	return updated, nil
}

func (dao *ItemDAO) Delete(ctx context.Context, kind model.ItemKind, id string) error {
	start := time.Now()
	spec, err := dao.Registry.Get(kind)
	if err != nil {
		return fmt.Errorf("%w: %v", cordon_errors.ErrInvalidItemData, err)
	}
	logger.Info("Deleting item", zap.String("itemID", id))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err = session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		// The service layer guards against live relations; DETACH covers
		// expired leftovers.
		query := `
        MATCH (i:Item:` + spec.Label() + ` {id: $id})
        DETACH DELETE i
        `
		result, err := transaction.Run(query, map[string]interface{}{"id": id})
		if err != nil {
			return nil, cordon_errors.ErrDatabaseOperation
		}

		summary, err := result.Consume()
		if err != nil {
			return nil, cordon_errors.ErrDatabaseOperation
		}

		if summary.Counters().NodesDeleted() == 0 {
			return nil, cordon_errors.ErrItemNotFound
		}

		return nil, nil
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to delete item",
			zap.Error(err),
			zap.String("itemID", id),
			zap.Duration("duration", duration))
		return err
	}

	logger.Info("Item deleted successfully",
		zap.String("itemID", id),
		zap.Duration("duration", duration))

	return nil
}

func (dao *ItemDAO) Get(ctx context.Context, id string) (*model.Item, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (i:Item {id: $id})
    RETURN i
    `
	result, err := session.Run(query, map[string]interface{}{"id": id})
	if err != nil {
		logger.Error("Failed to execute get item query",
			zap.Error(err),
			zap.String("itemID", id))
		return nil, cordon_errors.ErrDatabaseOperation
	}

	if result.Next() {
		node := result.Record().Values[0].(neo4j.Node)
		return dao.mapNodeToItem(node), nil
	}

	return nil, cordon_errors.ErrItemNotFound
}

func (dao *ItemDAO) GetByCode(ctx context.Context, kind model.ItemKind, code string) (*model.Item, error) {
	spec, err := dao.Registry.Get(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cordon_errors.ErrInvalidItemData, err)
	}

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (i:Item:` + spec.Label() + ` {code: $code})
    RETURN i
    LIMIT 1
    `
	result, err := session.Run(query, map[string]interface{}{"code": code})
	if err != nil {
		logger.Error("Failed to execute get item by code query",
			zap.Error(err),
			zap.String("kind", string(kind)),
			zap.String("code", code))
		return nil, cordon_errors.ErrDatabaseOperation
	}

	if result.Next() {
		node := result.Record().Values[0].(neo4j.Node)
		return dao.mapNodeToItem(node), nil
	}

	return nil, cordon_errors.ErrItemNotFound
}

func (dao *ItemDAO) Find(ctx context.Context, filter *model.ItemFilter) ([]*model.Item, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	match, where, params := dao.buildFilter(filter)
	query := match + where + `
    RETURN i
    ` + orderClause(filter)

	result, err := session.Run(query, params)
	if err != nil {
		logger.Error("Failed to execute find items query", zap.Error(err))
		return nil, cordon_errors.ErrDatabaseOperation
	}

	var items []*model.Item
	for result.Next() {
		node := result.Record().Values[0].(neo4j.Node)
		items = append(items, dao.mapNodeToItem(node))
	}
	return items, nil
}

func (dao *ItemDAO) Paginate(ctx context.Context, filter *model.ItemFilter, pageNumber, pageSize int) (*model.ItemPage, error) {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	match, where, params := dao.buildFilter(filter)

	countQuery := match + where + `
    RETURN count(i)
    `
	countResult, err := session.Run(countQuery, params)
	if err != nil {
		return nil, cordon_errors.ErrDatabaseOperation
	}
	var total int64
	if countResult.Next() {
		total = countResult.Record().Values[0].(int64)
	}

	params["skip"] = (pageNumber - 1) * pageSize
	params["limit"] = pageSize
	query := match + where + `
    RETURN i
    ` + orderClause(filter) + `
    SKIP $skip
    LIMIT $limit
    `
	result, err := session.Run(query, params)
	if err != nil {
		return nil, cordon_errors.ErrDatabaseOperation
	}

	page := &model.ItemPage{Total: total, PageNumber: pageNumber, PageSize: pageSize}
	for result.Next() {
		node := result.Record().Values[0].(neo4j.Node)
		page.Records = append(page.Records, dao.mapNodeToItem(node))
	}
	return page, nil
}

func (dao *ItemDAO) buildFilter(filter *model.ItemFilter) (match, where string, params map[string]interface{}) {
	label := ""
	if filter.Kind != "" {
		if spec, err := dao.Registry.Get(filter.Kind); err == nil {
			label = ":" + spec.Label()
		}
	}
	match = `
    MATCH (i:Item` + label + `)
    `

	var conds []string
	params = map[string]interface{}{}
	if len(filter.IDs) > 0 {
		conds = append(conds, "i.id IN $ids")
		params["ids"] = filter.IDs
	}
	if filter.Name != "" {
		conds = append(conds, "i.name CONTAINS $name")
		params["name"] = filter.Name
	}
	if filter.Code != "" {
		conds = append(conds, "i.code = $code")
		params["code"] = filter.Code
	}
	if filter.OwnPaths != "" {
		if filter.WithSubOwnPaths {
			conds = append(conds, "(i.ownPaths = $ownPaths OR i.ownPaths STARTS WITH $ownPaths + '/')")
		} else {
			conds = append(conds, "i.ownPaths = $ownPaths")
		}
		params["ownPaths"] = filter.OwnPaths
	}
	if filter.Disabled != nil {
		conds = append(conds, "i.disabled = $disabled")
		params["disabled"] = *filter.Disabled
	}

	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ") + "\n"
	}
	return match, where, params
}

func orderClause(filter *model.ItemFilter) string {
	switch {
	case filter.DescByUpdate:
		return "ORDER BY i.updatedAt DESC"
	case filter.DescByCreate:
		return "ORDER BY i.createdAt DESC"
	default:
		return "ORDER BY i.createdAt ASC"
	}
}

// mapNodeToItem converts a Neo4j node back into an Item, splitting common
// properties from the kind's ext properties.
func (dao *ItemDAO) mapNodeToItem(node neo4j.Node) *model.Item {
	props := node.Props
	item := &model.Item{}

	item.ID, _ = props["id"].(string)
	if kind, ok := props["kind"].(string); ok {
		item.Kind = model.ItemKind(kind)
	}
	item.Code, _ = props["code"].(string)
	item.Name, _ = props["name"].(string)
	item.Disabled, _ = props["disabled"].(bool)
	if level, ok := props["scopeLevel"].(int64); ok {
		item.ScopeLevel = int(level)
	}
	item.OwnPaths, _ = props["ownPaths"].(string)
	item.Owner, _ = props["owner"].(string)
	item.Updater, _ = props["updater"].(string)
	if s, ok := props["createdAt"].(string); ok {
		item.CreatedAt = helper_util.ParseTime(s)
	}
	if s, ok := props["updatedAt"].(string); ok {
		item.UpdatedAt = helper_util.ParseTime(s)
	}

	if spec, err := dao.Registry.Get(item.Kind); err == nil {
		for _, name := range spec.ExtProps() {
			if v, ok := props[name]; ok {
				if item.Ext == nil {
					item.Ext = make(map[string]any)
				}
				item.Ext[name] = v
			}
		}
	}

	return item
}
