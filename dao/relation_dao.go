package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	cordon_errors "github.com/cordon-dev/cordon/errors"
	logger "github.com/cordon-dev/cordon/logging"
	"github.com/cordon-dev/cordon/model"
	helper_util "github.com/cordon-dev/cordon/util/helper"
)

// RelationDAO stores typed edges as Neo4j relationships whose type is the
// relation tag. The validity window and attribute constraints live on the
// relationship itself, so an edge and its qualifiers are written and removed
// in one transaction.
type RelationDAO struct {
	Driver neo4j.Driver
}

func NewRelationDAO(driver neo4j.Driver) *RelationDAO {
	return &RelationDAO{Driver: driver}
}

var _ RelationStore = &RelationDAO{}

var relTagPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// relTypeFor guards the tag before it is spliced into Cypher as a
// relationship type.
func relTypeFor(tag model.RelTag) (string, error) {
	if !relTagPattern.MatchString(string(tag)) {
		return "", fmt.Errorf("%w: bad relation tag %q", cordon_errors.ErrInvalidRelData, tag)
	}
	return string(tag), nil
}

// liveCond excludes expired and not-yet-live edges; params must carry $now.
const liveCond = "r.startTs <= $now AND r.endTs >= $now"

// visibleCond applies the edge visibility rule: outside-visible, or the
// caller's own_paths is a prefix of the edge's to_own_paths. An empty
// $callerPaths disables the filter (internal recomputation view).
const visibleCond = "(r.toIsOutside OR $callerPaths = '' OR r.toOwnPaths = $callerPaths OR r.toOwnPaths STARTS WITH $callerPaths + '/')"

// fromCond matches the from endpoint; with $withSub it also matches items
// whose own_paths chain contains the given id (descendant scopes).
const fromCond = "(f.id = $fromID OR ($withSub AND ('/' + f.ownPaths + '/') CONTAINS ('/' + $fromID + '/')))"

func (dao *RelationDAO) Insert(ctx context.Context, rel *model.Relation) (string, error) {
	start := time.Now()
	relType, err := relTypeFor(rel.Tag)
	if err != nil {
		return "", err
	}
	logger.Info("Creating relation",
		zap.String("tag", string(rel.Tag)),
		zap.String("fromID", rel.FromID),
		zap.String("toID", rel.ToID))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}
	attrsJSON, err := json.Marshal(rel.Attrs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal relation attrs: %w", err)
	}

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
		MATCH (f:Item {id: $fromID})
		MATCH (t:Item {id: $toID})
		CREATE (f)-[r:` + relType + ` {
			id: $id,
			toOwnPaths: $toOwnPaths,
			toIsOutside: $toIsOutside,
			startTs: $startTs,
			endTs: $endTs,
			attrs: $attrs,
			createdAt: $createdAt
		}]->(t)
		RETURN r.id as id
		`
		params := map[string]interface{}{
			"fromID":      rel.FromID,
			"toID":        rel.ToID,
			"id":          rel.ID,
			"toOwnPaths":  rel.ToOwnPaths,
			"toIsOutside": rel.ToIsOutside,
			"startTs":     rel.Validity.StartTs,
			"endTs":       rel.Validity.EndTs,
			"attrs":       string(attrsJSON),
			"createdAt":   time.Now().Format(time.RFC3339),
		}

		result, err := transaction.Run(query, params)
		if err != nil {
			logger.Error("Failed to execute create relation query", zap.Error(err))
			return nil, cordon_errors.ErrDatabaseOperation
		}

		if result.Next() {
			return result.Record().Values[0], nil
		}

		// One of the endpoints did not match.
		return nil, cordon_errors.ErrItemNotFound
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to create relation",
			zap.Error(err),
			zap.String("tag", string(rel.Tag)),
			zap.Duration("duration", duration))
		return "", err
	}

	relID := fmt.Sprintf("%v", result)
	logger.Info("Relation created successfully",
		zap.String("relID", relID),
		zap.Duration("duration", duration))

	return relID, nil
}

func (dao *RelationDAO) DeleteEdges(ctx context.Context, tag model.RelTag, fromID, toID string) (int, error) {
	relType, err := relTypeFor(tag)
	if err != nil {
		return 0, err
	}

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	deleted, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
		MATCH (f:Item {id: $fromID})-[r:` + relType + `]->(t:Item {id: $toID})
		DELETE r
		`
		result, err := transaction.Run(query, map[string]interface{}{
			"fromID": fromID,
			"toID":   toID,
		})
		if err != nil {
			return nil, cordon_errors.ErrDatabaseOperation
		}
		summary, err := result.Consume()
		if err != nil {
			return nil, cordon_errors.ErrDatabaseOperation
		}
		return summary.Counters().RelationshipsDeleted(), nil
	})
	if err != nil {
		logger.Error("Failed to delete relations",
			zap.Error(err),
			zap.String("tag", string(tag)),
			zap.String("fromID", fromID),
			zap.String("toID", toID))
		return 0, err
	}

	count := deleted.(int)
	logger.Info("Relations deleted",
		zap.String("tag", string(tag)),
		zap.Int("count", count))
	return count, nil
}

func (dao *RelationDAO) FindEdges(ctx context.Context, q *model.RelQuery) ([]*model.Relation, error) {
	relType, err := relTypeFor(q.Tag)
	if err != nil {
		return nil, err
	}

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
	MATCH (f:Item)-[r:` + relType + `]->(t:Item)
	WHERE ($fromID = '' OR f.id = $fromID)
	  AND ($toID = '' OR t.id = $toID)
	  AND ` + liveCond + `
	  AND ` + visibleCond + `
	RETURN r, f.id, t.id
	ORDER BY r.createdAt ASC
	`
	result, err := session.Run(query, map[string]interface{}{
		"fromID":      q.FromID,
		"toID":        q.ToID,
		"now":         helper_util.NowSec(),
		"callerPaths": q.CallerPaths,
	})
	if err != nil {
		logger.Error("Failed to execute find edges query", zap.Error(err))
		return nil, cordon_errors.ErrDatabaseOperation
	}

	var rels []*model.Relation
	for result.Next() {
		record := result.Record()
		edge := record.Values[0].(neo4j.Relationship)
		rel := mapEdgeToRelation(q.Tag, edge)
		rel.FromID = record.Values[1].(string)
		rel.ToID = record.Values[2].(string)
		rels = append(rels, rel)
	}
	return rels, nil
}

func (dao *RelationDAO) FindFromIDs(ctx context.Context, tag model.RelTag, fromID string, withSub bool, callerPaths string) ([]string, error) {
	return dao.findIDs(tag, fromID, withSub, callerPaths, true)
}

func (dao *RelationDAO) FindToIDs(ctx context.Context, tag model.RelTag, toID string, callerPaths string) ([]string, error) {
	return dao.findIDs(tag, toID, false, callerPaths, false)
}

func (dao *RelationDAO) findIDs(tag model.RelTag, id string, withSub bool, callerPaths string, fromSide bool) ([]string, error) {
	relType, err := relTypeFor(tag)
	if err != nil {
		return nil, err
	}

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	var query string
	params := map[string]interface{}{
		"now":         helper_util.NowSec(),
		"callerPaths": callerPaths,
	}
	if fromSide {
		query = `
		MATCH (f:Item)-[r:` + relType + `]->(t:Item)
		WHERE ` + fromCond + ` AND ` + liveCond + ` AND ` + visibleCond + `
		RETURN t.id
		ORDER BY r.createdAt ASC
		`
		params["fromID"] = id
		params["withSub"] = withSub
	} else {
		query = `
		MATCH (f:Item)-[r:` + relType + `]->(t:Item {id: $toID})
		WHERE ` + liveCond + ` AND ` + visibleCond + `
		RETURN f.id
		ORDER BY r.createdAt ASC
		`
		params["toID"] = id
	}

	result, err := session.Run(query, params)
	if err != nil {
		logger.Error("Failed to execute find relation ids query", zap.Error(err))
		return nil, cordon_errors.ErrDatabaseOperation
	}

	var ids []string
	for result.Next() {
		ids = append(ids, result.Record().Values[0].(string))
	}
	return ids, nil
}

func (dao *RelationDAO) FindFromBones(ctx context.Context, tag model.RelTag, fromID string, withSub bool, callerPaths string) ([]model.RelBone, error) {
	return dao.findBones(tag, fromID, withSub, callerPaths, true)
}

func (dao *RelationDAO) FindToBones(ctx context.Context, tag model.RelTag, toID string, callerPaths string) ([]model.RelBone, error) {
	return dao.findBones(tag, toID, false, callerPaths, false)
}

func (dao *RelationDAO) findBones(tag model.RelTag, id string, withSub bool, callerPaths string, fromSide bool) ([]model.RelBone, error) {
	relType, err := relTypeFor(tag)
	if err != nil {
		return nil, err
	}

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	var query string
	params := map[string]interface{}{
		"now":         helper_util.NowSec(),
		"callerPaths": callerPaths,
	}
	if fromSide {
		query = `
		MATCH (f:Item)-[r:` + relType + `]->(t:Item)
		WHERE ` + fromCond + ` AND ` + liveCond + ` AND ` + visibleCond + `
		RETURN r.id, t.id, t.name
		ORDER BY r.createdAt ASC
		`
		params["fromID"] = id
		params["withSub"] = withSub
	} else {
		query = `
		MATCH (f:Item)-[r:` + relType + `]->(t:Item {id: $toID})
		WHERE ` + liveCond + ` AND ` + visibleCond + `
		RETURN r.id, f.id, f.name
		ORDER BY r.createdAt ASC
		`
		params["toID"] = id
	}

	result, err := session.Run(query, params)
	if err != nil {
		logger.Error("Failed to execute find relation bones query", zap.Error(err))
		return nil, cordon_errors.ErrDatabaseOperation
	}

	var bones []model.RelBone
	for result.Next() {
		record := result.Record()
		bones = append(bones, model.RelBone{
			RelID:  record.Values[0].(string),
			ItemID: record.Values[1].(string),
			Name:   record.Values[2].(string),
		})
	}
	return bones, nil
}

func (dao *RelationDAO) PaginateFromIDs(ctx context.Context, tag model.RelTag, fromID string, withSub bool, callerPaths string, pageNumber, pageSize int) (*model.IDPage, error) {
	return dao.paginateIDs(tag, fromID, withSub, callerPaths, true, pageNumber, pageSize)
}

func (dao *RelationDAO) PaginateToIDs(ctx context.Context, tag model.RelTag, toID string, callerPaths string, pageNumber, pageSize int) (*model.IDPage, error) {
	return dao.paginateIDs(tag, toID, false, callerPaths, false, pageNumber, pageSize)
}

func (dao *RelationDAO) paginateIDs(tag model.RelTag, id string, withSub bool, callerPaths string, fromSide bool, pageNumber, pageSize int) (*model.IDPage, error) {
	relType, err := relTypeFor(tag)
	if err != nil {
		return nil, err
	}
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	var match, ret string
	params := map[string]interface{}{
		"now":         helper_util.NowSec(),
		"callerPaths": callerPaths,
	}
	if fromSide {
		match = `
		MATCH (f:Item)-[r:` + relType + `]->(t:Item)
		WHERE ` + fromCond + ` AND ` + liveCond + ` AND ` + visibleCond + `
		`
		ret = "t.id"
		params["fromID"] = id
		params["withSub"] = withSub
	} else {
		match = `
		MATCH (f:Item)-[r:` + relType + `]->(t:Item {id: $toID})
		WHERE ` + liveCond + ` AND ` + visibleCond + `
		`
		ret = "f.id"
		params["toID"] = id
	}

	countResult, err := session.Run(match+"RETURN count(r)", params)
	if err != nil {
		return nil, cordon_errors.ErrDatabaseOperation
	}
	var total int64
	if countResult.Next() {
		total = countResult.Record().Values[0].(int64)
	}

	params["skip"] = (pageNumber - 1) * pageSize
	params["limit"] = pageSize
	// Offset paging over a stable createdAt order: a concurrent delete can
	// only shrink later pages, never repeat or skip unrelated rows.
	result, err := session.Run(match+`
		RETURN `+ret+`
		ORDER BY r.createdAt ASC
		SKIP $skip
		LIMIT $limit
		`, params)
	if err != nil {
		return nil, cordon_errors.ErrDatabaseOperation
	}

	page := &model.IDPage{Total: total, PageNumber: pageNumber, PageSize: pageSize}
	for result.Next() {
		page.Records = append(page.Records, result.Record().Values[0].(string))
	}
	return page, nil
}

func (dao *RelationDAO) CountFrom(ctx context.Context, tag model.RelTag, fromID string, withSub bool, callerPaths string) (int64, error) {
	return dao.count(tag, fromID, withSub, callerPaths, true)
}

func (dao *RelationDAO) CountTo(ctx context.Context, tag model.RelTag, toID string, callerPaths string) (int64, error) {
	return dao.count(tag, toID, false, callerPaths, false)
}

func (dao *RelationDAO) count(tag model.RelTag, id string, withSub bool, callerPaths string, fromSide bool) (int64, error) {
	relType, err := relTypeFor(tag)
	if err != nil {
		return 0, err
	}

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	var query string
	params := map[string]interface{}{
		"now":         helper_util.NowSec(),
		"callerPaths": callerPaths,
	}
	if fromSide {
		query = `
		MATCH (f:Item)-[r:` + relType + `]->(t:Item)
		WHERE ` + fromCond + ` AND ` + liveCond + ` AND ` + visibleCond + `
		RETURN count(r)
		`
		params["fromID"] = id
		params["withSub"] = withSub
	} else {
		query = `
		MATCH (f:Item)-[r:` + relType + `]->(t:Item {id: $toID})
		WHERE ` + liveCond + ` AND ` + visibleCond + `
		RETURN count(r)
		`
		params["toID"] = id
	}

	result, err := session.Run(query, params)
	if err != nil {
		return 0, cordon_errors.ErrDatabaseOperation
	}
	if result.Next() {
		return result.Record().Values[0].(int64), nil
	}
	return 0, nil
}

func (dao *RelationDAO) Exists(ctx context.Context, tag model.RelTag, fromID, toID string) (bool, error) {
	relType, err := relTypeFor(tag)
	if err != nil {
		return false, err
	}

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
	MATCH (f:Item {id: $fromID})-[r:` + relType + `]->(t:Item {id: $toID})
	WHERE ` + liveCond + `
	RETURN r.id
	LIMIT 1
	`
	result, err := session.Run(query, map[string]interface{}{
		"fromID": fromID,
		"toID":   toID,
		"now":    helper_util.NowSec(),
	})
	if err != nil {
		return false, cordon_errors.ErrDatabaseOperation
	}
	return result.Next(), nil
}

func (dao *RelationDAO) CountTouching(ctx context.Context, id string) (map[model.RelTag]int64, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
	MATCH (i:Item {id: $id})-[r]-()
	WHERE ` + liveCond + `
	RETURN type(r), count(r)
	`
	result, err := session.Run(query, map[string]interface{}{
		"id":  id,
		"now": helper_util.NowSec(),
	})
	if err != nil {
		return nil, cordon_errors.ErrDatabaseOperation
	}

	counts := make(map[model.RelTag]int64)
	for result.Next() {
		record := result.Record()
		counts[model.RelTag(record.Values[0].(string))] = record.Values[1].(int64)
	}
	return counts, nil
}

func mapEdgeToRelation(tag model.RelTag, edge neo4j.Relationship) *model.Relation {
	props := edge.Props
	rel := &model.Relation{Tag: tag}
	rel.ID, _ = props["id"].(string)
	rel.ToOwnPaths, _ = props["toOwnPaths"].(string)
	rel.ToIsOutside, _ = props["toIsOutside"].(bool)
	if v, ok := props["startTs"].(int64); ok {
		rel.Validity.StartTs = v
	}
	if v, ok := props["endTs"].(int64); ok {
		rel.Validity.EndTs = v
	}
	if s, ok := props["attrs"].(string); ok && s != "" && s != "null" {
		_ = json.Unmarshal([]byte(s), &rel.Attrs)
	}
	if s, ok := props["createdAt"].(string); ok {
		rel.CreatedAt = helper_util.ParseTime(s)
	}
	return rel
}
