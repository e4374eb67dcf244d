package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"go.uber.org/zap"

	apperrors "github.com/ambled/genealogy-neo4j-import/backend/pkg/errors"
	"github.com/ambled/genealogy-neo4j-import/backend/pkg/logger"
)

// Neo4jStore handles all Neo4j database operations
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// IndexSpec names a label/property pair backed by a lookup index
type IndexSpec struct {
	Label    string
	Property string
}

// NewNeo4jStore creates a new graph store on top of driver
func NewNeo4jStore(driver neo4j.DriverWithContext, database string) *Neo4jStore {
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{
		driver:   driver,
		database: database,
		logger:   logger.Get(),
	}
}

// Close closes the Neo4j driver connection
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Begin opens a write session and an explicit transaction inside it
func (s *Neo4jStore) Begin(ctx context.Context) (Tx, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return nil, apperrors.NewStorageFailure("begin transaction", err)
	}

	return &neo4jTx{session: session, tx: tx}, nil
}

// EnsureSchema creates the lookup indexes backing label-scoped key queries.
// Schema changes cannot share a transaction with data writes, so each index
// runs in its own auto-commit query.
func (s *Neo4jStore) EnsureSchema(ctx context.Context, indexes []IndexSpec) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	for _, idx := range indexes {
		if err := checkIdentifier("label", idx.Label); err != nil {
			return apperrors.NewStorageFailure("ensure schema", err)
		}
		if err := checkIdentifier("property", idx.Property); err != nil {
			return apperrors.NewStorageFailure("ensure schema", err)
		}

		name := fmt.Sprintf("%s_%s", idx.Label, idx.Property)
		query := fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.%s)", name, idx.Label, idx.Property)
		if _, err := session.Run(ctx, query, nil); err != nil {
			return apperrors.NewStorageFailure("ensure schema", fmt.Errorf("failed to create index %s: %w", name, err))
		}

		s.logger.Info("Index ensured",
			zap.String("label", idx.Label),
			zap.String("property", idx.Property),
		)
	}
	return nil
}

// Stats counts nodes per label and relationships per type
func (s *Neo4jStore) Stats(ctx context.Context) (*Stats, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	stats := &Stats{
		NodesByLabel: make(map[string]int64),
		EdgesByType:  make(map[string]int64),
		CollectedAt:  time.Now().UTC(),
	}

	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n)
			UNWIND labels(n) AS label
			RETURN label, count(*) AS count
		`, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			count := getInt64(record, "count")
			stats.NodesByLabel[getString(record, "label")] = count
			stats.NodeCount += count
		}

		res, err = tx.Run(ctx, `
			MATCH ()-[r]->()
			RETURN type(r) AS type, count(*) AS count
		`, nil)
		if err != nil {
			return nil, err
		}
		records, err = res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			count := getInt64(record, "count")
			stats.EdgesByType[getString(record, "type")] = count
			stats.EdgeCount += count
		}
		return nil, nil
	})
	if err != nil {
		return nil, apperrors.NewStorageFailure("stats", err)
	}

	return stats, nil
}

type neo4jTx struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
	done    bool
}

func (t *neo4jTx) single(ctx context.Context, op, query string, params map[string]any) (*neo4j.Record, error) {
	if t.done {
		return nil, apperrors.NewStorageFailure(op, fmt.Errorf("transaction already closed"))
	}
	result, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, apperrors.NewStorageFailure(op, err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return nil, apperrors.NewStorageFailure(op, err)
	}
	return record, nil
}

func (t *neo4jTx) collect(ctx context.Context, op, query string, params map[string]any) ([]*neo4j.Record, error) {
	if t.done {
		return nil, apperrors.NewStorageFailure(op, fmt.Errorf("transaction already closed"))
	}
	result, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, apperrors.NewStorageFailure(op, err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, apperrors.NewStorageFailure(op, err)
	}
	return records, nil
}

func (t *neo4jTx) CreateNode(ctx context.Context, label string) (NodeID, error) {
	if err := checkIdentifier("label", label); err != nil {
		return "", apperrors.NewStorageFailure("create node", err)
	}
	query := fmt.Sprintf("CREATE (n:%s) RETURN elementId(n) AS id", label)
	record, err := t.single(ctx, "create node", query, nil)
	if err != nil {
		return "", err
	}
	return NodeID(getString(record, "id")), nil
}

func (t *neo4jTx) SetNodeProperty(ctx context.Context, id NodeID, key string, value any) error {
	if err := checkIdentifier("property", key); err != nil {
		return apperrors.NewStorageFailure("set node property", err)
	}
	_, err := t.single(ctx, "set node property", `
		MATCH (n) WHERE elementId(n) = $id
		SET n += $props
		RETURN elementId(n) AS id
	`, map[string]any{
		"id":    string(id),
		"props": map[string]any{key: value},
	})
	return err
}

func (t *neo4jTx) Node(ctx context.Context, id NodeID) (*Node, error) {
	record, err := t.single(ctx, "get node", `
		MATCH (n) WHERE elementId(n) = $id
		RETURN n
	`, map[string]any{"id": string(id)})
	if err != nil {
		return nil, err
	}
	val, _ := record.Get("n")
	dbNode, ok := val.(dbtype.Node)
	if !ok {
		return nil, apperrors.NewStorageFailure("get node", fmt.Errorf("unexpected type for node: got %T, expected dbtype.Node", val))
	}
	return nodeFromDBNode(dbNode), nil
}

func (t *neo4jTx) FindNodes(ctx context.Context, label, key, value string) ([]NodeID, error) {
	if err := checkIdentifier("label", label); err != nil {
		return nil, apperrors.NewStorageFailure("find nodes", err)
	}
	if err := checkIdentifier("property", key); err != nil {
		return nil, apperrors.NewStorageFailure("find nodes", err)
	}
	query := fmt.Sprintf("MATCH (n:%s {%s: $value}) RETURN elementId(n) AS id", label, key)
	records, err := t.collect(ctx, "find nodes", query, map[string]any{"value": value})
	if err != nil {
		return nil, err
	}
	ids := make([]NodeID, 0, len(records))
	for _, record := range records {
		ids = append(ids, NodeID(getString(record, "id")))
	}
	return ids, nil
}

func (t *neo4jTx) CreateRelationship(ctx context.Context, from, to NodeID, relType string) (RelationshipID, error) {
	if err := checkIdentifier("relationship type", relType); err != nil {
		return "", apperrors.NewStorageFailure("create relationship", err)
	}
	query := fmt.Sprintf(`
		MATCH (a) WHERE elementId(a) = $from
		MATCH (b) WHERE elementId(b) = $to
		CREATE (a)-[r:%s]->(b)
		RETURN elementId(r) AS id
	`, relType)
	record, err := t.single(ctx, "create relationship", query, map[string]any{
		"from": string(from),
		"to":   string(to),
	})
	if err != nil {
		return "", err
	}
	return RelationshipID(getString(record, "id")), nil
}

func (t *neo4jTx) SetRelationshipProperty(ctx context.Context, id RelationshipID, key string, value any) error {
	if err := checkIdentifier("property", key); err != nil {
		return apperrors.NewStorageFailure("set relationship property", err)
	}
	_, err := t.single(ctx, "set relationship property", `
		MATCH ()-[r]->() WHERE elementId(r) = $id
		SET r += $props
		RETURN elementId(r) AS id
	`, map[string]any{
		"id":    string(id),
		"props": map[string]any{key: value},
	})
	return err
}

func (t *neo4jTx) OutgoingRelationships(ctx context.Context, from NodeID, relType string) ([]Relationship, error) {
	if err := checkIdentifier("relationship type", relType); err != nil {
		return nil, apperrors.NewStorageFailure("outgoing relationships", err)
	}
	query := fmt.Sprintf(`
		MATCH (a)-[r:%s]->(b) WHERE elementId(a) = $from
		RETURN elementId(r) AS id, elementId(b) AS to, properties(r) AS props
	`, relType)
	records, err := t.collect(ctx, "outgoing relationships", query, map[string]any{"from": string(from)})
	if err != nil {
		return nil, err
	}

	rels := make([]Relationship, 0, len(records))
	for _, record := range records {
		props, _ := record.Get("props")
		propMap, _ := props.(map[string]any)
		rels = append(rels, Relationship{
			ID:         RelationshipID(getString(record, "id")),
			Type:       relType,
			From:       from,
			To:         NodeID(getString(record, "to")),
			Properties: normalizeProperties(propMap),
		})
	}
	return rels, nil
}

func (t *neo4jTx) TraverseOutgoing(ctx context.Context, start NodeID, relType string) ([]Node, error) {
	if err := checkIdentifier("relationship type", relType); err != nil {
		return nil, apperrors.NewStorageFailure("traverse", err)
	}
	query := fmt.Sprintf(`
		MATCH p = (s)-[:%[1]s*0..]->(e)
		WHERE elementId(s) = $id AND NOT (e)-[:%[1]s]->()
		RETURN nodes(p) AS chain
		ORDER BY length(p) DESC
		LIMIT 1
	`, relType)
	records, err := t.collect(ctx, "traverse", query, map[string]any{"id": string(start)})
	if err != nil {
		return nil, err
	}

	// A cycle leaves no terminal node; fall back to the start node alone.
	if len(records) == 0 {
		n, err := t.Node(ctx, start)
		if err != nil {
			return nil, err
		}
		return []Node{*n}, nil
	}

	val, _ := records[0].Get("chain")
	list, _ := val.([]any)
	chain := make([]Node, 0, len(list))
	for _, item := range list {
		dbNode, ok := item.(dbtype.Node)
		if !ok {
			return nil, apperrors.NewStorageFailure("traverse", fmt.Errorf("unexpected type in chain: %T", item))
		}
		chain = append(chain, *nodeFromDBNode(dbNode))
	}
	return chain, nil
}

func (t *neo4jTx) Commit(ctx context.Context) error {
	if t.done {
		return apperrors.NewStorageFailure("commit", fmt.Errorf("transaction already closed"))
	}
	t.done = true
	defer t.session.Close(ctx)

	if err := t.tx.Commit(ctx); err != nil {
		return apperrors.NewStorageFailure("commit", err)
	}
	return nil
}

func (t *neo4jTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.session.Close(ctx)

	if err := t.tx.Rollback(ctx); err != nil {
		return apperrors.NewStorageFailure("rollback", err)
	}
	return nil
}

func nodeFromDBNode(n dbtype.Node) *Node {
	label := ""
	if len(n.Labels) > 0 {
		label = n.Labels[0]
	}
	return &Node{
		ID:         NodeID(n.ElementId),
		Label:      label,
		Properties: normalizeProperties(n.Props),
	}
}

// Record helpers

func getString(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getInt64(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	return 0
}
