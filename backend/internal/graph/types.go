package graph

import (
	"context"
	"time"
)

// NodeID is a store-assigned node handle. Neo4j uses element ids, Badger a
// sequence number; callers treat it as opaque.
type NodeID string

// RelationshipID is a store-assigned relationship handle
type RelationshipID string

// Node is a node with its single label and properties
type Node struct {
	ID         NodeID         `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// Relationship is a directed, typed relationship with its properties
type Relationship struct {
	ID         RelationshipID `json:"id"`
	Type       string         `json:"type"`
	From       NodeID         `json:"from"`
	To         NodeID         `json:"to"`
	Properties map[string]any `json:"properties"`
}

// Stats holds node counts per label and relationship counts per type
type Stats struct {
	NodeCount    int64            `json:"node_count"`
	EdgeCount    int64            `json:"edge_count"`
	NodesByLabel map[string]int64 `json:"nodes_by_label"`
	EdgesByType  map[string]int64 `json:"edges_by_type"`
	CollectedAt  time.Time        `json:"collected_at"`
}

// Store is a graph database the importer writes into. All writes happen
// inside a Tx; nothing is visible to other readers until Commit.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Stats(ctx context.Context) (*Stats, error)
	Close(ctx context.Context) error
}

// Tx is a single read-write transaction. After Commit or Rollback the Tx
// must not be used again; Rollback after Commit is a no-op.
type Tx interface {
	CreateNode(ctx context.Context, label string) (NodeID, error)
	SetNodeProperty(ctx context.Context, id NodeID, key string, value any) error
	Node(ctx context.Context, id NodeID) (*Node, error)

	// FindNodes returns the nodes carrying label whose key property equals value
	FindNodes(ctx context.Context, label, key, value string) ([]NodeID, error)

	CreateRelationship(ctx context.Context, from, to NodeID, relType string) (RelationshipID, error)
	SetRelationshipProperty(ctx context.Context, id RelationshipID, key string, value any) error
	OutgoingRelationships(ctx context.Context, from NodeID, relType string) ([]Relationship, error)

	// TraverseOutgoing returns the chain that starts at start and follows
	// outgoing relType relationships until none is left. start is the
	// first element.
	TraverseOutgoing(ctx context.Context, start NodeID, relType string) ([]Node, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
