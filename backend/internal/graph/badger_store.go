package graph

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	apperrors "github.com/ambled/genealogy-neo4j-import/backend/pkg/errors"
	"github.com/ambled/genealogy-neo4j-import/backend/pkg/logger"
)

// Key layout:
//
//	n:<node>                          node record (label + properties)
//	r:<rel>                           relationship record
//	x:<label>:<key>:<value>\x00<node> index entry for string properties
//	o:<from>:<type>:<seq>             outgoing edge, value is the relationship id
const (
	nodePrefix  = "n:"
	relPrefix   = "r:"
	indexPrefix = "x:"
	outPrefix   = "o:"
)

// BadgerStore is an embedded graph store on top of Badger. A Tx maps onto a
// single Badger read-write transaction, so an import either commits whole or
// leaves nothing behind.
type BadgerStore struct {
	db      *badger.DB
	nodeSeq *badger.Sequence
	relSeq  *badger.Sequence
	logger  *zap.Logger
}

type nodeRecord struct {
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties,omitempty"`
}

type relRecord struct {
	Type       string         `json:"type"`
	From       NodeID         `json:"from"`
	To         NodeID         `json:"to"`
	Properties map[string]any `json:"properties,omitempty"`
}

// BadgerOption adjusts the options OpenBadgerStore hands to Badger
type BadgerOption func(*badger.Options)

// WithMemTableSize sets the memtable size in bytes. Badger caps a single
// transaction at 15% of it, and every import is a single transaction.
func WithMemTableSize(size int64) BadgerOption {
	return func(o *badger.Options) {
		*o = o.WithMemTableSize(size)
	}
}

// OpenBadgerStore opens (or creates) a Badger database at path. An empty
// path opens a throwaway in-memory database.
func OpenBadgerStore(path string, options ...BadgerOption) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	for _, o := range options {
		o(&opts)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, apperrors.NewStorageFailure("open badger", err)
	}

	nodeSeq, err := db.GetSequence([]byte("seq:node"), 1000)
	if err != nil {
		_ = db.Close()
		return nil, apperrors.NewStorageFailure("open badger", err)
	}
	relSeq, err := db.GetSequence([]byte("seq:rel"), 1000)
	if err != nil {
		_ = nodeSeq.Release()
		_ = db.Close()
		return nil, apperrors.NewStorageFailure("open badger", err)
	}

	s := &BadgerStore{
		db:      db,
		nodeSeq: nodeSeq,
		relSeq:  relSeq,
		logger:  logger.Get(),
	}
	s.logger.Info("Badger store opened",
		zap.String("path", path),
		zap.Bool("in_memory", path == ""),
		zap.Int64("memtable_size", opts.MemTableSize),
	)
	return s, nil
}

// Close releases the id leases and closes the database
func (s *BadgerStore) Close(ctx context.Context) error {
	var errs []error
	if err := s.nodeSeq.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := s.relSeq.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return apperrors.NewStorageFailure("close badger", err)
	}
	return nil
}

// Begin starts a read-write transaction
func (s *BadgerStore) Begin(ctx context.Context) (Tx, error) {
	return &badgerTx{
		store: s,
		txn:   s.db.NewTransaction(true),
		nodes: make(map[NodeID]*nodeRecord),
		rels:  make(map[RelationshipID]*relRecord),
		index: make(map[string]map[NodeID]bool),
		out:   make(map[string][]outEdge),
	}, nil
}

// Stats counts nodes per label and relationships per type
func (s *BadgerStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		NodesByLabel: make(map[string]int64),
		EdgesByType:  make(map[string]int64),
		CollectedAt:  time.Now().UTC(),
	}

	err := s.db.View(func(txn *badger.Txn) error {
		err := scanPrefix(txn, []byte(nodePrefix), true, func(_ []byte, val []byte) error {
			var rec nodeRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			stats.NodesByLabel[rec.Label]++
			stats.NodeCount++
			return nil
		})
		if err != nil {
			return err
		}
		return scanPrefix(txn, []byte(relPrefix), true, func(_ []byte, val []byte) error {
			var rec relRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			stats.EdgesByType[rec.Type]++
			stats.EdgeCount++
			return nil
		})
	})
	if err != nil {
		return nil, apperrors.NewStorageFailure("stats", err)
	}
	return stats, nil
}

// scanPrefix calls fn for every key under prefix. Values are only read when
// withValues is set.
func scanPrefix(txn *badger.Txn, prefix []byte, withValues bool, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = withValues

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var val []byte
		if withValues {
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			val = v
		}
		if err := fn(item.KeyCopy(nil), val); err != nil {
			return err
		}
	}
	return nil
}

// badgerTx buffers every write and only hands them to the Badger
// transaction on Commit. Each key is then written once, and reads never
// have to merge an ever growing set of pending Badger writes.
type badgerTx struct {
	store *BadgerStore
	txn   *badger.Txn
	done  bool

	nodes map[NodeID]*nodeRecord
	rels  map[RelationshipID]*relRecord
	// index value prefix -> node -> entry present (false marks a removal)
	index map[string]map[NodeID]bool
	// outgoing type prefix -> edges created in this tx, in creation order
	out map[string][]outEdge
}

type outEdge struct {
	seq uint64
	id  RelationshipID
}

func (t *badgerTx) check(op string) error {
	if t.done {
		return apperrors.NewStorageFailure(op, fmt.Errorf("transaction already closed"))
	}
	return nil
}

func nodeKey(id NodeID) []byte {
	return []byte(nodePrefix + string(id))
}

func relKey(id RelationshipID) []byte {
	return []byte(relPrefix + string(id))
}

func indexValuePrefix(label, key, value string) []byte {
	return []byte(indexPrefix + label + ":" + key + ":" + value + "\x00")
}

func outTypePrefix(from NodeID, relType string) []byte {
	return []byte(outPrefix + string(from) + ":" + relType + ":")
}

func outKey(from NodeID, relType string, seq uint64) []byte {
	return append(outTypePrefix(from, relType), fmt.Sprintf("%016x", seq)...)
}

// idSeq recovers the sequence number behind a Badger node id
func idSeq(id NodeID) uint64 {
	n, _ := strconv.ParseUint(string(id), 10, 64)
	return n
}

func (t *badgerTx) getJSON(key []byte, v any) error {
	item, err := t.txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func (t *badgerTx) setJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.txn.Set(key, data)
}

// loadNode returns the buffered record of id or reads the committed one
func (t *badgerTx) loadNode(op string, id NodeID) (*nodeRecord, error) {
	if rec, ok := t.nodes[id]; ok {
		return rec, nil
	}
	var rec nodeRecord
	if err := t.getJSON(nodeKey(id), &rec); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, apperrors.NewStorageFailure(op, fmt.Errorf("node %s not found", id))
		}
		return nil, apperrors.NewStorageFailure(op, err)
	}
	rec.Properties = normalizeProperties(rec.Properties)
	return &rec, nil
}

func (t *badgerTx) loadRel(op string, id RelationshipID) (*relRecord, error) {
	if rec, ok := t.rels[id]; ok {
		return rec, nil
	}
	var rec relRecord
	if err := t.getJSON(relKey(id), &rec); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, apperrors.NewStorageFailure(op, fmt.Errorf("relationship %s not found", id))
		}
		return nil, apperrors.NewStorageFailure(op, err)
	}
	if rec.Properties == nil {
		rec.Properties = map[string]any{}
	}
	return &rec, nil
}

func (t *badgerTx) setIndex(prefix []byte, id NodeID, present bool) {
	entries, ok := t.index[string(prefix)]
	if !ok {
		entries = make(map[NodeID]bool)
		t.index[string(prefix)] = entries
	}
	entries[id] = present
}

func (t *badgerTx) CreateNode(ctx context.Context, label string) (NodeID, error) {
	if err := t.check("create node"); err != nil {
		return "", err
	}
	if err := checkIdentifier("label", label); err != nil {
		return "", apperrors.NewStorageFailure("create node", err)
	}

	seq, err := t.store.nodeSeq.Next()
	if err != nil {
		return "", apperrors.NewStorageFailure("create node", err)
	}
	id := NodeID(strconv.FormatUint(seq, 10))
	t.nodes[id] = &nodeRecord{Label: label, Properties: map[string]any{}}
	return id, nil
}

func (t *badgerTx) SetNodeProperty(ctx context.Context, id NodeID, key string, value any) error {
	if err := t.check("set node property"); err != nil {
		return err
	}
	if err := checkIdentifier("property", key); err != nil {
		return apperrors.NewStorageFailure("set node property", err)
	}

	rec, err := t.loadNode("set node property", id)
	if err != nil {
		return err
	}
	t.nodes[id] = rec

	if old, ok := rec.Properties[key].(string); ok {
		t.setIndex(indexValuePrefix(rec.Label, key, old), id, false)
	}
	if str, ok := value.(string); ok {
		t.setIndex(indexValuePrefix(rec.Label, key, str), id, true)
	}
	rec.Properties[key] = value
	return nil
}

func (t *badgerTx) Node(ctx context.Context, id NodeID) (*Node, error) {
	if err := t.check("get node"); err != nil {
		return nil, err
	}
	rec, err := t.loadNode("get node", id)
	if err != nil {
		return nil, err
	}
	return &Node{ID: id, Label: rec.Label, Properties: normalizeProperties(rec.Properties)}, nil
}

// FindNodes returns committed matches first, then matches created in this
// transaction in creation order.
func (t *badgerTx) FindNodes(ctx context.Context, label, key, value string) ([]NodeID, error) {
	if err := t.check("find nodes"); err != nil {
		return nil, err
	}
	if err := checkIdentifier("label", label); err != nil {
		return nil, apperrors.NewStorageFailure("find nodes", err)
	}
	if err := checkIdentifier("property", key); err != nil {
		return nil, apperrors.NewStorageFailure("find nodes", err)
	}

	prefix := indexValuePrefix(label, key, value)
	pending := t.index[string(prefix)]

	var ids []NodeID
	committed := make(map[NodeID]bool)
	err := scanPrefix(t.txn, prefix, false, func(k, _ []byte) error {
		id := NodeID(bytes.TrimPrefix(k, prefix))
		committed[id] = true
		if present, ok := pending[id]; ok && !present {
			return nil
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, apperrors.NewStorageFailure("find nodes", err)
	}

	var added []NodeID
	for id, present := range pending {
		if present && !committed[id] {
			added = append(added, id)
		}
	}
	slices.SortFunc(added, func(a, b NodeID) int {
		return cmp.Compare(idSeq(a), idSeq(b))
	})
	return append(ids, added...), nil
}

func (t *badgerTx) CreateRelationship(ctx context.Context, from, to NodeID, relType string) (RelationshipID, error) {
	if err := t.check("create relationship"); err != nil {
		return "", err
	}
	if err := checkIdentifier("relationship type", relType); err != nil {
		return "", apperrors.NewStorageFailure("create relationship", err)
	}
	for _, id := range []NodeID{from, to} {
		if _, err := t.loadNode("create relationship", id); err != nil {
			return "", err
		}
	}

	seq, err := t.store.relSeq.Next()
	if err != nil {
		return "", apperrors.NewStorageFailure("create relationship", err)
	}
	id := RelationshipID(strconv.FormatUint(seq, 10))

	t.rels[id] = &relRecord{Type: relType, From: from, To: to, Properties: map[string]any{}}
	prefix := string(outTypePrefix(from, relType))
	t.out[prefix] = append(t.out[prefix], outEdge{seq: seq, id: id})
	return id, nil
}

func (t *badgerTx) SetRelationshipProperty(ctx context.Context, id RelationshipID, key string, value any) error {
	if err := t.check("set relationship property"); err != nil {
		return err
	}
	if err := checkIdentifier("property", key); err != nil {
		return apperrors.NewStorageFailure("set relationship property", err)
	}

	rec, err := t.loadRel("set relationship property", id)
	if err != nil {
		return err
	}
	rec.Properties[key] = value
	t.rels[id] = rec
	return nil
}

// OutgoingRelationships returns relationships in creation order
func (t *badgerTx) OutgoingRelationships(ctx context.Context, from NodeID, relType string) ([]Relationship, error) {
	if err := t.check("outgoing relationships"); err != nil {
		return nil, err
	}
	if err := checkIdentifier("relationship type", relType); err != nil {
		return nil, apperrors.NewStorageFailure("outgoing relationships", err)
	}

	prefix := outTypePrefix(from, relType)
	var relIDs []RelationshipID
	err := scanPrefix(t.txn, prefix, true, func(_, val []byte) error {
		relIDs = append(relIDs, RelationshipID(val))
		return nil
	})
	if err != nil {
		return nil, apperrors.NewStorageFailure("outgoing relationships", err)
	}
	for _, e := range t.out[string(prefix)] {
		relIDs = append(relIDs, e.id)
	}

	rels := make([]Relationship, 0, len(relIDs))
	for _, id := range relIDs {
		rec, err := t.loadRel("outgoing relationships", id)
		if err != nil {
			return nil, err
		}
		rels = append(rels, Relationship{
			ID:         id,
			Type:       rec.Type,
			From:       rec.From,
			To:         rec.To,
			Properties: normalizeProperties(rec.Properties),
		})
	}
	return rels, nil
}

// TraverseOutgoing follows the first outgoing relType relationship of each
// node and stops at a node without one or at a node already visited.
func (t *badgerTx) TraverseOutgoing(ctx context.Context, start NodeID, relType string) ([]Node, error) {
	if err := t.check("traverse"); err != nil {
		return nil, err
	}

	var chain []Node
	visited := make(map[NodeID]bool)
	current := start
	for !visited[current] {
		visited[current] = true

		n, err := t.Node(ctx, current)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *n)

		rels, err := t.OutgoingRelationships(ctx, current, relType)
		if err != nil {
			return nil, err
		}
		if len(rels) == 0 {
			break
		}
		current = rels[0].To
	}
	return chain, nil
}

// flush writes the buffered records into the Badger transaction
func (t *badgerTx) flush() error {
	for id, rec := range t.nodes {
		if err := t.setJSON(nodeKey(id), rec); err != nil {
			return err
		}
	}
	for prefix, entries := range t.index {
		for id, present := range entries {
			key := append([]byte(prefix), string(id)...)
			var err error
			if present {
				err = t.txn.Set(key, nil)
			} else {
				err = t.txn.Delete(key)
			}
			if err != nil {
				return err
			}
		}
	}
	for id, rec := range t.rels {
		if err := t.setJSON(relKey(id), rec); err != nil {
			return err
		}
	}
	for _, edges := range t.out {
		for _, e := range edges {
			rec := t.rels[e.id]
			if err := t.txn.Set(outKey(rec.From, rec.Type, e.seq), []byte(e.id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *badgerTx) Commit(ctx context.Context) error {
	if err := t.check("commit"); err != nil {
		return err
	}
	t.done = true
	defer t.txn.Discard()

	if err := t.flush(); err != nil {
		if errors.Is(err, badger.ErrTxnTooBig) {
			err = fmt.Errorf("%w: %d nodes and %d relationships do not fit into one transaction, raise the memtable size",
				err, len(t.nodes), len(t.rels))
		}
		return apperrors.NewStorageFailure("commit", err)
	}
	if err := t.txn.Commit(); err != nil {
		return apperrors.NewStorageFailure("commit", err)
	}
	t.store.logger.Debug("Badger transaction committed",
		zap.Int("nodes", len(t.nodes)),
		zap.Int("relationships", len(t.rels)))
	return nil
}

func (t *badgerTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.txn.Discard()
	return nil
}
