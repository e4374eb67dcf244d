package importer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/graph"
	apperrors "github.com/ambled/genealogy-neo4j-import/backend/pkg/errors"
)

// populator fills in a freshly created node from its source record
type populator[T any] func(ctx context.Context, node graph.NodeID, from T) error

// fetchOrCreate returns the node with label whose key property equals value,
// creating and populating it when none exists. When several nodes match the
// first one found wins. The bool reports whether the node was created.
func fetchOrCreate[T any](ctx context.Context, r *run, label, key, value string, from T, populate populator[T]) (graph.NodeID, bool, error) {
	existing, err := r.tx.FindNodes(ctx, label, key, value)
	if err != nil {
		return "", false, err
	}
	if len(existing) > 0 {
		if len(existing) > 1 {
			r.log.Warn("Multiple nodes share a key, using the first",
				zap.String("label", label),
				zap.String(key, value),
				zap.Int("count", len(existing)))
		}
		return existing[0], false, nil
	}

	node, err := r.tx.CreateNode(ctx, label)
	if err != nil {
		return "", false, err
	}
	if err := r.tx.SetNodeProperty(ctx, node, key, value); err != nil {
		return "", false, err
	}
	if err := populate(ctx, node, from); err != nil {
		return "", false, err
	}

	r.log.Debug("Created node", zap.String("label", label), zap.String(key, value))
	return node, true, nil
}

// makeID turns a GEDCOM cross-reference such as "@I1@" into the stable id
// stored on the node. Surrounding whitespace is ignored; a value that is not
// an @-delimited pointer, or is empty once the delimiters are stripped, is a
// malformed record.
func makeID(recordType, xref string) (string, error) {
	ref := strings.TrimSpace(xref)
	if len(ref) < 2 || !strings.HasPrefix(ref, "@") || !strings.HasSuffix(ref, "@") {
		return "", apperrors.NewMalformedRecord(recordType, xref, "not a cross-reference pointer")
	}
	id := strings.ReplaceAll(ref, "@", "")
	if id == "" {
		return "", apperrors.NewMalformedRecord(recordType, xref, "empty cross-reference")
	}
	return id, nil
}
