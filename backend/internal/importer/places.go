package importer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/constants"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/graph"
)

// resolvePlace returns the Place node for a comma separated place name such
// as "Oslo, Norway". An existing node is reused only when its whole CONTAINS
// chain matches every segment; otherwise a new chain head is created and the
// remaining segments are resolved the same way.
func (r *run) resolvePlace(ctx context.Context, placeName string) (graph.NodeID, error) {
	return r.resolvePlaceChain(ctx, strings.Split(placeName, constants.PlaceDelimiter))
}

func (r *run) resolvePlaceChain(ctx context.Context, segments []string) (graph.NodeID, error) {
	candidates, err := r.tx.FindNodes(ctx, constants.LabelPlace, constants.PropName, segments[0])
	if err != nil {
		return "", err
	}
	for _, candidate := range candidates {
		chain, err := r.tx.TraverseOutgoing(ctx, candidate, constants.RelContains)
		if err != nil {
			return "", err
		}
		if chainMatches(chain, segments) {
			r.result.PlacesReused++
			return candidate, nil
		}
	}

	node, err := r.tx.CreateNode(ctx, constants.LabelPlace)
	if err != nil {
		return "", err
	}
	if err := r.tx.SetNodeProperty(ctx, node, constants.PropName, segments[0]); err != nil {
		return "", err
	}
	r.result.PlacesCreated++
	r.log.Debug("Created place", zap.String("place", segments[0]), zap.Int("depth", len(segments)))

	if len(segments) > 1 {
		parent, err := r.resolvePlaceChain(ctx, segments[1:])
		if err != nil {
			return "", err
		}
		if err := r.relate(ctx, node, parent, constants.RelContains); err != nil {
			return "", err
		}
	}
	return node, nil
}

// chainMatches reports whether the names along chain equal segments exactly,
// with no extra nodes on either side.
func chainMatches(chain []graph.Node, segments []string) bool {
	if len(chain) != len(segments) {
		return false
	}
	for i := range chain {
		if graph.GetString(&chain[i], constants.PropName) != segments[i] {
			return false
		}
	}
	return true
}
