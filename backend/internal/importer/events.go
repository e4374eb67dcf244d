package importer

import (
	"context"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/constants"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/gedcom"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/graph"
)

// buildEvent creates a new Event node for e. Events are never shared, so two
// identical births produce two nodes.
func (r *run) buildEvent(ctx context.Context, e *gedcom.Event) (graph.NodeID, error) {
	node, err := r.tx.CreateNode(ctx, constants.LabelEvent)
	if err != nil {
		return "", err
	}
	r.result.Events++

	if err := r.tx.SetNodeProperty(ctx, node, constants.PropType, r.types.Label(e.Tag)); err != nil {
		return "", err
	}
	if e.Date != "" {
		if err := r.tx.SetNodeProperty(ctx, node, constants.PropDate, e.Date); err != nil {
			return "", err
		}
	}
	if e.Place != "" {
		place, err := r.resolvePlace(ctx, e.Place)
		if err != nil {
			return "", err
		}
		if err := r.relate(ctx, node, place, constants.RelPlace); err != nil {
			return "", err
		}
	}
	if e.Description != "" {
		if err := r.tx.SetNodeProperty(ctx, node, constants.PropDescription, e.Description); err != nil {
			return "", err
		}
	}
	if err := r.addNotes(ctx, node, e.Notes); err != nil {
		return "", err
	}
	if err := r.addCitations(ctx, node, e.Citations, constants.RelCitation); err != nil {
		return "", err
	}
	return node, nil
}

// attachEvents builds every event and links it from owner
func (r *run) attachEvents(ctx context.Context, owner graph.NodeID, events []*gedcom.Event) error {
	for _, e := range events {
		event, err := r.buildEvent(ctx, e)
		if err != nil {
			return err
		}
		if err := r.relate(ctx, owner, event, constants.RelEvent); err != nil {
			return err
		}
	}
	return nil
}
