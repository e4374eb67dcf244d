package importer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/constants"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/gedcom"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/graph"
)

// resolvePerson returns the Person node for ind, creating it on first use
func (r *run) resolvePerson(ctx context.Context, ind *gedcom.Individual) (graph.NodeID, error) {
	id, err := makeID("individual", ind.Xref)
	if err != nil {
		return "", err
	}
	node, created, err := fetchOrCreate(ctx, r, constants.LabelPerson, constants.PropID, id, ind, r.populatePerson)
	if err != nil {
		return "", err
	}
	if created {
		r.result.PersonsCreated++
	} else {
		r.result.PersonsReused++
		r.log.Debug("Reusing person", zap.String("person_id", id))
	}
	return node, nil
}

func (r *run) populatePerson(ctx context.Context, node graph.NodeID, ind *gedcom.Individual) error {
	names := make([]string, 0, len(ind.Names))
	for _, n := range ind.Names {
		names = append(names, strings.TrimSpace(n.Basic))
	}
	if err := r.tx.SetNodeProperty(ctx, node, constants.PropName, names); err != nil {
		return err
	}
	if ind.Sex != "" {
		if err := r.tx.SetNodeProperty(ctx, node, constants.PropSex, ind.Sex); err != nil {
			return err
		}
	}
	if err := r.addNotes(ctx, node, ind.Notes); err != nil {
		return err
	}
	if err := r.addCitations(ctx, node, ind.Citations, constants.RelCitation); err != nil {
		return err
	}
	if err := r.attachEvents(ctx, node, ind.Attributes); err != nil {
		return err
	}
	if err := r.attachEvents(ctx, node, ind.Events); err != nil {
		return err
	}
	for _, n := range ind.Names {
		if err := r.addCitations(ctx, node, n.Citations, constants.RelNameCitation); err != nil {
			return err
		}
	}
	return nil
}
