package importer

import (
	"context"
	"strings"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/constants"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/gedcom"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/graph"
	apperrors "github.com/ambled/genealogy-neo4j-import/backend/pkg/errors"
)

// addNotes stores one summary string per note. Nothing is written when
// there are no notes.
func (r *run) addNotes(ctx context.Context, node graph.NodeID, notes []*gedcom.Note) error {
	if len(notes) == 0 {
		return nil
	}
	summaries := make([]string, 0, len(notes))
	for _, n := range notes {
		summaries = append(summaries, strings.Join(n.Lines, " "))
	}
	return r.tx.SetNodeProperty(ctx, node, constants.PropNotes, summaries)
}

// addCitations links node to the cited Source of every citation, creating
// the Source on first use.
func (r *run) addCitations(ctx context.Context, node graph.NodeID, citations []*gedcom.Citation, relType string) error {
	for _, c := range citations {
		if c.Source == nil {
			return apperrors.NewMalformedRecord("citation", "", "citation has no source pointer")
		}
		sourceID, err := makeID("source", c.Source.Xref)
		if err != nil {
			return err
		}
		source, created, err := fetchOrCreate(ctx, r, constants.LabelSource, constants.PropID, sourceID, c.Source, r.populateSource)
		if err != nil {
			return err
		}
		if created {
			r.result.SourcesCreated++
		} else {
			r.result.SourcesReused++
		}

		rel, err := r.tx.CreateRelationship(ctx, node, source, relType)
		if err != nil {
			return err
		}
		r.result.Relationships++

		if c.Locator != "" {
			if err := r.tx.SetRelationshipProperty(ctx, rel, constants.PropLocator, c.Locator); err != nil {
				return err
			}
		}
		if c.Certainty != "" {
			if err := r.tx.SetRelationshipProperty(ctx, rel, constants.PropCertainty, c.Certainty); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) populateSource(ctx context.Context, node graph.NodeID, s *gedcom.Source) error {
	title := s.Title
	if title == nil {
		title = []string{}
	}
	if err := r.tx.SetNodeProperty(ctx, node, constants.PropTitle, title); err != nil {
		return err
	}
	if len(s.PublicationFacts) > 0 {
		if err := r.tx.SetNodeProperty(ctx, node, constants.PropPublicationFacts, s.PublicationFacts); err != nil {
			return err
		}
	}
	if len(s.Authors) > 0 {
		if err := r.tx.SetNodeProperty(ctx, node, constants.PropAuthor, s.Authors); err != nil {
			return err
		}
	}
	return r.addNotes(ctx, node, s.Notes)
}
