package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/constants"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/gedcom"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/graph"
	apperrors "github.com/ambled/genealogy-neo4j-import/backend/pkg/errors"
	"github.com/ambled/genealogy-neo4j-import/backend/pkg/logger"
)

// Options configures an Importer
type Options struct {
	// Locale selects the event type labels, "en" or "nb". Empty means "en".
	Locale string
	// DryRun builds the whole graph and then rolls the transaction back.
	DryRun bool
	// Logger defaults to the global logger.
	Logger *zap.Logger
}

// Result describes what one import wrote
type Result struct {
	RunID          string        `json:"run_id"`
	DryRun         bool          `json:"dry_run"`
	Families       int           `json:"families"`
	PersonsCreated int           `json:"persons_created"`
	PersonsReused  int           `json:"persons_reused"`
	SourcesCreated int           `json:"sources_created"`
	SourcesReused  int           `json:"sources_reused"`
	PlacesCreated  int           `json:"places_created"`
	PlacesReused   int           `json:"places_reused"`
	Events         int           `json:"events"`
	Relationships  int           `json:"relationships"`
	Duration       time.Duration `json:"duration"`
}

// Importer writes decoded GEDCOM trees into a graph store
type Importer struct {
	store  graph.Store
	types  EventTypes
	dryRun bool
	logger *zap.Logger
}

// New creates an Importer for store
func New(store graph.Store, opts Options) (*Importer, error) {
	types, err := EventTypesFor(opts.Locale)
	if err != nil {
		return nil, apperrors.NewConfigValidationFailed("locale", err.Error())
	}
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	return &Importer{
		store:  store,
		types:  types,
		dryRun: opts.DryRun,
		logger: log,
	}, nil
}

// run holds the state of a single Import call
type run struct {
	tx     graph.Tx
	types  EventTypes
	log    *zap.Logger
	result *Result
}

// Import writes every family of tree, in file order, inside one transaction.
// Either the whole tree is committed or nothing is: any error rolls back
// every write made so far.
func (im *Importer) Import(ctx context.Context, tree *gedcom.Tree) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.NewString(), DryRun: im.dryRun}
	log := im.logger.With(zap.String("run_id", result.RunID))

	log.Info("Starting import",
		zap.Int("families", len(tree.Families)),
		zap.String("locale", im.types.Locale()),
		zap.Bool("dry_run", im.dryRun))

	tx, err := im.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
			log.Error("Rollback failed", zap.Error(err))
		}
	}()

	r := &run{tx: tx, types: im.types, log: log, result: result}
	for i, family := range tree.Families {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewContextCancelled("import", err)
		}
		if err := r.importFamily(ctx, family); err != nil {
			log.Warn("Import failed, rolling back",
				zap.Int("family_index", i),
				zap.String("family", family.Xref),
				zap.Error(err))
			return nil, fmt.Errorf("family %s: %w", family.Xref, err)
		}
	}

	if im.dryRun {
		result.Duration = time.Since(start)
		log.Info("Dry run finished, discarding changes", zap.Duration("duration", result.Duration))
		return result, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true
	result.Duration = time.Since(start)

	log.Info("Import committed",
		zap.Int("families", result.Families),
		zap.Int("persons_created", result.PersonsCreated),
		zap.Int("persons_reused", result.PersonsReused),
		zap.Int("events", result.Events),
		zap.Int("relationships", result.Relationships),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// importFamily always creates a new Family node, even when a Family with
// the same id already exists in the store.
func (r *run) importFamily(ctx context.Context, f *gedcom.Family) error {
	familyID, err := makeID("family", f.Xref)
	if err != nil {
		return err
	}

	node, err := r.tx.CreateNode(ctx, constants.LabelFamily)
	if err != nil {
		return err
	}
	if err := r.tx.SetNodeProperty(ctx, node, constants.PropID, familyID); err != nil {
		return err
	}
	r.result.Families++
	r.log.Info("Importing family", zap.String("family_id", familyID))

	mother, err := r.linkMember(ctx, node, f.Wife, constants.RelSpouseWife)
	if err != nil {
		return err
	}
	father, err := r.linkMember(ctx, node, f.Husband, constants.RelSpouseHusband)
	if err != nil {
		return err
	}

	for _, c := range f.Children {
		child, err := r.linkMember(ctx, node, c, constants.RelChild)
		if err != nil {
			return err
		}
		if err := r.linkParent(ctx, child, mother, constants.RelMother, familyID); err != nil {
			return err
		}
		if err := r.linkParent(ctx, child, father, constants.RelFather, familyID); err != nil {
			return err
		}
	}

	return r.attachEvents(ctx, node, f.Events)
}

// linkMember resolves ind and links it from the family. A nil ind is skipped
// and yields an empty id.
func (r *run) linkMember(ctx context.Context, family graph.NodeID, ind *gedcom.Individual, relType string) (graph.NodeID, error) {
	if ind == nil {
		return "", nil
	}
	person, err := r.resolvePerson(ctx, ind)
	if err != nil {
		return "", err
	}
	if err := r.relate(ctx, family, person, relType); err != nil {
		return "", err
	}
	return person, nil
}

// linkParent adds a child to parent relationship tagged with the family it
// came from, so a child listed in two families gets one edge per family.
func (r *run) linkParent(ctx context.Context, child, parent graph.NodeID, relType, familyID string) error {
	if parent == "" {
		return nil
	}
	rel, err := r.tx.CreateRelationship(ctx, child, parent, relType)
	if err != nil {
		return err
	}
	r.result.Relationships++
	return r.tx.SetRelationshipProperty(ctx, rel, constants.PropFamily, familyID)
}

func (r *run) relate(ctx context.Context, from, to graph.NodeID, relType string) error {
	if _, err := r.tx.CreateRelationship(ctx, from, to, relType); err != nil {
		return err
	}
	r.result.Relationships++
	return nil
}
