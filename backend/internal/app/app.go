package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/constants"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/gedcom"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/graph"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/importer"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/metrics"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/source"
	"github.com/ambled/genealogy-neo4j-import/backend/pkg/config"
	apperrors "github.com/ambled/genealogy-neo4j-import/backend/pkg/errors"
	"github.com/ambled/genealogy-neo4j-import/backend/pkg/logger"
)

// schemaStore is implemented by stores that need explicit index creation
type schemaStore interface {
	EnsureSchema(ctx context.Context, indexes []graph.IndexSpec) error
}

// IndexSpecs lists the indexes backing the importer's key lookups
func IndexSpecs() []graph.IndexSpec {
	return []graph.IndexSpec{
		{Label: constants.LabelPerson, Property: constants.PropID},
		{Label: constants.LabelSource, Property: constants.PropID},
		{Label: constants.LabelFamily, Property: constants.PropID},
		{Label: constants.LabelPlace, Property: constants.PropName},
	}
}

// OpenStore opens the store selected by cfg.StoreDriver
func OpenStore(ctx context.Context, cfg *config.Config) (graph.Store, error) {
	log := logger.Get()

	switch cfg.StoreDriver {
	case config.StoreBadger:
		var opts []graph.BadgerOption
		if cfg.BadgerMemTableMB > 0 {
			opts = append(opts, graph.WithMemTableSize(int64(cfg.BadgerMemTableMB)<<20))
		}
		return graph.OpenBadgerStore(cfg.BadgerPath, opts...)

	case config.StoreNeo4j:
		driver, err := neo4j.NewDriverWithContext(
			cfg.Neo4jURI,
			neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
		)
		if err != nil {
			return nil, apperrors.NewStorageFailure("create neo4j driver", err)
		}
		if err := driver.VerifyConnectivity(ctx); err != nil {
			_ = driver.Close(context.WithoutCancel(ctx))
			return nil, apperrors.NewStorageFailure("verify neo4j connectivity", err)
		}
		log.Info("Connected to Neo4j",
			zap.String("uri", cfg.Neo4jURI),
			zap.String("database", cfg.Neo4jDatabase),
		)

		store := graph.NewNeo4jStore(driver, cfg.Neo4jDatabase)
		if cfg.EnsureSchema {
			if err := store.EnsureSchema(ctx, IndexSpecs()); err != nil {
				_ = store.Close(context.WithoutCancel(ctx))
				return nil, err
			}
		}
		return store, nil

	default:
		return nil, apperrors.NewConfigValidationFailed("STORE_DRIVER", fmt.Sprintf("unknown driver %q", cfg.StoreDriver))
	}
}

// WithStore opens the configured store, hands it to fn and closes it on
// every return path, panics included.
func WithStore(ctx context.Context, cfg *config.Config, fn func(graph.Store) error) (err error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.Get().Error("Failed to close store", zap.Error(closeErr))
			if err == nil {
				err = closeErr
			}
		}
	}()

	return fn(store)
}

// Migrate creates the lookup indexes when the store needs them
func Migrate(ctx context.Context, store graph.Store) error {
	s, ok := store.(schemaStore)
	if !ok {
		logger.Get().Info("Store maintains its own indexes, nothing to migrate")
		return nil
	}
	return s.EnsureSchema(ctx, IndexSpecs())
}

// Import decodes a GEDCOM stream and imports it into store
func Import(ctx context.Context, store graph.Store, r io.Reader, opts importer.Options) (*importer.Result, error) {
	start := time.Now()
	metrics.ImportStarted()

	result, err := decodeAndImport(ctx, store, r, opts)
	metrics.ImportFinished(result, err, time.Since(start))
	return result, err
}

// ImportURI opens uri with loader and imports it into store
func ImportURI(ctx context.Context, store graph.Store, loader *source.Loader, uri string, opts importer.Options) (*importer.Result, error) {
	rc, err := loader.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return Import(ctx, store, rc, opts)
}

func decodeAndImport(ctx context.Context, store graph.Store, r io.Reader, opts importer.Options) (*importer.Result, error) {
	tree, err := gedcom.NewDecoder(r).Decode()
	if err != nil {
		return nil, err
	}

	im, err := importer.New(store, opts)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, tree)
}
