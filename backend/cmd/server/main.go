package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/app"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/graph"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/source"
	"github.com/ambled/genealogy-neo4j-import/backend/pkg/config"
	"github.com/ambled/genealogy-neo4j-import/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load(viper.New(), os.Getenv("GEDIMPORT_CONFIG"))
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting import server...", zap.String("store", cfg.StoreDriver))

	if err := run(cfg, log); err != nil {
		log.Error("Server failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, err := source.NewLoader(ctx, source.S3Params{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return err
	}

	return app.WithStore(ctx, cfg, func(store graph.Store) error {
		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}
		router := newRouter(newImportHandler(store, loader, cfg, log), log)

		srv := &http.Server{
			Addr:    ":" + cfg.Port,
			Handler: router,
		}

		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
			close(errCh)
		}()

		log.Info("Server started", zap.String("port", cfg.Port))

		select {
		case err := <-errCh:
			return fmt.Errorf("failed to start server: %w", err)
		case <-ctx.Done():
		}

		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
		}

		log.Info("Server exited")
		return nil
	})
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
