package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/app"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/gedcom"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/graph"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/importer"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/source"
	"github.com/ambled/genealogy-neo4j-import/backend/pkg/config"
	apperrors "github.com/ambled/genealogy-neo4j-import/backend/pkg/errors"
)

// importHandler runs imports one at a time against a shared store
type importHandler struct {
	store  graph.Store
	loader *source.Loader
	cfg    *config.Config
	log    *zap.Logger
	sem    *semaphore.Weighted
}

func newImportHandler(store graph.Store, loader *source.Loader, cfg *config.Config, log *zap.Logger) *importHandler {
	return &importHandler{
		store:  store,
		loader: loader,
		cfg:    cfg,
		log:    log,
		sem:    semaphore.NewWeighted(1),
	}
}

type importRequest struct {
	URI    string `json:"uri" binding:"required"`
	DryRun *bool  `json:"dry_run"`
	Locale string `json:"locale"`
}

func newRouter(h *importHandler, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/imports", h.createImport)
		api.GET("/stats", h.stats)
	}

	return router
}

func (h *importHandler) createImport(c *gin.Context) {
	ctx := c.Request.Context()

	opts := importer.Options{
		Locale: h.cfg.Locale,
		DryRun: h.cfg.DryRun,
		Logger: h.log,
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart upload needs a file field"})
			return
		}
		if v := c.PostForm("dry_run"); v != "" {
			dryRun, err := strconv.ParseBool(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "dry_run must be a boolean"})
				return
			}
			opts.DryRun = dryRun
		}
		if v := c.PostForm("locale"); v != "" {
			opts.Locale = v
		}

		if !h.sem.TryAcquire(1) {
			c.JSON(http.StatusConflict, gin.H{"error": "an import is already running"})
			return
		}
		defer h.sem.Release(1)

		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
			return
		}
		defer f.Close()

		h.log.Info("Importing upload", zap.String("filename", file.Filename), zap.Int64("size", file.Size))
		result, err := app.Import(ctx, h.store, f, opts)
		h.respond(c, result, err)
		return
	}

	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.DryRun != nil {
		opts.DryRun = *req.DryRun
	}
	if req.Locale != "" {
		opts.Locale = req.Locale
	}
	// local paths are for the CLI only
	if _, _, err := source.ParseS3URI(req.URI); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uri must be an s3://bucket/key object"})
		return
	}

	if !h.sem.TryAcquire(1) {
		c.JSON(http.StatusConflict, gin.H{"error": "an import is already running"})
		return
	}
	defer h.sem.Release(1)

	h.log.Info("Importing from uri", zap.String("uri", req.URI))
	result, err := app.ImportURI(ctx, h.store, h.loader, req.URI, opts)
	h.respond(c, result, err)
}

func (h *importHandler) stats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to collect stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to collect stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *importHandler) respond(c *gin.Context, result *importer.Result, err error) {
	if err == nil {
		c.JSON(http.StatusOK, result)
		return
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Import failed", zap.Error(err))
	} else {
		h.log.Warn("Import rejected", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, errorBody(err, status))
}

// statusFor maps an import error onto an HTTP status
func statusFor(err error) int {
	var syntaxErr *gedcom.SyntaxError
	switch {
	case errors.As(err, &syntaxErr), apperrors.IsErrorType(err, apperrors.ErrorTypeRecord):
		return http.StatusUnprocessableEntity
	case apperrors.IsErrorType(err, apperrors.ErrorTypeSource):
		return http.StatusBadGateway
	case apperrors.IsErrorType(err, apperrors.ErrorTypeConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the client-facing error. Error texts can quote input
// lines, so they only go to the log.
func errorBody(err error, status int) gin.H {
	switch status {
	case http.StatusUnprocessableEntity:
		var syntaxErr *gedcom.SyntaxError
		if errors.As(err, &syntaxErr) {
			return gin.H{"error": "Invalid GEDCOM input", "line": syntaxErr.Line}
		}
		return gin.H{"error": "Malformed record in GEDCOM input"}
	case http.StatusBadGateway:
		return gin.H{"error": "Failed to fetch input"}
	case http.StatusBadRequest:
		return gin.H{"error": "Invalid import options"}
	default:
		return gin.H{"error": "Import failed"}
	}
}
