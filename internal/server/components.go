// Package server wires the OCR pipeline from configuration and hosts the
// daemon's background jobs.
package server

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/medflow/ocr-service/internal/async"
	"github.com/medflow/ocr-service/internal/common"
	"github.com/medflow/ocr-service/internal/core"
	"github.com/medflow/ocr-service/internal/export"
	"github.com/medflow/ocr-service/internal/ingest"
	"github.com/medflow/ocr-service/internal/medflow"
	"github.com/medflow/ocr-service/internal/metrics"
	"github.com/medflow/ocr-service/internal/ocr"
	repo "github.com/medflow/ocr-service/internal/repository"
	"github.com/medflow/ocr-service/internal/thumbnail"
)

// Components is the fully wired service.
type Components struct {
	Config     *common.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Engine     *ocr.LazyEngine
	Thumbnails *thumbnail.Cache
	Processor  *core.Processor
	Scanner    *ingest.Scanner
	DB         *sql.DB
	Batches    repo.BatchRepository
	Results    repo.ResultRepository
	Runner     *async.BatchRunner
	Export     *export.Service
	Backend    *medflow.Client
}

// NewEngine returns the configured OCR engine behind lazy initialization.
func NewEngine(cfg common.OCRConfig, logger *zap.Logger) *ocr.LazyEngine {
	ec := ocr.EngineConfig{
		Lang:        cfg.Lang,
		UseGPU:      cfg.UseGPU,
		TessdataDir: cfg.TessdataDir,
		Binary:      cfg.TesseractBin,
	}
	return ocr.NewLazyEngine(func() (ocr.Engine, error) {
		if cfg.Engine == "tesseract-cli" {
			return ocr.NewCLIEngine(ec, nil, logger), nil
		}
		return ocr.NewGosseractEngine(ec, logger)
	}, logger)
}

// NewProcessor builds the single-file pipeline without any storage.
func NewProcessor(cfg *common.Config, m *metrics.Metrics, logger *zap.Logger) (*core.Processor, *ocr.LazyEngine, *thumbnail.Cache) {
	engine := NewEngine(cfg.OCR, logger)
	extractor := ocr.NewExtractor(engine, logger)
	thumbs := thumbnail.NewCache(cfg.Thumbnail.CacheDir, cfg.Thumbnail.Sizes, logger,
		thumbnail.WithPDFExtensions(cfg.Supported.PDFTypes),
		thumbnail.WithMetrics(m),
	)
	proc := core.NewProcessor(logger, cfg.ExtensionSets(), extractor, thumbs, m, cfg.OCR.ConfidenceThreshold)
	return proc, engine, thumbs
}

// Build wires every component and opens the database.
func Build(ctx context.Context, cfg *common.Config, logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := metrics.New()
	proc, engine, thumbs := NewProcessor(cfg, m, logger)

	db, err := ConnectDB(ctx, cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}
	batches := repo.NewBatchRepository(db, logger)
	results := repo.NewResultRepository(db, logger)
	scanner := ingest.NewScanner(cfg.ExtensionSets(), logger)

	return &Components{
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
		Engine:     engine,
		Thumbnails: thumbs,
		Processor:  proc,
		Scanner:    scanner,
		DB:         db,
		Batches:    batches,
		Results:    results,
		Runner: async.NewBatchRunner(scanner, proc, batches, results, logger,
			async.WithBatchWorkers(cfg.Batch.Workers),
			async.WithResultTTL(cfg.Batch.ResultTTL),
			async.WithBatchMetrics(m),
		),
		Export: export.NewService(results, cfg.OCR.ConfidenceThreshold, logger),
		Backend: medflow.NewClient(medflow.Config{
			BackendURL:       cfg.MedFlow.BackendURL,
			Timeout:          cfg.MedFlow.Timeout,
			RequestsPerSec:   cfg.MedFlow.RequestsPerSec,
			BreakerFailures:  cfg.MedFlow.BreakerFailures,
			BreakerOpenDelay: cfg.MedFlow.BreakerOpenDelay,
		}, logger, medflow.WithMetrics(m)),
	}, nil
}

// Close stops background batches and releases the engine and database.
func (c *Components) Close(ctx context.Context) {
	c.Runner.Shutdown(ctx)
	if err := c.Engine.Close(); err != nil {
		c.Logger.Warn("ocr engine close failed", zap.Error(err))
	}
	repo.Close(c.DB, c.Logger)
}
