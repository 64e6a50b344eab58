package ocr

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Line is one detected text line with its confidence in 0..1.
type Line struct {
	Text       string
	Confidence float64
}

// Engine recognizes text lines in an encoded image (PNG, JPEG, TIFF, BMP).
type Engine interface {
	Recognize(ctx context.Context, img []byte) ([]Line, error)
	Close() error
}

// EngineFactory builds the underlying engine. It may be slow (model load).
type EngineFactory func() (Engine, error)

// LazyEngine defers engine construction to the first Recognize call and
// serializes access, since tesseract handles are not goroutine-safe.
// A failed construction is retried on the next call.
type LazyEngine struct {
	factory EngineFactory
	logger  *zap.Logger

	mu     sync.Mutex
	engine Engine
}

func NewLazyEngine(factory EngineFactory, logger *zap.Logger) *LazyEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LazyEngine{factory: factory, logger: logger}
}

// ensureInitialized must be called with mu held.
func (l *LazyEngine) ensureInitialized() (Engine, error) {
	if l.engine != nil {
		return l.engine, nil
	}
	l.logger.Info("ocr.engine.init")
	e, err := l.factory()
	if err != nil {
		l.logger.Error("ocr.engine.init_failed", zap.Error(err))
		return nil, err
	}
	l.engine = e
	return e, nil
}

// Warm initializes the engine ahead of the first request.
func (l *LazyEngine) Warm() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.ensureInitialized()
	return err
}

// Ready reports whether the engine has been initialized.
func (l *LazyEngine) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine != nil
}

func (l *LazyEngine) Recognize(ctx context.Context, img []byte) ([]Line, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, err := l.ensureInitialized()
	if err != nil {
		return nil, err
	}
	return e.Recognize(ctx, img)
}

func (l *LazyEngine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.engine == nil {
		return nil
	}
	err := l.engine.Close()
	l.engine = nil
	return err
}
