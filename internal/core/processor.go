package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medflow/ocr-service/constants"
	"github.com/medflow/ocr-service/internal/entity"
	"github.com/medflow/ocr-service/internal/metrics"
	"github.com/medflow/ocr-service/internal/ocr"
	"github.com/medflow/ocr-service/internal/patientinfo"
)

// ThumbnailSize is the size tag requested for result previews.
const ThumbnailSize = "medium"

// FormatExtractor runs the format-specific extractor for a classified file.
type FormatExtractor interface {
	Extract(ctx context.Context, path string, fileType constants.FileType) ocr.Extraction
}

// Thumbnailer returns a cached preview path, or false when none could be made.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, path, size string) (string, bool)
}

// Processor dispatches one file through extraction, filename parsing,
// info merge and thumbnailing.
type Processor struct {
	logger        *zap.Logger
	extensions    constants.ExtensionSets
	extractor     FormatExtractor
	thumbnails    Thumbnailer
	metrics       *metrics.Metrics
	minConfidence float64
	now           func() time.Time
}

func NewProcessor(
	logger *zap.Logger,
	extensions constants.ExtensionSets,
	extractor FormatExtractor,
	thumbnails Thumbnailer,
	m *metrics.Metrics,
	minConfidence float64,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minConfidence == 0 {
		minConfidence = 0.60
	}
	return &Processor{
		logger:        logger,
		extensions:    extensions,
		extractor:     extractor,
		thumbnails:    thumbnails,
		metrics:       m,
		minConfidence: minConfidence,
		now:           time.Now,
	}
}

// ProcessFile always returns a result. Error is set only when the file is
// missing or its extension is not supported; extraction failures produce a
// result with empty text and zero confidence instead.
func (p *Processor) ProcessFile(ctx context.Context, path string, device constants.DeviceType, extractThumbnail bool) *entity.OCRResult {
	start := time.Now()
	res := &entity.OCRResult{
		FilePath:    path,
		FileName:    filepath.Base(path),
		FileType:    constants.IMAGE,
		DeviceType:  device,
		ProcessedAt: p.now(),
	}

	fi, err := os.Stat(path)
	if err != nil {
		res.Error = fmt.Sprintf("File not found: %s", path)
		p.finish(res, start, metrics.OutcomeNotFound)
		p.logger.Warn("processor.not_found", zap.String("path", path), zap.Error(err))
		return res
	}
	res.FileSize = fi.Size()

	ext := strings.ToLower(filepath.Ext(path))
	fileType, ok := p.extensions.Classify(ext)
	if !ok {
		res.Error = fmt.Sprintf("Unsupported file type: %s", ext)
		p.finish(res, start, metrics.OutcomeUnsupported)
		p.logger.Warn("processor.unsupported", zap.String("path", path), zap.String("ext", ext))
		return res
	}
	res.FileType = fileType

	ex := p.extractor.Extract(ctx, path, fileType)
	if ex.Err != nil {
		p.metrics.ExtractionFailed(string(fileType))
	}
	res.OCRText = ex.Text
	res.OCRConfidence = ex.Confidence

	fromName := patientinfo.ParseFilename(res.FileName, device)
	res.ExtractedInfo = patientinfo.Merge(ex.Info, fromName)

	if extractThumbnail && fileType != constants.DICOM && p.thumbnails != nil {
		if thumb, ok := p.thumbnails.Thumbnail(ctx, path, ThumbnailSize); ok {
			res.ThumbnailPath = thumb
		}
	}

	outcome := metrics.OutcomeOK
	if ex.Err != nil || ex.Text == "" {
		outcome = metrics.OutcomeEmpty
	}
	p.finish(res, start, outcome)

	if ex.Err == nil && res.OCRConfidence < p.minConfidence {
		p.logger.Warn("processor.low_confidence",
			zap.String("path", path),
			zap.Float64("confidence", res.OCRConfidence),
			zap.Float64("threshold", p.minConfidence),
		)
	}
	p.logger.Info("processor.done",
		zap.String("path", path),
		zap.String("file_type", string(fileType)),
		zap.String("device", string(device)),
		zap.String("method", ex.Method),
		zap.Bool("patient_found", res.ExtractedInfo.Useful()),
		zap.Int64("duration_ms", res.ProcessingTimeMs),
	)
	return res
}

func (p *Processor) finish(res *entity.OCRResult, start time.Time, outcome string) {
	d := time.Since(start)
	res.ProcessingTimeMs = d.Milliseconds()
	p.metrics.FileProcessed(string(res.FileType), outcome, d)
}
