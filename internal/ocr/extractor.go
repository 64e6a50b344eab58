package ocr

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/medflow/ocr-service/constants"
	"github.com/medflow/ocr-service/internal/common"
	"github.com/medflow/ocr-service/internal/entity"
)

// Extraction is what a format extractor produced. Err holds the logged
// extraction failure, if any; Text, Confidence and Info are then empty.
type Extraction struct {
	Text       string
	Confidence float64
	Info       *entity.ExtractedPatientInfo
	Method     string // "image-ocr" | "pdf-text" | "pdf-ocr" | "pdf-mixed" | "dicom-header"
	Pages      int
	Duration   time.Duration
	Err        error
}

// Extractor routes a classified file to its format extractor. It never
// returns an error: capability failures become an empty Extraction.
type Extractor struct {
	engine    Engine
	openPDF   PDFOpener
	readDICOM HeaderReader
	renderDPI float64
	logger    *zap.Logger
}

type Option func(*Extractor)

// WithPDFOpener replaces the go-fitz document opener.
func WithPDFOpener(open PDFOpener) Option {
	return func(e *Extractor) {
		if open != nil {
			e.openPDF = open
		}
	}
}

// WithDICOMReader replaces the DICOM header reader.
func WithDICOMReader(read HeaderReader) Option {
	return func(e *Extractor) {
		if read != nil {
			e.readDICOM = read
		}
	}
}

// WithRenderDPI sets the rasterization DPI for scanned PDF pages (default 144, i.e. 2x).
func WithRenderDPI(dpi float64) Option {
	return func(e *Extractor) {
		if dpi > 0 {
			e.renderDPI = dpi
		}
	}
}

func NewExtractor(engine Engine, logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		engine:    engine,
		openPDF:   OpenPDF,
		readDICOM: ReadDICOMHeader,
		renderDPI: RenderDPI,
		logger:    logger,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract picks the extractor for an already classified file.
func (e *Extractor) Extract(ctx context.Context, path string, fileType constants.FileType) Extraction {
	start := time.Now()
	var res Extraction
	switch fileType {
	case constants.DICOM:
		res = e.ExtractDICOM(ctx, path)
	case constants.PDF:
		res = e.ExtractPDF(ctx, path)
	default:
		res = e.ExtractImage(ctx, path)
	}
	res.Duration = time.Since(start)
	e.logger.Debug("ocr.extract.done",
		zap.String("path", path),
		zap.String("file_type", string(fileType)),
		zap.String("method", res.Method),
		zap.Int("pages", res.Pages),
		zap.Float64("confidence", res.Confidence),
		zap.Int("text_bytes", len(res.Text)),
		zap.Duration("duration", res.Duration),
	)
	return res
}

// fail logs a capability failure and returns the empty extraction.
func (e *Extractor) fail(stage, path string, cause error) Extraction {
	err := common.NewExtractionFailure(stage, path, cause)
	e.logger.Error("ocr."+stage+".failed",
		zap.String("path", path),
		zap.String("code", err.Code),
		zap.Error(cause),
	)
	return Extraction{Err: err}
}
