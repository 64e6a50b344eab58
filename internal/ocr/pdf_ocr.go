package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/medflow/ocr-service/internal/patientinfo"
)

// RenderDPI rasterizes pages at 2x the 72 DPI PDF user space.
const RenderDPI = 144

// Document-level confidence for PDFs.
const (
	pdfEmbeddedConfidence = 1.0
	pdfScannedConfidence  = 0.8
)

// PDFDocument is the subset of a go-fitz document the pipeline uses.
type PDFDocument interface {
	NumPage() int
	Text(pageNumber int) (string, error)
	ImageDPI(pageNumber int, dpi float64) (*image.RGBA, error)
	Close() error
}

type PDFOpener func(path string) (PDFDocument, error)

// OpenPDF opens a document with MuPDF.
func OpenPDF(path string) (PDFDocument, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ExtractPDF takes embedded text per page and falls back to OCR of the
// rendered page when a page has none. Confidence is 1.0 when any page had
// embedded text, else 0.8.
func (e *Extractor) ExtractPDF(ctx context.Context, path string) Extraction {
	doc, err := e.openPDF(path)
	if err != nil {
		return e.fail("pdf", path, err)
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			e.logger.Warn("ocr.pdf.close_failed", zap.String("path", path), zap.Error(cerr))
		}
	}()

	var (
		parts    []string
		embedded bool
		ocrPages int
	)
	pages := doc.NumPage()
	for i := 0; i < pages; i++ {
		text, err := doc.Text(i)
		if err != nil {
			return e.fail("pdf", path, fmt.Errorf("page %d text: %w", i, err))
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
			embedded = true
			continue
		}

		lines, err := e.ocrPage(ctx, doc, i)
		if err != nil {
			return e.fail("pdf", path, fmt.Errorf("page %d ocr: %w", i, err))
		}
		for _, l := range lines {
			parts = append(parts, l.Text)
		}
		ocrPages++
	}

	full := strings.Join(parts, "\n")
	conf := pdfScannedConfidence
	if embedded {
		conf = pdfEmbeddedConfidence
	}
	return Extraction{
		Text:       full,
		Confidence: conf,
		Info:       patientinfo.ExtractFromText(full),
		Method:     pdfMethod(embedded, ocrPages),
		Pages:      pages,
	}
}

func (e *Extractor) ocrPage(ctx context.Context, doc PDFDocument, page int) ([]Line, error) {
	img, err := doc.ImageDPI(page, e.renderDPI)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return e.engine.Recognize(ctx, buf.Bytes())
}

func pdfMethod(embedded bool, ocrPages int) string {
	switch {
	case embedded && ocrPages > 0:
		return "pdf-mixed"
	case embedded:
		return "pdf-text"
	default:
		return "pdf-ocr"
	}
}
