// Package thumbnail renders and caches JPEG previews of images and PDFs.
package thumbnail

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	// decoders registered for image.Decode
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/medflow/ocr-service/constants"
	"github.com/medflow/ocr-service/internal/common"
	"github.com/medflow/ocr-service/internal/metrics"
	"github.com/medflow/ocr-service/internal/ocr"
)

// DefaultSize is used for size tags missing from the configured table.
const DefaultSize = 720

const (
	jpegQuality = 85
	keyLen      = 10
)

// DefaultSizes mirrors the thumbnail.sizes config default.
var DefaultSizes = map[string]int{"small": 120, "medium": 720, "large": 1600}

type Option func(*Cache)

// WithPDFOpener swaps the MuPDF opener.
func WithPDFOpener(open ocr.PDFOpener) Option {
	return func(c *Cache) { c.openPDF = open }
}

// WithImageDecoder swaps the raster decoder.
func WithImageDecoder(decode func(path string) (image.Image, error)) Option {
	return func(c *Cache) { c.decode = decode }
}

// WithPDFExtensions sets the extensions rendered as PDF documents; anything
// else is decoded as a raster image.
func WithPDFExtensions(exts []string) Option {
	return func(c *Cache) { c.pdfExts = extSet(exts) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// Cache writes thumbnails to dir, keyed by the absolute source path and size
// tag. Entries are never invalidated.
type Cache struct {
	dir     string
	sizes   map[string]int
	pdfExts map[string]struct{}
	openPDF ocr.PDFOpener
	decode  func(path string) (image.Image, error)
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewCache(dir string, sizes map[string]int, logger *zap.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(sizes) == 0 {
		sizes = DefaultSizes
	}
	c := &Cache{
		dir:     dir,
		sizes:   sizes,
		pdfExts: extSet(constants.DefaultPDFExtensions),
		openPDF: ocr.OpenPDF,
		decode:  decodeFile,
		logger:  logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Pixels resolves a size tag to the longest-side target.
func (c *Cache) Pixels(size string) int {
	if px, ok := c.sizes[size]; ok && px > 0 {
		return px
	}
	return DefaultSize
}

// PathFor returns the cache entry path of a source file.
func (c *Cache) PathFor(path, size string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(abs))
	h := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.jpg", h[len(h)-keyLen:], size)), nil
}

// Thumbnail returns the cached preview of path, generating it on a miss.
// Any failure is logged and reported as ("", false).
func (c *Cache) Thumbnail(ctx context.Context, path, size string) (string, bool) {
	out, err := c.PathFor(path, size)
	if err != nil {
		c.failed(path, err)
		return "", false
	}
	if _, err := os.Stat(out); err == nil {
		c.metrics.ThumbnailHit()
		return out, true
	}
	c.metrics.ThumbnailMiss()

	if err := ctx.Err(); err != nil {
		c.failed(path, err)
		return "", false
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.failed(path, err)
		return "", false
	}

	src, err := c.load(path)
	if err != nil {
		c.failed(path, err)
		return "", false
	}
	if err := writeJPEG(out, fit(src, c.Pixels(size))); err != nil {
		c.failed(path, err)
		return "", false
	}
	c.logger.Debug("thumbnail.created", zap.String("path", path), zap.String("thumbnail", out))
	return out, true
}

func (c *Cache) failed(path string, err error) {
	c.metrics.ThumbnailError()
	appErr := common.NewAppError(common.CodeThumbnail, "thumbnail generation failed for "+path, err)
	c.logger.Warn("thumbnail.failed", zap.String("path", path), zap.Error(appErr))
}

func (c *Cache) load(path string) (image.Image, error) {
	if _, ok := c.pdfExts[constants.NormalizeExt(filepath.Ext(path))]; ok {
		doc, err := c.openPDF(path)
		if err != nil {
			return nil, err
		}
		defer doc.Close()
		if doc.NumPage() == 0 {
			return nil, fmt.Errorf("pdf has no pages")
		}
		return doc.ImageDPI(0, ocr.RenderDPI)
	}
	return c.decode(path)
}

func extSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[constants.NormalizeExt(e)] = struct{}{}
	}
	return set
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// fit scales src so its longest side is at most limit, onto an opaque RGBA
// canvas. Smaller images keep their size.
func fit(src image.Image, limit int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if long := max(w, h); long > limit {
		w = max(1, w*limit/long)
		h = max(1, h*limit/long)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// writeJPEG writes through a temp file in the target dir, then renames.
func writeJPEG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".thumb-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
