package thumbnail

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medflow/ocr-service/internal/ocr"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return p
}

func decodeJPEG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	return img
}

func TestPathFor(t *testing.T) {
	c := NewCache("/cache", nil, nil)
	abs, err := filepath.Abs("scan.png")
	require.NoError(t, err)
	sum := sha256.Sum256([]byte(abs))
	h := hex.EncodeToString(sum[:])

	p, err := c.PathFor("scan.png", "medium")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/cache", h[len(h)-10:]+"_medium.jpg"), p)
}

func TestPixels(t *testing.T) {
	c := NewCache(t.TempDir(), nil, nil)
	assert.Equal(t, 120, c.Pixels("small"))
	assert.Equal(t, 1600, c.Pixels("large"))
	assert.Equal(t, DefaultSize, c.Pixels("poster"))
}

func TestThumbnail_ResizesAndCaches(t *testing.T) {
	src := writePNG(t, t.TempDir(), "scan.png", 400, 200)
	cacheDir := filepath.Join(t.TempDir(), "thumbs")

	decodes := 0
	c := NewCache(cacheDir, map[string]int{"small": 100, "medium": 720}, zap.NewNop(),
		WithImageDecoder(func(path string) (image.Image, error) {
			decodes++
			return decodeFile(path)
		}))

	out, ok := c.Thumbnail(context.Background(), src, "small")
	require.True(t, ok)
	assert.Equal(t, cacheDir, filepath.Dir(out))

	b := decodeJPEG(t, out).Bounds()
	assert.Equal(t, 100, b.Dx())
	assert.Equal(t, 50, b.Dy())

	again, ok := c.Thumbnail(context.Background(), src, "small")
	require.True(t, ok)
	assert.Equal(t, out, again)
	assert.Equal(t, 1, decodes)

	leftovers, err := filepath.Glob(filepath.Join(cacheDir, ".thumb-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestThumbnail_NeverUpscales(t *testing.T) {
	src := writePNG(t, t.TempDir(), "tiny.png", 30, 60)
	c := NewCache(t.TempDir(), nil, nil)

	out, ok := c.Thumbnail(context.Background(), src, "large")
	require.True(t, ok)
	b := decodeJPEG(t, out).Bounds()
	assert.Equal(t, 30, b.Dx())
	assert.Equal(t, 60, b.Dy())
}

type onePagePDF struct{ closed bool }

func (d *onePagePDF) NumPage() int { return 1 }
func (d *onePagePDF) Text(int) (string, error) { return "", nil }
func (d *onePagePDF) Close() error {
	d.closed = true
	return nil
}
func (d *onePagePDF) ImageDPI(n int, dpi float64) (*image.RGBA, error) {
	if n != 0 || dpi != ocr.RenderDPI {
		return nil, errors.New("unexpected render request")
	}
	return image.NewRGBA(image.Rect(0, 0, 1000, 1400)), nil
}

func TestThumbnail_PDFFirstPage(t *testing.T) {
	doc := &onePagePDF{}
	c := NewCache(t.TempDir(), nil, nil, WithPDFOpener(func(string) (ocr.PDFDocument, error) {
		return doc, nil
	}))

	out, ok := c.Thumbnail(context.Background(), "/reports/scan.PDF", "medium")
	require.True(t, ok)
	assert.True(t, doc.closed)
	b := decodeJPEG(t, out).Bounds()
	assert.Equal(t, 514, b.Dx())
	assert.Equal(t, 720, b.Dy())
}

func TestThumbnail_ConfiguredPDFExtensions(t *testing.T) {
	opened := 0
	decoded := 0
	c := NewCache(t.TempDir(), nil, nil,
		WithPDFExtensions([]string{"PDFA", ".pdf"}),
		WithPDFOpener(func(string) (ocr.PDFDocument, error) {
			opened++
			return &onePagePDF{}, nil
		}),
		WithImageDecoder(func(string) (image.Image, error) {
			decoded++
			return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
		}),
	)

	_, ok := c.Thumbnail(context.Background(), "/archive/report.pdfa", "small")
	require.True(t, ok)
	assert.Equal(t, 1, opened)
	assert.Zero(t, decoded)

	// extensions outside the PDF set go to the raster decoder
	c2 := NewCache(t.TempDir(), nil, nil,
		WithPDFExtensions([]string{".pdfa"}),
		WithPDFOpener(func(string) (ocr.PDFDocument, error) {
			opened++
			return &onePagePDF{}, nil
		}),
		WithImageDecoder(func(string) (image.Image, error) {
			decoded++
			return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
		}),
	)
	_, ok = c2.Thumbnail(context.Background(), "/archive/report.pdf", "small")
	require.True(t, ok)
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, decoded)
}

func TestThumbnail_Failures(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "broken.jpg")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))

	c := NewCache(filepath.Join(dir, "cache"), nil, nil, WithPDFOpener(func(string) (ocr.PDFDocument, error) {
		return nil, errors.New("corrupt pdf")
	}))

	out, ok := c.Thumbnail(context.Background(), garbage, "medium")
	assert.False(t, ok)
	assert.Empty(t, out)

	out, ok = c.Thumbnail(context.Background(), filepath.Join(dir, "report.pdf"), "medium")
	assert.False(t, ok)
	assert.Empty(t, out)

	out, ok = c.Thumbnail(context.Background(), filepath.Join(dir, "missing.png"), "medium")
	assert.False(t, ok)
	assert.Empty(t, out)
}

func TestThumbnail_CacheDirNotCreatable(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "scan.png", 10, 10)
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	c := NewCache(filepath.Join(blocker, "thumbs"), nil, nil)
	_, ok := c.Thumbnail(context.Background(), src, "small")
	assert.False(t, ok)
}
