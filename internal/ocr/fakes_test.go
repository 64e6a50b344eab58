package ocr

import (
	"context"
	"errors"
	"image"
	"sync"
)

type fakeEngine struct {
	mu     sync.Mutex
	lines  [][]Line // returned per call, in order; last one repeats
	err    error
	calls  int
	closed bool
}

func (f *fakeEngine) Recognize(_ context.Context, _ []byte) ([]Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.lines) == 0 {
		return nil, nil
	}
	i := f.calls - 1
	if i >= len(f.lines) {
		i = len(f.lines) - 1
	}
	return f.lines[i], nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

type fakePDF struct {
	texts    []string
	textErr  error
	rendered []int
	closed   bool
}

func (d *fakePDF) NumPage() int { return len(d.texts) }

func (d *fakePDF) Text(n int) (string, error) {
	if d.textErr != nil {
		return "", d.textErr
	}
	return d.texts[n], nil
}

func (d *fakePDF) ImageDPI(n int, _ float64) (*image.RGBA, error) {
	d.rendered = append(d.rendered, n)
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func (d *fakePDF) Close() error {
	d.closed = true
	return nil
}

func openerFor(doc *fakePDF) PDFOpener {
	return func(string) (PDFDocument, error) { return doc, nil }
}

var errBoom = errors.New("boom")
