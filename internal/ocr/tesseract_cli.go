package ocr

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// tsv column indexes of `tesseract ... tsv` output
const (
	tsvLevel = iota
	tsvPage
	tsvBlock
	tsvPar
	tsvLine
	tsvWord
	tsvLeft
	tsvTop
	tsvWidth
	tsvHeight
	tsvConf
	tsvText
	tsvColumns
)

const tsvWordLevel = "5"

type cliEngine struct {
	cfg    EngineConfig
	runner Runner
	logger *zap.Logger
}

// NewCLIEngine shells out to the tesseract binary and groups its TSV word
// rows into lines.
func NewCLIEngine(cfg EngineConfig, runner Runner, logger *zap.Logger) Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = execRunner{logger: logger}
	}
	cfg = cfg.withDefaults()
	if cfg.UseGPU {
		logger.Warn("ocr.engine.gpu_unsupported", zap.String("engine", "tesseract-cli"))
	}
	return &cliEngine{cfg: cfg, runner: runner, logger: logger}
}

func (e *cliEngine) Recognize(ctx context.Context, img []byte) ([]Line, error) {
	tmp, err := os.CreateTemp("", "medflow-ocr-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil {
			e.logger.Warn("ocr.cli.tmp_remove_failed", zap.String("path", tmp.Name()), zap.Error(rmErr))
		}
	}()
	if _, err := tmp.Write(img); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	// tesseract <file> stdout -l <lang> --psm 1 tsv
	args := []string{tmp.Name(), "stdout", "-l", e.cfg.Lang, "--psm", "1"}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract TSV: %w: %s", err, truncate(string(errb), 512))
	}
	return parseTSVLines(string(out)), nil
}

func (e *cliEngine) Close() error { return nil }

// parseTSVLines groups word rows by (page, block, paragraph, line) in order of
// first appearance. Line confidence is the mean of its word confidences.
func parseTSVLines(tsv string) []Line {
	type acc struct {
		words []string
		sum   float64
		n     int
	}
	var order []string
	lines := map[string]*acc{}

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue
		} // skip header
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < tsvColumns || cols[tsvLevel] != tsvWordLevel {
			continue
		}
		word := strings.TrimSpace(cols[tsvText])
		conf, err := strconv.ParseFloat(cols[tsvConf], 64)
		if word == "" || err != nil || conf < 0 {
			continue
		}
		key := strings.Join(cols[tsvPage:tsvWord], "/")
		a, ok := lines[key]
		if !ok {
			a = &acc{}
			lines[key] = a
			order = append(order, key)
		}
		a.words = append(a.words, word)
		a.sum += conf
		a.n++
	}

	out := make([]Line, 0, len(order))
	for _, key := range order {
		a := lines[key]
		out = append(out, Line{
			Text:       strings.Join(a.words, " "),
			Confidence: a.sum / float64(a.n) / 100,
		})
	}
	return out
}
