package ocr

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// EngineConfig configures either tesseract engine.
type EngineConfig struct {
	Lang        string // tesseract language(s), "+"-joined, default "fra"
	UseGPU      bool
	TessdataDir string
	Binary      string // tesseract-cli only, default "tesseract"
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.Lang == "" {
		c.Lang = "fra"
	}
	if c.Binary == "" {
		c.Binary = "tesseract"
	}
	return c
}

type gosseractEngine struct {
	client *gosseract.Client
}

// NewGosseractEngine loads libtesseract with orientation detection enabled.
func NewGosseractEngine(cfg EngineConfig, logger *zap.Logger) (Engine, error) {
	cfg = cfg.withDefaults()
	if cfg.UseGPU {
		logger.Warn("ocr.engine.gpu_unsupported", zap.String("engine", "gosseract"))
	}
	client := gosseract.NewClient()
	if cfg.TessdataDir != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataDir); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	if err := client.SetLanguage(strings.Split(cfg.Lang, "+")...); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO_OSD); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &gosseractEngine{client: client}, nil
}

func (g *gosseractEngine) Recognize(ctx context.Context, img []byte) ([]Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := g.client.SetImageFromBytes(img); err != nil {
		return nil, err
	}
	boxes, err := g.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		lines = append(lines, Line{Text: text, Confidence: b.Confidence / 100})
	}
	return lines, nil
}

func (g *gosseractEngine) Close() error {
	return g.client.Close()
}
