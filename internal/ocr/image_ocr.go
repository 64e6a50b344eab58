package ocr

import (
	"context"
	"os"
	"strings"

	"github.com/medflow/ocr-service/internal/patientinfo"
)

func (e *Extractor) ExtractImage(ctx context.Context, path string) Extraction {
	img, err := os.ReadFile(path)
	if err != nil {
		return e.fail("image", path, err)
	}
	lines, err := e.engine.Recognize(ctx, img)
	if err != nil {
		return e.fail("image", path, err)
	}

	text, conf := joinLines(lines)
	return Extraction{
		Text:       text,
		Confidence: conf,
		Info:       patientinfo.ExtractFromText(text),
		Method:     "image-ocr",
		Pages:      1,
	}
}

// joinLines concatenates line texts in engine order and averages their
// confidences (0 when there are no lines).
func joinLines(lines []Line) (string, float64) {
	if len(lines) == 0 {
		return "", 0
	}
	texts := make([]string, len(lines))
	var sum float64
	for i, l := range lines {
		texts[i] = l.Text
		sum += l.Confidence
	}
	return strings.Join(texts, "\n"), sum / float64(len(lines))
}
