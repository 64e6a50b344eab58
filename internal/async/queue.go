package async

import (
	"context"
	"time"

	"github.com/medflow/ocr-service/constants"
	"github.com/medflow/ocr-service/internal/entity"
)

// Job is one file to run through the pipeline outside any batch.
type Job struct {
	Path        string
	Device      constants.DeviceType
	Thumbnail   bool
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// FileProcessor is the pipeline entry point the workers call.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string, device constants.DeviceType, extractThumbnail bool) *entity.OCRResult
}

// ResultSink receives every processed result.
type ResultSink interface {
	SaveResult(ctx context.Context, taskID string, r *entity.OCRResult) error
}
