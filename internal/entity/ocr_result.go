package entity

import (
	"time"

	"github.com/medflow/ocr-service/constants"
)

// OCRResult is the outcome of processing one file. Error is set only when no
// extraction was attempted (missing file, unsupported extension).
type OCRResult struct {
	FilePath         string                `json:"file_path"`
	FileName         string                `json:"file_name"`
	FileType         constants.FileType    `json:"file_type"`
	FileSize         int64                 `json:"file_size"`
	DeviceType       constants.DeviceType  `json:"device_type"`
	OCRText          string                `json:"ocr_text,omitempty"`
	OCRConfidence    float64               `json:"ocr_confidence"`
	ExtractedInfo    *ExtractedPatientInfo `json:"extracted_info,omitempty"`
	ThumbnailPath    string                `json:"thumbnail_path,omitempty"`
	ProcessedAt      time.Time             `json:"processed_at"`
	ProcessingTimeMs int64                 `json:"processing_time_ms"`
	Error            string                `json:"error,omitempty"`
}

// Failed reports whether the file was rejected before extraction.
func (r *OCRResult) Failed() bool {
	return r != nil && r.Error != ""
}

// NeedsReview flags results whose confidence is under threshold or which
// carry no patient identity.
func (r *OCRResult) NeedsReview(threshold float64) bool {
	if r == nil || r.Failed() {
		return true
	}
	return r.OCRConfidence < threshold || !r.ExtractedInfo.Useful()
}
