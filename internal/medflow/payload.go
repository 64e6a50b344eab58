package medflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/medflow/ocr-service/internal/entity"
)

// ResultPayload is the body POSTed to /api/ocr/results.
type ResultPayload struct {
	FilePath          string       `json:"file_path"`
	FileName          string       `json:"file_name"`
	FileType          string       `json:"file_type"`
	DeviceType        string       `json:"device_type"`
	OCRText           *string      `json:"ocr_text"`
	ExtractedInfo     *PatientInfo `json:"extracted_info"`
	ThumbnailPath     *string      `json:"thumbnail_path"`
	AutoLinkThreshold float64      `json:"auto_link_threshold"`
}

// PatientInfo carries dates as YYYY-MM-DD.
type PatientInfo struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PatientID   *string `json:"patient_id"`
	DateOfBirth *string `json:"date_of_birth"`
	Gender      *string `json:"gender"`
	ExamDate    *string `json:"exam_date"`
	ExamType    *string `json:"exam_type"`
	Laterality  *string `json:"laterality"`
	RawText     *string `json:"raw_text"`
	Source      string  `json:"source"`
}

var resultSchema = map[string]any{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type":    "object",
	"required": []any{
		"file_path", "file_name", "file_type", "device_type", "auto_link_threshold",
	},
	"properties": map[string]any{
		"file_path":      map[string]any{"type": "string", "minLength": 1},
		"file_name":      map[string]any{"type": "string", "minLength": 1},
		"file_type":      map[string]any{"enum": []any{"image", "pdf", "dicom"}},
		"device_type":    map[string]any{"enum": []any{"zeiss", "solix", "tomey", "quantel", "generic"}},
		"ocr_text":       map[string]any{"type": []any{"string", "null"}},
		"thumbnail_path": map[string]any{"type": []any{"string", "null"}},
		"auto_link_threshold": map[string]any{
			"type": "number", "minimum": 0, "maximum": 1,
		},
		"extracted_info": map[string]any{
			"type": []any{"object", "null"},
			"properties": map[string]any{
				"date_of_birth": dateOrNull,
				"exam_date":     dateOrNull,
				"laterality":    map[string]any{"enum": []any{"OD", "OS", "OU", nil}},
				"source":        map[string]any{"type": "string"},
			},
		},
	},
}

var dateOrNull = map[string]any{
	"type":    []any{"string", "null"},
	"pattern": `^\d{4}-\d{2}-\d{2}$`,
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func payloadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(resultSchema)
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("ocr_result.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("ocr_result.json")
	})
	return compiledSchema, schemaErr
}

// ValidatePayload checks an encoded payload against the backend contract.
func ValidatePayload(data []byte) error {
	schema, err := payloadSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("payload does not match schema: %w", err)
	}
	return nil
}

// NewResultPayload maps a result to the wire payload.
func NewResultPayload(r *entity.OCRResult, autoLinkThreshold float64) ResultPayload {
	return ResultPayload{
		FilePath:          r.FilePath,
		FileName:          r.FileName,
		FileType:          string(r.FileType),
		DeviceType:        string(r.DeviceType),
		OCRText:           optional(r.OCRText),
		ExtractedInfo:     newPatientInfo(r.ExtractedInfo),
		ThumbnailPath:     optional(r.ThumbnailPath),
		AutoLinkThreshold: autoLinkThreshold,
	}
}

func newPatientInfo(p *entity.ExtractedPatientInfo) *PatientInfo {
	if p == nil {
		return nil
	}
	return &PatientInfo{
		FirstName:   optional(p.FirstName),
		LastName:    optional(p.LastName),
		PatientID:   optional(p.PatientID),
		DateOfBirth: optionalDate(p.DateOfBirth),
		Gender:      optional(p.Gender),
		ExamDate:    optionalDate(p.ExamDate),
		ExamType:    optional(p.ExamType),
		Laterality:  optional(p.Laterality),
		RawText:     optional(p.RawText),
		Source:      p.Source,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
