package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/medflow/ocr-service/internal/entity"
)

const sheet = "OCR Results"

// ResultLister is the read side of the result store.
type ResultLister interface {
	ListResults(ctx context.Context, taskID string) ([]*entity.OCRResult, error)
}

// Service produces XLSX review sheets for finished batches.
type Service struct {
	results         ResultLister
	reviewThreshold float64
	logger          *zap.Logger
}

func NewService(results ResultLister, reviewThreshold float64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{results: results, reviewThreshold: reviewThreshold, logger: logger}
}

var headers = []string{
	"File",
	"Type",
	"Device",
	"Last Name",
	"First Name",
	"Patient ID",
	"Date of Birth",
	"Laterality",
	"Confidence",
	"Needs Review",
	"Thumbnail",
	"Error",
}

// ExportBatchXLSX returns a workbook with one row per result of the batch.
func (s *Service) ExportBatchXLSX(ctx context.Context, taskID string) ([]byte, error) {
	start := time.Now()
	recs, err := s.results.ListResults(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		info := r.ExtractedInfo
		if info == nil {
			info = &entity.ExtractedPatientInfo{}
		}

		write(1, r.FilePath)
		write(2, string(r.FileType))
		write(3, string(r.DeviceType))
		write(4, info.LastName)
		write(5, info.FirstName)
		write(6, info.PatientID)
		if info.DateOfBirth != nil {
			write(7, info.DateOfBirth.Format("2006-01-02"))
		} else {
			write(7, "")
		}
		write(8, info.Laterality)
		write(9, r.OCRConfidence)
		write(10, yesNo(r.NeedsReview(s.reviewThreshold)))
		write(11, r.ThumbnailPath)
		write(12, truncate(r.Error, 140))
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 60) // path
	_ = f.SetColWidth(sheet, "B", "C", 10)
	_ = f.SetColWidth(sheet, "D", "F", 18) // identity
	_ = f.SetColWidth(sheet, "G", "J", 14)
	_ = f.SetColWidth(sheet, "K", "L", 48)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		zap.String("task_id", taskID),
		zap.Int("rows", len(recs)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
