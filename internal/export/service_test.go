package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/medflow/ocr-service/constants"
	"github.com/medflow/ocr-service/internal/entity"
)

type stubLister struct {
	recs []*entity.OCRResult
	err  error
	task string
}

func (s *stubLister) ListResults(_ context.Context, taskID string) ([]*entity.OCRResult, error) {
	s.task = taskID
	return s.recs, s.err
}

func TestExportBatchXLSX(t *testing.T) {
	dob := time.Date(1980, 1, 15, 0, 0, 0, 0, time.UTC)
	lister := &stubLister{recs: []*entity.OCRResult{
		{
			FilePath:      "/mnt/zeiss/DUPONT_Jean.jpg",
			FileType:      constants.IMAGE,
			DeviceType:    constants.ZEISS,
			OCRConfidence: 0.92,
			ExtractedInfo: &entity.ExtractedPatientInfo{LastName: "DUPONT", FirstName: "Jean", PatientID: "PAT001", DateOfBirth: &dob, Laterality: "OD"},
			ThumbnailPath: "/tmp/thumbs/abc_medium.jpg",
		},
		{
			FilePath:      "/mnt/zeiss/blurry.jpg",
			FileType:      constants.IMAGE,
			DeviceType:    constants.ZEISS,
			OCRConfidence: 0.3,
		},
		{
			FilePath:   "/mnt/zeiss/notes.txt",
			FileType:   constants.IMAGE,
			DeviceType: constants.ZEISS,
			Error:      "Unsupported file type: .txt",
		},
	}}
	svc := NewService(lister, 0.6, nil)

	data, err := svc.ExportBatchXLSX(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, "task-1", lister.task)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, headers, rows[0])

	assert.Equal(t, []string{
		"/mnt/zeiss/DUPONT_Jean.jpg", "image", "zeiss", "DUPONT", "Jean", "PAT001",
		"1980-01-15", "OD", "0.92", "no", "/tmp/thumbs/abc_medium.jpg",
	}, rows[1])
	assert.Equal(t, "yes", rows[2][9])
	assert.Equal(t, "yes", rows[3][9])
	assert.Equal(t, "Unsupported file type: .txt", rows[3][11])
}

func TestExportBatchXLSX_ListError(t *testing.T) {
	svc := NewService(&stubLister{err: errors.New("db down")}, 0.6, nil)
	_, err := svc.ExportBatchXLSX(context.Background(), "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, 140, len([]rune(truncate(strings.Repeat("é", 300), 140))))
}
