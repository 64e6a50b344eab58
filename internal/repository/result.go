package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/medflow/ocr-service/constants"
	"github.com/medflow/ocr-service/internal/entity"
)

type ResultRepository interface {
	// SaveResult stores r under taskID; an empty taskID marks a result
	// produced outside any batch.
	SaveResult(ctx context.Context, taskID string, r *entity.OCRResult) error
	ListResults(ctx context.Context, taskID string) ([]*entity.OCRResult, error)
}

type resultRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewResultRepository(db *sql.DB, logger *zap.Logger) ResultRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &resultRepository{db: db, logger: logger}
}

func (r *resultRepository) SaveResult(ctx context.Context, taskID string, res *entity.OCRResult) error {
	var info sql.NullString
	if res.ExtractedInfo != nil {
		b, err := json.Marshal(res.ExtractedInfo)
		if err != nil {
			return dbErr("encode extracted info", err)
		}
		info = sql.NullString{String: string(b), Valid: true}
	}
	task := sql.NullString{String: taskID, Valid: taskID != ""}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ocr_results (task_id, file_path, file_name, file_type, file_size, device_type, ocr_text,
			ocr_confidence, extracted_info, thumbnail_path, processed_at, processing_time_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task, res.FilePath, res.FileName, string(res.FileType), res.FileSize, string(res.DeviceType), res.OCRText,
		res.OCRConfidence, info, res.ThumbnailPath, toMillis(res.ProcessedAt), res.ProcessingTimeMs, res.Error,
	)
	if err != nil {
		r.logger.Error("repository.result.save_failed",
			zap.String("task_id", taskID),
			zap.String("file_path", res.FilePath),
			zap.Error(err),
		)
		return dbErr("save result", err)
	}
	return nil
}

// ListResults returns a batch's results in insertion order.
func (r *resultRepository) ListResults(ctx context.Context, taskID string) ([]*entity.OCRResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT file_path, file_name, file_type, file_size, device_type, ocr_text, ocr_confidence,
			extracted_info, thumbnail_path, processed_at, processing_time_ms, error
		FROM ocr_results WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		r.logger.Error("repository.result.list_failed", zap.String("task_id", taskID), zap.Error(err))
		return nil, dbErr("list results", err)
	}
	defer rows.Close()

	var out []*entity.OCRResult
	for rows.Next() {
		var (
			res              entity.OCRResult
			fileType, device string
			info             sql.NullString
			processedAt      int64
		)
		if err := rows.Scan(&res.FilePath, &res.FileName, &fileType, &res.FileSize, &device, &res.OCRText,
			&res.OCRConfidence, &info, &res.ThumbnailPath, &processedAt, &res.ProcessingTimeMs, &res.Error); err != nil {
			return nil, dbErr("scan result", err)
		}
		res.FileType = constants.FileType(fileType)
		res.DeviceType = constants.DeviceType(device)
		res.ProcessedAt = fromMillis(processedAt)
		if info.Valid {
			var p entity.ExtractedPatientInfo
			if err := json.Unmarshal([]byte(info.String), &p); err != nil {
				return nil, dbErr("decode extracted info", err)
			}
			res.ExtractedInfo = &p
		}
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("iterate results", err)
	}
	return out, nil
}
