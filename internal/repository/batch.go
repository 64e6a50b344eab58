package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medflow/ocr-service/constants"
	"github.com/medflow/ocr-service/internal/common"
	"github.com/medflow/ocr-service/internal/entity"
)

type BatchRepository interface {
	CreateBatch(ctx context.Context, b *entity.BatchProgress) error
	UpdateProgress(ctx context.Context, b *entity.BatchProgress) error
	FinishBatch(ctx context.Context, taskID string, status constants.TaskStatus, message string, completedAt time.Time) error
	GetBatch(ctx context.Context, taskID string) (*entity.BatchProgress, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type batchRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewBatchRepository(db *sql.DB, logger *zap.Logger) BatchRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &batchRepository{db: db, logger: logger}
}

func (r *batchRepository) CreateBatch(ctx context.Context, b *entity.BatchProgress) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO batches (task_id, status, folder_path, device_type, total_files, processed_files,
			unique_patients, errors, current_file, message, created_at, started_at, completed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.TaskID, string(b.Status), b.FolderPath, string(b.DeviceType), b.TotalFiles, b.ProcessedFiles,
		b.UniquePatients, b.Errors, b.CurrentFile, b.Message, toMillis(b.CreatedAt),
		nullMillis(b.StartedAt), nullMillis(b.CompletedAt), toMillis(b.ExpiresAt),
	)
	if err != nil {
		r.logger.Error("repository.batch.create_failed", zap.String("task_id", b.TaskID), zap.Error(err))
		return dbErr("create batch", err)
	}
	r.logger.Debug("repository.batch.created", zap.String("task_id", b.TaskID))
	return nil
}

func (r *batchRepository) UpdateProgress(ctx context.Context, b *entity.BatchProgress) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE batches SET status = ?, total_files = ?, processed_files = ?, unique_patients = ?,
			errors = ?, current_file = ?, message = ?, started_at = ?
		WHERE task_id = ?`,
		string(b.Status), b.TotalFiles, b.ProcessedFiles, b.UniquePatients,
		b.Errors, b.CurrentFile, b.Message, nullMillis(b.StartedAt), b.TaskID,
	)
	if err != nil {
		r.logger.Error("repository.batch.update_failed", zap.String("task_id", b.TaskID), zap.Error(err))
		return dbErr("update batch progress", err)
	}
	return expectRow(res, b.TaskID)
}

func (r *batchRepository) FinishBatch(ctx context.Context, taskID string, status constants.TaskStatus, message string, completedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE batches SET status = ?, message = ?, current_file = '', completed_at = ?
		WHERE task_id = ?`,
		string(status), message, toMillis(completedAt), taskID,
	)
	if err != nil {
		r.logger.Error("repository.batch.finish_failed", zap.String("task_id", taskID), zap.Error(err))
		return dbErr("finish batch", err)
	}
	r.logger.Info("repository.batch.finished", zap.String("task_id", taskID), zap.String("status", string(status)))
	return expectRow(res, taskID)
}

func (r *batchRepository) GetBatch(ctx context.Context, taskID string) (*entity.BatchProgress, error) {
	var (
		b                      entity.BatchProgress
		status, device         string
		createdAt, expiresAt   int64
		startedAt, completedAt sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT task_id, status, folder_path, device_type, total_files, processed_files, unique_patients,
			errors, current_file, message, created_at, started_at, completed_at, expires_at
		FROM batches WHERE task_id = ?`, taskID,
	).Scan(&b.TaskID, &status, &b.FolderPath, &device, &b.TotalFiles, &b.ProcessedFiles, &b.UniquePatients,
		&b.Errors, &b.CurrentFile, &b.Message, &createdAt, &startedAt, &completedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", taskID, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("repository.batch.get_failed", zap.String("task_id", taskID), zap.Error(err))
		return nil, dbErr("get batch", err)
	}
	b.Status = constants.TaskStatus(status)
	b.DeviceType = constants.DeviceType(device)
	b.CreatedAt = fromMillis(createdAt)
	b.ExpiresAt = fromMillis(expiresAt)
	b.StartedAt = timePtr(startedAt)
	b.CompletedAt = timePtr(completedAt)
	return &b, nil
}

// PurgeExpired deletes batches whose expiry is before now, with their results.
func (r *batchRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, dbErr("begin purge", err)
	}
	defer func() { _ = tx.Rollback() }()

	cutoff := toMillis(now)
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM ocr_results WHERE task_id IN (SELECT task_id FROM batches WHERE expires_at < ?)`, cutoff); err != nil {
		return 0, dbErr("purge results", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE expires_at < ?`, cutoff)
	if err != nil {
		return 0, dbErr("purge batches", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, dbErr("commit purge", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.logger.Info("repository.batch.purged", zap.Int64("count", n))
	}
	return n, nil
}

func expectRow(res sql.Result, taskID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbErr("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("batch %s: %w", taskID, common.ErrNotFound)
	}
	return nil
}
