package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medflow/ocr-service/constants"
	"github.com/medflow/ocr-service/internal/common"
	"github.com/medflow/ocr-service/internal/entity"
	"github.com/medflow/ocr-service/internal/ingest"
	"github.com/medflow/ocr-service/internal/metrics"
	"github.com/medflow/ocr-service/internal/repository"
)

// Batch defaults.
const (
	DefaultBatchMaxFiles    = 100
	DefaultBatchMaxPatients = 20
	batchFilesPerPatient    = 10
)

// BatchRequest describes a folder import. Zero MaxFiles / MaxPatients take
// the defaults.
type BatchRequest struct {
	FolderPath  string               `json:"folder_path" validate:"required"`
	DeviceType  constants.DeviceType `json:"device_type" validate:"oneof=zeiss solix tomey quantel generic"`
	MaxFiles    int                  `json:"max_files" validate:"gte=1,lte=1000"`
	MaxPatients int                  `json:"max_patients" validate:"gte=1,lte=100"`
	Extensions  []string             `json:"extensions,omitempty"`
	Recursive   bool                 `json:"recursive"`
}

// ImportPlanner selects the files of a batch.
type ImportPlanner interface {
	FilesForImport(ctx context.Context, root string, device constants.DeviceType, opts ingest.ImportOptions) ([]entity.PatientGroup, error)
}

type BatchOption func(*BatchRunner)

func WithBatchWorkers(n int) BatchOption {
	return func(r *BatchRunner) {
		if n > 0 {
			r.slots = make(chan struct{}, n)
		}
	}
}

func WithResultTTL(d time.Duration) BatchOption {
	return func(r *BatchRunner) {
		if d > 0 {
			r.ttl = d
		}
	}
}

func WithBatchMetrics(m *metrics.Metrics) BatchOption {
	return func(r *BatchRunner) { r.metrics = m }
}

// BatchRunner runs folder imports in the background, at most N at a time,
// persisting progress and results.
type BatchRunner struct {
	planner ImportPlanner
	proc    FileProcessor
	batches repository.BatchRepository
	results ResultSink
	metrics *metrics.Metrics
	logger  *zap.Logger
	ttl     time.Duration
	now     func() time.Time

	slots  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBatchRunner(
	planner ImportPlanner,
	proc FileProcessor,
	batches repository.BatchRepository,
	results ResultSink,
	logger *zap.Logger,
	opts ...BatchOption,
) *BatchRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &BatchRunner{
		planner: planner,
		proc:    proc,
		batches: batches,
		results: results,
		logger:  logger,
		ttl:     time.Hour,
		now:     time.Now,
		slots:   make(chan struct{}, 2),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Submit validates req, records a pending batch and starts it. It returns
// the task ID to poll with Status.
func (r *BatchRunner) Submit(ctx context.Context, req BatchRequest) (string, error) {
	if req.MaxFiles == 0 {
		req.MaxFiles = DefaultBatchMaxFiles
	}
	if req.MaxPatients == 0 {
		req.MaxPatients = DefaultBatchMaxPatients
	}
	if req.DeviceType == "" {
		req.DeviceType = constants.GENERIC
	}
	if err := common.ValidateStruct(req); err != nil {
		return "", err
	}
	if err := r.ctx.Err(); err != nil {
		return "", ErrQueueClosed
	}

	now := r.now()
	progress := &entity.BatchProgress{
		TaskID:     uuid.NewString(),
		Status:     constants.TaskStatusPending,
		FolderPath: req.FolderPath,
		DeviceType: req.DeviceType,
		CreatedAt:  now,
		ExpiresAt:  now.Add(r.ttl),
	}
	if err := r.batches.CreateBatch(ctx, progress); err != nil {
		return "", err
	}
	r.metrics.BatchStatus(string(constants.TaskStatusPending))
	r.logger.Info("batch.submitted",
		zap.String("task_id", progress.TaskID),
		zap.String("folder", req.FolderPath),
		zap.String("device", string(req.DeviceType)),
	)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case r.slots <- struct{}{}:
		case <-r.ctx.Done():
			r.finish(progress, constants.TaskStatusFailure, "cancelled before start")
			return
		}
		defer func() { <-r.slots }()
		r.run(common.WithTaskID(r.ctx, progress.TaskID), progress, req)
	}()
	return progress.TaskID, nil
}

// Status returns the persisted progress of a task.
func (r *BatchRunner) Status(ctx context.Context, taskID string) (*entity.BatchProgress, error) {
	return r.batches.GetBatch(ctx, taskID)
}

// Wait blocks until every submitted batch has finished.
func (r *BatchRunner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels running batches and waits for them, or for ctx.
func (r *BatchRunner) Shutdown(ctx context.Context) {
	r.cancel()
	done := make(chan struct{})
	go func() { defer close(done); r.wg.Wait() }()
	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("batch.shutdown.interrupted")
	}
}

func (r *BatchRunner) run(ctx context.Context, p *entity.BatchProgress, req BatchRequest) {
	log := r.logger.With(zap.String("task_id", p.TaskID))
	started := r.now()
	p.Status = constants.TaskStatusStarted
	p.StartedAt = &started
	r.save(ctx, p)
	r.metrics.BatchStatus(string(constants.TaskStatusStarted))

	groups, err := r.planner.FilesForImport(ctx, req.FolderPath, req.DeviceType, ingest.ImportOptions{
		MaxPatients:        req.MaxPatients,
		MaxFilesPerPatient: batchFilesPerPatient,
		Extensions:         req.Extensions,
		Recursive:          req.Recursive,
	})
	if err != nil {
		log.Error("batch.plan.failed", zap.Error(err))
		r.finish(p, constants.TaskStatusFailure, err.Error())
		return
	}

	var files []entity.FileEntry
	for _, g := range groups {
		files = append(files, g.Files...)
	}
	if len(files) > req.MaxFiles {
		files = files[:req.MaxFiles]
	}
	p.TotalFiles = len(files)
	r.save(ctx, p)

	patients := map[string]struct{}{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			r.finish(p, constants.TaskStatusFailure, "cancelled")
			return
		}
		p.CurrentFile = f.Name
		r.save(ctx, p)

		res := r.proc.ProcessFile(ctx, f.Path, req.DeviceType, true)
		if res.Failed() {
			p.Errors++
		} else if res.ExtractedInfo != nil {
			patients[res.ExtractedInfo.PatientKey()] = struct{}{}
		}
		if err := r.results.SaveResult(ctx, p.TaskID, res); err != nil {
			log.Error("batch.result.save_failed", zap.String("path", f.Path), zap.Error(err))
		}
		p.ProcessedFiles++
		p.UniquePatients = len(patients)
	}

	p.CurrentFile = ""
	r.save(ctx, p)
	msg := fmt.Sprintf("processed %d files, %d patients, %d errors", p.ProcessedFiles, p.UniquePatients, p.Errors)
	r.finish(p, constants.TaskStatusSuccess, msg)
}

func (r *BatchRunner) save(ctx context.Context, p *entity.BatchProgress) {
	if err := r.batches.UpdateProgress(ctx, p); err != nil {
		r.logger.Warn("batch.progress.save_failed", zap.String("task_id", p.TaskID), zap.Error(err))
	}
}

// finish records the terminal state; it outlives the runner context.
func (r *BatchRunner) finish(p *entity.BatchProgress, status constants.TaskStatus, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	completed := r.now()
	p.Status = status
	p.CompletedAt = &completed
	p.Message = msg
	if err := r.batches.FinishBatch(ctx, p.TaskID, status, msg, completed); err != nil {
		r.logger.Error("batch.finish.save_failed", zap.String("task_id", p.TaskID), zap.Error(err))
	}
	r.metrics.BatchStatus(string(status))
	r.logger.Info("batch.finished",
		zap.String("task_id", p.TaskID),
		zap.String("status", string(status)),
		zap.Int("processed", p.ProcessedFiles),
		zap.Int("patients", p.UniquePatients),
		zap.Int("errors", p.Errors),
	)
}
