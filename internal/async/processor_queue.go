package async

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/medflow/ocr-service/internal/common"
	"github.com/medflow/ocr-service/internal/metrics"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

type ProcessorQueue struct {
	proc    FileProcessor
	sink    ResultSink
	metrics *metrics.Metrics
	logger  *zap.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithQueueMetrics(m *metrics.Metrics) Option {
	return func(q *ProcessorQueue) { q.metrics = m }
}

// NewProcessorQueue starts the workers. sink may be nil.
func NewProcessorQueue(proc FileProcessor, sink ResultSink, logger *zap.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &ProcessorQueue{
		proc:    proc,
		sink:    sink,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", zap.Int("worker_id", workerID))
				for job := range q.ch {
					q.metrics.SetQueueDepth(len(q.ch))
					q.run(workerID, job)
				}
				q.logger.Debug("queue.worker.stopped", zap.Int("worker_id", workerID))
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	res := q.proc.ProcessFile(ctx, job.Path, job.Device, job.Thumbnail)
	log := q.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("path", job.Path),
		zap.Duration("waited", time.Since(job.SubmittedAt)),
	)
	if res.Failed() {
		log.Warn("queue.job.rejected", zap.String("error", res.Error))
	} else {
		log.Info("queue.job.done", zap.Float64("confidence", res.OCRConfidence))
	}
	if q.sink == nil {
		return
	}
	if err := q.sink.SaveResult(ctx, "", res); err != nil {
		log.Error("queue.job.save_failed", zap.Error(err))
	}
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", zap.String("path", job.Path))
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue.full", zap.String("path", job.Path))
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.metrics.SetQueueDepth(len(q.ch))
	q.logger.Debug("queue.enqueued", zap.String("path", job.Path))
	return nil
}

// Shutdown stops intake and waits for queued jobs to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
