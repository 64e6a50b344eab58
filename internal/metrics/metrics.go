package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "medflow_ocr"

// Outcome labels for processed files.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeNotFound    = "not_found"
	OutcomeUnsupported = "unsupported"
)

// Metrics groups the collectors of the OCR service. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	filesProcessed     *prometheus.CounterVec
	extractionFailures *prometheus.CounterVec
	processingSeconds  *prometheus.HistogramVec
	thumbnailCache     *prometheus.CounterVec
	backendSends       *prometheus.CounterVec
	batches            *prometheus.CounterVec
	queueDepth         prometheus.Gauge
}

// New registers every collector on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		filesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Files run through the pipeline, by file type and outcome.",
		}, []string{"file_type", "outcome"}),
		extractionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_failures_total",
			Help:      "Extractor failures converted to empty extractions, by stage.",
		}, []string{"stage"}),
		processingSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "End-to-end ProcessFile latency by file type.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"file_type"}),
		thumbnailCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thumbnail_cache_total",
			Help:      "Thumbnail lookups by result (hit, miss, error).",
		}, []string{"result"}),
		backendSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_sends_total",
			Help:      "Results posted to the MedFlow backend, by outcome.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batch tasks reaching a status.",
		}, []string{"status"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting in the watcher queue.",
		}),
	}
	reg.MustRegister(
		m.filesProcessed,
		m.extractionFailures,
		m.processingSeconds,
		m.thumbnailCache,
		m.backendSends,
		m.batches,
		m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) FileProcessed(fileType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.filesProcessed.WithLabelValues(fileType, outcome).Inc()
	m.processingSeconds.WithLabelValues(fileType).Observe(d.Seconds())
}

func (m *Metrics) ExtractionFailed(stage string) {
	if m == nil {
		return
	}
	m.extractionFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ThumbnailHit() {
	if m == nil {
		return
	}
	m.thumbnailCache.WithLabelValues("hit").Inc()
}

func (m *Metrics) ThumbnailMiss() {
	if m == nil {
		return
	}
	m.thumbnailCache.WithLabelValues("miss").Inc()
}

func (m *Metrics) ThumbnailError() {
	if m == nil {
		return
	}
	m.thumbnailCache.WithLabelValues("error").Inc()
}

func (m *Metrics) BackendSend(ok bool) {
	if m == nil {
		return
	}
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	m.backendSends.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BatchStatus(status string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(status).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
