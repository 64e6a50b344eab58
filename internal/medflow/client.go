// Package medflow hands OCR results to the MedFlow backend for patient
// matching.
package medflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/medflow/ocr-service/internal/common"
	"github.com/medflow/ocr-service/internal/entity"
	"github.com/medflow/ocr-service/internal/metrics"
)

const resultsPath = "/api/ocr/results"

// SendSummary counts a SendResults call. Total includes skipped results.
type SendSummary struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

type Config struct {
	BackendURL       string
	Timeout          time.Duration
	RequestsPerSec   float64
	BreakerFailures  uint32
	BreakerOpenDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RequestsPerSec <= 0 {
		c.RequestsPerSec = 10
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerOpenDelay <= 0 {
		c.BreakerOpenDelay = 30 * time.Second
	}
	return c
}

type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]byte]
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func NewClient(cfg Config, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	c := &Client{
		endpoint: strings.TrimRight(cfg.BackendURL, "/") + resultsPath,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), max(1, int(cfg.RequestsPerSec))),
		logger:   logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "medflow-backend",
		Timeout: cfg.BreakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("medflow.breaker.state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	for _, o := range opts {
		o(c)
	}
	return c
}

// SendResults posts every result that carries no Error. A failure on one
// result does not stop the others.
func (c *Client) SendResults(ctx context.Context, results []*entity.OCRResult, autoLinkThreshold float64) SendSummary {
	summary := SendSummary{Total: len(results)}
	for _, r := range results {
		if r == nil || r.Failed() {
			continue
		}
		if err := c.Send(ctx, r, autoLinkThreshold); err != nil {
			summary.Failed++
			c.logger.Warn("medflow.send.failed", zap.String("file_path", r.FilePath), zap.Error(err))
			continue
		}
		summary.Sent++
	}
	c.logger.Info("medflow.send.done",
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("total", summary.Total),
	)
	return summary
}

// Send validates and posts one result.
func (c *Client) Send(ctx context.Context, r *entity.OCRResult, autoLinkThreshold float64) error {
	body, err := json.Marshal(NewResultPayload(r, autoLinkThreshold))
	if err != nil {
		return common.NewAppError(common.CodeInvalidInput, "encode payload", err)
	}
	if err := ValidatePayload(body); err != nil {
		return common.NewAppError(common.CodeInvalidInput, "invalid payload for "+r.FilePath, errors.Join(common.ErrInvalidInput, err))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	_, err = c.breaker.Execute(func() ([]byte, error) {
		return postJSON(ctx, c.http, c.endpoint, reqID, body, c.logger)
	})
	c.metrics.BackendSend(err == nil)
	if err != nil {
		return common.NewAppError(common.CodeUpstream, "post result", errors.Join(common.ErrUpstream, err))
	}
	return nil
}
