package medflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// StatusError reports a non-2xx backend reply.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx status: %d", e.Status)
}

// postJSON sends an already-encoded JSON body and returns the raw response.
func postJSON(ctx context.Context, client *http.Client, url, reqID string, body []byte, logger *zap.Logger) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logger.Error("medflow.http.build_request_error", zap.String("req_id", reqID), zap.Error(err))
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("medflow.http.send_error",
			zap.String("req_id", reqID),
			zap.Error(err),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("medflow.http.response_body_close_error", zap.String("req_id", reqID), zap.Error(err))
		}
	}(resp.Body)

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	logger.Debug("medflow.http.response",
		zap.String("req_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	if resp.StatusCode/100 != 2 {
		return raw, &StatusError{Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
