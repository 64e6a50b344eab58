package server

import (
	"context"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/medflow/ocr-service/internal/ingest"
	repo "github.com/medflow/ocr-service/internal/repository"
)

// ShareServicePrefix names the per-share health services ("medflow.share.zeiss").
const ShareServicePrefix = "medflow.share."

// ShareMonitor publishes network share reachability as gRPC health status.
type ShareMonitor struct {
	shares map[string]string
	health *health.Server
	logger *zap.Logger
}

func NewShareMonitor(shares map[string]string, hs *health.Server, logger *zap.Logger) *ShareMonitor {
	return &ShareMonitor{shares: shares, health: hs, logger: logger}
}

// Check probes every share. The overall service stays SERVING while at
// least one share is reachable.
func (m *ShareMonitor) Check() map[string]bool {
	status := ingest.CheckNetworkShares(m.shares)
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)

	var down []string
	for _, name := range names {
		st := healthpb.HealthCheckResponse_SERVING
		if !status[name] {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			down = append(down, name)
		}
		m.health.SetServingStatus(ShareServicePrefix+name, st)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if len(names) > 0 && len(down) == len(names) {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	m.health.SetServingStatus("", overall)
	if len(down) > 0 {
		m.logger.Warn("shares.unreachable", zap.Strings("shares", down))
	}
	return status
}

// Purger removes expired batches.
type Purger struct {
	batches repo.BatchRepository
	logger  *zap.Logger
	now     func() time.Time
}

func NewPurger(batches repo.BatchRepository, logger *zap.Logger) *Purger {
	return &Purger{batches: batches, logger: logger, now: time.Now}
}

func (p *Purger) Run(ctx context.Context) {
	n, err := p.batches.PurgeExpired(ctx, p.now())
	if err != nil {
		p.logger.Error("batches.purge.failed", zap.Error(err))
		return
	}
	p.logger.Debug("batches.purged", zap.Int64("count", n))
}

// NewScheduler registers the share check and the purge on their cron specs.
// The caller starts and stops it.
func NewScheduler(ctx context.Context, shareSpec, purgeSpec string, monitor *ShareMonitor, purger *Purger, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := c.AddFunc(shareSpec, func() { monitor.Check() }); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc(purgeSpec, func() { purger.Run(ctx) }); err != nil {
		return nil, err
	}
	logger.Info("scheduler configured",
		zap.String("share_check", shareSpec),
		zap.String("purge_expired", purgeSpec),
	)
	return c, nil
}
