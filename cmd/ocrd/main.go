// Command ocrd is the long-running OCR daemon: it watches device export
// folders, processes new files, and serves gRPC health and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/medflow/ocr-service/constants"
	"github.com/medflow/ocr-service/internal/async"
	"github.com/medflow/ocr-service/internal/common"
	"github.com/medflow/ocr-service/internal/ingest"
	"github.com/medflow/ocr-service/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	logger, err := common.NewLogger(cfg.Log)
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := server.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build components: %v", err)
	}
	log.Infow("components ready", "db", cfg.Database.Path, "engine", cfg.OCR.Engine)

	queue := async.NewProcessorQueue(c.Processor, c.Results, logger,
		async.WithWorkers(cfg.Batch.Workers),
		async.WithQueueSize(cfg.Batch.QueueSize),
		async.WithProcessTimeout(cfg.Batch.ProcessTimeout),
		async.WithQueueMetrics(c.Metrics),
	)

	if cfg.Watch.Enabled {
		if err := startWatch(ctx, cfg, queue, logger); err != nil {
			log.Fatalf("start watcher: %v", err)
		}
	}

	// gRPC server
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	monitor := server.NewShareMonitor(cfg.Shares, hs, logger)
	monitor.Check()
	scheduler, err := server.NewScheduler(ctx, cfg.Server.ShareCheckSpec, cfg.Server.PurgeExpiredSpec,
		monitor, server.NewPurger(c.Batches, logger), logger)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	scheduler.Start()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	go func() {
		log.Infof("gRPC serving on %s", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Errorf("grpc serve: %v", err)
			stop()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Metrics.Registry(), promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("metrics serving on %s", cfg.Server.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics serve: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	hs.Shutdown()

	graceCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	<-scheduler.Stop().Done()
	grpcServer.GracefulStop()
	if err := metricsServer.Shutdown(graceCtx); err != nil {
		log.Warnf("metrics shutdown: %v", err)
	}
	queue.Shutdown(graceCtx)
	c.Close(graceCtx)
	log.Info("stopped.")
}

// startWatch feeds files appearing under the watch roots into the queue.
func startWatch(ctx context.Context, cfg *common.Config, queue *async.ProcessorQueue, logger *zap.Logger) error {
	device, ok := constants.ParseDeviceType(cfg.Watch.Device)
	if !ok {
		device = constants.GENERIC
	}
	files, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       cfg.Watch.Roots,
		Extensions:  cfg.ExtensionSets().All(),
		InitialScan: true,
		Debounce:    cfg.Watch.Debounce,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	go func() {
		for err := range errs {
			logger.Warn("watcher error", zap.Error(err))
		}
	}()
	go func() {
		for path := range files {
			job := async.Job{
				Path:        path,
				Device:      device,
				Thumbnail:   true,
				SubmittedAt: time.Now(),
				TraceID:     uuid.NewString(),
			}
			if err := queue.Enqueue(ctx, job); err != nil {
				logger.Warn("enqueue failed", zap.String("path", path), zap.Error(err))
			}
		}
	}()
	logger.Info("watching folders", zap.Strings("roots", cfg.Watch.Roots), zap.String("device", string(device)))
	return nil
}
