// Command ocr-batch scans, previews or imports a device export folder.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/medflow/ocr-service/constants"
	"github.com/medflow/ocr-service/internal/async"
	"github.com/medflow/ocr-service/internal/common"
	"github.com/medflow/ocr-service/internal/ingest"
	"github.com/medflow/ocr-service/internal/server"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type options struct {
	dir         string
	device      constants.DeviceType
	scan        bool
	preview     bool
	recursive   bool
	maxFiles    int
	maxPatients int
	out         string
	send        bool
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config.yaml (optional)")
		inmem       = flag.Bool("inmem", false, "use an in-memory SQLite database")
		dir         = flag.String("dir", "", "folder to process (required)")
		device      = flag.String("device", string(constants.GENERIC), "device type: zeiss, solix, tomey, quantel, generic")
		scan        = flag.Bool("scan", false, "only count files and print share status")
		preview     = flag.Bool("preview", false, "only print the patient groups that would be imported")
		recursive   = flag.Bool("recursive", true, "descend into subfolders")
		maxFiles    = flag.Int("max-files", async.DefaultBatchMaxFiles, "maximum files to process")
		maxPatients = flag.Int("max-patients", async.DefaultBatchMaxPatients, "maximum patients to import")
		out         = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		send        = flag.Bool("send", false, "send results to the MedFlow backend")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(2)
	}
	dt, ok := constants.ParseDeviceType(*device)
	if !ok {
		printError("Error: unknown device type %q\n", *device)
		os.Exit(2)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "ocr_results.xlsx")
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if *inmem {
		cfg.Database.Path = ":memory:"
	}
	logger, err := common.NewLogger(cfg.Log)
	if err != nil {
		printError("Error: build logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = run(ctx, cfg, logger, options{
		dir:         *dir,
		device:      dt,
		scan:        *scan,
		preview:     *preview,
		recursive:   *recursive,
		maxFiles:    *maxFiles,
		maxPatients: *maxPatients,
		out:         *out,
		send:        *send,
	})
	stop()
	_ = logger.Sync()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *zap.Logger, o options) error {
	c, err := server.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	switch {
	case o.scan:
		res, err := c.Scanner.ScanFolder(ctx, o.dir, ingest.ScanOptions{Recursive: o.recursive})
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"scan":   res,
			"shares": ingest.CheckNetworkShares(cfg.Shares),
		})
	case o.preview:
		groups, err := c.Scanner.FilesForImport(ctx, o.dir, o.device, ingest.ImportOptions{
			MaxPatients: o.maxPatients,
			Recursive:   o.recursive,
		})
		if err != nil {
			return err
		}
		return printJSON(groups)
	}

	taskID, err := c.Runner.Submit(ctx, async.BatchRequest{
		FolderPath:  o.dir,
		DeviceType:  o.device,
		MaxFiles:    o.maxFiles,
		MaxPatients: o.maxPatients,
		Recursive:   o.recursive,
	})
	if err != nil {
		return err
	}
	logger.Info("batch submitted", zap.String("task_id", taskID), zap.String("dir", o.dir))

	done := make(chan struct{})
	go func() {
		c.Runner.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("interrupted, cancelling batch", zap.String("task_id", taskID))
		c.Runner.Shutdown(context.Background())
	}

	progress, err := c.Runner.Status(ctx, taskID)
	if err != nil {
		return err
	}
	if progress.Status != constants.TaskStatusSuccess {
		return fmt.Errorf("batch %s ended %s: %s", taskID, progress.Status, progress.Message)
	}

	data, err := c.Export.ExportBatchXLSX(ctx, taskID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(o.out, data, 0o644); err != nil {
		return common.WrapError(err, "write "+o.out)
	}
	logger.Info("export written", zap.String("path", o.out), zap.Int("bytes", len(data)))

	summary := map[string]any{"batch": progress, "export": o.out}
	if o.send {
		results, err := c.Results.ListResults(ctx, taskID)
		if err != nil {
			return err
		}
		summary["backend"] = c.Backend.SendResults(ctx, results, cfg.Match.AutoLinkThreshold)
	}
	return printJSON(summary)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
