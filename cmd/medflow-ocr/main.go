// Command medflow-ocr runs a single file through the OCR pipeline and prints
// the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/medflow/ocr-service/constants"
	"github.com/medflow/ocr-service/internal/common"
	"github.com/medflow/ocr-service/internal/metrics"
	"github.com/medflow/ocr-service/internal/server"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code so deferred cleanup always runs.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("medflow-ocr", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "path to config.yaml (optional)")
		device     = fs.String("device", string(constants.GENERIC), "device type: zeiss, solix, tomey, quantel, generic")
		noThumb    = fs.Bool("no-thumb", false, "skip thumbnail generation")
		timeout    = fs.Duration("timeout", 2*time.Minute, "processing timeout")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: medflow-ocr [flags] <file>")
		return 2
	}
	dt, ok := constants.ParseDeviceType(*device)
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown device type %q\n", *device)
		return 2
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger, err := common.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: build logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	proc, engine, _ := server.NewProcessor(cfg, metrics.New(), logger)
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			logger.Warn("close ocr engine", zap.Error(cerr))
		}
	}()

	res := proc.ProcessFile(ctx, fs.Arg(0), dt, !*noThumb)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error("encode result", zap.Error(err))
		return 1
	}
	if res.Failed() {
		return 1
	}
	return 0
}
