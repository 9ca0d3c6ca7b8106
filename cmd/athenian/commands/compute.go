// Package commands implements CLI command handlers for athenian.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmarkovtsev/athenian-api/pkg/checkrun"
	"github.com/vmarkovtsev/athenian-api/pkg/config"
	"github.com/vmarkovtsev/athenian-api/pkg/metrics/concurrency"
	"github.com/vmarkovtsev/athenian-api/pkg/observability"
	"github.com/vmarkovtsev/athenian-api/pkg/resultstore"
	"github.com/vmarkovtsev/athenian-api/pkg/version"
)

// Input format identifiers.
const (
	InputFormatAuto  = "auto"
	InputFormatCSV   = "csv"
	InputFormatJSONL = "jsonl"
)

const (
	stdinPath          = "-"
	metricsReadTimeout = 10 * time.Second
)

var (
	// ErrUnknownInputFormat is returned for an unrecognized --input-format.
	ErrUnknownInputFormat = errors.New("unknown input format (want auto, csv, or jsonl)")

	// ErrAmbiguousInput is returned when the input format cannot be inferred.
	ErrAmbiguousInput = errors.New("cannot infer input format, pass --input-format")
)

// ComputeCommand holds configuration and dependencies for the compute command.
type ComputeCommand struct {
	configPath  string
	inputFormat string
	format      string
	outputPath  string
	savePath    string

	workers       int
	bucket        time.Duration
	quantileMin   float64
	quantileMax   float64
	metricsListen string

	verbose bool
	noColor bool
}

// NewComputeCommand creates the compute command.
func NewComputeCommand() *cobra.Command {
	cc := &ComputeCommand{
		inputFormat: InputFormatAuto,
		format:      FormatTable,
		quantileMin: 0,
		quantileMax: 1,
	}

	cmd := &cobra.Command{
		Use:   "compute <input>",
		Short: "Compute concurrency metrics from check run data",
		Long: "Compute per-run concurrency ratios and per-group summaries from " +
			"a CSV or JSON-lines dump of CI check runs. Pass '-' to read stdin.",
		Args: cobra.ExactArgs(1),
		RunE: cc.run,
	}

	cmd.Flags().StringVarP(&cc.configPath, "config", "c", "", "Config file path (default: ./athenian.yaml)")
	cmd.Flags().StringVar(&cc.inputFormat, "input-format", InputFormatAuto, "Input format: auto, csv, jsonl")
	cmd.Flags().StringVarP(&cc.format, "format", "f", FormatTable, "Output format: table, json, yaml, csv")
	cmd.Flags().StringVarP(&cc.outputPath, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&cc.savePath, "save", "", "Save a compressed result snapshot to this path")
	cmd.Flags().IntVar(&cc.workers, "workers", 0, "Parallel sweep workers (0 = one per CPU)")
	cmd.Flags().DurationVar(&cc.bucket, "bucket", 0, "Split repositories into time buckets of this size (0 = off)")
	cmd.Flags().Float64Var(&cc.quantileMin, "quantile-min", 0, "Lower elapsed-time clipping quantile")
	cmd.Flags().Float64Var(&cc.quantileMax, "quantile-max", 1, "Upper elapsed-time clipping quantile")
	cmd.Flags().StringVar(&cc.metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address while computing")
	cmd.Flags().BoolVarP(&cc.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().BoolVar(&cc.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func (cc *ComputeCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cc.configPath)
	if err != nil {
		return err
	}

	cc.applyConfig(cmd, cfg)

	obs, err := observability.Init(cc.observabilityConfig(cfg))
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	defer func() {
		shutdownErr := obs.Shutdown(context.WithoutCancel(ctx))
		if shutdownErr != nil {
			obs.Logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	metrics, err := cc.startMetrics(obs)
	if err != nil {
		return err
	}

	runs, err := cc.loadRuns(args[0])
	if err != nil {
		return err
	}

	obs.Logger.Debug("loaded check runs", "count", len(runs), "input", args[0])

	started := time.Now()

	result, err := concurrency.Analyze(ctx, runs, concurrency.Options{
		Quantiles:  [2]float64{cc.quantileMin, cc.quantileMax},
		BucketSize: cc.bucket,
		Workers:    cc.workers,
	})
	if err != nil {
		return fmt.Errorf("analyze check runs: %w", err)
	}

	metrics.RecordAnalysis(ctx, cc.inputFormat, len(runs), len(result.Summaries), time.Since(started))
	obs.Logger.Info("analysis complete",
		"runs", len(result.Runs), "groups", len(result.Summaries), "elapsed", time.Since(started))

	if cc.savePath != "" {
		saveErr := resultstore.SaveFile(cc.savePath, result)
		if saveErr != nil {
			return saveErr
		}

		obs.Logger.Info("snapshot saved", "path", cc.savePath)
	}

	return cc.render(cmd.OutOrStdout(), result)
}

// applyConfig fills in flag values the user did not set from the loaded config.
func (cc *ComputeCommand) applyConfig(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if !flags.Changed("workers") {
		cc.workers = cfg.Analysis.Workers
	}

	if !flags.Changed("bucket") {
		cc.bucket = cfg.Analysis.Bucket
	}

	if !flags.Changed("quantile-min") {
		cc.quantileMin = cfg.Analysis.QuantileMin
	}

	if !flags.Changed("quantile-max") {
		cc.quantileMax = cfg.Analysis.QuantileMax
	}

	if !flags.Changed("metrics-listen") {
		cc.metricsListen = cfg.Telemetry.MetricsListen
	}
}

func (cc *ComputeCommand) observabilityConfig(cfg *config.Config) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = cfg.Telemetry.OTLPHeaders
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.LogJSON = cfg.Logging.Format == "json"
	obsCfg.LogLevel = parseLogLevel(cfg.Logging.Level)

	if cc.verbose {
		obsCfg.LogLevel = slog.LevelDebug
	}

	return obsCfg
}

// startMetrics builds the analysis instruments and, when --metrics-listen is
// set, serves a Prometheus scrape endpoint for the duration of the process.
func (cc *ComputeCommand) startMetrics(obs observability.Providers) (*observability.AnalysisMetrics, error) {
	if cc.metricsListen == "" {
		return observability.NewAnalysisMetrics(obs.Meter)
	}

	handler, provider, err := observability.PrometheusHandler()
	if err != nil {
		return nil, err
	}

	server := &http.Server{
		Addr:        cc.metricsListen,
		Handler:     handler,
		ReadTimeout: metricsReadTimeout,
	}

	go func() {
		serveErr := server.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			obs.Logger.Warn("metrics listener failed", "error", serveErr)
		}
	}()

	return observability.NewAnalysisMetrics(provider.Meter("athenian"))
}

func (cc *ComputeCommand) loadRuns(path string) ([]checkrun.CheckRun, error) {
	var reader io.Reader

	if path == stdinPath {
		reader = os.Stdin
	} else {
		file, openErr := os.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open input: %w", openErr)
		}

		defer file.Close()

		reader = file
	}

	format, err := resolveInputFormat(path, cc.inputFormat)
	if err != nil {
		return nil, err
	}

	if format == InputFormatCSV {
		return checkrun.LoadCSV(reader)
	}

	return checkrun.LoadJSONLines(reader)
}

func (cc *ComputeCommand) render(stdout io.Writer, result *concurrency.Result) error {
	writer := stdout

	if cc.outputPath != "" {
		file, err := os.Create(cc.outputPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}

		defer file.Close()

		writer = file
	}

	return renderResult(writer, result, cc.format, cc.noColor)
}

// resolveInputFormat infers the input format from the file extension when
// the user asked for auto detection.
func resolveInputFormat(path, requested string) (string, error) {
	switch requested {
	case InputFormatCSV, InputFormatJSONL:
		return requested, nil
	case InputFormatAuto:
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownInputFormat, requested)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return InputFormatCSV, nil
	case ".jsonl", ".ndjson", ".json":
		return InputFormatJSONL, nil
	}

	return "", fmt.Errorf("%w: %q", ErrAmbiguousInput, path)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
