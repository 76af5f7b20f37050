// Package cli holds the flag handling shared by the badge binaries: config
// loading with flag overrides, logger construction and metrics backend
// selection.
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"badgeetl/internal/config"
	"badgeetl/internal/etlerr"
	"badgeetl/internal/logging"
	"badgeetl/internal/metrics"
	"badgeetl/internal/metrics/datadog"
	"badgeetl/internal/metrics/prompush"
)

// Flags are the command-line options common to both jobs.
type Flags struct {
	Config         string
	Input          string
	Output         string
	Verbose        bool
	Validate       bool
	MetricsBackend string
	PushgatewayURL string
	StatsdAddr     string
}

// Parse reads args into Flags.
func Parse(name string, args []string, stderr io.Writer) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.Config, "config", "", "pipeline config JSON path (e.g. configs/pipelines/badges.json)")
	fs.StringVar(&f.Input, "input", "", "badge XML export path or http(s) URL (overrides the configured source)")
	fs.StringVar(&f.Output, "output", "", "Parquet output directory (overrides export.path)")
	fs.BoolVar(&f.Verbose, "v", false, "enable verbose logs")
	fs.BoolVar(&f.Validate, "validate", false, "validate the configuration and exit")
	fs.StringVar(&f.MetricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (env METRICS_BACKEND)")
	fs.StringVar(&f.PushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
	fs.StringVar(&f.StatsdAddr, "statsd-addr", "", "DogStatsD address (env DD_DOGSTATSD_ADDR)")
	if err := fs.Parse(args); err != nil {
		return f, fmt.Errorf("%w: %w", etlerr.ErrConfig, err)
	}
	return f, nil
}

// LoadConfig loads the pipeline for job and applies the flag overrides.
func LoadConfig(f Flags, job string) (config.Pipeline, error) {
	p, err := config.Load(f.Config, job)
	if err != nil {
		return p, fmt.Errorf("%w: %w", etlerr.ErrConfig, err)
	}
	switch {
	case strings.HasPrefix(f.Input, "http://"), strings.HasPrefix(f.Input, "https://"):
		p.Source.Kind = "http"
		p.Source.HTTP.URL = f.Input
	case f.Input != "":
		p.Source.Kind = "file"
		p.Source.File.Path = f.Input
	}
	if f.Output != "" {
		p.Export.Path = f.Output
	}
	return p, nil
}

// CheckConfig logs every validation issue and fails when any is an error.
func CheckConfig(p config.Pipeline, needExport bool, log *zap.Logger) error {
	issues := config.ValidatePipeline(p, needExport)
	for _, iss := range issues {
		fields := []zap.Field{zap.String("path", iss.Path), zap.String("message", iss.Message)}
		if iss.Severity == config.SeverityError {
			log.Error("config: invalid", fields...)
		} else {
			log.Warn("config: suspicious", fields...)
		}
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("%w: %d issue(s)", etlerr.ErrConfig, len(issues))
	}
	return nil
}

// Logger builds the process logger.
func Logger(f Flags) (*zap.Logger, error) {
	return logging.New(f.Verbose)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// SetupMetrics installs the selected backend and returns the function that
// flushes it at shutdown. Backend selection is flag, then env, then none.
// A backend that fails to initialise leaves metrics disabled.
func SetupMetrics(f Flags, job string, log *zap.Logger) func() {
	name := strings.ToLower(firstNonEmpty(f.MetricsBackend, os.Getenv("METRICS_BACKEND"), "none"))
	var (
		b   metrics.Backend
		err error
	)
	switch name {
	case "pushgateway":
		url := firstNonEmpty(f.PushgatewayURL, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
		b, err = prompush.NewBackend(job, url)
		log.Debug("metrics: pushgateway", zap.String("url", url), zap.String("job", job))
	case "datadog":
		addr := firstNonEmpty(f.StatsdAddr, os.Getenv("DD_DOGSTATSD_ADDR"), "127.0.0.1:8125")
		b, err = datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "badges.", GlobalTags: []string{"job:" + job}})
		log.Debug("metrics: datadog", zap.String("addr", addr), zap.String("job", job))
	case "none":
		log.Debug("metrics: disabled")
		return func() {}
	default:
		log.Warn("metrics: unknown backend; metrics disabled", zap.String("backend", name))
		return func() {}
	}
	if err != nil {
		log.Warn("metrics: backend init failed; using nop", zap.String("backend", name), zap.Error(err))
		return func() {}
	}
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics: flush failed", zap.Error(err))
		}
	}
}

// Exit logs err at the right level and returns the process exit code.
func Exit(err error, log *zap.Logger) int {
	code := etlerr.ExitCode(err)
	switch {
	case err == nil:
	case code == etlerr.ExitOK:
		log.Warn("run finished with warnings", zap.Error(err))
	default:
		log.Error("run failed", zap.Error(err), zap.Int("exit_code", code))
	}
	return code
}
