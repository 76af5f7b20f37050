// Command badges-profile prints a read-only data quality report for a badge
// XML export.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"badgeetl/internal/cli"
	"badgeetl/internal/pipeline"
)

const job = "badges_profile"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	f, err := cli.Parse("badges-profile", args, os.Stderr)
	if err != nil {
		return cli.Exit(err, zap.NewNop())
	}
	log, err := cli.Logger(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	p, err := cli.LoadConfig(f, job)
	if err != nil {
		return cli.Exit(err, log)
	}
	if err := cli.CheckConfig(p, false, log); err != nil {
		return cli.Exit(err, log)
	}
	if f.Validate {
		log.Info("config: valid", zap.String("config", f.Config))
		return 0
	}

	flush := cli.SetupMetrics(f, p.Job, log)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Debug("pipeline: start", zap.String("job", p.Job), zap.String("input", p.Source.Location()))
	_, err = pipeline.RunProfile(ctx, p, os.Stdout, log)
	return cli.Exit(err, log)
}
