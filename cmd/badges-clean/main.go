// Command badges-clean cleans a badge XML export and writes it as a
// partitioned Parquet directory, then reads the output back to validate it.
// When storage.kind is configured the clean table is also mirrored into a
// database.
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

	// Every storage backend is built in; the config picks one.
	_ "badgeetl/internal/storage/all"
)

const job = "badges_cleaning"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	f, err := cli.Parse("badges-clean", args, os.Stderr)
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
	if err := cli.CheckConfig(p, true, log); err != nil {
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

	log.Debug("pipeline: start",
		zap.String("job", p.Job),
		zap.String("input", p.Source.Location()),
		zap.String("output", p.Export.Path),
		zap.String("storage", p.Storage.Kind),
	)
	res, err := pipeline.RunClean(ctx, p, os.Stdout, log)
	if res != nil && res.Warnings != nil {
		log.Warn("pipeline: non-fatal findings", zap.Error(res.Warnings))
	}
	return cli.Exit(err, log)
}
