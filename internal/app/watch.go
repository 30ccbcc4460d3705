package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prwatch/prwatch/internal/cli"
	"github.com/prwatch/prwatch/internal/collector"
	"github.com/prwatch/prwatch/internal/db"
	"github.com/prwatch/prwatch/internal/ingest"
	"github.com/prwatch/prwatch/internal/langdetect"
	"github.com/prwatch/prwatch/internal/logging"
	"github.com/prwatch/prwatch/internal/risk"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "watch does not accept positional arguments")
		return 2
	}

	cfg, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("watch failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	client := collector.NewNaverClient(cfg.NaverClientID, cfg.NaverClientSecret)
	if !client.Configured() {
		fmt.Fprintln(os.Stderr, "NAVER_CLIENT_ID and NAVER_CLIENT_SECRET must be set")
		return 2
	}

	ingestSvc := ingest.NewService(pool, langdetect.Detector{}, cfg.TitleSimilarityThreshold, logger)
	collectorSvc := collector.NewService(client, ingestSvc, cfg.Company, logger)
	engine := risk.NewEngine(pool, cfg, logger)
	watcher := collector.NewWatcher(pool, collectorSvc, engine, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("watch daemon failed")
		fmt.Fprintf(os.Stderr, "Watch daemon failed: %v\n", err)
		return 1
	}

	return 0
}
