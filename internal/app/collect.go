package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prwatch/prwatch/internal/catalog"
	"github.com/prwatch/prwatch/internal/cli"
	"github.com/prwatch/prwatch/internal/collector"
	"github.com/prwatch/prwatch/internal/ingest"
	"github.com/prwatch/prwatch/internal/langdetect"
	"github.com/prwatch/prwatch/internal/logging"
)

func runCollect(args []string) int {
	fs := flag.NewFlagSet("collect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")
	ipSlug := fs.String("ip", catalog.AggregateSlug, "IP slug from the catalog")
	maxItems := fs.Int("max-items", 100, "Maximum items to fetch")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	ip, err := catalog.Resolve(*ipSlug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unknown IP %q, known slugs: %s\n", *ipSlug, catalogSlugs())
		return 2
	}
	if *maxItems < 1 {
		fmt.Fprintln(os.Stderr, "--max-items must be >= 1")
		return 2
	}

	ctx, cancel, cfg, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	client := collector.NewNaverClient(cfg.NaverClientID, cfg.NaverClientSecret)
	if !client.Configured() {
		fmt.Fprintln(os.Stderr, "NAVER_CLIENT_ID and NAVER_CLIENT_SECRET must be set")
		return 2
	}

	ingestSvc := ingest.NewService(pool, langdetect.Detector{}, cfg.TitleSimilarityThreshold, logger)
	svc := collector.NewService(client, ingestSvc, cfg.Company, logger)

	result, err := svc.CollectOnce(ctx, ip, *maxItems)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Collect failed: %v\n", err)
		return 1
	}

	if err := printJSON(result); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}
