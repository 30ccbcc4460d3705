package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prwatch/prwatch/internal/catalog"
	"github.com/prwatch/prwatch/internal/cli"
	"github.com/prwatch/prwatch/internal/globaltime"
	"github.com/prwatch/prwatch/internal/logging"
	"github.com/prwatch/prwatch/internal/risk"
)

func runRisk(args []string) int {
	fs := flag.NewFlagSet("risk", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")
	ipSlug := fs.String("ip", catalog.AggregateSlug, "IP slug from the catalog")
	at := fs.String("at", "", "Scoring instant, RFC3339 (default now)")
	windowHours := fs.Int("window-hours", 0, "Mention window in hours (default from config)")
	dryRun := fs.Bool("dry-run", false, "Compute without persisting the point")

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

	instant := globaltime.UTC()
	if parsed, err := parseOptionalRFC3339("--at", *at); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	} else if parsed != nil {
		instant = *parsed
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

	engine := risk.NewEngine(pool, cfg, logger)
	window := time.Duration(*windowHours) * time.Hour

	var point risk.Point
	if *dryRun {
		point, err = engine.Compute(ctx, ip, instant, window)
	} else {
		point, err = engine.ComputeAndPersist(ctx, ip, instant, window)
	}
	if err != nil {
		if errors.Is(err, risk.ErrInvalidRange) {
			fmt.Fprintf(os.Stderr, "Invalid window: %v\n", err)
			return 2
		}
		fmt.Fprintf(os.Stderr, "Risk computation failed: %v\n", err)
		return 1
	}

	if err := printJSON(point); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}
