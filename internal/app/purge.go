package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prwatch/prwatch/internal/cli"
	"github.com/prwatch/prwatch/internal/db"
	"github.com/prwatch/prwatch/internal/globaltime"
)

func runPurge(args []string) int {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	testOnly := fs.Bool("test-data", false, "Delete only articles flagged as test data")
	olderThanDays := fs.Int("older-than-days", 0, "Delete rows older than N days (default PW_RETENTION_DAYS)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *olderThanDays < 0 {
		fmt.Fprintln(os.Stderr, "--older-than-days must be >= 0")
		return 2
	}
	if *testOnly && *olderThanDays > 0 {
		fmt.Fprintln(os.Stderr, "--test-data and --older-than-days are mutually exclusive")
		return 2
	}

	ctx, cancel, cfg, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	var result db.PurgeResult
	if *testOnly {
		result, err = pool.PurgeTestArticles(ctx)
	} else {
		days := *olderThanDays
		if days == 0 {
			days = cfg.RetentionDays
		}
		cutoff := globaltime.UTC().AddDate(0, 0, -days)
		result, err = pool.PurgeOlderThan(ctx, cutoff)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Purge failed: %v\n", err)
		return 1
	}

	if err := printJSON(result); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}
