package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prwatch/prwatch/internal/backtest"
	"github.com/prwatch/prwatch/internal/catalog"
	"github.com/prwatch/prwatch/internal/cli"
	"github.com/prwatch/prwatch/internal/logging"
	"github.com/prwatch/prwatch/internal/risk"
)

func runBacktest(args []string) int {
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	ipSlug := fs.String("ip", catalog.AggregateSlug, "IP slug from the catalog")
	fromRaw := fs.String("from", "", "Range start, RFC3339 (required)")
	toRaw := fs.String("to", "", "Range end, RFC3339 (required)")
	windowHours := fs.Int("window-hours", 0, "Mention window in hours (default from config)")
	stepHours := fs.Int("step-hours", 1, "Hours between replayed points, 1 to 24")
	weightS := fs.Float64("weight-sentiment", -1, "Sentiment weight override")
	weightV := fs.Float64("weight-volume", -1, "Volume weight override")
	weightT := fs.Float64("weight-theme", -1, "Theme weight override")
	weightM := fs.Float64("weight-outlet", -1, "Outlet weight override")
	persist := fs.Bool("persist", false, "Write replayed points to the risk table")
	format := fs.String("format", outputFormatJSON, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	from, err := parseOptionalRFC3339("--from", *fromRaw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	to, err := parseOptionalRFC3339("--to", *toRaw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if from == nil || to == nil {
		fmt.Fprintln(os.Stderr, "--from and --to are required")
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

	engine := risk.NewEngine(pool, cfg, logger)
	runner := backtest.NewRunner(pool, engine, logger)

	// Unset weight flags inherit the configured split, so overriding one
	// component does not zero the rest.
	var weights *risk.Weights
	if *weightS >= 0 || *weightV >= 0 || *weightT >= 0 || *weightM >= 0 {
		w := engine.Params().Weights
		if *weightS >= 0 {
			w.Sentiment = *weightS
		}
		if *weightV >= 0 {
			w.Volume = *weightV
		}
		if *weightT >= 0 {
			w.Theme = *weightT
		}
		if *weightM >= 0 {
			w.Outlet = *weightM
		}
		weights = &w
	}

	result, err := runner.Run(ctx, backtest.Params{
		IP:          *ipSlug,
		From:        *from,
		To:          *to,
		WindowHours: *windowHours,
		StepHours:   *stepHours,
		Weights:     weights,
		Persist:     *persist,
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrUnsupportedIP):
			fmt.Fprintf(os.Stderr, "Unknown IP %q, known slugs: %s\n", *ipSlug, catalogSlugs())
			return 2
		case errors.Is(err, risk.ErrInvalidRange):
			fmt.Fprintf(os.Stderr, "Invalid range: %v\n", err)
			return 2
		default:
			fmt.Fprintf(os.Stderr, "Backtest failed: %v\n", err)
			return 1
		}
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	pointRows := make([][]string, 0, len(result.Points))
	for _, p := range result.Points {
		pointRows = append(pointRows, []string{
			p.TS.UTC().Format(time.RFC3339),
			fmt.Sprintf("%.1f", p.RiskScore),
			p.AlertLevel,
			fmt.Sprintf("%d", p.SampleSize),
			p.QualityFlag,
		})
	}
	if err := writeTable([]string{"ts", "score", "alert", "samples", "quality"}, pointRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render point table: %v\n", err)
		return 1
	}

	fmt.Println()
	summaryRows := [][]string{
		{"points", fmt.Sprintf("%d", result.Summary.Points)},
		{"max_score", fmt.Sprintf("%.1f", result.Summary.MaxScore)},
		{"max_risk_at", result.Summary.MaxRiskAt.UTC().Format(time.RFC3339)},
		{"avg_score", fmt.Sprintf("%.1f", result.Summary.AvgScore)},
		{"p1_count", fmt.Sprintf("%d", result.Summary.P1Count)},
		{"p2_count", fmt.Sprintf("%d", result.Summary.P2Count)},
		{"dominant_component", result.Summary.DominantComponent},
		{"events", fmt.Sprintf("%d", len(result.Events))},
	}
	if err := writeTable([]string{"metric", "value"}, summaryRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render summary table: %v\n", err)
		return 1
	}

	return 0
}
