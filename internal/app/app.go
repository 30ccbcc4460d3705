package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "stats":
		return runStats(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "collect":
		return runCollect(args[1:])
	case "risk":
		return runRisk(args[1:])
	case "backtest":
		return runBacktest(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "articles":
		return runArticles(args[1:])
	case "purge":
		return runPurge(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "prwatch CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  prwatch <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  stats     Show row counts and data freshness")
	fmt.Fprintln(os.Stderr, "  ingest    Insert one article payload JSON")
	fmt.Fprintln(os.Stderr, "  collect   Fetch news search results for one IP")
	fmt.Fprintln(os.Stderr, "  risk      Compute and persist one risk point")
	fmt.Fprintln(os.Stderr, "  backtest  Replay the risk engine over a past range")
	fmt.Fprintln(os.Stderr, "  watch     Run the adaptive polling daemon")
	fmt.Fprintln(os.Stderr, "  articles  List stored articles")
	fmt.Fprintln(os.Stderr, "  purge     Delete test data or rows past retention")
	fmt.Fprintln(os.Stderr, "  serve     Start Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"prwatch <command> -h\" for command-specific flags.")
}
