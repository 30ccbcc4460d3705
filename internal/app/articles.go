package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prwatch/prwatch/internal/cli"
	"github.com/prwatch/prwatch/internal/db"
)

func runArticles(args []string) int {
	fs := flag.NewFlagSet("articles", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	company := fs.String("company", "", "Filter by company")
	sentiment := fs.String("sentiment", "", "Filter by sentiment label")
	fromRaw := fs.String("from", "", "Published date start, YYYY-MM-DD")
	toRaw := fs.String("to", "", "Published date end, YYYY-MM-DD")
	limit := fs.Int("limit", 25, "Maximum rows to return")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}
	if *limit < 1 || *limit > 500 {
		fmt.Fprintln(os.Stderr, "--limit must be between 1 and 500")
		return 2
	}

	from, err := parseUTCDate("--from", *fromRaw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	to, err := parseUTCDate("--to", *toRaw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel, _, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	articles, err := pool.ListArticles(ctx, db.ArticleListOptions{
		Company:   strings.TrimSpace(*company),
		Sentiment: strings.TrimSpace(*sentiment),
		From:      from,
		To:        to,
		Limit:     *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query articles: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(articles); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(articles))
	for _, article := range articles {
		rows = append(rows, []string{
			fmt.Sprintf("%d", article.ArticleID),
			article.PublishedDate.Format("2006-01-02"),
			article.Outlet,
			truncateForTable(article.Title, 60),
		})
	}
	if err := writeTable([]string{"id", "date", "outlet", "title"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}

	return 0
}

func truncateForTable(value string, maxLen int) string {
	trimmed := strings.TrimSpace(value)
	if maxLen <= 0 || utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}

	runes := []rune(trimmed)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
