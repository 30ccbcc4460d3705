package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prwatch/prwatch/internal/cli"
	"github.com/prwatch/prwatch/internal/globaltime"
	"github.com/prwatch/prwatch/internal/ingest"
	"github.com/prwatch/prwatch/internal/langdetect"
	"github.com/prwatch/prwatch/internal/logging"
	payloadschema "github.com/prwatch/prwatch/schema"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")
	payload := fs.String("payload", "", "Article payload JSON")
	payloadFile := fs.String("payload-file", "", "Path to payload JSON file (overrides --payload)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	payloadJSON, err := loadJSONInput(*payload, *payloadFile, "payload")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	validated, err := payloadschema.ValidateArticlePayload(payloadJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Payload rejected: %v\n", err)
		return 2
	}

	incoming, err := incomingFromPayload(validated)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Payload rejected: %v\n", err)
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

	svc := ingest.NewService(pool, langdetect.Detector{}, cfg.TitleSimilarityThreshold, logger)

	outcome, err := svc.InsertArticle(ctx, incoming)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to ingest article: %v\n", err)
		return 1
	}

	if err := printJSON(outcome); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}

func incomingFromPayload(payload *payloadschema.ArticlePayload) (ingest.IncomingArticle, error) {
	incoming := ingest.IncomingArticle{
		Company: strings.TrimSpace(payload.Company),
		Title:   strings.TrimSpace(payload.Title),
		IsTest:  payload.IsTest,
	}
	if payload.Description != nil {
		incoming.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.OriginalLink != nil {
		incoming.OriginalLink = strings.TrimSpace(*payload.OriginalLink)
	}
	if payload.MirrorLink != nil {
		incoming.MirrorLink = strings.TrimSpace(*payload.MirrorLink)
	}

	if payload.PublishedAt != nil {
		at, err := parseOptionalRFC3339("published_at", *payload.PublishedAt)
		if err != nil {
			return incoming, err
		}
		incoming.PublishedAt = at
	}

	switch {
	case payload.PublishedDate != nil && strings.TrimSpace(*payload.PublishedDate) != "":
		day, err := parseUTCDate("published_date", *payload.PublishedDate)
		if err != nil {
			return incoming, err
		}
		incoming.PublishedDate = day
	case incoming.PublishedAt != nil:
		incoming.PublishedDate = incoming.PublishedAt.UTC().Truncate(24 * time.Hour)
	default:
		incoming.PublishedDate = globaltime.UTC().Truncate(24 * time.Hour)
	}

	return incoming, nil
}

func loadJSONInput(inlineValue, filePath, label string) (json.RawMessage, error) {
	if path := strings.TrimSpace(filePath); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s file %q: %w", label, path, err)
		}
		trimmed := strings.TrimSpace(string(payload))
		if trimmed == "" {
			return nil, fmt.Errorf("%s file %q is empty", label, path)
		}
		return json.RawMessage(trimmed), nil
	}

	trimmed := strings.TrimSpace(inlineValue)
	if trimmed == "" {
		return nil, fmt.Errorf("%s JSON is empty", label)
	}
	return json.RawMessage(trimmed), nil
}
