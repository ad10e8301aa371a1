// Package main loads transcripts from a CSV file into the hub through its HTTP API.
//
// The CSV needs a header row with at least video_id and text columns. Each row replaces the
// stored transcript for that video and the hub re-embeds it in the background.
//
// Usage:
//
//	go run ./scripts/ingest-transcripts -file transcripts.csv -api-url http://localhost:8080 -api-key KEY
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/tipsearch/hub/internal/models"
	"github.com/tipsearch/hub/internal/observability"
	"github.com/tipsearch/hub/pkg/hub"
)

type options struct {
	filePath string
	apiURL   string
	apiKey   string
	rps      float64
	dryRun   bool
}

type stats struct {
	rows     int
	skipped  int
	stored   int
	notFound int
	failed   int
}

type row struct {
	line    int
	videoID string
	text    string
}

// transcriptPutter is the part of the hub client this tool needs.
type transcriptPutter interface {
	PutTranscript(ctx context.Context, videoID, text string) (*models.Transcript, error)
}

func main() {
	opts := parseFlags()

	slog.SetDefault(observability.NewLogger(os.Stderr, "info"))

	if opts.filePath == "" || opts.apiKey == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(opts.filePath)
	if err != nil {
		slog.Error("Failed to open file", "error", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	rows, err := readRows(f)
	if err != nil {
		slog.Error("Failed to read CSV", "error", err)
		os.Exit(1)
	}

	var client transcriptPutter
	if !opts.dryRun {
		client = hub.NewClient(opts.apiURL, opts.apiKey)
	}

	st := ingest(ctx, client, rate.NewLimiter(rate.Limit(opts.rps), 1), rows)

	slog.Info("Ingestion finished",
		"rows", st.rows, "skipped", st.skipped, "stored", st.stored,
		"not_found", st.notFound, "failed", st.failed)

	if st.failed > 0 || st.notFound > 0 {
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options

	flag.StringVar(&opts.filePath, "file", "", "CSV file with video_id and text columns (required)")
	flag.StringVar(&opts.apiURL, "api-url", "http://localhost:8080", "Hub API base URL")
	flag.StringVar(&opts.apiKey, "api-key", os.Getenv("API_KEY"), "API key (defaults to $API_KEY)")
	flag.Float64Var(&opts.rps, "rps", 10, "Maximum requests per second")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Parse the CSV without calling the API")
	flag.Parse()

	return opts
}

// readRows parses the CSV. Column order is taken from the header; extra columns are ignored.
func readRows(r io.Reader) ([]row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idCol, textCol := -1, -1

	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "video_id":
			idCol = i
		case "text", "transcript", "transcript_text":
			textCol = i
		}
	}

	if idCol < 0 || textCol < 0 {
		return nil, errors.New("header must contain video_id and text columns")
	}

	var rows []row

	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}

		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		item := row{line: line}
		if idCol < len(rec) {
			item.videoID = strings.TrimSpace(rec[idCol])
		}

		if textCol < len(rec) {
			item.text = rec[textCol]
		}

		rows = append(rows, item)
	}
}

// ingest stores each row in order. A nil client only counts rows.
func ingest(ctx context.Context, client transcriptPutter, limiter *rate.Limiter, rows []row) stats {
	var st stats

	for _, r := range rows {
		st.rows++

		if r.videoID == "" {
			slog.Warn("Skipping row without video_id", "line", r.line)

			st.skipped++

			continue
		}

		if client == nil {
			st.stored++
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			st.failed += len(rows) - st.rows + 1
			return st
		}

		_, err := client.PutTranscript(ctx, r.videoID, r.text)

		switch {
		case err == nil:
			st.stored++
		case hub.IsNotFound(err):
			slog.Warn("Unknown video", "line", r.line, "video_id", r.videoID)

			st.notFound++
		default:
			slog.Error("Failed to store transcript", "line", r.line, "video_id", r.videoID, "error", err)

			st.failed++
		}
	}

	return st
}
