// backfill-embeddings enqueues River embedding jobs for transcripts that have text but no
// embedding and for collections saved without a query embedding. Workers in the API process
// run the jobs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/tipsearch/hub/internal/observability"
	"github.com/tipsearch/hub/internal/repository"
	"github.com/tipsearch/hub/internal/service"
	"github.com/tipsearch/hub/pkg/database"
)

const (
	defaultEmbeddingMaxAttempts = 3
	exitSuccess                 = 0
	exitFailure                 = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	slog.SetDefault(observability.NewLogger(os.Stdout, os.Getenv("LOG_LEVEL")))

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("DATABASE_URL is required")
		return exitFailure
	}

	maxAttempts := getEnvAsInt("EMBEDDING_MAX_ATTEMPTS", defaultEmbeddingMaxAttempts)
	if maxAttempts <= 0 {
		maxAttempts = defaultEmbeddingMaxAttempts
	}

	ctx := context.Background()

	db, err := database.NewPostgresPool(ctx, databaseURL, database.WithAfterConnect(pgxvec.RegisterTypes))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return exitFailure
	}
	defer db.Close()

	// Insert-only client: no workers, no queues started.
	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		return exitFailure
	}

	enqueuer := service.NewEmbeddingEnqueuer(riverClient, service.EmbeddingsQueueName, maxAttempts, nil)

	res, err := enqueuer.Backfill(ctx,
		repository.NewDocumentsRepository(db),
		repository.NewCollectionsRepository(db),
	)
	if err != nil {
		slog.Error("Backfill failed", "error", err)
		return exitFailure
	}

	slog.Info("Backfill complete", "documents", res.Documents, "collections", res.Collections, "failed", res.Failed)

	fmt.Printf("Enqueued %d document and %d collection embedding job(s), %d failed.\n",
		res.Documents, res.Collections, res.Failed)

	if res.Failed > 0 {
		return exitFailure
	}

	return exitSuccess
}

func getEnvAsInt(key string, defaultValue int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}

	return n
}
