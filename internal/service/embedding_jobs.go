package service

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/tipsearch/hub/internal/observability"
)

const (
	documentEmbeddingKind   = "document_embedding"
	collectionEmbeddingKind = "collection_embedding"
	// EmbeddingsQueueName is the River queue used for embedding jobs.
	EmbeddingsQueueName = "embeddings"
)

// embeddingUniqueStates dedupes against jobs that have not finished. Completed jobs are left out
// so a transcript edited after its last embedding always gets a new job; running is required by
// River and the worker reruns itself when the text changed underneath it.
var embeddingUniqueStates = []rivertype.JobState{
	rivertype.JobStatePending,
	rivertype.JobStateAvailable,
	rivertype.JobStateRunning,
	rivertype.JobStateRetryable,
	rivertype.JobStateScheduled,
}

// JobInserter inserts River jobs (the River client satisfies it).
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// DocumentEmbeddingArgs is the job payload for (re)computing one transcript embedding.
// Unique by VideoID so repeated transcript updates collapse into one pending job.
type DocumentEmbeddingArgs struct {
	VideoID string `json:"video_id" river:"unique"`
}

// Kind returns the River job kind.
func (DocumentEmbeddingArgs) Kind() string { return documentEmbeddingKind }

// CollectionEmbeddingArgs is the job payload for filling a collection's missing query embedding.
type CollectionEmbeddingArgs struct {
	CollectionID string `json:"collection_id" river:"unique"`
}

// Kind returns the River job kind.
func (CollectionEmbeddingArgs) Kind() string { return collectionEmbeddingKind }

var (
	_ river.JobArgs = DocumentEmbeddingArgs{}
	_ river.JobArgs = CollectionEmbeddingArgs{}
)

// EmbeddingEnqueuer enqueues embedding jobs. Enqueue failures are logged and counted; callers
// decide whether they are fatal.
type EmbeddingEnqueuer struct {
	inserter    JobInserter
	queueName   string
	maxAttempts int
	metrics     observability.EmbeddingMetrics
}

// NewEmbeddingEnqueuer creates an enqueuer. metrics may be nil when metrics are disabled.
func NewEmbeddingEnqueuer(
	inserter JobInserter, queueName string, maxAttempts int, metrics observability.EmbeddingMetrics,
) *EmbeddingEnqueuer {
	if queueName == "" {
		queueName = EmbeddingsQueueName
	}

	return &EmbeddingEnqueuer{
		inserter:    inserter,
		queueName:   queueName,
		maxAttempts: maxAttempts,
		metrics:     metrics,
	}
}

func (e *EmbeddingEnqueuer) insertOpts() *river.InsertOpts {
	return &river.InsertOpts{
		Queue:       e.queueName,
		MaxAttempts: e.maxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs:  true,
			ByState: embeddingUniqueStates,
		},
	}
}

func (e *EmbeddingEnqueuer) insert(ctx context.Context, kind string, args river.JobArgs, logAttrs ...any) error {
	_, err := e.inserter.Insert(ctx, args, e.insertOpts())
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordWorkerError(ctx, kind, "enqueue_failed")
		}

		slog.ErrorContext(ctx, "embedding: enqueue failed", append(logAttrs, "error", err)...)

		return err
	}

	slog.DebugContext(ctx, "embedding: job enqueued", logAttrs...)

	if e.metrics != nil {
		e.metrics.RecordJobsEnqueued(ctx, kind, 1)
	}

	return nil
}

// EnqueueDocument schedules a transcript embedding for videoID.
func (e *EmbeddingEnqueuer) EnqueueDocument(ctx context.Context, videoID string) error {
	return e.insert(ctx, "document", DocumentEmbeddingArgs{VideoID: videoID}, "video_id", videoID)
}

// EnqueueCollection schedules a query embedding for a collection.
func (e *EmbeddingEnqueuer) EnqueueCollection(ctx context.Context, collectionID string) error {
	return e.insert(ctx, "collection", CollectionEmbeddingArgs{CollectionID: collectionID}, "collection_id", collectionID)
}

// BackfillSource lists what still needs an embedding.
type BackfillSource interface {
	ListVideoIDsForBackfill(ctx context.Context) ([]string, error)
}

// CollectionBackfillSource lists collections without a query embedding.
type CollectionBackfillSource interface {
	ListIDsForBackfill(ctx context.Context) ([]string, error)
}

// BackfillResult counts what a backfill run enqueued.
type BackfillResult struct {
	Documents   int
	Collections int
	Failed      int
}

// Backfill enqueues jobs for every transcript and collection without an embedding.
// Individual enqueue failures are counted, not returned.
func (e *EmbeddingEnqueuer) Backfill(
	ctx context.Context, docs BackfillSource, collections CollectionBackfillSource,
) (BackfillResult, error) {
	var res BackfillResult

	videoIDs, err := docs.ListVideoIDsForBackfill(ctx)
	if err != nil {
		return res, err
	}

	for _, id := range videoIDs {
		if err := e.EnqueueDocument(ctx, id); err != nil {
			res.Failed++
			continue
		}

		res.Documents++
	}

	collectionIDs, err := collections.ListIDsForBackfill(ctx)
	if err != nil {
		return res, err
	}

	for _, id := range collectionIDs {
		if err := e.EnqueueCollection(ctx, id); err != nil {
			res.Failed++
			continue
		}

		res.Collections++
	}

	return res, nil
}
