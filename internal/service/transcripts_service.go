package service

import (
	"context"
	"log/slog"

	"github.com/tipsearch/hub/internal/models"
)

// TranscriptStore reads and replaces transcripts.
type TranscriptStore interface {
	GetTranscript(ctx context.Context, videoID string) (*models.Transcript, error)
	PutTranscript(ctx context.Context, videoID, text string) (*models.Transcript, error)
}

// DocumentEnqueuer schedules a transcript embedding.
type DocumentEnqueuer interface {
	EnqueueDocument(ctx context.Context, videoID string) error
}

// TranscriptsService manages transcript text and keeps embeddings in step with it.
type TranscriptsService struct {
	store    TranscriptStore
	enqueuer DocumentEnqueuer
	logger   *slog.Logger
}

// NewTranscriptsService creates a TranscriptsService.
func NewTranscriptsService(store TranscriptStore, enqueuer DocumentEnqueuer, logger *slog.Logger) *TranscriptsService {
	if logger == nil {
		logger = slog.Default()
	}

	return &TranscriptsService{store: store, enqueuer: enqueuer, logger: logger}
}

// GetTranscript returns the transcript of a video.
func (s *TranscriptsService) GetTranscript(ctx context.Context, videoID string) (*models.Transcript, error) {
	return s.store.GetTranscript(ctx, videoID)
}

// PutTranscript replaces the transcript and schedules re-embedding. An enqueue failure is logged;
// the backfill command picks the transcript up later.
func (s *TranscriptsService) PutTranscript(ctx context.Context, videoID, text string) (*models.Transcript, error) {
	t, err := s.store.PutTranscript(ctx, videoID, text)
	if err != nil {
		return nil, err
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueDocument(ctx, videoID); err != nil {
			s.logger.WarnContext(ctx, "transcript saved but embedding not scheduled", "video_id", videoID, "error", err)
		}
	}

	return t, nil
}
