package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tipsearch/hub/internal/models"
)

type fakeEmbedder struct {
	calls atomic.Int32
	err   error
}

// EmbedQuery maps a few words onto fixed axes so similarity is easy to reason about.
func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)

	if f.err != nil {
		return nil, f.err
	}

	vec := []float32{0, 0, 0}

	switch {
	case strings.Contains(text, "pasta"):
		vec[0] = 1
	case strings.Contains(text, "boots"):
		vec[1] = 1
	default:
		vec[2] = 1
	}

	return vec, nil
}

type fakeDocs struct {
	docs  map[string]models.Document
	calls atomic.Int32
	err   error
}

func newFakeDocs(docs ...models.Document) *fakeDocs {
	m := make(map[string]models.Document, len(docs))
	for _, d := range docs {
		m[d.VideoID] = d
	}

	return &fakeDocs{docs: m}
}

func (f *fakeDocs) GetByIDs(_ context.Context, ids []string) ([]models.Document, error) {
	f.calls.Add(1)

	if f.err != nil {
		return nil, f.err
	}

	var out []models.Document

	for _, id := range ids {
		if d, ok := f.docs[id]; ok {
			out = append(out, d)
		}
	}

	return out, nil
}

func doc(id, title, transcript string) models.Document {
	return models.Document{
		VideoID:        id,
		Title:          title,
		Author:         "author " + id,
		URL:            "https://example.com/" + id,
		TranscriptText: transcript,
	}
}

type feedbackKey struct{ query, videoID string }

// memoryFeedbackStore keeps one label per (query, video) like the unique constraint does.
type memoryFeedbackStore struct {
	mu      sync.Mutex
	records map[feedbackKey]models.FeedbackRecord
	similar []models.SimilarQuery
	calls   atomic.Int32
}

func newMemoryFeedbackStore() *memoryFeedbackStore {
	return &memoryFeedbackStore{records: map[feedbackKey]models.FeedbackRecord{}}
}

func (m *memoryFeedbackStore) Upsert(
	_ context.Context, query string, vec []float32, videoID string, label models.FeedbackLabel,
) (*models.FeedbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.Add(1)

	rec := models.FeedbackRecord{Query: query, QueryEmbedding: vec, VideoID: videoID, Label: label}
	m.records[feedbackKey{query, videoID}] = rec

	return &rec, nil
}

func (m *memoryFeedbackStore) Delete(_ context.Context, query, videoID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.Add(1)

	if _, ok := m.records[feedbackKey{query, videoID}]; !ok {
		return 0, nil
	}

	delete(m.records, feedbackKey{query, videoID})

	return 1, nil
}

func (m *memoryFeedbackStore) LabelsForVideos(_ context.Context, query string, ids []string) ([]models.VideoFeedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.Add(1)

	var out []models.VideoFeedback

	for _, id := range ids {
		if rec, ok := m.records[feedbackKey{query, id}]; ok {
			out = append(out, models.VideoFeedback{VideoID: id, Label: rec.Label})
		}
	}

	return out, nil
}

func (m *memoryFeedbackStore) ListByQuery(_ context.Context, query string) ([]models.VideoFeedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.VideoFeedback

	for k, rec := range m.records {
		if k.query == query {
			out = append(out, models.VideoFeedback{VideoID: k.videoID, Label: rec.Label})
		}
	}

	return out, nil
}

func (m *memoryFeedbackStore) SimilarQueries(
	_ context.Context, _ []float32, exclude string, _ float64, limit int,
) ([]models.SimilarQuery, error) {
	norm := strings.ToLower(strings.TrimSpace(exclude))

	var out []models.SimilarQuery

	for _, sq := range m.similar {
		if strings.ToLower(strings.TrimSpace(sq.Query)) == norm {
			continue
		}

		if len(out) == limit {
			break
		}

		out = append(out, sq)
	}

	return out, nil
}
