package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/models"
)

type memoryCollectionStore struct {
	items   map[string]models.Collection
	order   []string
	matches []models.CollectionMatch

	excludeText string
}

func newMemoryCollectionStore() *memoryCollectionStore {
	return &memoryCollectionStore{items: map[string]models.Collection{}}
}

func (m *memoryCollectionStore) Create(_ context.Context, c *models.Collection) (*models.Collection, error) {
	stored := *c
	stored.CreatedAt = time.Now()
	m.items[c.ID] = stored
	m.order = append([]string{c.ID}, m.order...)

	return &stored, nil
}

func (m *memoryCollectionStore) GetByID(_ context.Context, id string) (*models.Collection, error) {
	c, ok := m.items[id]
	if !ok {
		return nil, huberrors.NewNotFoundError("collection", "collection not found")
	}

	return &c, nil
}

func (m *memoryCollectionStore) List(_ context.Context, limit, offset int) ([]models.Collection, error) {
	var out []models.Collection

	for i, id := range m.order {
		if i < offset || len(out) == limit {
			continue
		}

		out = append(out, m.items[id])
	}

	return out, nil
}

func (m *memoryCollectionStore) Delete(_ context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return huberrors.NewNotFoundError("collection", "collection not found")
	}

	delete(m.items, id)

	return nil
}

func (m *memoryCollectionStore) Similar(
	_ context.Context, _ []float32, excludeText string, _ float64, _ int,
) ([]models.CollectionMatch, error) {
	m.excludeText = excludeText
	return m.matches, nil
}

type recordingCollectionEnqueuer struct{ ids []string }

func (r *recordingCollectionEnqueuer) EnqueueCollection(_ context.Context, id string) error {
	r.ids = append(r.ids, id)
	return nil
}

func TestCollectionsService_CreateCollection(t *testing.T) {
	t.Run("stores query embedding and hex id", func(t *testing.T) {
		store := newMemoryCollectionStore()
		svc := NewCollectionsService(CollectionsServiceParams{Embedder: &fakeEmbedder{}, Store: store, Docs: newFakeDocs()})

		c, err := svc.CreateCollection(context.Background(), &models.CreateCollectionRequest{
			Query: "best pasta", AIAnswer: "al dente", VideoIDs: []string{"v1"},
		})
		require.NoError(t, err)
		assert.Len(t, c.ID, 32)
		assert.NotContains(t, c.ID, "-")
		assert.Equal(t, []float32{1, 0, 0}, store.items[c.ID].QueryEmbedding)
	})

	t.Run("embedding failure saves and schedules a job", func(t *testing.T) {
		store := newMemoryCollectionStore()
		enq := &recordingCollectionEnqueuer{}
		svc := NewCollectionsService(CollectionsServiceParams{
			Embedder: &fakeEmbedder{err: errors.New("quota")},
			Store:    store,
			Docs:     newFakeDocs(),
			Enqueuer: enq,
		})

		c, err := svc.CreateCollection(context.Background(), &models.CreateCollectionRequest{Query: "boots"})
		require.NoError(t, err)
		assert.Nil(t, store.items[c.ID].QueryEmbedding)
		assert.Equal(t, []string{c.ID}, enq.ids)
	})
}

func TestCollectionsService_GetCollection(t *testing.T) {
	store := newMemoryCollectionStore()
	store.items["c1"] = models.Collection{
		ID:       "c1",
		Query:    "best pasta",
		VideoIDs: []string{"v3", "gone", "v1"},
		Metadata: map[string]any{
			"sources": []any{
				map[string]any{"video_id": "v3", "score": 0.7, "snippet": "sauce"},
			},
			"source_scores": map[string]any{"v1": 0.4, "v3": 0.9},
		},
	}

	svc := NewCollectionsService(CollectionsServiceParams{
		Embedder: &fakeEmbedder{},
		Store:    store,
		Docs:     newFakeDocs(doc("v1", "One", ""), doc("v3", "Three", "")),
	})

	got, err := svc.GetCollection(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, got.Videos, 2)

	assert.Equal(t, "v3", got.Videos[0].VideoID)
	assert.InDelta(t, 0.7, *got.Videos[0].Score, 1e-9)
	assert.Equal(t, "sauce", got.Videos[0].Snippet)
	assert.Equal(t, "v1", got.Videos[1].VideoID)
	assert.InDelta(t, 0.4, *got.Videos[1].Score, 1e-9)

	_, err = svc.GetCollection(context.Background(), "missing")
	assert.ErrorIs(t, err, huberrors.ErrNotFound)
}

func TestCollectionsService_FindSimilarCollections(t *testing.T) {
	store := newMemoryCollectionStore()
	store.matches = []models.CollectionMatch{{
		Collection: models.Collection{
			ID:       "c1",
			Query:    "best hiking boots",
			AIAnswer: "Buy sturdy boots [1].",
			VideoIDs: []string{"v1", "deleted"},
			Metadata: map[string]any{
				"source_scores": map[string]any{"v1": 0.9},
				"sources":       []any{map[string]any{"video_id": "v1", "score": 0.1}},
			},
		},
		Similarity: 0.92,
	}}

	docs := newFakeDocs(doc("v1", "Boots", "waterproof boots"))
	svc := NewCollectionsService(CollectionsServiceParams{Embedder: &fakeEmbedder{}, Store: store, Docs: docs})

	got, err := svc.FindSimilarCollections(context.Background(), "top hiking boots")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.92, got[0].Similarity, 1e-9)
	assert.Equal(t, "Buy sturdy boots [1].", got[0].AIAnswer)
	require.Len(t, got[0].Videos, 1)
	assert.InDelta(t, 0.9, *got[0].Videos[0].Score, 1e-9)
	assert.Equal(t, int32(1), docs.calls.Load())

	empty, err := svc.FindSimilarCollections(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCollectionsService_FindSimilarCollections_SkipsSameQuery(t *testing.T) {
	store := newMemoryCollectionStore()
	store.matches = []models.CollectionMatch{
		{Collection: models.Collection{ID: "same", Query: "  Best Hiking Boots "}, Similarity: 1},
		{Collection: models.Collection{ID: "other", Query: "trail running shoes"}, Similarity: 0.7},
	}

	svc := NewCollectionsService(CollectionsServiceParams{Embedder: &fakeEmbedder{}, Store: store, Docs: newFakeDocs()})

	got, err := svc.FindSimilarCollections(context.Background(), "best hiking boots")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "other", got[0].ID)
	assert.Equal(t, "best hiking boots", store.excludeText)
}

func TestCollectionsService_ListAndDelete(t *testing.T) {
	store := newMemoryCollectionStore()
	svc := NewCollectionsService(CollectionsServiceParams{Embedder: &fakeEmbedder{}, Store: store, Docs: newFakeDocs()})
	ctx := context.Background()

	first, err := svc.CreateCollection(ctx, &models.CreateCollectionRequest{Query: "one", VideoIDs: []string{"a", "b"}})
	require.NoError(t, err)
	second, err := svc.CreateCollection(ctx, &models.CreateCollectionRequest{Query: "two"})
	require.NoError(t, err)

	list, err := svc.ListCollections(ctx, &models.ListCollectionsFilters{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, 2, list[1].VideoCount)

	require.NoError(t, svc.DeleteCollection(ctx, first.ID))
	assert.ErrorIs(t, svc.DeleteCollection(ctx, first.ID), huberrors.ErrNotFound)
}
