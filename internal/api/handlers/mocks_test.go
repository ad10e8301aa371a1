package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/stretchr/testify/mock"

	"github.com/tipsearch/hub/internal/models"
)

type mockSearch struct{ mock.Mock }

func (m *mockSearch) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.SearchResponse)

	return res, args.Error(1)
}

type mockRAG struct{ mock.Mock }

func (m *mockRAG) Answer(ctx context.Context, req *models.RAGRequest) (*models.RAGResponse, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.RAGResponse)

	return res, args.Error(1)
}

type mockSimilarCollections struct{ mock.Mock }

func (m *mockSimilarCollections) FindSimilarCollections(ctx context.Context, query string) ([]models.SimilarCollection, error) {
	args := m.Called(ctx, query)
	res, _ := args.Get(0).([]models.SimilarCollection)

	return res, args.Error(1)
}

type mockFeedback struct{ mock.Mock }

func (m *mockFeedback) SaveFeedback(ctx context.Context, req *models.SaveFeedbackRequest) (*models.FeedbackRecord, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.FeedbackRecord)

	return res, args.Error(1)
}

func (m *mockFeedback) DeleteFeedback(ctx context.Context, query, videoID string) (int64, error) {
	args := m.Called(ctx, query, videoID)

	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFeedback) GetFeedback(ctx context.Context, query string, videoIDs []string) ([]models.VideoFeedback, error) {
	args := m.Called(ctx, query, videoIDs)
	res, _ := args.Get(0).([]models.VideoFeedback)

	return res, args.Error(1)
}

func (m *mockFeedback) FindSimilarQueries(ctx context.Context, query string) ([]models.SimilarQuery, error) {
	args := m.Called(ctx, query)
	res, _ := args.Get(0).([]models.SimilarQuery)

	return res, args.Error(1)
}

type mockCollections struct{ mock.Mock }

func (m *mockCollections) CreateCollection(ctx context.Context, req *models.CreateCollectionRequest) (*models.Collection, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.Collection)

	return res, args.Error(1)
}

func (m *mockCollections) GetCollection(ctx context.Context, id string) (*models.CollectionDetail, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.CollectionDetail)

	return res, args.Error(1)
}

func (m *mockCollections) ListCollections(
	ctx context.Context, filters *models.ListCollectionsFilters,
) ([]models.CollectionSummary, error) {
	args := m.Called(ctx, filters)
	res, _ := args.Get(0).([]models.CollectionSummary)

	return res, args.Error(1)
}

func (m *mockCollections) DeleteCollection(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockTranscripts struct{ mock.Mock }

func (m *mockTranscripts) GetTranscript(ctx context.Context, videoID string) (*models.Transcript, error) {
	args := m.Called(ctx, videoID)
	res, _ := args.Get(0).(*models.Transcript)

	return res, args.Error(1)
}

func (m *mockTranscripts) PutTranscript(ctx context.Context, videoID, text string) (*models.Transcript, error) {
	args := m.Called(ctx, videoID, text)
	res, _ := args.Get(0).(*models.Transcript)

	return res, args.Error(1)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	return req
}
