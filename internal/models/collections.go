package models

import "time"

// Collection is a saved answer: the query, the generated answer and the ordered videos behind it.
// Collections are immutable once created.
type Collection struct {
	ID             string         `json:"id"`
	Query          string         `json:"query"`
	QueryEmbedding []float32      `json:"-"`
	AIAnswer       string         `json:"ai_answer"`
	VideoIDs       []string       `json:"video_ids"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// SourceScores reads metadata["source_scores"] as a video id to score map.
func (c *Collection) SourceScores() map[string]float64 {
	out := map[string]float64{}
	raw, ok := c.Metadata["source_scores"].(map[string]any)
	if !ok {
		return out
	}
	for id, v := range raw {
		if f, ok := toFloat(v); ok {
			out[id] = f
		}
	}
	return out
}

// SourceDetails reads metadata["sources"] keyed by video id.
func (c *Collection) SourceDetails() map[string]CollectionSource {
	out := map[string]CollectionSource{}
	list, ok := c.Metadata["sources"].([]any)
	if !ok {
		return out
	}
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["video_id"].(string)
		if id == "" {
			continue
		}
		src := CollectionSource{}
		if f, ok := toFloat(m["score"]); ok {
			src.Score = &f
		}
		if s, ok := m["snippet"].(string); ok {
			src.Snippet = s
		}
		out[id] = src
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// CollectionSource is the score and snippet recorded for one video when the collection was saved.
type CollectionSource struct {
	Score   *float64
	Snippet string
}

// CollectionVideo is a video inside a collection as returned by the API.
type CollectionVideo struct {
	VideoID     string   `json:"video_id"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Score       *float64 `json:"score,omitempty"`
	Snippet     string   `json:"snippet,omitempty"`
}

// CollectionDetail is a collection with its videos resolved.
type CollectionDetail struct {
	ID        string            `json:"id"`
	Query     string            `json:"query"`
	AIAnswer  string            `json:"ai_answer"`
	Videos    []CollectionVideo `json:"videos"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// CollectionSummary is one entry in the collection list.
type CollectionSummary struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	AIAnswer   string    `json:"ai_answer"`
	VideoCount int       `json:"video_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// SimilarCollection is a saved collection whose query is close to the current one.
type SimilarCollection struct {
	CollectionDetail

	Similarity float64 `json:"similarity"`
}

// CreateCollectionRequest is the body of POST /v1/collections.
type CreateCollectionRequest struct {
	Query    string         `json:"query" validate:"required,min=1,max=2000,no_null_bytes"`
	AIAnswer string         `json:"ai_answer" validate:"max=100000,no_null_bytes"`
	VideoIDs []string       `json:"video_ids" validate:"max=100,dive,min=1,max=255,no_null_bytes"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ListCollectionsFilters are the query parameters of GET /v1/collections.
type ListCollectionsFilters struct {
	Limit  int `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset int `form:"offset" validate:"omitempty,min=0"`
}

// CollectionMatch is a stored collection scored against a query embedding.
type CollectionMatch struct {
	Collection

	Similarity float64
}
