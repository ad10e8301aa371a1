package models

// Provenance says where a RAG source came from.
type Provenance string

const (
	ProvenanceSearch     Provenance = "search"
	ProvenanceCollection Provenance = "collection"
	ProvenanceFeedback   Provenance = "feedback"
)

// ExclusionReason explains why a video was kept out of fresh retrieval.
type ExclusionReason string

const (
	ReasonLikedInCollection    ExclusionReason = "liked_in_collection"
	ReasonDislikedInCollection ExclusionReason = "disliked_in_collection"
	ReasonLikedInQuery         ExclusionReason = "liked_in_query"
	ReasonBadFeedback          ExclusionReason = "bad_feedback"
)

// SearchRequest is the body of POST /v1/search/query.
type SearchRequest struct {
	Query string `json:"query" validate:"max=2000,no_null_bytes"`
	K     int    `json:"k" validate:"omitempty,min=1,max=100"`
	KANN  int    `json:"k_ann" validate:"omitempty,min=1,max=200"`
}

// SearchHit is one ranked video in a search response.
type SearchHit struct {
	VideoID     string  `json:"video_id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	URL         string  `json:"url"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Snippet     string  `json:"snippet"`
}

// SearchResponse is the result of a search.
type SearchResponse struct {
	Query string      `json:"query"`
	Hits  []SearchHit `json:"hits"`
	Total int         `json:"total"`
}

// RAGRequest is the body of POST /v1/search/rag.
type RAGRequest struct {
	Query  string `json:"query" validate:"required,min=1,max=2000,no_null_bytes"`
	KANN   int    `json:"k_ann" validate:"omitempty,min=1,max=100"`
	KFinal int    `json:"k_final" validate:"omitempty,min=1,max=20"`
}

// RAGSource is one piece of evidence used to generate the answer.
type RAGSource struct {
	VideoID    string     `json:"video_id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	URL        string     `json:"url"`
	Score      float64    `json:"score"`
	Snippet    string     `json:"snippet"`
	SourceType Provenance `json:"source_type"`
	Reference  string     `json:"reference,omitempty"`
}

// ExcludedVideo is a video kept out of fresh retrieval because of prior feedback.
type ExcludedVideo struct {
	VideoID   string          `json:"video_id"`
	Reason    ExclusionReason `json:"reason"`
	Reference string          `json:"reference,omitempty"`
}

// RAGResponse is the generated answer with its sources.
type RAGResponse struct {
	Query          string          `json:"query"`
	Answer         string          `json:"answer"`
	Sources        []RAGSource     `json:"sources"`
	ExcludedVideos []ExcludedVideo `json:"excluded_videos"`
}
