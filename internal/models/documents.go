package models

import "time"

// Document is one video with its transcript. Embedding is nil until the transcript
// has been embedded; documents without an embedding never appear in ANN results.
type Document struct {
	VideoID        string         `json:"video_id"`
	Source         string         `json:"source"`
	URL            string         `json:"url"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Author         string         `json:"author"`
	DurationSec    *int           `json:"duration_sec,omitempty"`
	Lang           string         `json:"lang,omitempty"`
	TranscriptText string         `json:"transcript_text"`
	Embedding      []float32      `json:"-"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// HasEmbedding reports whether the document participates in ANN search.
func (d *Document) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// Candidate is a document returned by ANN search together with its cosine distance.
type Candidate struct {
	Document

	ANNDistance     float64 `json:"ann_distance"`
	SimilarityScore float64 `json:"similarity_score"`
}

// NewCandidate builds a Candidate, deriving the similarity from the distance.
func NewCandidate(doc Document, distance float64) Candidate {
	return Candidate{Document: doc, ANNDistance: distance, SimilarityScore: 1 - distance}
}

// RankedHit is a candidate after cross-encoder reranking.
type RankedHit struct {
	Candidate

	RerankScore float64 `json:"rerank_score"`
	Snippet     string  `json:"snippet"`
}

// Transcript is the text of one video's transcript.
type Transcript struct {
	VideoID   string    `json:"video_id"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PutTranscriptRequest replaces the transcript text of a video.
type PutTranscriptRequest struct {
	Text string `json:"text" validate:"max=2000000,no_null_bytes"`
}
