package models

import (
	"errors"
	"time"
)

// FeedbackLabel is a human relevance judgment for a (query, video) pair.
type FeedbackLabel string

const (
	FeedbackGood FeedbackLabel = "good"
	FeedbackBad  FeedbackLabel = "bad"
)

// ErrInvalidFeedbackLabel is returned when a label is neither good nor bad.
var ErrInvalidFeedbackLabel = errors.New("feedback must be 'good' or 'bad'")

// ParseFeedbackLabel validates a raw label.
func ParseFeedbackLabel(raw string) (FeedbackLabel, error) {
	switch FeedbackLabel(raw) {
	case FeedbackGood, FeedbackBad:
		return FeedbackLabel(raw), nil
	default:
		return "", ErrInvalidFeedbackLabel
	}
}

// FeedbackRecord is one stored judgment. (Query, VideoID) is unique.
type FeedbackRecord struct {
	Query          string        `json:"query"`
	QueryEmbedding []float32     `json:"-"`
	VideoID        string        `json:"video_id"`
	Label          FeedbackLabel `json:"feedback"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// VideoFeedback is the latest label stored for one video under a query.
type VideoFeedback struct {
	VideoID string        `json:"video_id"`
	Label   FeedbackLabel `json:"feedback"`
}

// SimilarQuery is a past query close to the current one, with the videos judged under it.
type SimilarQuery struct {
	Query      string   `json:"query"`
	Similarity float64  `json:"similarity"`
	GoodVideos []string `json:"good_videos"`
	BadVideos  []string `json:"bad_videos"`
}

// SaveFeedbackRequest is the body of POST /v1/search/feedback.
type SaveFeedbackRequest struct {
	Query    string `json:"query" validate:"required,min=1,max=2000,no_null_bytes"`
	VideoID  string `json:"video_id" validate:"required,min=1,max=255,no_null_bytes"`
	Feedback string `json:"feedback" validate:"required,feedback_label"`
}

// DeleteFeedbackRequest is the body of DELETE /v1/search/feedback.
type DeleteFeedbackRequest struct {
	Query   string `json:"query" validate:"required,min=1,max=2000,no_null_bytes"`
	VideoID string `json:"video_id" validate:"required,min=1,max=255,no_null_bytes"`
}

// GetFeedbackRequest is the body of POST /v1/search/feedback/get.
type GetFeedbackRequest struct {
	Query    string   `json:"query" validate:"required,min=1,max=2000,no_null_bytes"`
	VideoIDs []string `json:"video_ids" validate:"max=500,dive,min=1,max=255,no_null_bytes"`
}

// SimilarRequest is the body of the similar-queries and similar-collections lookups.
type SimilarRequest struct {
	Query string `json:"query" validate:"max=2000,no_null_bytes"`
}
