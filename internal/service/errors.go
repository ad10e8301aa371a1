// Package service implements search, retrieval-augmented answers, relevance feedback and collections.
package service

import "errors"

// Sentinel errors used by handlers for status mapping.
var (
	ErrEmptyQuery = errors.New("query is required and must be non-empty")
	ErrRetrieval  = errors.New("retrieval failed")
	ErrEmbedding  = errors.New("embedding failed")
	ErrGeneration = errors.New("answer generation failed")
)
