// Package embeddings turns text into fixed-dimension, unit-length vectors for ANN search.
package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"strings"

	"github.com/tipsearch/hub/internal/huberrors"
)

// Backend produces raw embedding vectors. Implementations: openai.Client, googleai.Client, HashBackend.
type Backend interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// ErrModelUnavailable matches errors returned when the backend could not be loaded.
// Callers must treat it as fatal for the request; retrying will not help.
var ErrModelUnavailable = huberrors.ErrUnavailable

// ErrDimensionMismatch is returned when a backend yields a vector of the wrong length.
var ErrDimensionMismatch = errors.New("embeddings: dimension mismatch")

// HashBackend derives a deterministic pseudo-embedding from SHA-256 of the text.
// Vectors carry no semantics beyond exact-text identity; use it for local runs and tests.
type HashBackend struct {
	dimensions int
}

// NewHashBackend creates a HashBackend producing vectors of the given dimension.
func NewHashBackend(dimensions int) *HashBackend {
	return &HashBackend{dimensions: dimensions}
}

// CreateEmbedding returns a vector in [-1, 1]^D seeded by repeated SHA-256 blocks of input.
func (h *HashBackend) CreateEmbedding(_ context.Context, input string) ([]float32, error) {
	out := make([]float32, h.dimensions)
	seed := sha256.Sum256([]byte(strings.TrimSpace(input)))

	block := seed
	for i := 0; i < h.dimensions; i++ {
		off := (i * 2) % len(block)
		if i > 0 && off == 0 {
			block = sha256.Sum256(block[:])
		}
		v := binary.BigEndian.Uint16(block[off : off+2])
		out[i] = float32(v)/32767.5 - 1
	}

	return out, nil
}
