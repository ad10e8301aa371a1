package embeddings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tipsearch/hub/internal/config"
	"github.com/tipsearch/hub/internal/huberrors"
	vec "github.com/tipsearch/hub/pkg/embeddings"
)

type mockBackend struct {
	createFunc func(ctx context.Context, input string) ([]float32, error)
	calls      atomic.Int32
}

func (m *mockBackend) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.calls.Add(1)
	return m.createFunc(ctx, input)
}

func newTestProvider(t *testing.T, backend Backend, cacheSize int) *Provider {
	t.Helper()

	p, err := NewProvider(ProviderParams{
		Dimensions:     4,
		Timeout:        time.Second,
		Load:           func(context.Context) (Backend, error) { return backend, nil },
		QueryCacheSize: cacheSize,
	})
	require.NoError(t, err)

	return p
}

func TestProvider_Embed(t *testing.T) {
	t.Run("blank text returns zero vector without calling the backend", func(t *testing.T) {
		backend := &mockBackend{createFunc: func(context.Context, string) ([]float32, error) {
			t.Fatal("backend must not be called")
			return nil, nil
		}}
		p := newTestProvider(t, backend, 0)

		for _, text := range []string{"", "   ", "\n\t"} {
			v, err := p.Embed(context.Background(), text)
			require.NoError(t, err)
			assert.Len(t, v, 4)
			assert.True(t, vec.IsZero(v))
		}
	})

	t.Run("normalizes backend output to unit length", func(t *testing.T) {
		backend := &mockBackend{createFunc: func(context.Context, string) ([]float32, error) {
			return []float32{3, 4, 0, 0}, nil
		}}
		p := newTestProvider(t, backend, 0)

		v, err := p.Embed(context.Background(), "pasta")
		require.NoError(t, err)
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
	})

	t.Run("rejects vectors of the wrong dimension", func(t *testing.T) {
		backend := &mockBackend{createFunc: func(context.Context, string) ([]float32, error) {
			return []float32{1, 2}, nil
		}}
		p := newTestProvider(t, backend, 0)

		_, err := p.Embed(context.Background(), "pasta")
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("applies the configured deadline", func(t *testing.T) {
		backend := &mockBackend{createFunc: func(ctx context.Context, _ string) ([]float32, error) {
			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
			return []float32{1, 0, 0, 0}, nil
		}}
		p := newTestProvider(t, backend, 0)

		_, err := p.Embed(context.Background(), "pasta")
		require.NoError(t, err)
	})

	t.Run("trims input before embedding", func(t *testing.T) {
		var got string
		backend := &mockBackend{createFunc: func(_ context.Context, input string) ([]float32, error) {
			got = input
			return []float32{1, 0, 0, 0}, nil
		}}
		p := newTestProvider(t, backend, 0)

		_, err := p.Embed(context.Background(), "  hiking boots \n")
		require.NoError(t, err)
		assert.Equal(t, "hiking boots", got)
	})
}

func TestProvider_LoadFailureIsFatalAndRemembered(t *testing.T) {
	var loads atomic.Int32
	loadErr := errors.New("model weights not found")

	p, err := NewProvider(ProviderParams{
		Dimensions: 4,
		Load: func(context.Context) (Backend, error) {
			loads.Add(1)
			return nil, loadErr
		},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Embed(context.Background(), "pasta")
			assert.ErrorIs(t, err, ErrModelUnavailable)
			assert.ErrorIs(t, err, huberrors.ErrUnavailable)
			assert.ErrorIs(t, err, loadErr)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())

	v, err := p.Embed(context.Background(), " ")
	require.NoError(t, err, "blank input never needs the backend")
	assert.True(t, vec.IsZero(v))
}

func TestProvider_LoadsBackendOnce(t *testing.T) {
	var loads atomic.Int32
	backend := &mockBackend{createFunc: func(context.Context, string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}}

	p, err := NewProvider(ProviderParams{
		Dimensions: 4,
		Load: func(context.Context) (Backend, error) {
			loads.Add(1)
			return backend, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), loads.Load(), "construction is lazy")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Embed(context.Background(), "pasta")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
}

type recordingCacheMetrics struct {
	hits, misses atomic.Int32
}

func (r *recordingCacheMetrics) RecordHit(context.Context, string)  { r.hits.Add(1) }
func (r *recordingCacheMetrics) RecordMiss(context.Context, string) { r.misses.Add(1) }

func TestProvider_EmbedQueryUsesCache(t *testing.T) {
	backend := &mockBackend{createFunc: func(context.Context, string) ([]float32, error) {
		return []float32{0, 2, 0, 0}, nil
	}}
	metrics := &recordingCacheMetrics{}

	p, err := NewProvider(ProviderParams{
		Dimensions:     4,
		Load:           func(context.Context) (Backend, error) { return backend, nil },
		QueryCacheSize: 10,
		CacheMetrics:   metrics,
	})
	require.NoError(t, err)

	first, err := p.EmbedQuery(context.Background(), "how to cook pasta")
	require.NoError(t, err)
	second, err := p.EmbedQuery(context.Background(), "  how to cook pasta  ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []float32{0, 1, 0, 0}, second)
	assert.Equal(t, int32(1), backend.calls.Load())
	assert.Equal(t, int32(1), metrics.hits.Load())
	assert.Equal(t, int32(1), metrics.misses.Load())
}

func TestHashBackend(t *testing.T) {
	b := NewHashBackend(384)

	a1, err := b.CreateEmbedding(context.Background(), "how to cook pasta")
	require.NoError(t, err)
	a2, err := b.CreateEmbedding(context.Background(), "how to cook pasta")
	require.NoError(t, err)
	other, err := b.CreateEmbedding(context.Background(), "hiking boots")
	require.NoError(t, err)

	assert.Len(t, a1, 384)
	assert.Equal(t, a1, a2, "deterministic for identical text")
	assert.NotEqual(t, a1, other)

	for _, v := range a1 {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestLoadFromConfig(t *testing.T) {
	t.Run("hash provider needs no credentials", func(t *testing.T) {
		load := LoadFromConfig(&config.Config{EmbeddingProvider: config.EmbeddingProviderHash, EmbeddingDimensions: 8})

		b, err := load(context.Background())
		require.NoError(t, err)
		assert.IsType(t, &HashBackend{}, b)
	})

	t.Run("openai without key fails to load", func(t *testing.T) {
		load := LoadFromConfig(&config.Config{EmbeddingProvider: config.EmbeddingProviderOpenAI, EmbeddingDimensions: 8})

		_, err := load(context.Background())
		assert.Error(t, err)
	})

	t.Run("provider surfaces load failure as unavailable", func(t *testing.T) {
		p, err := NewProvider(ProviderParams{
			Dimensions: 8,
			Load:       LoadFromConfig(&config.Config{EmbeddingProvider: config.EmbeddingProviderGoogle, EmbeddingDimensions: 8}),
		})
		require.NoError(t, err)

		_, err = p.EmbedQuery(context.Background(), "pasta")
		assert.ErrorIs(t, err, ErrModelUnavailable)
	})
}
