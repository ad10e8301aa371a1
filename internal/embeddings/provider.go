package embeddings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/observability"
	"github.com/tipsearch/hub/pkg/cache"
	vec "github.com/tipsearch/hub/pkg/embeddings"
)

const queryCacheName = "query_embedding"

// LoadFunc constructs the backend. It runs at most once per Provider.
type LoadFunc func(ctx context.Context) (Backend, error)

// ProviderParams holds dependencies for NewProvider.
type ProviderParams struct {
	Dimensions int
	// Timeout bounds every backend call. Zero means the caller's deadline only.
	Timeout time.Duration
	Load    LoadFunc
	// QueryCacheSize is the number of query vectors kept in memory; 0 disables the cache.
	QueryCacheSize int
	CacheMetrics   observability.CacheMetrics
	Logger         *slog.Logger
}

// Provider embeds text with a lazily constructed backend. Construction happens on first use,
// once per process, even under concurrent first calls; a construction failure is remembered
// and returned to every caller.
type Provider struct {
	dimensions   int
	timeout      time.Duration
	backend      func() (Backend, error)
	queryCache   *cache.LoaderCache[string, []float32]
	cacheMetrics observability.CacheMetrics
	logger       *slog.Logger
}

// NewProvider creates a Provider. The backend is not loaded until the first Embed call.
func NewProvider(params ProviderParams) (*Provider, error) {
	if params.Dimensions <= 0 {
		return nil, fmt.Errorf("embeddings: invalid dimensions %d", params.Dimensions)
	}

	if params.Load == nil {
		return nil, fmt.Errorf("embeddings: load function is required")
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		dimensions:   params.Dimensions,
		timeout:      params.Timeout,
		cacheMetrics: params.CacheMetrics,
		logger:       logger,
	}

	load := params.Load
	p.backend = sync.OnceValues(func() (Backend, error) {
		start := time.Now()

		b, err := load(context.Background())
		if err != nil {
			logger.Error("embedding backend failed to load", "error", err)
			return nil, huberrors.NewUnavailableError("embedding model", err)
		}

		logger.Info("embedding backend loaded", "dimensions", params.Dimensions, "duration", time.Since(start))

		return b, nil
	})

	if params.QueryCacheSize > 0 {
		c, err := cache.NewLoaderCache[string, []float32](params.QueryCacheSize, func(s string) string { return s })
		if err != nil {
			return nil, fmt.Errorf("embeddings: query cache: %w", err)
		}

		p.queryCache = c
	}

	return p, nil
}

// Dimensions returns D, the length of every vector this provider returns.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// Embed returns a unit-length vector of length D for text. Empty or whitespace-only text yields
// the zero vector without touching the backend.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return vec.Zero(p.dimensions), nil
	}

	return p.embed(ctx, text)
}

// EmbedQuery is Embed with an exact-text LRU in front. The returned slice may be shared
// between callers and must not be modified.
func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return vec.Zero(p.dimensions), nil
	}

	if p.queryCache == nil {
		return p.embed(ctx, text)
	}

	v, hit, err := p.queryCache.GetWithStats(ctx, text, p.embed)
	if err != nil {
		return nil, err
	}

	if p.cacheMetrics != nil {
		if hit {
			p.cacheMetrics.RecordHit(ctx, queryCacheName)
		} else {
			p.cacheMetrics.RecordMiss(ctx, queryCacheName)
		}
	}

	return v, nil
}

func (p *Provider) embed(ctx context.Context, text string) ([]float32, error) {
	backend, err := p.backend()
	if err != nil {
		return nil, err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	raw, err := backend.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	if len(raw) != p.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(raw), p.dimensions)
	}

	out := make([]float32, len(raw))
	copy(out, raw)
	vec.NormalizeL2(out)

	return out, nil
}
