package embeddings

import (
	"context"
	"fmt"

	"github.com/tipsearch/hub/internal/config"
	"github.com/tipsearch/hub/internal/googleai"
	"github.com/tipsearch/hub/internal/openai"
)

// LoadFromConfig returns the LoadFunc for cfg.EmbeddingProvider. Credentials are checked when
// the function runs, so a missing key surfaces as ErrModelUnavailable on first use.
func LoadFromConfig(cfg *config.Config) LoadFunc {
	return func(ctx context.Context) (Backend, error) {
		switch cfg.EmbeddingProvider {
		case config.EmbeddingProviderOpenAI:
			c, err := openai.NewClient(cfg.EmbeddingProviderAPIKey,
				openai.WithDimensions(cfg.EmbeddingDimensions),
				openai.WithEmbeddingModel(cfg.EmbeddingModel),
			)
			if err != nil {
				return nil, err
			}

			return c, nil
		case config.EmbeddingProviderGoogle:
			c, err := googleai.NewClient(ctx, cfg.EmbeddingProviderAPIKey,
				googleai.WithDimensions(cfg.EmbeddingDimensions),
				googleai.WithEmbeddingModel(cfg.EmbeddingModel),
			)
			if err != nil {
				return nil, err
			}

			return c, nil
		case config.EmbeddingProviderHash:
			return NewHashBackend(cfg.EmbeddingDimensions), nil
		default:
			return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
		}
	}
}
