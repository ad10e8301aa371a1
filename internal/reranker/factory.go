package reranker

import (
	"context"

	"github.com/tipsearch/hub/internal/config"
)

// LoadFromConfig returns a LoadFunc building an HTTPScorer for cfg.RerankerURL.
func LoadFromConfig(cfg *config.Config) LoadFunc {
	return func(context.Context) (Scorer, error) {
		s, err := NewHTTPScorer(HTTPScorerOptions{
			BaseURL:  cfg.RerankerURL,
			APIKey:   cfg.RerankerAPIKey,
			RetryMax: cfg.RerankMaxRetries,
			Timeout:  cfg.RerankTimeout,
		})
		if err != nil {
			return nil, err
		}

		return s, nil
	}
}
