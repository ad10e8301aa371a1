// Package generation produces the final answer text from a prompt using a hosted LLM.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tipsearch/hub/internal/config"
	"github.com/tipsearch/hub/internal/googleai"
	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/openai"
)

// Generator turns a prompt into answer text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrDisabled is returned when no generation backend is configured.
var ErrDisabled = errors.New("generation is disabled")

// LoadFunc constructs the backend; it runs at most once per Lazy.
type LoadFunc func(ctx context.Context) (Generator, error)

// Lazy defers backend construction to first use and bounds every call with a timeout.
// A construction failure (e.g. missing API key) is returned as huberrors.ErrUnavailable on every call.
type Lazy struct {
	backend func() (Generator, error)
	timeout time.Duration
}

// NewLazy wraps load. timeout <= 0 means the caller's deadline only.
func NewLazy(load LoadFunc, timeout time.Duration, logger *slog.Logger) *Lazy {
	if logger == nil {
		logger = slog.Default()
	}

	return &Lazy{
		backend: sync.OnceValues(func() (Generator, error) {
			g, err := load(context.Background())
			if err != nil {
				logger.Error("generation backend failed to load", "error", err)
				return nil, huberrors.NewUnavailableError("generation model", err)
			}

			return g, nil
		}),
		timeout: timeout,
	}
}

// Generate implements Generator.
func (l *Lazy) Generate(ctx context.Context, prompt string) (string, error) {
	g, err := l.backend()
	if err != nil {
		return "", err
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	return g.Generate(ctx, prompt)
}

// LoadFromConfig returns the LoadFunc for cfg.GenerationProvider.
func LoadFromConfig(cfg *config.Config) LoadFunc {
	return func(ctx context.Context) (Generator, error) {
		if !cfg.GenerationEnabled() {
			return nil, ErrDisabled
		}

		switch cfg.GenerationProvider {
		case config.GenerationProviderGoogle:
			c, err := googleai.NewClient(ctx, cfg.GenerationAPIKey,
				googleai.WithGenerationModel(cfg.GenerationModel),
			)
			if err != nil {
				return nil, err
			}

			return c, nil
		case config.GenerationProviderOpenAI:
			c, err := openai.NewClient(cfg.GenerationAPIKey,
				openai.WithGenerationModel(cfg.GenerationModel),
			)
			if err != nil {
				return nil, err
			}

			return c, nil
		default:
			return nil, fmt.Errorf("unknown generation provider %q", cfg.GenerationProvider)
		}
	}
}
