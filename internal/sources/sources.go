// Package sources translates the responses of MitoProteome, UniProt and the
// PDB REST service into typed rows.
package sources

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/mp-manager/mp-manager/internal/batch"
	"github.com/mp-manager/mp-manager/internal/config"
)

// Transport is the subset of the HTTP client used by the adapters.
type Transport interface {
	Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
	PostMultipart(ctx context.Context, rawURL string, fields map[string]string) ([]byte, error)
}

// Sources holds the endpoints and the rate limiter shared by every adapter.
type Sources struct {
	transport Transport
	config    *config.SourcesConfig
	limiter   *batch.Limiter
	logger    *slog.Logger
}

func New(transport Transport, cfg *config.SourcesConfig, logger *slog.Logger) *Sources {
	return &Sources{
		transport: transport,
		config:    cfg,
		limiter:   batch.NewLimiter(cfg.GroupSize, cfg.Delay),
		logger:    logger,
	}
}

// WithLimiter replaces the rate limiter, tests use it to avoid real sleeps.
func (s *Sources) WithLimiter(limiter *batch.Limiter) *Sources {
	return &Sources{
		transport: s.transport,
		config:    s.config,
		limiter:   limiter,
		logger:    s.logger,
	}
}
