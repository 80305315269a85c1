package embed

import (
	"log/slog"
	"time"

	"github.com/semantica-dev/semantica/internal/config"
	"github.com/semantica-dev/semantica/internal/errors"
)

// NewProvider builds the configured provider variant.
func NewProvider(cfg config.EmbeddingConfig, logger *slog.Logger) (Provider, error) {
	timeout, err := time.ParseDuration(cfg.RequestTimeout)
	if err != nil {
		timeout = 60 * time.Second
	}

	switch cfg.Provider {
	case ProviderLocal:
		return NewLocalProvider(LocalOptions{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    timeout,
			Logger:     logger,
		}), nil
	case ProviderRemote:
		return NewRemoteProvider(RemoteOptions{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			Concurrency:       cfg.Concurrency,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Timeout:           timeout,
			Logger:            logger,
		})
	default:
		return nil, errors.Newf(errors.KindConfig, "unknown embedding provider: %q", cfg.Provider)
	}
}
