package catalog

import (
	"context"
	"fmt"

	"github.com/fruitsalade/filedrop/internal/cache"
	"github.com/fruitsalade/filedrop/internal/config"
	"github.com/fruitsalade/filedrop/internal/storage"
	"github.com/fruitsalade/filedrop/pkg/client"
)

// Open builds the catalog selected by cfg.Mode.
func Open(ctx context.Context, cfg *config.ClientConfig) (Catalog, error) {
	switch cfg.Mode {
	case config.ModeLocal:
		backend, err := storage.New(ctx, cfg.Slot.Config)
		if err != nil {
			return nil, fmt.Errorf("open slot storage: %w", err)
		}
		store := cache.New(backend, cache.Config{Key: cfg.Slot.Key, Quota: cfg.Slot.QuotaBytes})
		return OpenLocal(ctx, store)
	case config.ModeRemote:
		c := client.New(client.Config{
			BaseURL:      cfg.ServerURL,
			Timeout:      cfg.Timeout,
			MaxBodyBytes: cfg.MaxBodyBytes,
		})
		return NewRemote(c, cfg.ListLimit), nil
	default:
		return nil, fmt.Errorf("unknown catalog mode %q", cfg.Mode)
	}
}
