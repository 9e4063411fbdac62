package storage

import (
	"context"
	"fmt"

	"github.com/fruitsalade/filedrop/internal/storage/local"
	s3backend "github.com/fruitsalade/filedrop/internal/storage/s3"
)

// Config selects and configures a slot backend.
type Config struct {
	Backend string           `yaml:"backend"`
	Dir     string           `yaml:"dir"`
	S3      s3backend.Config `yaml:"s3"`
}

// New creates the backend named by cfg.Backend. An empty name means "local".
func New(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", "local":
		return local.New(local.Config{Root: cfg.Dir})
	case "s3":
		return s3backend.New(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
