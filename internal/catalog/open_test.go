package catalog

import (
	"context"
	"testing"

	"github.com/fruitsalade/filedrop/internal/config"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	cfg := config.DefaultClient()
	cfg.Slot.Dir = t.TempDir()
	c, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open local: %v", err)
	}
	if c.Name() != "local" || c.Mode() != ModeBatch {
		t.Errorf("local catalog = %s/%v", c.Name(), c.Mode())
	}

	cfg.Mode = config.ModeRemote
	c, err = Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open remote: %v", err)
	}
	if c.Name() != "remote" || c.Mode() != ModePerFile {
		t.Errorf("remote catalog = %s/%v", c.Name(), c.Mode())
	}

	cfg.Mode = "other"
	if _, err := Open(ctx, cfg); err == nil {
		t.Error("expected error for unknown mode")
	}
}
