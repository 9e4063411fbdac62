// Package local stores slots as files in a directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fruitsalade/filedrop/internal/metrics"
)

// Config holds local backend settings.
type Config struct {
	Root string
}

// Backend keeps one file per key under Root.
type Backend struct {
	root string
}

// New creates the root directory if needed.
func New(cfg Config) (*Backend, error) {
	if cfg.Root == "" {
		return nil, errors.New("local storage: dir is required")
	}
	if err := os.MkdirAll(cfg.Root, 0o700); err != nil {
		return nil, fmt.Errorf("create slot dir %s: %w", cfg.Root, err)
	}
	return &Backend{root: cfg.Root}, nil
}

func (b *Backend) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid slot key %q", key)
	}
	return filepath.Join(b.root, key+".json"), nil
}

// Get reads the slot file. A missing file wraps fs.ErrNotExist.
func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	start := time.Now()
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			metrics.RecordStorageOperation(b.Type(), "get", time.Since(start), true)
			return nil, fmt.Errorf("get %s: %w", key, fs.ErrNotExist)
		}
		metrics.RecordStorageOperation(b.Type(), "get", time.Since(start), false)
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	metrics.RecordStorageOperation(b.Type(), "get", time.Since(start), true)
	return data, nil
}

// Put writes the slot atomically through a temp file and rename.
func (b *Backend) Put(_ context.Context, key string, value []byte) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(b.Type(), "put", time.Since(start), err == nil)
	}()

	p, err := b.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.root, ".slot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// Delete removes the slot file if present.
func (b *Backend) Delete(_ context.Context, key string) error {
	start := time.Now()
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		metrics.RecordStorageOperation(b.Type(), "delete", time.Since(start), false)
		return fmt.Errorf("delete %s: %w", key, err)
	}
	metrics.RecordStorageOperation(b.Type(), "delete", time.Since(start), true)
	return nil
}

// Type returns "local".
func (b *Backend) Type() string { return "local" }
