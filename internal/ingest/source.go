package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Source is one dropped file.
type Source interface {
	// Name is the filename recorded in the catalog.
	Name() string

	// MediaType is the declared type, or "" to infer it from name and content.
	MediaType() string

	// Read returns the full contents.
	Read(ctx context.Context) ([]byte, error)
}

// FileSource reads a file from disk.
type FileSource struct {
	Path string
	Type string
}

func (f FileSource) Name() string      { return filepath.Base(f.Path) }
func (f FileSource) MediaType() string { return f.Type }

func (f FileSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(f.Path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", f.Path)
	}
	return os.ReadFile(f.Path)
}

// BytesSource is an in-memory file.
type BytesSource struct {
	Filename string
	Data     []byte
	Type     string
}

func (b BytesSource) Name() string      { return b.Filename }
func (b BytesSource) MediaType() string { return b.Type }

func (b BytesSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Data, nil
}
