// Package catalog defines the source of truth for the visible file list.
// Exactly one implementation is active per process, picked from configuration.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/fruitsalade/filedrop/pkg/models"
)

// Mode tells the ingestion pipeline how to hand records to a catalog.
type Mode int

const (
	// ModeBatch collects every record of a drop and appends them together.
	ModeBatch Mode = iota
	// ModePerFile inserts each record as soon as it is encoded.
	ModePerFile
)

func (m Mode) String() string {
	switch m {
	case ModeBatch:
		return "batch"
	case ModePerFile:
		return "per_file"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Catalog stores file records.
type Catalog interface {
	// Name identifies the implementation ("local", "remote").
	Name() string

	// Mode reports how records should be submitted.
	Mode() Mode

	// List returns the visible records in display order.
	List(ctx context.Context) ([]models.FileRecord, error)

	// Insert stores one record.
	Insert(ctx context.Context, rec models.FileRecord) error

	// Append stores a batch of records with a single persistence write.
	Append(ctx context.Context, recs []models.FileRecord) error

	// Delete removes the records matching key (see models.FileRecord.Key)
	// and returns how many were removed.
	Delete(ctx context.Context, key string) (int, error)

	// Health returns the catalog's notion of the current time.
	Health(ctx context.Context) (time.Time, error)
}
