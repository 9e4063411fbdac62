package catalog

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/fruitsalade/filedrop/internal/cache"
	"github.com/fruitsalade/filedrop/pkg/models"
)

// Local keeps the list in memory and mirrors it to a cache.Store.
type Local struct {
	store *cache.Store

	mu      sync.Mutex
	records []models.FileRecord
}

// OpenLocal loads the persisted list once. Later reads come from memory.
func OpenLocal(ctx context.Context, store *cache.Store) (*Local, error) {
	recs, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Local{store: store, records: recs}, nil
}

func (l *Local) Name() string { return "local" }
func (l *Local) Mode() Mode   { return ModeBatch }

// Quota returns the byte budget of the backing slot.
func (l *Local) Quota() int64 { return l.store.Quota() }

// List returns a copy of the in-memory list.
func (l *Local) List(_ context.Context) ([]models.FileRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.records), nil
}

// Insert appends a single record.
func (l *Local) Insert(ctx context.Context, rec models.FileRecord) error {
	return l.Append(ctx, []models.FileRecord{rec})
}

// Append adds recs to the list and persists the whole list once. The
// in-memory list keeps the new records even when persisting fails; the
// error is returned so the caller can report it.
func (l *Local) Append(ctx context.Context, recs []models.FileRecord) error {
	if len(recs) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, recs...)
	return l.store.Save(ctx, l.records)
}

// Delete removes every record whose filename equals key.
func (l *Local) Delete(ctx context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := len(l.records)
	l.records = slices.DeleteFunc(l.records, func(r models.FileRecord) bool {
		return r.Filename == key
	})
	removed := before - len(l.records)
	if removed == 0 {
		return 0, nil
	}
	return removed, l.store.Save(ctx, l.records)
}

// Health always succeeds with the local clock.
func (l *Local) Health(_ context.Context) (time.Time, error) {
	return time.Now(), nil
}
