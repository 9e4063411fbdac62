// Package cache persists the client-only file list in a single durable slot.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fruitsalade/filedrop/internal/logging"
	"github.com/fruitsalade/filedrop/internal/metrics"
	"github.com/fruitsalade/filedrop/internal/storage"
	"github.com/fruitsalade/filedrop/pkg/codec"
	"github.com/fruitsalade/filedrop/pkg/models"
)

const (
	// DefaultKey is the slot name.
	DefaultKey = "uploadedFiles"

	// DefaultQuota matches the usual per-origin localStorage ceiling.
	DefaultQuota int64 = 5 << 20
)

// QuotaExceededError is returned by Save when the serialized list does not
// fit the slot. Nothing is written in that case.
type QuotaExceededError struct {
	Size  int64
	Quota int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("local cache quota exceeded: %d bytes, limit %d", e.Size, e.Quota)
}

// AsQuotaExceeded checks if an error is a QuotaExceededError and returns it.
func AsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// entry is the on-disk shape of one record.
type entry struct {
	Name    string `json:"name"`
	DataURL string `json:"dataUrl"`
}

// Config holds slot settings.
type Config struct {
	Key   string
	Quota int64
}

// Store reads and writes the slot. It is the only code that touches it.
type Store struct {
	backend storage.Backend
	key     string
	quota   int64

	mu sync.Mutex
}

// New creates a Store over backend.
func New(backend storage.Backend, cfg Config) *Store {
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.Quota <= 0 {
		cfg.Quota = DefaultQuota
	}
	return &Store{backend: backend, key: cfg.Key, quota: cfg.Quota}
}

// Quota returns the slot budget in bytes.
func (s *Store) Quota() int64 { return s.quota }

// Load returns the persisted list in insertion order. An absent slot yields an
// empty list. A slot that does not parse is cleared and yields an empty list.
// Entries whose payload does not decode are skipped.
func (s *Store) Load(ctx context.Context) ([]models.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []models.FileRecord{}, nil
		}
		return nil, fmt.Errorf("load %s: %w", s.key, err)
	}

	var entries []entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		logging.Warn("discarding unreadable cache slot",
			logging.String("key", s.key), logging.Err(err))
		if delErr := s.backend.Delete(ctx, s.key); delErr != nil {
			logging.Warn("failed to clear cache slot", logging.String("key", s.key), logging.Err(delErr))
		}
		return []models.FileRecord{}, nil
	}

	records := make([]models.FileRecord, 0, len(entries))
	for i, e := range entries {
		blob, err := codec.Decode(e.DataURL)
		if err != nil || e.Name == "" {
			logging.Warn("skipping undecodable cache entry",
				logging.Int("index", i), logging.String("name", e.Name), logging.Err(err))
			continue
		}
		records = append(records, models.FileRecord{
			Filename:  e.Name,
			Content:   e.DataURL,
			MimeType:  blob.MediaType,
			SizeBytes: models.Int64(int64(len(blob.Data))),
		})
	}
	return records, nil
}

// Save replaces the slot with records. An empty list removes the slot.
func (s *Store) Save(ctx context.Context, records []models.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(records) == 0 {
		if err := s.backend.Delete(ctx, s.key); err != nil {
			metrics.RecordCacheSave("error", 0)
			return fmt.Errorf("clear %s: %w", s.key, err)
		}
		metrics.RecordCacheSave("ok", 0)
		return nil
	}

	entries := make([]entry, len(records))
	for i, r := range records {
		entries[i] = entry{Name: r.Filename, DataURL: r.Content}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	if int64(len(raw)) > s.quota {
		metrics.RecordCacheSave("quota_exceeded", len(raw))
		return &QuotaExceededError{Size: int64(len(raw)), Quota: s.quota}
	}
	if err := s.backend.Put(ctx, s.key, raw); err != nil {
		metrics.RecordCacheSave("error", len(raw))
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	metrics.RecordCacheSave("ok", len(raw))
	return nil
}
