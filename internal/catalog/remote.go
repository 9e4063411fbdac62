package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fruitsalade/filedrop/pkg/client"
	"github.com/fruitsalade/filedrop/pkg/models"
)

// Remote uses the catalog service as the source of truth.
type Remote struct {
	client *client.Client
	limit  int
}

// NewRemote wraps c. limit is passed to List; 0 means the service maximum.
func NewRemote(c *client.Client, limit int) *Remote {
	return &Remote{client: c, limit: limit}
}

func (r *Remote) Name() string { return "remote" }
func (r *Remote) Mode() Mode   { return ModePerFile }

// List fetches the newest records from the service.
func (r *Remote) List(ctx context.Context) ([]models.FileRecord, error) {
	return r.client.List(ctx, r.limit)
}

// Insert posts one record.
func (r *Remote) Insert(ctx context.Context, rec models.FileRecord) error {
	return r.client.Insert(ctx, rec)
}

// Append inserts each record in order. The service has no batch endpoint, so
// failures are collected and the remaining records are still sent.
func (r *Remote) Append(ctx context.Context, recs []models.FileRecord) error {
	var errs []error
	for _, rec := range recs {
		if err := r.client.Insert(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rec.Filename, err))
		}
	}
	return errors.Join(errs...)
}

// Delete removes the record whose server id is key.
func (r *Remote) Delete(ctx context.Context, key string) (int, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", key)
	}
	if err := r.client.Delete(ctx, id); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return 1, nil
}

// Health returns the service's database time.
func (r *Remote) Health(ctx context.Context) (time.Time, error) {
	return r.client.HealthCheck(ctx)
}

// Online reports whether the last request reached the service.
func (r *Remote) Online() bool {
	return r.client.IsOnline()
}

// LastSeen returns when the service last answered, or the zero time.
func (r *Remote) LastSeen() time.Time {
	return r.client.LastSeen()
}
