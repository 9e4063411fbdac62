// Package reconcile keeps the visible file list in step with the active catalog.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fruitsalade/filedrop/internal/cache"
	"github.com/fruitsalade/filedrop/internal/catalog"
	"github.com/fruitsalade/filedrop/internal/ingest"
	"github.com/fruitsalade/filedrop/internal/logging"
	"github.com/fruitsalade/filedrop/pkg/models"
)

// State is the controller's coarse status.
type State int

const (
	Idle State = iota
	Loading
	Saving
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Saving:
		return "saving"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrSuperseded is returned by Refresh when a newer refresh was issued
// before this one completed. Its result was discarded.
var ErrSuperseded = errors.New("refresh superseded by a newer one")

// View is a snapshot of the controller.
type View struct {
	State       State
	Files       []models.FileRecord
	Err         string
	Notices     []string
	ServiceTime time.Time
}

// Controller owns the visible list. All mutation goes through its methods.
type Controller struct {
	catalog  catalog.Catalog
	pipeline *ingest.Pipeline

	mu          sync.Mutex
	state       State
	files       []models.FileRecord
	lastErr     error
	notices     []string
	serviceTime time.Time
	token       uint64
}

// New creates a controller over c. Ingestion uses p.
func New(c catalog.Catalog, p *ingest.Pipeline) *Controller {
	return &Controller{catalog: c, pipeline: p}
}

// Mount checks catalog health and loads the list. A failed health check
// only adds a notice.
func (c *Controller) Mount(ctx context.Context) error {
	now, err := c.catalog.Health(ctx)
	c.mu.Lock()
	if err != nil {
		c.notices = append(c.notices, fmt.Sprintf("catalog %s unavailable: %v", c.catalog.Name(), err))
	} else {
		c.serviceTime = now
	}
	c.mu.Unlock()

	return c.Refresh(ctx)
}

// Refresh reloads the list. Only the most recently issued refresh may apply
// its result; an older one that finishes later returns ErrSuperseded. A
// failure keeps the last known list and moves to the Error state.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.refresh(ctx, false)
}

// refresh implements Refresh. A partial refresh runs in the middle of an
// ingestion: it leaves the Saving state alone and a failure is only logged.
func (c *Controller) refresh(ctx context.Context, partial bool) error {
	c.mu.Lock()
	c.token++
	token := c.token
	if !partial {
		c.state = Loading
	}
	c.mu.Unlock()

	files, err := c.catalog.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.token {
		logging.Debug("discarding stale refresh", logging.Int64("token", int64(token)))
		return ErrSuperseded
	}
	if err != nil {
		if partial {
			logging.Debug("refresh during ingest failed", logging.Err(err))
			return err
		}
		c.state = Error
		c.lastErr = err
		c.notices = append(c.notices, "refresh failed: "+err.Error())
		return err
	}
	c.files = files
	if !partial {
		c.state = Idle
		c.lastErr = nil
	}
	return nil
}

// Ingest runs the pipeline over sources and then refreshes. A per-file
// catalog is also re-read after each acknowledged insert, so View shows
// records as they commit. Per-file failures and persistence problems become
// notices; the returned error is only the closing refresh failure, if any.
func (c *Controller) Ingest(ctx context.Context, sources []ingest.Source) (ingest.Result, error) {
	c.mu.Lock()
	c.state = Saving
	c.mu.Unlock()

	var committed func(models.FileRecord)
	if c.catalog.Mode() == catalog.ModePerFile {
		committed = func(models.FileRecord) { c.refresh(ctx, true) }
	}
	res := c.pipeline.RunNotify(ctx, sources, committed)

	c.mu.Lock()
	for _, e := range res.Errors() {
		c.notices = append(c.notices, "upload failed: "+e.Error())
	}
	if res.PersistErr != nil {
		if qe, ok := cache.AsQuotaExceeded(res.PersistErr); ok {
			c.notices = append(c.notices, fmt.Sprintf(
				"local storage full (%s of %s): files kept for this session only",
				models.FormatSize(qe.Size), models.FormatSize(qe.Quota)))
		} else {
			c.notices = append(c.notices, "could not persist files: "+res.PersistErr.Error())
		}
	}
	c.mu.Unlock()

	if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		return res, err
	}
	return res, nil
}

// Delete removes the records matching key and refreshes. It returns how many
// records the catalog removed.
func (c *Controller) Delete(ctx context.Context, key string) (int, error) {
	c.mu.Lock()
	c.state = Saving
	c.mu.Unlock()

	n, err := c.catalog.Delete(ctx, key)
	if err != nil {
		c.mu.Lock()
		c.notices = append(c.notices, fmt.Sprintf("delete %s: %v", key, err))
		if n == 0 {
			c.state = Error
			c.lastErr = err
			c.mu.Unlock()
			return 0, err
		}
		c.mu.Unlock()
	}

	if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		return n, err
	}
	return n, nil
}

// View returns a snapshot. The slices are copies.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		State:       c.state,
		Files:       slices.Clone(c.files),
		Notices:     slices.Clone(c.notices),
		ServiceTime: c.serviceTime,
	}
	if c.lastErr != nil {
		v.Err = c.lastErr.Error()
	}
	return v
}

// ClearNotices drops the accumulated notices.
func (c *Controller) ClearNotices() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = nil
}
