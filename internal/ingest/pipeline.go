// Package ingest turns dropped files into catalog records.
package ingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fruitsalade/filedrop/internal/catalog"
	"github.com/fruitsalade/filedrop/internal/logging"
	"github.com/fruitsalade/filedrop/internal/metrics"
	"github.com/fruitsalade/filedrop/pkg/codec"
	"github.com/fruitsalade/filedrop/pkg/models"
)

// DefaultConcurrency bounds how many sources are read and encoded at once.
const DefaultConcurrency = 8

// sniffLen is how much content DetectMediaType looks at.
const sniffLen = 512

// Error is a per-source failure.
type Error struct {
	Index    int
	Filename string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Outcome is the result for one source: exactly one of Record and Err is set.
type Outcome struct {
	Record *models.FileRecord
	Err    *Error
}

// Result is what Run returns. Outcomes has one entry per source, in
// submission order.
type Result struct {
	Outcomes []Outcome

	// PersistErr is set when a batch catalog accepted the records but could
	// not persist them. The records are still listed.
	PersistErr error
}

// Records returns the successful records in submission order.
func (r Result) Records() []models.FileRecord {
	out := make([]models.FileRecord, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Record != nil {
			out = append(out, *o.Record)
		}
	}
	return out
}

// Errors returns the per-source failures in submission order.
func (r Result) Errors() []*Error {
	var out []*Error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o.Err)
		}
	}
	return out
}

// Pipeline reads, encodes, and submits sources to a catalog.
type Pipeline struct {
	catalog     catalog.Catalog
	concurrency int
}

// New creates a pipeline. concurrency <= 0 uses DefaultConcurrency.
func New(c catalog.Catalog, concurrency int) *Pipeline {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Pipeline{catalog: c, concurrency: concurrency}
}

// Run processes every source. Sources are handled concurrently and one
// failure never stops the others. For batch catalogs the successful records
// are appended in a single call after all sources finish; for per-file
// catalogs each record is inserted as soon as it is encoded.
func (p *Pipeline) Run(ctx context.Context, sources []Source) Result {
	return p.RunNotify(ctx, sources, nil)
}

// RunNotify is Run with a callback invoked after each per-file insert the
// catalog acknowledges. It may be called from several goroutines at once and
// is never called for batch catalogs.
func (p *Pipeline) RunNotify(ctx context.Context, sources []Source, committed func(models.FileRecord)) Result {
	start := time.Now()
	mode := p.catalog.Mode()
	res := Result{Outcomes: make([]Outcome, len(sources))}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			rec, err := p.process(ctx, src, mode)
			if err != nil {
				res.Outcomes[i] = Outcome{Err: &Error{Index: i, Filename: src.Name(), Err: err}}
				metrics.RecordIngest(mode.String(), false)
				logging.Warn("file rejected",
					logging.String("file", src.Name()), logging.Err(err))
				return nil
			}
			res.Outcomes[i] = Outcome{Record: &rec}
			metrics.RecordIngest(mode.String(), true)
			if committed != nil && mode == catalog.ModePerFile {
				committed(rec)
			}
			return nil
		})
	}
	g.Wait()

	if mode == catalog.ModeBatch {
		if recs := res.Records(); len(recs) > 0 {
			if err := p.catalog.Append(ctx, recs); err != nil {
				res.PersistErr = err
				logging.Warn("batch persisted with error",
					logging.Int("files", len(recs)), logging.Err(err))
			}
		}
	}

	logging.Debug("ingest finished",
		logging.String("catalog", p.catalog.Name()),
		logging.Int("files", len(sources)),
		logging.Int("failed", len(res.Errors())),
		logging.Duration("duration", time.Since(start)))
	return res
}

func (p *Pipeline) process(ctx context.Context, src Source, mode catalog.Mode) (models.FileRecord, error) {
	data, err := src.Read(ctx)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("read: %w", err)
	}

	mt := src.MediaType()
	if mt == "" {
		mt = codec.DetectMediaType(src.Name(), data[:min(len(data), sniffLen)])
	}
	url, err := codec.Encode(codec.Blob{Data: data, MediaType: mt})
	if err != nil {
		return models.FileRecord{}, err
	}

	rec := models.FileRecord{
		Filename:  src.Name(),
		Content:   url,
		MimeType:  mt,
		SizeBytes: models.Int64(int64(len(data))),
	}
	if mode == catalog.ModePerFile {
		if err := p.catalog.Insert(ctx, rec); err != nil {
			return models.FileRecord{}, err
		}
	}
	return rec, nil
}
