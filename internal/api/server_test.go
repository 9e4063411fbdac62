package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/filedrop/internal/logging"
	"github.com/fruitsalade/filedrop/internal/metadata/postgres"
	"github.com/fruitsalade/filedrop/pkg/client"
	"github.com/fruitsalade/filedrop/pkg/models"
	"github.com/fruitsalade/filedrop/pkg/protocol"
	"github.com/fruitsalade/filedrop/pkg/retry"
)

// memStore is an in-memory Store.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	files  []models.FileRecord
	nowErr error
	lists  int
}

func (m *memStore) Now(context.Context) (time.Time, error) {
	if m.nowErr != nil {
		return time.Time{}, m.nowErr
	}
	return time.Now(), nil
}

func (m *memStore) InsertFile(_ context.Context, rec models.FileRecord) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Now()
	rec.ID = m.nextID
	rec.CreatedAt = &now
	m.files = append(m.files, rec)
	return rec.ID, now, nil
}

func (m *memStore) ListFiles(_ context.Context, limit int) ([]models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	out := slices.Clone(m.files)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) DeleteFile(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, f := range m.files {
		if f.ID == id {
			m.files = slices.Delete(m.files, i, i+1)
			return nil
		}
	}
	return postgres.ErrNotFound
}

func setup(t *testing.T, cfg Config) (*memStore, *client.Client, *httptest.Server) {
	t.Helper()
	logging.SetLogger(zap.NewNop())
	store := &memStore{}
	ts := httptest.NewServer(NewServer(store, cfg).Handler())
	t.Cleanup(ts.Close)
	c := client.New(client.Config{
		BaseURL:     ts.URL,
		RetryConfig: retry.Config{MaxAttempts: 1, InitialWait: time.Millisecond},
	})
	return store, c, ts
}

func TestHealth(t *testing.T) {
	_, _, ts := setup(t, Config{})
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestTestDB(t *testing.T) {
	store, c, _ := setup(t, Config{})
	now, err := c.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if time.Since(now) > time.Minute {
		t.Errorf("now = %v", now)
	}

	store.nowErr = errors.New("connection refused")
	_, err = c.HealthCheck(context.Background())
	var se *protocol.ServiceError
	if !errors.As(err, &se) || se.Status != 500 || se.Message != "connection refused" {
		t.Errorf("HealthCheck = %v", err)
	}
}

func TestSaveLink_MissingFields(t *testing.T) {
	store, _, ts := setup(t, Config{})
	for _, body := range []string{
		`{"url":"data:text/plain;base64,YQ=="}`,
		`{"filename":"a.txt"}`,
		`{"filename":"","url":""}`,
		`not json`,
	} {
		resp, err := http.Post(ts.URL+"/api/save-link", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
	if len(store.files) != 0 {
		t.Errorf("nothing should be stored, got %d", len(store.files))
	}
}

func TestSaveLink_TooLarge(t *testing.T) {
	store, c, _ := setup(t, Config{MaxBodyBytes: 64})
	err := c.Insert(context.Background(), models.FileRecord{
		Filename: "big.txt",
		Content:  "data:text/plain;base64," + strings.Repeat("QUFB", 64),
	})
	if _, ok := protocol.AsPayloadTooLarge(err); !ok {
		t.Fatalf("Insert = %v, want PayloadTooLargeError", err)
	}
	if len(store.files) != 0 {
		t.Error("oversized record was stored")
	}
}

func TestSaveLinkAndList(t *testing.T) {
	store, c, _ := setup(t, Config{})
	ctx := context.Background()

	rec := models.FileRecord{
		Filename:  "a.txt",
		Content:   "data:text/plain;base64,YQ==",
		MimeType:  "text/plain",
		SizeBytes: models.Int64(1),
	}
	if err := c.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := c.Insert(ctx, models.FileRecord{Filename: "b.bin", Content: "https://cdn.example/b"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if store.files[1].MimeType != "" || store.files[1].SizeBytes != nil {
		t.Errorf("absent fields stored as %+v", store.files[1])
	}

	recs, err := c.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 || recs[0].Filename != "b.bin" || recs[1].Filename != "a.txt" {
		t.Fatalf("List = %+v", recs)
	}
	if recs[1].MimeType != "text/plain" || recs[1].CreatedAt == nil {
		t.Errorf("record = %+v", recs[1])
	}
}

func TestList_CapsAt200(t *testing.T) {
	store, c, _ := setup(t, Config{})
	ctx := context.Background()
	for i := 0; i < 250; i++ {
		store.InsertFile(ctx, models.FileRecord{Filename: "f", Content: "u"})
	}

	recs, err := c.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 200 {
		t.Fatalf("got %d records, want 200", len(recs))
	}
	if recs[0].ID != 250 || recs[199].ID != 51 {
		t.Errorf("range = %d..%d, want 250..51", recs[0].ID, recs[199].ID)
	}

	few, err := c.List(ctx, 5)
	if err != nil || len(few) != 5 || few[0].ID != 250 {
		t.Errorf("List(5) = %d records, %v", len(few), err)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 200},
		{"abc", 200},
		{"0", 200},
		{"-3", 200},
		{"1000", 200},
		{"10", 10},
		{"200", 200},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.in); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestListCache_PurgedOnWrite(t *testing.T) {
	store, c, _ := setup(t, Config{ListCacheTTL: time.Minute})
	ctx := context.Background()

	c.Insert(ctx, models.FileRecord{Filename: "one", Content: "u1"})
	c.List(ctx, 0)
	c.List(ctx, 0)
	if store.lists != 1 {
		t.Errorf("store listed %d times, want 1 (second read cached)", store.lists)
	}

	c.Insert(ctx, models.FileRecord{Filename: "two", Content: "u2"})
	recs, err := c.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("stale cache served %d records", len(recs))
	}

	if err := c.Delete(ctx, recs[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	recs, _ = c.List(ctx, 0)
	if len(recs) != 1 || recs[0].Filename != "one" {
		t.Errorf("after delete = %+v", recs)
	}
}

// gatedStore takes its first listing snapshot and then waits for release.
type gatedStore struct {
	*memStore
	once    sync.Once
	listed  chan struct{}
	release chan struct{}
}

func (g *gatedStore) ListFiles(ctx context.Context, limit int) ([]models.FileRecord, error) {
	recs, err := g.memStore.ListFiles(ctx, limit)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.listed)
		<-g.release
	}
	return recs, err
}

func TestListCache_InFlightReadNotCachedAfterWrite(t *testing.T) {
	logging.SetLogger(zap.NewNop())
	store := &gatedStore{
		memStore: &memStore{},
		listed:   make(chan struct{}),
		release:  make(chan struct{}),
	}
	ts := httptest.NewServer(NewServer(store, Config{ListCacheTTL: time.Minute}).Handler())
	t.Cleanup(ts.Close)
	c := client.New(client.Config{
		BaseURL:     ts.URL,
		RetryConfig: retry.Config{MaxAttempts: 1, InitialWait: time.Millisecond},
	})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.List(ctx, 0)
		done <- err
	}()
	<-store.listed

	if err := c.Insert(ctx, models.FileRecord{Filename: "new", Content: "u"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("first List: %v", err)
	}

	recs, err := c.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].Filename != "new" {
		t.Errorf("list after insert = %+v, want the new record", recs)
	}
}

func TestDeleteFile(t *testing.T) {
	_, c, ts := setup(t, Config{})
	ctx := context.Background()
	c.Insert(ctx, models.FileRecord{Filename: "x", Content: "u"})

	if err := c.Delete(ctx, 99); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("Delete(99) = %v, want ErrNotFound", err)
	}
	if err := c.Delete(ctx, 1); err != nil {
		t.Errorf("Delete(1) = %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/files/abc", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
