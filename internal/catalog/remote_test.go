package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fruitsalade/filedrop/pkg/client"
	"github.com/fruitsalade/filedrop/pkg/models"
	"github.com/fruitsalade/filedrop/pkg/protocol"
	"github.com/fruitsalade/filedrop/pkg/retry"
)

func newRemote(t *testing.T, h http.Handler) *Remote {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c := client.New(client.Config{
		BaseURL:     ts.URL,
		RetryConfig: retry.Config{MaxAttempts: 1, InitialWait: time.Millisecond},
	})
	return NewRemote(c, 0)
}

func TestRemote_AppendContinuesPastFailures(t *testing.T) {
	var mu sync.Mutex
	var got []string
	r := newRemote(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body protocol.SaveLinkRequest
		json.NewDecoder(req.Body).Decode(&body)
		mu.Lock()
		got = append(got, body.Filename)
		mu.Unlock()
		if body.Filename == "bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(protocol.OKResponse{OK: true})
	}))

	recs := []models.FileRecord{
		{Filename: "a", Content: "u1"},
		{Filename: "bad", Content: "u2"},
		{Filename: "c", Content: "u3"},
	}
	err := r.Append(context.Background(), recs)
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("Append error = %v, want failure naming bad", err)
	}
	if strings.Join(got, ",") != "a,bad,c" {
		t.Errorf("server saw %v", got)
	}
}

func TestRemote_Delete(t *testing.T) {
	r := newRemote(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/api/files/5" {
			json.NewEncoder(w).Encode(protocol.OKResponse{OK: true})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	ctx := context.Background()

	if n, err := r.Delete(ctx, "5"); n != 1 || err != nil {
		t.Errorf("Delete(5) = %d, %v", n, err)
	}
	if n, err := r.Delete(ctx, "6"); n != 0 || err != nil {
		t.Errorf("Delete(6) = %d, %v", n, err)
	}
	if _, err := r.Delete(ctx, "report.pdf"); err == nil {
		t.Error("non-numeric key should fail")
	}
}

func TestRemote_Mode(t *testing.T) {
	r := NewRemote(client.New(client.Config{BaseURL: "http://127.0.0.1:0"}), 0)
	if r.Mode() != ModePerFile || r.Name() != "remote" {
		t.Errorf("Mode = %v, Name = %s", r.Mode(), r.Name())
	}
}

func TestRemote_HealthUpdatesLastSeen(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	r := newRemote(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(protocol.HealthResponse{OK: true, Now: &now})
	}))

	if !r.LastSeen().IsZero() {
		t.Fatal("LastSeen should be zero before any request")
	}
	got, err := r.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("Health = %v, want %v", got, now)
	}
	if !r.Online() || r.LastSeen().IsZero() {
		t.Errorf("online = %v, last seen = %v", r.Online(), r.LastSeen())
	}
}
