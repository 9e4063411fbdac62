package cache

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/fruitsalade/filedrop/internal/storage/local"
	"github.com/fruitsalade/filedrop/pkg/codec"
	"github.com/fruitsalade/filedrop/pkg/models"
)

func newStore(t *testing.T, quota int64) (*Store, *local.Backend) {
	t.Helper()
	b, err := local.New(local.Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	return New(b, Config{Quota: quota}), b
}

func rec(t *testing.T, name, body, mt string) models.FileRecord {
	t.Helper()
	url, err := codec.Encode(codec.Blob{Data: []byte(body), MediaType: mt})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return models.FileRecord{Filename: name, Content: url, MimeType: mt, SizeBytes: models.Int64(int64(len(body)))}
}

func TestLoad_Absent(t *testing.T) {
	s, _ := newStore(t, 0)
	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Load = %v, want empty list", got)
	}
}

func TestSaveLoad_PreservesOrderAndMetadata(t *testing.T) {
	s, _ := newStore(t, 0)
	ctx := context.Background()
	in := []models.FileRecord{
		rec(t, "b.txt", "second", "text/plain"),
		rec(t, "a.png", "\x89PNG", "image/png"),
		rec(t, "b.txt", "dup name", "text/plain"),
	}
	if err := s.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("got %d records, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i].Filename != in[i].Filename || got[i].Content != in[i].Content {
			t.Errorf("record %d = %+v, want %+v", i, got[i], in[i])
		}
		if got[i].MimeType != in[i].MimeType {
			t.Errorf("record %d mime = %q, want %q", i, got[i].MimeType, in[i].MimeType)
		}
		if n, ok := got[i].Size(); !ok || n != *in[i].SizeBytes {
			t.Errorf("record %d size = %d, %v", i, n, ok)
		}
		if !got[i].IsLocal() {
			t.Errorf("record %d should be local", i)
		}
	}
}

func TestSave_OverwritesNotAppends(t *testing.T) {
	s, _ := newStore(t, 0)
	ctx := context.Background()
	s.Save(ctx, []models.FileRecord{rec(t, "a", "1", "text/plain"), rec(t, "b", "2", "text/plain")})
	if err := s.Save(ctx, []models.FileRecord{rec(t, "c", "3", "text/plain")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := s.Load(ctx)
	if len(got) != 1 || got[0].Filename != "c" {
		t.Errorf("Load = %+v, want only c", got)
	}
}

func TestSave_EmptyClearsSlot(t *testing.T) {
	s, b := newStore(t, 0)
	ctx := context.Background()
	s.Save(ctx, []models.FileRecord{rec(t, "a", "1", "text/plain")})
	if err := s.Save(ctx, nil); err != nil {
		t.Fatalf("Save empty: %v", err)
	}
	if _, err := b.Get(ctx, DefaultKey); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("slot should be absent, Get = %v", err)
	}
}

func TestSave_QuotaExceeded(t *testing.T) {
	s, _ := newStore(t, 256)
	ctx := context.Background()
	small := []models.FileRecord{rec(t, "a", "1", "text/plain")}
	if err := s.Save(ctx, small); err != nil {
		t.Fatalf("Save small: %v", err)
	}

	big := append(small, rec(t, "big", strings.Repeat("x", 1024), "text/plain"))
	err := s.Save(ctx, big)
	qe, ok := AsQuotaExceeded(err)
	if !ok {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if qe.Quota != 256 || qe.Size <= 256 {
		t.Errorf("error = %+v", qe)
	}

	got, _ := s.Load(ctx)
	if len(got) != 1 || got[0].Filename != "a" {
		t.Errorf("slot should hold the previous list, got %+v", got)
	}
}

func TestLoad_MalformedSlotDiscarded(t *testing.T) {
	s, b := newStore(t, 0)
	ctx := context.Background()
	for _, raw := range []string{`not json`, `{"name":"a"}`, `"x"`} {
		if err := b.Put(ctx, DefaultKey, []byte(raw)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("Load(%s): %v", raw, err)
		}
		if len(got) != 0 {
			t.Errorf("Load(%s) = %+v, want empty", raw, got)
		}
		if _, err := b.Get(ctx, DefaultKey); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("malformed slot %s should be cleared", raw)
		}
	}
}

func TestLoad_SkipsUndecodableEntries(t *testing.T) {
	s, b := newStore(t, 0)
	ctx := context.Background()
	good := rec(t, "ok.txt", "fine", "text/plain")
	raw := `[{"name":"bad","dataUrl":"data:text/plain;base64,%%%"},` +
		`{"name":"ok.txt","dataUrl":"` + good.Content + `"},` +
		`{"name":"nourl"}]`
	if err := b.Put(ctx, DefaultKey, []byte(raw)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].Filename != "ok.txt" {
		t.Errorf("Load = %+v, want only ok.txt", got)
	}
}
