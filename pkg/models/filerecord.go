// Package models contains shared data types used by the client and the catalog service.
package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FileRecord represents one ingested file.
type FileRecord struct {
	ID        int64      `json:"id,omitempty"`
	Filename  string     `json:"filename"`
	Content   string     `json:"url"`
	MimeType  string     `json:"mimetype,omitempty"`
	SizeBytes *int64     `json:"size_bytes,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// IsLocal reports whether the record was created client-side and never
// acknowledged by the catalog service.
func (r FileRecord) IsLocal() bool {
	return r.ID == 0
}

// Key returns the deletion key: the server ID when present, otherwise the filename.
// Local records with the same filename share a key.
func (r FileRecord) Key() string {
	if r.ID > 0 {
		return strconv.FormatInt(r.ID, 10)
	}
	return r.Filename
}

// IsDataURL reports whether Content carries the file bytes inline.
func (r FileRecord) IsDataURL() bool {
	return strings.HasPrefix(r.Content, "data:")
}

// Size returns the recorded byte length and whether it is known.
func (r FileRecord) Size() (int64, bool) {
	if r.SizeBytes == nil {
		return 0, false
	}
	return *r.SizeBytes, true
}

// Int64 returns a pointer to n.
func Int64(n int64) *int64 {
	return &n
}

// FormatSize renders a byte count the way the file list shows it.
func FormatSize(b int64) string {
	if b <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB", "TB"}
	i := int(math.Floor(math.Log(float64(b)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	v := float64(b) / math.Pow(1024, float64(i))
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return fmt.Sprintf("%s %s", s, units[i])
}

// FormatDate renders an optional creation time as a date, or a dash placeholder when absent.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "—"
	}
	return t.Local().Format("2006-01-02")
}
