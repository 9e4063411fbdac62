// Package protocol defines the catalog service request/response types.
package protocol

import (
	"time"

	"github.com/fruitsalade/filedrop/pkg/models"
)

// MaxListLimit caps GET /api/files. Older records are not reachable through the listing.
const MaxListLimit = 200

// HealthResponse is returned by GET /api/test-db.
type HealthResponse struct {
	OK    bool       `json:"ok"`
	Now   *time.Time `json:"now,omitempty"`
	Error string     `json:"error,omitempty"`
}

// SaveLinkRequest is the body for POST /api/save-link.
type SaveLinkRequest struct {
	Filename string  `json:"filename"`
	URL      string  `json:"url"`
	MimeType *string `json:"mimetype"`
	Size     *int64  `json:"size,omitempty"`
}

// OKResponse is returned by mutating endpoints.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// FileResponse is one element of the GET /api/files array.
type FileResponse struct {
	ID        int64      `json:"id"`
	Filename  string     `json:"filename"`
	URL       string     `json:"url"`
	MimeType  *string    `json:"mimetype"`
	SizeBytes *int64     `json:"size_bytes"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// NewSaveLinkRequest builds the insert payload for a record.
func NewSaveLinkRequest(rec models.FileRecord) SaveLinkRequest {
	req := SaveLinkRequest{
		Filename: rec.Filename,
		URL:      rec.Content,
		Size:     rec.SizeBytes,
	}
	if rec.MimeType != "" {
		mt := rec.MimeType
		req.MimeType = &mt
	}
	return req
}

// Record converts a wire row into the client data model.
func (f FileResponse) Record() models.FileRecord {
	rec := models.FileRecord{
		ID:        f.ID,
		Filename:  f.Filename,
		Content:   f.URL,
		SizeBytes: f.SizeBytes,
		CreatedAt: f.CreatedAt,
	}
	if f.MimeType != nil {
		rec.MimeType = *f.MimeType
	}
	return rec
}
