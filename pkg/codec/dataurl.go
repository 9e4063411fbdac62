// Package codec converts between raw file bytes and base64 data URLs.
package codec

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const (
	scheme       = "data:"
	base64Marker = ";base64"

	// DefaultMediaType is written when a blob has no media type.
	DefaultMediaType = "application/octet-stream"
)

// Blob is a file payload with its media type.
type Blob struct {
	Data      []byte
	MediaType string
}

// MalformedEncodingError is returned when a data URL cannot be decoded or a
// blob cannot be encoded.
type MalformedEncodingError struct {
	Reason string
	Err    error
}

func (e *MalformedEncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed data URL: %s: %v", e.Reason, e.Err)
	}
	return "malformed data URL: " + e.Reason
}

func (e *MalformedEncodingError) Unwrap() error {
	return e.Err
}

// Encode returns b as "data:<type>;base64,<body>".
func Encode(b Blob) (string, error) {
	mt := b.MediaType
	if mt == "" {
		mt = DefaultMediaType
	}
	if _, _, err := mime.ParseMediaType(mt); err != nil {
		return "", &MalformedEncodingError{Reason: "invalid media type " + mt, Err: err}
	}
	if strings.ContainsAny(mt, ",") {
		return "", &MalformedEncodingError{Reason: "media type contains a comma"}
	}

	var sb strings.Builder
	sb.Grow(len(scheme) + len(mt) + len(base64Marker) + 1 + base64.StdEncoding.EncodedLen(len(b.Data)))
	sb.WriteString(scheme)
	sb.WriteString(mt)
	sb.WriteString(base64Marker)
	sb.WriteByte(',')
	sb.WriteString(base64.StdEncoding.EncodeToString(b.Data))
	return sb.String(), nil
}

// Decode parses a base64 data URL. The media type is returned exactly as it
// appears in the header.
func Decode(s string) (Blob, error) {
	if !strings.HasPrefix(s, scheme) {
		return Blob{}, &MalformedEncodingError{Reason: "missing data: prefix"}
	}
	header, body, ok := strings.Cut(s[len(scheme):], ",")
	if !ok {
		return Blob{}, &MalformedEncodingError{Reason: "missing comma separator"}
	}
	mt, ok := strings.CutSuffix(header, base64Marker)
	if !ok {
		return Blob{}, &MalformedEncodingError{Reason: "missing ;base64 marker"}
	}
	if mt == "" {
		return Blob{}, &MalformedEncodingError{Reason: "missing media type"}
	}
	if _, _, err := mime.ParseMediaType(mt); err != nil {
		return Blob{}, &MalformedEncodingError{Reason: "invalid media type " + mt, Err: err}
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return Blob{}, &MalformedEncodingError{Reason: "invalid base64 body", Err: err}
	}
	return Blob{Data: data, MediaType: mt}, nil
}

// MediaTypeOf returns the media type in a data URL header without decoding the body.
func MediaTypeOf(s string) (string, error) {
	if !strings.HasPrefix(s, scheme) {
		return "", &MalformedEncodingError{Reason: "missing data: prefix"}
	}
	header, _, ok := strings.Cut(s[len(scheme):], ",")
	if !ok {
		return "", &MalformedEncodingError{Reason: "missing comma separator"}
	}
	return strings.TrimSuffix(header, base64Marker), nil
}

// DetectMediaType infers a media type from the file extension, falling back to
// sniffing the first bytes of content. Returns "" for an empty file with an
// unknown extension.
func DetectMediaType(name string, head []byte) string {
	if ext := filepath.Ext(name); ext != "" {
		if mt := mime.TypeByExtension(ext); mt != "" {
			return mt
		}
	}
	if len(head) == 0 {
		return ""
	}
	return http.DetectContentType(head)
}
