// Package api implements the catalog service HTTP API.
package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/fruitsalade/filedrop/internal/logging"
	"github.com/fruitsalade/filedrop/internal/metadata/postgres"
	"github.com/fruitsalade/filedrop/internal/metrics"
	"github.com/fruitsalade/filedrop/pkg/models"
	"github.com/fruitsalade/filedrop/pkg/protocol"
)

// DefaultMaxBodyBytes caps POST /api/save-link bodies.
const DefaultMaxBodyBytes int64 = 20 << 20

// Store is the persistence the API needs. DeleteFile returns
// postgres.ErrNotFound for an unknown id.
type Store interface {
	Now(ctx context.Context) (time.Time, error)
	InsertFile(ctx context.Context, rec models.FileRecord) (int64, time.Time, error)
	ListFiles(ctx context.Context, limit int) ([]models.FileRecord, error)
	DeleteFile(ctx context.Context, id int64) error
}

// Config holds API settings.
type Config struct {
	MaxBodyBytes int64
	ListCacheTTL time.Duration // 0 disables the list cache
}

var gzipPool = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

// Server serves the catalog API.
type Server struct {
	store        Store
	maxBodyBytes int64

	// listCache holds encoded list responses keyed by limit. Any write purges
	// it and bumps listGen; a list read that started before the bump is not cached.
	listCache *expirable.LRU[int, []byte]
	listMu    sync.Mutex
	listGen   uint64
}

// NewServer creates a server over store.
func NewServer(store Store, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{store: store, maxBodyBytes: cfg.MaxBodyBytes}
	if cfg.ListCacheTTL > 0 {
		s.listCache = expirable.NewLRU[int, []byte](16, nil, cfg.ListCacheTTL)
	}
	return s
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware)
	r.Use(metrics.Middleware)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/test-db", s.handleTestDB)
		r.Post("/save-link", s.handleSaveLink)
		r.Get("/files", s.handleListFiles)
		r.Delete("/files/{id}", s.handleDeleteFile)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTestDB(w http.ResponseWriter, r *http.Request) {
	now, err := s.store.Now(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("database check failed", logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, protocol.HealthResponse{OK: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, protocol.HealthResponse{OK: true, Now: &now})
}

func (s *Server) handleSaveLink(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	var req protocol.SaveLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			metrics.RecordInsertRejected("too_large")
			s.sendError(w, http.StatusRequestEntityTooLarge, "request body exceeds "+models.FormatSize(mbe.Limit))
			return
		}
		metrics.RecordInsertRejected("validation")
		s.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Filename == "" || req.URL == "" {
		metrics.RecordInsertRejected("validation")
		s.sendError(w, http.StatusBadRequest, "filename and url are required")
		return
	}

	rec := models.FileRecord{
		Filename:  req.Filename,
		Content:   req.URL,
		SizeBytes: req.Size,
	}
	if req.MimeType != nil {
		rec.MimeType = *req.MimeType
	}

	id, _, err := s.store.InsertFile(r.Context(), rec)
	if err != nil {
		logging.FromContext(r.Context()).Error("insert failed",
			logging.String("filename", req.Filename), logging.Err(err))
		s.sendError(w, http.StatusInternalServerError, "failed to save file")
		return
	}
	s.purgeListCache()
	metrics.RecordInsert(r.ContentLength)

	logging.FromContext(r.Context()).Info("file saved",
		logging.Int64("id", id), logging.String("filename", req.Filename))
	writeJSON(w, http.StatusOK, protocol.OKResponse{OK: true})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	body, ok := s.cachedList(limit)
	if !ok {
		gen := s.listGeneration()
		recs, err := s.store.ListFiles(r.Context(), limit)
		if err != nil {
			logging.FromContext(r.Context()).Error("list failed", logging.Err(err))
			s.sendError(w, http.StatusInternalServerError, "failed to list files")
			return
		}
		rows := make([]protocol.FileResponse, 0, len(recs))
		for _, rec := range recs {
			rows = append(rows, toFileResponse(rec))
		}
		body, err = json.Marshal(rows)
		if err != nil {
			s.sendError(w, http.StatusInternalServerError, "failed to encode files")
			return
		}
		s.storeList(gen, limit, body)
	}

	w.Header().Set("Content-Type", "application/json")
	if acceptsGzip(r) {
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzipPool.Get().(*gzip.Writer)
		gw.Reset(w)
		gw.Write(body)
		gw.Close()
		gzipPool.Put(gw)
		return
	}
	w.Write(body)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.sendError(w, http.StatusBadRequest, "invalid file id")
		return
	}

	if err := s.store.DeleteFile(r.Context(), id); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "file not found")
			return
		}
		logging.FromContext(r.Context()).Error("delete failed", logging.Int64("id", id), logging.Err(err))
		s.sendError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}
	s.purgeListCache()
	metrics.RecordDelete()
	writeJSON(w, http.StatusOK, protocol.OKResponse{OK: true})
}

func (s *Server) cachedList(limit int) ([]byte, bool) {
	if s.listCache == nil {
		return nil, false
	}
	body, ok := s.listCache.Get(limit)
	metrics.RecordListCache(ok)
	return body, ok
}

func (s *Server) listGeneration() uint64 {
	s.listMu.Lock()
	defer s.listMu.Unlock()
	return s.listGen
}

// storeList caches body unless a write happened since gen was read.
func (s *Server) storeList(gen uint64, limit int, body []byte) {
	if s.listCache == nil {
		return
	}
	s.listMu.Lock()
	defer s.listMu.Unlock()
	if gen != s.listGen {
		return
	}
	s.listCache.Add(limit, body)
}

func (s *Server) purgeListCache() {
	if s.listCache == nil {
		return
	}
	s.listMu.Lock()
	defer s.listMu.Unlock()
	s.listGen++
	s.listCache.Purge()
}

// parseLimit clamps the limit query to (0, MaxListLimit]. Anything unparsable
// or out of range means the maximum.
func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > protocol.MaxListLimit {
		return protocol.MaxListLimit
	}
	return n
}

func toFileResponse(rec models.FileRecord) protocol.FileResponse {
	fr := protocol.FileResponse{
		ID:        rec.ID,
		Filename:  rec.Filename,
		URL:       rec.Content,
		SizeBytes: rec.SizeBytes,
		CreatedAt: rec.CreatedAt,
	}
	if rec.MimeType != "" {
		mt := rec.MimeType
		fr.MimeType = &mt
	}
	return fr
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, protocol.ErrorResponse{OK: false, Error: message})
}
