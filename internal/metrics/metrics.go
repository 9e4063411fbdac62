// Package metrics provides Prometheus metrics for filedrop.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedrop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filedrop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Catalog metrics
	filesInsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filedrop_files_inserted_total",
			Help: "Total number of file records inserted",
		},
	)

	filesDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filedrop_files_deleted_total",
			Help: "Total number of file records deleted",
		},
	)

	insertBodyBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filedrop_insert_body_bytes",
			Help:    "Size of accepted save-link request bodies",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	insertRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedrop_insert_rejected_total",
			Help: "Save-link requests rejected before storage",
		},
		[]string{"reason"},
	)

	listCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedrop_list_cache_total",
			Help: "List response cache lookups",
		},
		[]string{"result"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filedrop_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filedrop_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	// Client-side metrics
	ingestFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedrop_ingest_files_total",
			Help: "Files processed by the ingestion pipeline",
		},
		[]string{"mode", "status"},
	)

	cacheSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedrop_cache_saves_total",
			Help: "Local cache slot writes",
		},
		[]string{"status"},
	)

	cacheSlotBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filedrop_cache_slot_bytes",
			Help: "Serialized size of the local cache slot",
		},
	)

	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filedrop_storage_operation_duration_seconds",
			Help:    "Slot storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation", "status"},
	)
)

// Handler returns the Prometheus metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordInsert records an accepted save-link request.
func RecordInsert(bodyBytes int64) {
	filesInsertedTotal.Inc()
	insertBodyBytes.Observe(float64(bodyBytes))
}

// RecordInsertRejected records a save-link request refused with reason
// "validation" or "too_large".
func RecordInsertRejected(reason string) {
	insertRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordDelete records a deleted file record.
func RecordDelete() {
	filesDeletedTotal.Inc()
}

// RecordListCache records a list cache hit or miss.
func RecordListCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	listCacheTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// SetDBConnectionsOpen sets the open connection gauge.
func SetDBConnectionsOpen(count int) {
	dbConnectionsOpen.Set(float64(count))
}

// RecordIngest records one pipeline outcome.
func RecordIngest(mode string, success bool) {
	ingestFilesTotal.WithLabelValues(mode, statusLabel(success)).Inc()
}

// RecordCacheSave records a cache slot write attempt.
func RecordCacheSave(status string, slotBytes int) {
	cacheSavesTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		cacheSlotBytes.Set(float64(slotBytes))
	}
}

// RecordStorageOperation records a slot backend operation.
func RecordStorageOperation(backend, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(backend, operation, statusLabel(success)).Observe(duration.Seconds())
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Middleware records request count and latency labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}
