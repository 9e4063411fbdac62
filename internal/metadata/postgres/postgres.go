// Package postgres stores file records in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/fruitsalade/filedrop/internal/logging"
	"github.com/fruitsalade/filedrop/internal/metrics"
	"github.com/fruitsalade/filedrop/pkg/models"
	"github.com/fruitsalade/filedrop/pkg/retry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned by DeleteFile for an unknown id.
var ErrNotFound = errors.New("file not found")

// Store is the PostgreSQL file catalog.
type Store struct {
	db *sql.DB
}

// New opens the database and pings it, retrying with backoff per rc.
func New(ctx context.Context, databaseURL string, rc retry.Config) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	attempt := 0
	err = retry.Do(ctx, rc, func() error {
		attempt++
		if err := db.PingContext(ctx); err != nil {
			logging.Warn("database not ready", logging.Int("attempt", attempt), logging.Err(err))
			return retry.Transient(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	logging.Info("migrations applied", logging.Int64("version", int64(version)), logging.String("dirty", fmt.Sprint(dirty)))
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpdateConnectionMetrics updates the database connection metrics.
func (s *Store) UpdateConnectionMetrics() {
	metrics.SetDBConnectionsOpen(s.db.Stats().OpenConnections)
}

// Now returns the database clock.
func (s *Store) Now(ctx context.Context) (time.Time, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("now", time.Since(start)) }()

	var now time.Time
	if err := s.db.QueryRowContext(ctx, `SELECT NOW()`).Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("select now: %w", err)
	}
	return now, nil
}

// InsertFile stores rec and returns the assigned id and creation time.
func (s *Store) InsertFile(ctx context.Context, rec models.FileRecord) (int64, time.Time, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert_file", time.Since(start)) }()

	var mimetype sql.NullString
	if rec.MimeType != "" {
		mimetype = sql.NullString{String: rec.MimeType, Valid: true}
	}
	var size sql.NullInt64
	if n, ok := rec.Size(); ok {
		size = sql.NullInt64{Int64: n, Valid: true}
	}

	var id int64
	var created time.Time
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO files (filename, url, mimetype, size_bytes)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		rec.Filename, rec.Content, mimetype, size,
	).Scan(&id, &created)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("insert file: %w", err)
	}
	return id, created, nil
}

// ListFiles returns up to limit records, newest first.
func (s *Store) ListFiles(ctx context.Context, limit int) ([]models.FileRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_files", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, url, mimetype, size_bytes, created_at
		 FROM files ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	out := make([]models.FileRecord, 0, limit)
	for rows.Next() {
		var r models.FileRecord
		var mimetype sql.NullString
		var size sql.NullInt64
		var created time.Time
		if err := rows.Scan(&r.ID, &r.Filename, &r.Content, &mimetype, &size, &created); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		if mimetype.Valid {
			r.MimeType = mimetype.String
		}
		if size.Valid {
			r.SizeBytes = models.Int64(size.Int64)
		}
		r.CreatedAt = &created
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteFile removes the record with id, or returns ErrNotFound.
func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete_file", time.Since(start)) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
