// Package client talks to the catalog service over HTTP.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/fruitsalade/filedrop/internal/logging"
	"github.com/fruitsalade/filedrop/pkg/models"
	"github.com/fruitsalade/filedrop/pkg/protocol"
	"github.com/fruitsalade/filedrop/pkg/retry"
)

// ErrNotFound is returned by Delete for an unknown id.
var ErrNotFound = errors.New("file not found")

// Client is a catalog service client. Reads are retried with backoff;
// inserts are sent exactly once.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	retryConfig  retry.Config
	maxBodyBytes int64

	mu       sync.RWMutex
	online   bool
	lastSeen time.Time
}

// Config holds client configuration.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	RetryConfig  retry.Config
	MaxBodyBytes int64 // 0 disables the local size check
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        16,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig:  cfg.RetryConfig,
		maxBodyBytes: cfg.MaxBodyBytes,
		online:       true,
	}
}

// IsOnline reports whether the last request reached the service.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// LastSeen returns when the service last answered.
func (c *Client) LastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logging.Info("catalog service reachable", logging.String("url", c.baseURL))
		} else {
			logging.Warn("catalog service unreachable", logging.String("url", c.baseURL))
		}
	}
	c.online = online
	if online {
		c.lastSeen = time.Now()
	}
}

// do sends req and tracks reachability. Transport failures come back as NetworkError.
func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return nil, &protocol.NetworkError{Op: op, Err: err}
	}
	c.setOnline(true)
	return resp, nil
}

// HealthCheck asks the service for its database time.
func (c *Client) HealthCheck(ctx context.Context) (time.Time, error) {
	return retry.DoWithResult(ctx, c.retryConfig, func() (time.Time, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/test-db", nil)
		if err != nil {
			return time.Time{}, err
		}
		resp, err := c.do(req, "health check")
		if err != nil {
			return time.Time{}, retry.Transient(err)
		}
		defer resp.Body.Close()

		var hr protocol.HealthResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&hr)
		if resp.StatusCode != http.StatusOK || !hr.OK {
			se := &protocol.ServiceError{Op: "health check", Status: resp.StatusCode, Message: hr.Error}
			if resp.StatusCode >= 500 {
				return time.Time{}, retry.Transient(se)
			}
			return time.Time{}, se
		}
		if decodeErr != nil {
			return time.Time{}, fmt.Errorf("decode health response: %w", decodeErr)
		}
		if hr.Now == nil {
			return time.Time{}, nil
		}
		return *hr.Now, nil
	})
}

// Insert stores one record. It is never retried: a failure is reported for
// this record only.
func (c *Client) Insert(ctx context.Context, rec models.FileRecord) error {
	if rec.Filename == "" {
		return &protocol.ValidationError{Field: "filename"}
	}
	if rec.Content == "" {
		return &protocol.ValidationError{Field: "url"}
	}

	body, err := json.Marshal(protocol.NewSaveLinkRequest(rec))
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if c.maxBodyBytes > 0 && int64(len(body)) > c.maxBodyBytes {
		return &protocol.PayloadTooLargeError{Filename: rec.Filename, Size: int64(len(body)), Limit: c.maxBodyBytes}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/save-link", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, "insert "+rec.Filename)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return &protocol.ValidationError{Message: readError(resp.Body, resp.StatusCode)}
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return &protocol.PayloadTooLargeError{Filename: rec.Filename, Size: int64(len(body)), Limit: c.maxBodyBytes}
	default:
		return &protocol.ServiceError{Op: "insert " + rec.Filename, Status: resp.StatusCode, Message: readError(resp.Body, resp.StatusCode)}
	}
}

// List fetches up to limit records, newest first. A limit outside
// (0, protocol.MaxListLimit] is treated as the maximum.
func (c *Client) List(ctx context.Context, limit int) ([]models.FileRecord, error) {
	if limit <= 0 || limit > protocol.MaxListLimit {
		limit = protocol.MaxListLimit
	}

	rows, err := retry.DoWithResult(ctx, c.retryConfig, func() ([]protocol.FileResponse, error) {
		url := c.baseURL + "/api/files?limit=" + strconv.Itoa(limit)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept-Encoding", "gzip")

		resp, err := c.do(req, "list")
		if err != nil {
			return nil, retry.Transient(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			se := &protocol.ServiceError{Op: "list", Status: resp.StatusCode, Message: readError(resp.Body, resp.StatusCode)}
			if resp.StatusCode >= 500 {
				return nil, retry.Transient(se)
			}
			return nil, se
		}

		var reader io.Reader = resp.Body
		if resp.Header.Get("Content-Encoding") == "gzip" {
			gr, err := gzip.NewReader(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("list: %w", err)
			}
			defer gr.Close()
			reader = gr
		}

		var out []protocol.FileResponse
		if err := json.NewDecoder(reader).Decode(&out); err != nil {
			return nil, fmt.Errorf("list: decode: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	records := make([]models.FileRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Record())
	}
	slices.SortStableFunc(records, func(a, b models.FileRecord) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Delete removes the record with the given id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return retry.Do(ctx, c.retryConfig, func() error {
		url := c.baseURL + "/api/files/" + strconv.FormatInt(id, 10)
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
		if err != nil {
			return err
		}

		resp, err := c.do(req, "delete")
		if err != nil {
			return retry.Transient(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("delete %d: %w", id, ErrNotFound)
		case resp.StatusCode >= 500:
			return retry.Transient(&protocol.ServiceError{Op: "delete", Status: resp.StatusCode, Message: readError(resp.Body, resp.StatusCode)})
		default:
			return &protocol.ServiceError{Op: "delete", Status: resp.StatusCode, Message: readError(resp.Body, resp.StatusCode)}
		}
	})
}

// readError extracts the message from an error body, falling back to the status text.
func readError(r io.Reader, status int) string {
	var er protocol.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&er); err == nil && er.Error != "" {
		return er.Error
	}
	return http.StatusText(status)
}
