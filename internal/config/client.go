package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fruitsalade/filedrop/internal/storage"
)

// Catalog modes.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// SlotConfig configures the local cache slot.
type SlotConfig struct {
	storage.Config `yaml:",inline"`
	Key            string `yaml:"key"`
	QuotaBytes     int64  `yaml:"quota_bytes"`
}

// ClientConfig holds filedrop client configuration.
type ClientConfig struct {
	Mode         string        `yaml:"mode"`
	ServerURL    string        `yaml:"server_url"`
	Timeout      time.Duration `yaml:"timeout"`
	ListLimit    int           `yaml:"list_limit"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	Concurrency  int           `yaml:"concurrency"`
	LogLevel     string        `yaml:"log_level"`
	Slot         SlotConfig    `yaml:"slot"`
}

// DefaultClient returns the configuration used when no file is present.
func DefaultClient() *ClientConfig {
	return &ClientConfig{
		Mode:         ModeLocal,
		ServerURL:    "http://localhost:8080",
		Timeout:      30 * time.Second,
		ListLimit:    200,
		MaxBodyBytes: 20 << 20,
		Concurrency:  8,
		LogLevel:     "warn",
		Slot: SlotConfig{
			Config:     storage.Config{Backend: "local", Dir: defaultSlotDir()},
			Key:        "uploadedFiles",
			QuotaBytes: 5 << 20,
		},
	}
}

// DefaultClientPath is where LoadClient looks when no path is given.
func DefaultClientPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "filedrop", "config.yaml")
}

func defaultSlotDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "filedrop")
	}
	return ".filedrop"
}

// LoadClient builds the client configuration: defaults, then the YAML file
// at path (with ${VAR} expansion), then FILEDROP_* environment variables.
// An empty path reads DefaultClientPath if it exists.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := DefaultClient()

	explicit := path != ""
	if !explicit {
		path = DefaultClientPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
				return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("config file not found: %s", path)
		default:
			return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ClientConfig) applyEnv() {
	c.Mode = envOr("FILEDROP_MODE", c.Mode)
	c.ServerURL = envOr("FILEDROP_SERVER_URL", c.ServerURL)
	c.LogLevel = envOr("FILEDROP_LOG_LEVEL", c.LogLevel)
	c.Concurrency = envInt("FILEDROP_CONCURRENCY", c.Concurrency)
	c.Slot.Backend = envOr("FILEDROP_SLOT_BACKEND", c.Slot.Backend)
	c.Slot.Dir = envOr("FILEDROP_SLOT_DIR", c.Slot.Dir)
	c.Slot.S3.Endpoint = envOr("FILEDROP_S3_ENDPOINT", c.Slot.S3.Endpoint)
	c.Slot.S3.Bucket = envOr("FILEDROP_S3_BUCKET", c.Slot.S3.Bucket)
	c.Slot.S3.AccessKey = envOr("FILEDROP_S3_ACCESS_KEY", c.Slot.S3.AccessKey)
	c.Slot.S3.SecretKey = envOr("FILEDROP_S3_SECRET_KEY", c.Slot.S3.SecretKey)
}

// Validate checks that the configuration is usable.
func (c *ClientConfig) Validate() error {
	switch c.Mode {
	case ModeLocal:
		switch c.Slot.Backend {
		case "", "local":
			if c.Slot.Dir == "" {
				return errors.New("slot.dir is required for the local backend")
			}
		case "s3":
			if c.Slot.S3.Bucket == "" {
				return errors.New("slot.s3.bucket is required for the s3 backend")
			}
		default:
			return fmt.Errorf("unknown slot backend %q", c.Slot.Backend)
		}
	case ModeRemote:
		if c.ServerURL == "" {
			return errors.New("server_url is required in remote mode")
		}
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeLocal, ModeRemote, c.Mode)
	}
	if c.ListLimit < 0 {
		return fmt.Errorf("list_limit must not be negative")
	}
	return nil
}
