package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/filedrop")
	t.Setenv("LIST_CACHE_TTL", "")
	t.Setenv("MAX_BODY_BYTES", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.MaxBodyBytes != 20<<20 || cfg.ListCacheTTL != 5*time.Second {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/filedrop")
	t.Setenv("MAX_BODY_BYTES", "1024")
	t.Setenv("LIST_CACHE_TTL", "0s")
	t.Setenv("DB_CONNECT_ATTEMPTS", "not a number")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxBodyBytes != 1024 || cfg.ListCacheTTL != 0 {
		t.Errorf("overrides = %+v", cfg)
	}
	if cfg.DBConnectAttempts != 10 {
		t.Errorf("bad int should fall back, got %d", cfg.DBConnectAttempts)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadClient_YAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("FILEDROP_TEST_HOST", "catalog.internal")
	path := writeConfig(t, `
mode: remote
server_url: http://${FILEDROP_TEST_HOST}:8080
timeout: 5s
list_limit: 50
slot:
  backend: s3
  key: drops
  quota_bytes: 1024
  s3:
    bucket: slots
    endpoint: http://minio:9000
`)
	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.ServerURL != "http://catalog.internal:8080" {
		t.Errorf("server_url = %q", cfg.ServerURL)
	}
	if cfg.Mode != ModeRemote || cfg.Timeout != 5*time.Second || cfg.ListLimit != 50 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Slot.Backend != "s3" || cfg.Slot.S3.Bucket != "slots" || cfg.Slot.Key != "drops" || cfg.Slot.QuotaBytes != 1024 {
		t.Errorf("slot = %+v", cfg.Slot)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("unset keys should keep defaults, concurrency = %d", cfg.Concurrency)
	}
}

func TestLoadClient_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "mode: local\n")
	t.Setenv("FILEDROP_MODE", "remote")
	t.Setenv("FILEDROP_SERVER_URL", "http://env:1")
	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.Mode != ModeRemote || cfg.ServerURL != "http://env:1" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadClient_Errors(t *testing.T) {
	if _, err := LoadClient(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing explicit file = %v", err)
	}
	if _, err := LoadClient(writeConfig(t, "mode: [")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := LoadClient(writeConfig(t, "mode: hybrid\n")); err == nil {
		t.Error("expected mode validation error")
	}
	if _, err := LoadClient(writeConfig(t, "slot:\n  backend: ftp\n")); err == nil {
		t.Error("expected backend validation error")
	}
}
