package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
listen: ":9000"
signed_url_secret: "shh"
sink:
  kind: memory
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxFileSize != 104857600 {
		t.Fatalf("MaxFileSize = %d, want default", cfg.MaxFileSize)
	}
	if cfg.RateLimitWindow != time.Minute {
		t.Fatalf("RateLimitWindow = %v, want 1m", cfg.RateLimitWindow)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadMissingRequiredField(t *testing.T) {
	path := writeTempConfig(t, `
listen: ":9000"
sink:
  kind: memory
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing signed_url_secret")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeTempConfig(t, `
listen: ":9000"
signed_url_secret: "shh"
sink:
  kind: memory
`)

	t.Setenv("UPLOADENGINE_MAX_FILES", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxFiles != 3 {
		t.Fatalf("MaxFiles = %d, want 3 from env override", cfg.MaxFiles)
	}
}

func TestLoadNormalizesAllowedTypes(t *testing.T) {
	path := writeTempConfig(t, `
listen: ":9000"
signed_url_secret: "shh"
allowed_types: ["image/png, image/jpeg", "application/pdf"]
sink:
  kind: memory
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"image/png", "image/jpeg", "application/pdf"}
	if len(cfg.AllowedTypes) != len(want) {
		t.Fatalf("AllowedTypes = %v, want %v", cfg.AllowedTypes, want)
	}
	for i, v := range want {
		if cfg.AllowedTypes[i] != v {
			t.Fatalf("AllowedTypes[%d] = %q, want %q", i, cfg.AllowedTypes[i], v)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
