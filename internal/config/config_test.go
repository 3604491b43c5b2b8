package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("source: 42\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv(configFileEnv, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != 42 {
		t.Fatalf("got Source=%d, want 42", cfg.Source)
	}
	if cfg.HTTPAddr != defaultHTTPAddr {
		t.Fatalf("got HTTPAddr=%q, want default %q", cfg.HTTPAddr, defaultHTTPAddr)
	}
	if cfg.DeviceGracePeriodSeconds != defaultGracePeriodS {
		t.Fatalf("got DeviceGracePeriodSeconds=%d, want default %d", cfg.DeviceGracePeriodSeconds, defaultGracePeriodS)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	t.Setenv(configFileEnv, filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
