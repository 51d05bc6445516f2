package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Profiles.Dir == "" || filepath.Base(cfg.Profiles.Dir) != "icc" {
		t.Errorf("Profiles.Dir = %q, want an icc subdirectory", cfg.Profiles.Dir)
	}
	if cfg.Profiles.Reference != "sRGB.icc" {
		t.Errorf("Profiles.Reference = %q", cfg.Profiles.Reference)
	}
	if cfg.Colord.RegistrationTimeout.Duration() != 4*time.Second {
		t.Errorf("RegistrationTimeout = %v", cfg.Colord.RegistrationTimeout.Duration())
	}
	if cfg.Colord.PollInterval.Duration() != 10*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.Colord.PollInterval.Duration())
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Ledger.Path != "" {
		t.Errorf("Ledger.Path = %q, want disabled by default", cfg.Ledger.Path)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
profiles:
  dir: /tmp/test-icc
colord:
  registration_timeout: 10s
  poll_interval: 50ms
ledger:
  path: /tmp/gammatool.sqlite
log:
  level: debug
  colors: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Profiles.Dir != "/tmp/test-icc" {
		t.Errorf("Profiles.Dir = %q", cfg.Profiles.Dir)
	}
	if cfg.Colord.RegistrationTimeout.Duration() != 10*time.Second {
		t.Errorf("RegistrationTimeout = %v", cfg.Colord.RegistrationTimeout.Duration())
	}
	if cfg.Colord.PollInterval.Duration() != 50*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.Colord.PollInterval.Duration())
	}
	if cfg.Ledger.Path != "/tmp/gammatool.sqlite" {
		t.Errorf("Ledger.Path = %q", cfg.Ledger.Path)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Colors {
		t.Errorf("Log = %+v", cfg.Log)
	}
	// Unset values still get defaults.
	if cfg.Profiles.Reference != "sRGB.icc" {
		t.Errorf("Profiles.Reference = %q", cfg.Profiles.Reference)
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("GAMMATOOL_TEST_DIR", "/custom/icc")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "profiles:\n  dir: ${GAMMATOOL_TEST_DIR}\n  reference: ${GAMMATOOL_TEST_REF:AdobeRGB.icc}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Profiles.Dir != "/custom/icc" {
		t.Errorf("Profiles.Dir = %q, want env expansion", cfg.Profiles.Dir)
	}
	if cfg.Profiles.Reference != "AdobeRGB.icc" {
		t.Errorf("Profiles.Reference = %q, want fallback default", cfg.Profiles.Reference)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load of missing file succeeded")
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("colord:\n  registration_timeout: nonsense\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load with invalid duration succeeded")
	}
}
