package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDataDirUsesXDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	got := DataDir()
	want := filepath.Join("/tmp/xdg", "hostwarden")
	if got != want {
		t.Errorf("DataDir() = %q, want %q", got, want)
	}
}

func TestDataDirFallsBackToHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/tmp/home")
	got := DataDir()
	want := filepath.Join("/tmp/home", ".hostwarden")
	if got != want {
		t.Errorf("DataDir() = %q, want %q", got, want)
	}
}

func TestLoadReturnsDefaultsWhenConfigMissing(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", t.TempDir())
	got := Load()
	want := Default()
	if got.TierTimeoutSec != want.TierTimeoutSec || got.DataDir != want.DataDir {
		t.Errorf("Load() = %+v, want defaults %+v", got, want)
	}
}

func TestLoadReturnsDefaultsOnMalformedJSON(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".hostwarden")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got := Load()
	want := Default()
	if got.TierTimeoutSec != want.TierTimeoutSec {
		t.Errorf("Load() on malformed JSON = %+v, want defaults %+v", got, want)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", home)

	cfg := Default()
	cfg.TierTimeoutSec = 99
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := Load()
	if got.TierTimeoutSec != 99 {
		t.Errorf("TierTimeoutSec = %d, want 99", got.TierTimeoutSec)
	}
}
