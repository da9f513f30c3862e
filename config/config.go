package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Config holds user-configurable defaults for where the engine keeps its
// state and how it behaves when invoked interactively.
type Config struct {
	// DataDir is the application-support directory diagnostics.jsonl and
	// latest-snapshot.json live under (§4.H, §6).
	DataDir string `json:"data_dir"`
	// FSBaselinePath is the filesystem baseline store (§6 "FS baseline
	// store"); defaults under DataDir but may be pinned elsewhere.
	FSBaselinePath string `json:"fs_baseline_path"`
	// TCCBaselinePath is where the TCC monitor's first-run baseline is
	// persisted across process restarts.
	TCCBaselinePath string `json:"tcc_baseline_path"`
	// AllowlistPath is the Allowlist Store's persisted file (§4.E).
	AllowlistPath string `json:"allowlist_path"`
	// PersistenceLabelsPath is the stock-OS baseline used only to tag
	// persistence items, never to grant passes (§4.C, §6).
	PersistenceLabelsPath string `json:"persistence_labels_path"`
	// TierTimeoutSec bounds each tier's wall clock; 0 disables the cap.
	TierTimeoutSec int `json:"tier_timeout_sec"`
}

// appDirName is the application-support subdirectory name.
const appDirName = "hostwarden"

// Default returns a config rooted at the platform's application-support
// directory, with every path resolved relative to it.
func Default() Config {
	dir := DataDir()
	return Config{
		DataDir:               dir,
		FSBaselinePath:        filepath.Join(dir, "baseline-fs.json"),
		TCCBaselinePath:       filepath.Join(dir, "baseline-tcc.json"),
		AllowlistPath:         filepath.Join(dir, "allowlist.json"),
		PersistenceLabelsPath: filepath.Join(dir, "persistence-labels.json"),
		TierTimeoutSec:        30,
	}
}

// DataDir returns $HOME/.hostwarden (or $XDG_DATA_HOME/hostwarden if set),
// or "" if the home directory cannot be determined.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "."+appDirName)
}

// Path returns config.json under DataDir() ($HOME/.hostwarden/config.json
// unless XDG_DATA_HOME is set), or "" if the home directory cannot be
// determined.
func Path() string {
	dir := DataDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.json")
}

// Load reads the config from disk, returning defaults on any error
// (missing file, unreadable home directory, malformed JSON).
func Load() Config {
	cfg := Default()
	p := Path()
	if p == "" {
		return cfg
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Printf("hostwarden: warning: config parse error: %v", err)
		return Default()
	}
	return cfg
}

// Save writes cfg to disk, creating its parent directory if necessary.
func Save(cfg Config) error {
	path := Path()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
