// Package config holds the optional, per-workspace configuration an
// external collaborator (CLI, desktop app) may supply — spec §6:
// "default editor, daily-entry sub-folder, link format." The core
// itself reads no environment variables; this package only defines the
// shape of that configuration and its on-disk JSON form under a
// workspace's state directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// LinkFormat selects how an external collaborator renders a link to
// another workspace file (e.g. an editor's wiki-link plugin vs plain
// markdown). The core never interprets this value; it is carried
// through so callers share one source of truth per workspace.
type LinkFormat string

const (
	LinkFormatMarkdown LinkFormat = "markdown"
	LinkFormatWiki     LinkFormat = "wiki"
)

// FileName is the config file's name inside a workspace's hidden state
// directory (sibling to the CRDT database and sync manifest, spec §6).
const FileName = "config.json"

// Config is optional per-workspace configuration. Every field is a
// hint to external collaborators; none of them change core behavior.
type Config struct {
	// DefaultEditor is the command external collaborators should launch
	// to open a file ("" means "let the OS decide").
	DefaultEditor string `json:"default_editor,omitempty"`
	// DailyEntryDir is the workspace-relative sub-folder new daily
	// entries are created under.
	DailyEntryDir string     `json:"daily_entry_dir,omitempty"`
	LinkFormat    LinkFormat `json:"link_format,omitempty"`
}

// Default returns the configuration used when a workspace has no
// config.json of its own.
func Default() *Config {
	return &Config{
		DailyEntryDir: "daily",
		LinkFormat:    LinkFormatMarkdown,
	}
}

// Load reads path (a config.json produced by Save). A missing file is
// not an error: Default() is returned instead, since config is always
// optional.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	return nil
}
