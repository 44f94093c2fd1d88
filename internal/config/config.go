package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config holds all configurable quickterm settings.
type Config struct {
	Shell              string `json:"shell"` // override $SHELL
	HistoryLimit       int    `json:"history_limit"`
	PersistHistory     *bool  `json:"persist_history,omitempty"`
	ImportShellHistory *bool  `json:"import_shell_history,omitempty"`
	CompletionCache    *bool  `json:"completion_cache,omitempty"`
	LogLevel           string `json:"log_level"`  // "debug" | "info" | "warn" | "error"
	LogDir             string `json:"log_dir"`    // empty discards logs
	LogFormat          string `json:"log_format"` // "json" | "text"
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	persist := true
	return Config{
		HistoryLimit:   500,
		PersistHistory: &persist,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// ShouldPersistHistory reports whether history is written to disk.
func (c Config) ShouldPersistHistory() bool {
	return c.PersistHistory == nil || *c.PersistHistory
}

// ShouldImportShellHistory reports whether an empty history is seeded from
// the user's shell.
func (c Config) ShouldImportShellHistory() bool {
	return c.ImportShellHistory != nil && *c.ImportShellHistory
}

// UseCompletionCache reports whether directory listings are cached.
func (c Config) UseCompletionCache() bool {
	return c.CompletionCache != nil && *c.CompletionCache
}

// Dir returns the quickterm config directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "quickterm"), nil
}

// LoadGlobal reads ~/.config/quickterm/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return loadFile(filepath.Join(dir, "config.json"), true)
}

// LoadProject reads .quicktermconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".quicktermconfig", false)
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	apply(&result, global)
	apply(&result, project)
	return result
}

// apply copies every set field of src over dst.
func apply(dst *Config, src *Config) {
	if src == nil {
		return
	}
	if src.Shell != "" {
		dst.Shell = src.Shell
	}
	if src.HistoryLimit > 0 {
		dst.HistoryLimit = src.HistoryLimit
	}
	dst.PersistHistory = override(dst.PersistHistory, src.PersistHistory)
	dst.ImportShellHistory = override(dst.ImportShellHistory, src.ImportShellHistory)
	dst.CompletionCache = override(dst.CompletionCache, src.CompletionCache)
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogDir != "" {
		dst.LogDir = src.LogDir
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
}

// override returns a copy of src when it is set, otherwise dst.
func override(dst, src *bool) *bool {
	if src == nil {
		return dst
	}
	v := *src
	return &v
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
