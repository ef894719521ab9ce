// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// promptpad.
//
// Configuration precedence, lowest to highest:
//   - Built-in defaults
//   - ~/.promptpad/config.toml
//   - PROMPTPAD_* environment variables
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/morganforge/promptpad-tui/internal/backend"
	"github.com/morganforge/promptpad-tui/internal/prompt"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Backend family names accepted in config.
const (
	BackendLocal  = "local"
	BackendHosted = "hosted"
)

// LocalConfig configures the local inference server backend.
type LocalConfig struct {
	// URL is the base URL of the local inference server
	URL string `toml:"url"`
	// Model is the model name to generate with
	Model string `toml:"model"`
}

// HostedConfig configures the hosted chat-completions backend.
type HostedConfig struct {
	// URL is the base URL of the hosted API
	URL string `toml:"url"`
	// Model is the model identifier to generate with
	Model string `toml:"model"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme selects the color theme: "dark" or "light"
	Theme string `toml:"theme"`
	// RenderMarkdown re-renders completed responses as markdown
	RenderMarkdown bool `toml:"render_markdown"`
}

// Config represents the complete promptpad configuration.
type Config struct {
	// Backend selects the backend family: "local" or "hosted"
	Backend string `toml:"backend"`
	// Category is the default prompt category
	Category string `toml:"category"`

	Local  LocalConfig  `toml:"local"`
	Hosted HostedConfig `toml:"hosted"`
	UI     UIConfig     `toml:"ui"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:  BackendLocal,
		Category: prompt.DefaultCategory,
		Local: LocalConfig{
			URL:   backend.DefaultLocalURL,
			Model: "llama3.2",
		},
		Hosted: HostedConfig{
			URL:   backend.DefaultHostedURL,
			Model: "openrouter/auto",
		},
		UI: UIConfig{
			Theme:          "dark",
			RenderMarkdown: true,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the promptpad configuration directory, creating it if
// missing.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	dir := filepath.Join(home, ".promptpad")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the config file path.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file at path, layering file values over defaults
// and environment overrides over both. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays PROMPTPAD_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("PROMPTPAD_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("PROMPTPAD_CATEGORY"); v != "" {
		c.Category = v
	}
	if v := os.Getenv("PROMPTPAD_LOCAL_URL"); v != "" {
		c.Local.URL = v
	}
	if v := os.Getenv("PROMPTPAD_HOSTED_URL"); v != "" {
		c.Hosted.URL = v
	}
	if v := os.Getenv("PROMPTPAD_MODEL"); v != "" {
		if c.Backend == BackendHosted {
			c.Hosted.Model = v
		} else {
			c.Local.Model = v
		}
	}
}

// Validate rejects configurations the rest of the program cannot act on.
func (c *Config) Validate() error {
	if c.Backend != BackendLocal && c.Backend != BackendHosted {
		return fmt.Errorf("invalid backend %q: must be %q or %q", c.Backend, BackendLocal, BackendHosted)
	}
	if !prompt.Valid(c.Category) {
		return fmt.Errorf("unknown prompt category %q", c.Category)
	}
	for _, u := range []string{c.Local.URL, c.Hosted.URL} {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid backend URL %q", u)
		}
	}
	return nil
}

// Save writes the config as TOML with owner-only permissions.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// ActiveModel returns the model for the selected backend family.
func (c *Config) ActiveModel() string {
	if c.Backend == BackendHosted {
		return c.Hosted.Model
	}
	return c.Local.Model
}

// SetActiveModel updates the model for the selected backend family.
func (c *Config) SetActiveModel(model string) {
	if c.Backend == BackendHosted {
		c.Hosted.Model = model
		return
	}
	c.Local.Model = model
}

// NewBackend constructs the backend the config selects. apiKey is only
// used by the hosted family.
func (c *Config) NewBackend(apiKey string) backend.Backend {
	if c.Backend == BackendHosted {
		return backend.NewHosted(c.Hosted.URL, apiKey)
	}
	return backend.NewLocal(c.Local.URL)
}
