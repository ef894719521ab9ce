// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/morganforge/promptpad-tui/internal/prompt"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
	if cfg.Backend != BackendLocal {
		t.Errorf("default backend = %q, want %q", cfg.Backend, BackendLocal)
	}
	if cfg.Category != prompt.DefaultCategory {
		t.Errorf("default category = %q, want %q", cfg.Category, prompt.DefaultCategory)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Local.URL != Default().Local.URL {
		t.Errorf("Local.URL = %q, want default", cfg.Local.URL)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Backend = BackendHosted
	cfg.Category = "writing"
	cfg.Hosted.Model = "openai/gpt-4o"
	cfg.UI.RenderMarkdown = false

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Backend != BackendHosted || loaded.Category != "writing" {
		t.Errorf("loaded = %+v, want saved values", loaded)
	}
	if loaded.Hosted.Model != "openai/gpt-4o" {
		t.Errorf("Hosted.Model = %q, want openai/gpt-4o", loaded.Hosted.Model)
	}
	if loaded.UI.RenderMarkdown {
		t.Error("UI.RenderMarkdown = true, want false")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PROMPTPAD_BACKEND", BackendHosted)
	t.Setenv("PROMPTPAD_MODEL", "anthropic/claude-3.5-sonnet")
	t.Setenv("PROMPTPAD_HOSTED_URL", "https://example.com/v1")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend != BackendHosted {
		t.Errorf("Backend = %q, want hosted (env override)", cfg.Backend)
	}
	if cfg.Hosted.Model != "anthropic/claude-3.5-sonnet" {
		t.Errorf("Hosted.Model = %q, want env value", cfg.Hosted.Model)
	}
	if cfg.Hosted.URL != "https://example.com/v1" {
		t.Errorf("Hosted.URL = %q, want env value", cfg.Hosted.URL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad backend", func(c *Config) { c.Backend = "cloud" }},
		{"bad category", func(c *Config) { c.Category = "nope" }},
		{"bad local url", func(c *Config) { c.Local.URL = "not a url" }},
		{"empty hosted url", func(c *Config) { c.Hosted.URL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestActiveModel(t *testing.T) {
	cfg := Default()
	if cfg.ActiveModel() != cfg.Local.Model {
		t.Errorf("ActiveModel() = %q, want local model", cfg.ActiveModel())
	}
	cfg.Backend = BackendHosted
	if cfg.ActiveModel() != cfg.Hosted.Model {
		t.Errorf("ActiveModel() = %q, want hosted model", cfg.ActiveModel())
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var mu sync.Mutex
	var got []Config
	w, err := Watch(path, func(c Config) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	cfg.Category = "analysis"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatal("watcher never reported a reload")
	}
	if got[len(got)-1].Category != "analysis" {
		t.Errorf("reloaded category = %q, want analysis", got[len(got)-1].Category)
	}
}

func TestWatcherDropsInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var mu sync.Mutex
	calls := 0
	w, err := Watch(path, func(Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("backend = \"bogus\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("onChange calls = %d, want 0 for invalid config", calls)
	}
}
