// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package keystore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvStore(t *testing.T) {
	t.Setenv("PROMPTPAD_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	var env Env
	if _, err := env.APIKey("hosted"); !errors.Is(err, ErrNotFound) {
		t.Errorf("APIKey() error = %v, want ErrNotFound", err)
	}

	t.Setenv("OPENROUTER_API_KEY", "sk-or-fallback")
	key, err := env.APIKey("hosted")
	if err != nil || key != "sk-or-fallback" {
		t.Errorf("APIKey(hosted) = %q, %v, want OPENROUTER fallback", key, err)
	}

	// The fallback var is hosted-only
	if _, err := env.APIKey("local"); !errors.Is(err, ErrNotFound) {
		t.Errorf("APIKey(local) error = %v, want ErrNotFound", err)
	}

	t.Setenv("PROMPTPAD_API_KEY", "  sk-primary  ")
	key, err = env.APIKey("hosted")
	if err != nil || key != "sk-primary" {
		t.Errorf("APIKey() = %q, %v, want trimmed primary var", key, err)
	}

	if err := env.SetAPIKey("hosted", "x"); err == nil {
		t.Error("SetAPIKey() on Env = nil, want error")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(dir)

	if _, err := f.APIKey("hosted"); !errors.Is(err, ErrNotFound) {
		t.Errorf("APIKey() error = %v, want ErrNotFound", err)
	}

	if err := f.SetAPIKey("hosted", "sk-or-stored"); err != nil {
		t.Fatalf("SetAPIKey() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "hosted.key"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key file mode = %o, want 600", perm)
	}

	key, err := f.APIKey("hosted")
	if err != nil || key != "sk-or-stored" {
		t.Errorf("APIKey() = %q, %v, want stored key", key, err)
	}
}

func TestFileStoreRejectsEmptyKey(t *testing.T) {
	f := NewFile(t.TempDir())
	if err := f.SetAPIKey("hosted", "   "); err == nil {
		t.Error("SetAPIKey(blank) = nil, want error")
	}
}

func TestChainOrder(t *testing.T) {
	t.Setenv("PROMPTPAD_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	dir := t.TempDir()
	file := NewFile(dir)
	chain := Chain{Env{}, file}

	if _, err := chain.APIKey("hosted"); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty chain APIKey() error = %v, want ErrNotFound", err)
	}

	// Writes land in the first writable store (the file; Env is read-only)
	if err := chain.SetAPIKey("hosted", "sk-file"); err != nil {
		t.Fatalf("SetAPIKey() error = %v", err)
	}
	key, err := chain.APIKey("hosted")
	if err != nil || key != "sk-file" {
		t.Errorf("APIKey() = %q, %v, want file value", key, err)
	}

	// Environment outranks the file
	t.Setenv("PROMPTPAD_API_KEY", "sk-env")
	key, err = chain.APIKey("hosted")
	if err != nil || key != "sk-env" {
		t.Errorf("APIKey() = %q, %v, want env value", key, err)
	}
}
