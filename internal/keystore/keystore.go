// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package keystore resolves and stores API credentials. Secure OS-level
// storage is an external concern; this package covers the environment and
// an owner-only file as the development fallback.
package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound means no store in the chain holds a key for the backend.
var ErrNotFound = errors.New("API key not found")

// Keystore resolves credentials per backend family.
type Keystore interface {
	// APIKey returns the credential for a backend family, or ErrNotFound.
	APIKey(backend string) (string, error)

	// SetAPIKey stores a credential. Stores that cannot persist return an
	// error.
	SetAPIKey(backend, key string) error
}

// =============================================================================
// ENVIRONMENT STORE
// =============================================================================

// Env reads credentials from environment variables. PROMPTPAD_API_KEY
// wins; OPENROUTER_API_KEY is honored for the hosted family.
type Env struct{}

// APIKey implements Keystore.
func (Env) APIKey(backend string) (string, error) {
	if key := strings.TrimSpace(os.Getenv("PROMPTPAD_API_KEY")); key != "" {
		return key, nil
	}
	if backend == "hosted" {
		if key := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")); key != "" {
			return key, nil
		}
	}
	return "", ErrNotFound
}

// SetAPIKey implements Keystore. The environment is read-only.
func (Env) SetAPIKey(string, string) error {
	return errors.New("environment keystore is read-only")
}

// =============================================================================
// FILE STORE
// =============================================================================

// File stores one credential per backend family as an owner-only file
// under the config directory.
type File struct {
	dir string
}

// NewFile creates a file keystore rooted at dir.
func NewFile(dir string) *File {
	return &File{dir: dir}
}

func (f *File) path(backend string) string {
	return filepath.Join(f.dir, backend+".key")
}

// APIKey implements Keystore.
func (f *File) APIKey(backend string) (string, error) {
	data, err := os.ReadFile(f.path(backend))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read key file: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

// SetAPIKey implements Keystore.
func (f *File) SetAPIKey(backend, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("refusing to store empty key")
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}
	if err := os.WriteFile(f.path(backend), []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// =============================================================================
// CHAIN
// =============================================================================

// Chain queries stores in order; the first hit wins. Writes go to the
// first store that accepts them.
type Chain []Keystore

// APIKey implements Keystore.
func (c Chain) APIKey(backend string) (string, error) {
	for _, ks := range c {
		key, err := ks.APIKey(backend)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", ErrNotFound
}

// SetAPIKey implements Keystore.
func (c Chain) SetAPIKey(backend, key string) error {
	var lastErr error
	for _, ks := range c {
		err := ks.SetAPIKey(backend, key)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no keystore accepted the key")
	}
	return lastErr
}
