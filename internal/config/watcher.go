// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// CONFIG FILE WATCHER
// =============================================================================

// defaultDebounce coalesces the burst of events editors emit on save.
const defaultDebounce = 200 * time.Millisecond

// Watcher reloads the config file when it changes on disk and hands the
// result to a callback. Reloads that fail validation are dropped; the
// previous config stays in effect.
type Watcher struct {
	path     string
	onChange func(Config)
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending time.Time
	dirty   bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Watch starts watching the config file at path. onChange receives every
// successfully loaded config.
func Watch(path string, onChange func(Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors replace files on save
	// and the inode watch would be lost.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:     path,
		onChange: onChange,
		watcher:  fsw,
		debounce: defaultDebounce,
		ctx:      ctx,
		cancel:   cancel,
	}

	go w.processEvents()
	go w.processPending()

	return w, nil
}

// processEvents marks the config dirty on relevant filesystem events.
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.dirty = true
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config watcher: %v", err)
		}
	}
}

// processPending reloads once the debounce window has passed.
func (w *Watcher) processPending() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			ready := w.dirty && time.Since(w.pending) >= w.debounce
			if ready {
				w.dirty = false
			}
			w.mu.Unlock()

			if !ready {
				continue
			}

			cfg, err := Load(w.path)
			if err != nil {
				log.Printf("config reload rejected: %v", err)
				continue
			}
			w.onChange(cfg)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}
