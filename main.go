// promptpad - a terminal interface for generating LLM prompts.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/promptpad-tui/internal/backend"
	"github.com/morganforge/promptpad-tui/internal/config"
	"github.com/morganforge/promptpad-tui/internal/connectivity"
	"github.com/morganforge/promptpad-tui/internal/generate"
	"github.com/morganforge/promptpad-tui/internal/keystore"
	"github.com/morganforge/promptpad-tui/internal/ui/app"
)

// Version information (set at build time)
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for async updates from the supervisor and the
// config watcher.
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

// startTimeout bounds the local server autostart at launch.
const startTimeout = 30 * time.Second

func main() {
	backendFlag := flag.String("backend", "", "backend family: local or hosted")
	modelFlag := flag.String("model", "", "model to generate with")
	categoryFlag := flag.String("category", "", "prompt category")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("promptpad %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*backendFlag, *modelFlag, *categoryFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(backendName, model, category string) error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(dir)
	if err != nil {
		return err
	}
	defer closeLog()

	path, err := config.DefaultPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	// CLI flags override config and environment
	if backendName != "" {
		cfg.Backend = backendName
	}
	if category != "" {
		cfg.Category = category
	}
	if model != "" {
		cfg.SetActiveModel(model)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	apiKey, err := resolveAPIKey(&cfg, dir)
	if err != nil {
		return err
	}

	b := cfg.NewBackend(apiKey)

	if local, ok := b.(*backend.Local); ok {
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		if err := local.EnsureRunning(ctx); err != nil {
			// The supervisor will keep probing; start degraded
			log.Printf("local server unavailable at startup: %v", err)
		}
		cancel()
	}

	mgr := generate.NewManager(b)

	sup := connectivity.New(b, func(state connectivity.State) {
		send(app.ConnectivityMsg{State: state})
	})
	defer sup.Close()

	m := app.New(&cfg, b, mgr, sup)
	p := tea.NewProgram(m, tea.WithAltScreen())

	programMu.Lock()
	programRef = p
	programMu.Unlock()

	sup.Start()

	watcher, err := config.Watch(path, func(c config.Config) {
		send(app.ConfigReloadedMsg{Config: &c})
	})
	if err != nil {
		log.Printf("config watcher unavailable: %v", err)
	} else {
		defer watcher.Close()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run promptpad: %w", err)
	}
	return nil
}

// setupLogging directs the standard logger to a file under the config dir.
// A TUI owns the terminal, so nothing may log to stdout or stderr.
func setupLogging(dir string) (func(), error) {
	f, err := os.OpenFile(filepath.Join(dir, "promptpad.log"),
		os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	log.Printf("promptpad %s starting", Version)
	return func() { f.Close() }, nil
}

// resolveAPIKey finds a credential for the hosted backend: environment
// first, then the key file, then a masked interactive prompt. The local
// backend needs no key.
func resolveAPIKey(cfg *config.Config, dir string) (string, error) {
	if cfg.Backend != config.BackendHosted {
		return "", nil
	}

	stores := keystore.Chain{keystore.Env{}, keystore.NewFile(dir)}

	key, err := stores.APIKey(cfg.Backend)
	if errors.Is(err, keystore.ErrNotFound) {
		key, err = keystore.ReadKeyInteractive("Enter your hosted backend API key: ")
		if err != nil {
			return "", err
		}
		if saveErr := stores.SetAPIKey(cfg.Backend, key); saveErr != nil {
			log.Printf("could not persist API key: %v", saveErr)
		}
	} else if err != nil {
		return "", err
	}

	log.Printf("hosted credential loaded (fingerprint %s)", backend.KeyFingerprint(key))
	return key, nil
}

// send posts a message into the running program, if one exists yet.
func send(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}
