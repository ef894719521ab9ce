// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows
// +build !windows

package backend

import (
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// startWaitBudget bounds how long a freshly launched server may take to
// answer its first probe.
const startWaitBudget = 10 * time.Second

var serverBinaryNames = []string{"ollama"}

func serverInstallPaths() []string {
	paths := []string{
		"/usr/local/bin/ollama",
		"/usr/bin/ollama",
		"/opt/ollama/ollama",
		"/Applications/Ollama.app/Contents/Resources/ollama",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".local", "bin", "ollama"),
			filepath.Join(home, "bin", "ollama"),
		)
	}
	return paths
}

// detachedProcAttr puts the server in its own process group so it
// survives this process exiting.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
