// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows
// +build windows

package backend

import (
	"os"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

// startWaitBudget bounds how long a freshly launched server may take to
// answer its first probe. First launch on Windows is slow.
const startWaitBudget = 15 * time.Second

var serverBinaryNames = []string{"ollama.exe", "ollama"}

func serverInstallPaths() []string {
	var paths []string
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		paths = append(paths, filepath.Join(localAppData, "Programs", "Ollama", "ollama.exe"))
	}
	paths = append(paths,
		`C:\Program Files\Ollama\ollama.exe`,
		`C:\Program Files (x86)\Ollama\ollama.exe`,
	)
	if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
		paths = append(paths, filepath.Join(userProfile, "Ollama", "ollama.exe"))
	}
	return paths
}

// detachedProcAttr detaches the server from our console so no window
// appears and it survives this process exiting.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.CREATE_NO_WINDOW | windows.DETACHED_PROCESS,
	}
}
