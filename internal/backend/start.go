// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

// startPollInterval is how often a freshly launched server is probed.
const startPollInterval = 500 * time.Millisecond

// findServerExecutable locates the local inference server binary, trying
// PATH first and then the platform's usual install locations.
func findServerExecutable() (string, error) {
	for _, name := range serverBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	paths := serverInstallPaths()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("inference server not found in PATH or in: %s",
		strings.Join(paths, ", "))
}

// startServerProcess launches the inference server detached from this
// process and polls until it answers or the platform's wait budget runs out.
func (l *Local) startServerProcess(ctx context.Context) error {
	serverPath, err := findServerExecutable()
	if err != nil {
		return &Error{Kind: KindTransport, Backend: l.Name(),
			Message: "inference server executable not found", Cause: err}
	}

	cmd := exec.Command(serverPath, "serve")
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return &Error{Kind: KindTransport, Backend: l.Name(),
			Message: fmt.Sprintf("failed to launch inference server at %s", serverPath), Cause: err}
	}

	// Best effort; the detached process keeps running either way
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	log.Printf("launched inference server: %s (pid detached)", serverPath)

	begin := time.Now()
	deadline := begin.Add(startWaitBudget)
	var lastErr error

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return &Error{Kind: KindAborted, Backend: l.Name(),
				Message: "server startup cancelled", Cause: ctx.Err()}
		default:
		}

		probeCtx, cancel := context.WithTimeout(ctx, startPollInterval)
		lastErr = l.Probe(probeCtx)
		cancel()

		if lastErr == nil {
			log.Printf("inference server answering after %v", time.Since(begin).Round(time.Millisecond))
			return nil
		}

		time.Sleep(startPollInterval)
	}

	return &Error{Kind: KindTransport, Backend: l.Name(),
		Message: fmt.Sprintf("inference server not answering after %v (launched %s)", startWaitBudget, serverPath),
		Cause:   lastErr}
}
