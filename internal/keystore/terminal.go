// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package keystore

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadKeyInteractive prompts for a credential on the terminal with echo
// disabled. Used for first-run setup before the TUI starts.
func ReadKeyInteractive(promptText string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("stdin is not a terminal; set PROMPTPAD_API_KEY instead")
	}

	fmt.Fprint(os.Stderr, promptText)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read key: %w", err)
	}

	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	return key, nil
}
