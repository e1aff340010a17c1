// Package promptloader resolves a prompt argument to a literal string.
package promptloader

import (
	"fmt"
	"os"
	"strings"
)

// Load returns prompt's file contents (whitespace-trimmed) if prompt names
// an existing regular file, otherwise it returns prompt unchanged so callers
// can pass either a literal prompt or a path transparently.
//
// If prompt is empty, Load falls back to reading fallbackFile (e.g.
// "prompt.md" in the current directory); if that also doesn't exist, it
// returns an error.
func Load(prompt string, fallbackFile string) (string, error) {
	if prompt == "" {
		return loadFallback(fallbackFile)
	}
	return resolve(prompt), nil
}

func resolve(prompt string) string {
	info, err := os.Stat(prompt)
	if err != nil || !info.Mode().IsRegular() {
		return prompt
	}
	data, err := os.ReadFile(prompt)
	if err != nil {
		return prompt
	}
	return strings.TrimSpace(string(data))
}

func loadFallback(fallbackFile string) (string, error) {
	info, err := os.Stat(fallbackFile)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("no prompt provided and %s not found", fallbackFile)
	}
	data, err := os.ReadFile(fallbackFile)
	if err != nil {
		return "", fmt.Errorf("no prompt provided and %s not found: %w", fallbackFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}
