// Package discovery validates skill and scenario directories and produces
// immutable configs for the orchestrator.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
)

// PathMissingError indicates an input path does not exist.
type PathMissingError struct {
	Path string
}

func (e *PathMissingError) Error() string {
	return fmt.Sprintf("path does not exist: %s", e.Path)
}

// NotADirectoryError indicates an input path exists but is not a directory.
type NotADirectoryError struct {
	Path string
}

func (e *NotADirectoryError) Error() string {
	return fmt.Sprintf("path is not a directory: %s", e.Path)
}

// SetupScriptMissingError indicates a scenario directory has no setup.sh.
type SetupScriptMissingError struct {
	Path string
}

func (e *SetupScriptMissingError) Error() string {
	return fmt.Sprintf("scenario missing setup script: %s", filepath.Join(e.Path, scenarioSetupScript))
}

const scenarioSetupScript = "setup.sh"

// SkillConfig is an immutable, resolved skill directory plus display name.
type SkillConfig struct {
	Path string // absolute
	Name string // display name, defaults to the directory's base name
}

// ScenarioConfig is an immutable, resolved scenario directory.
type ScenarioConfig struct {
	Path string // absolute
	Name string // the directory's base name
}

// Skills validates and resolves a list of skill directory paths. Every
// config shares nameOverride when it is non-empty; otherwise each skill's
// display name defaults to its directory's base name.
func Skills(paths []string, nameOverride string) ([]SkillConfig, error) {
	skills := make([]SkillConfig, 0, len(paths))
	for _, p := range paths {
		resolved, err := resolveDir(p)
		if err != nil {
			return nil, err
		}
		name := nameOverride
		if name == "" {
			name = filepath.Base(resolved)
		}
		skills = append(skills, SkillConfig{Path: resolved, Name: name})
	}
	return skills, nil
}

// Scenarios validates and resolves a list of scenario directory paths. Each
// must contain a regular setup.sh file.
func Scenarios(paths []string) ([]ScenarioConfig, error) {
	scenarios := make([]ScenarioConfig, 0, len(paths))
	for _, p := range paths {
		resolved, err := resolveDir(p)
		if err != nil {
			return nil, err
		}
		setup := filepath.Join(resolved, scenarioSetupScript)
		info, err := os.Stat(setup)
		if err != nil || !info.Mode().IsRegular() {
			return nil, &SetupScriptMissingError{Path: resolved}
		}
		scenarios = append(scenarios, ScenarioConfig{Path: resolved, Name: filepath.Base(resolved)})
	}
	return scenarios, nil
}

// resolveDir resolves p to an absolute path and verifies it is a directory.
// Error messages quote the original, pre-resolution path p to match the
// original Python implementation's FileNotFoundError(f"...: {p}") text.
func resolveDir(p string) (string, error) {
	resolved, err := filepath.Abs(p)
	if err != nil {
		return "", &PathMissingError{Path: p}
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", &PathMissingError{Path: p}
	}
	if !info.IsDir() {
		return "", &NotADirectoryError{Path: p}
	}
	return resolved, nil
}
