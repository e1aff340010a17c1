package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jihwankim/skill-evaluator/pkg/config"
)

// InvalidEnvPairError is returned when a -e KEY=VALUE flag doesn't parse.
type InvalidEnvPairError struct {
	Pair string
}

func (e *InvalidEnvPairError) Error() string {
	return fmt.Sprintf("invalid env pair %q: expected KEY=VALUE", e.Pair)
}

// parseEnvPairs parses repeatable -e KEY=VALUE flags into a map. Splits on
// the first "=" only, so values may contain further "=" characters. An
// empty key is an error; an empty value is allowed.
func parseEnvPairs(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		idx := strings.Index(p, "=")
		if idx <= 0 {
			return nil, &InvalidEnvPairError{Pair: p}
		}
		env[p[:idx]] = p[idx+1:]
	}
	return env, nil
}

// loadEnvFile loads KEY=VALUE pairs from an env file into the returned map,
// without mutating the process environment. A missing file is not an
// error: env-file defaults to ".env" and is optional.
func loadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return env, nil
}

// mergeEnv layers override on top of base, returning a new map. Neither
// input is mutated.
func mergeEnv(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// shellSplit splits a command-line-style flag string into arguments,
// honoring single and double quotes the way a POSIX shell would for the
// simple case of flag lists (no globbing, no variable expansion).
func shellSplit(s string) []string {
	var args []string
	var cur strings.Builder
	var inSingle, inDouble, have bool

	for _, r := range s {
		switch {
		case inSingle:
			if r == '\'' {
				inSingle = false
			} else {
				cur.WriteRune(r)
			}
		case inDouble:
			if r == '"' {
				inDouble = false
			} else {
				cur.WriteRune(r)
			}
		case r == '\'':
			inSingle, have = true, true
		case r == '"':
			inDouble, have = true, true
		case r == ' ' || r == '\t':
			if have {
				args = append(args, cur.String())
				cur.Reset()
				have = false
			}
		default:
			cur.WriteRune(r)
			have = true
		}
	}
	if have {
		args = append(args, cur.String())
	}
	return args
}

// loadConfig loads configuration from cfgFile, falling back to defaults
// when the path is empty or missing, then validates it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
