// Package envconfig reads the process-wide environment variables named
// in the external interface: SMALLMIND_NUM_THREADS, SMALLMIND_MODEL_CACHE,
// and SMALLMIND_RNG_SEED. Each getter parses its variable, falls back to
// a documented default on absence, and warns (never fails) on a malformed
// value.
package envconfig

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Var returns an environment variable with surrounding whitespace and
// matching quotes trimmed.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// NumThreads returns the worker-pool size for kernel and attention
// parallelism. 0 means "auto" (let the caller pick runtime.NumCPU()).
// Configurable via SMALLMIND_NUM_THREADS.
func NumThreads() int {
	s := Var("SMALLMIND_NUM_THREADS")
	if s == "" {
		return 0
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		slog.Warn("invalid SMALLMIND_NUM_THREADS, using auto", "value", s)
		return 0
	}
	return n
}

// ResolvedThreads returns NumThreads(), resolving 0 to runtime.NumCPU().
func ResolvedThreads() int {
	if n := NumThreads(); n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// ModelCache returns the root directory for the model registry cache.
// Configurable via SMALLMIND_MODEL_CACHE; defaults to $HOME/.smallmind/models.
func ModelCache() string {
	if s := Var("SMALLMIND_MODEL_CACHE"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "smallmind", "models")
	}
	return filepath.Join(home, ".smallmind", "models")
}

// RNGSeed returns the global default sampling seed. A value of -1 (the
// default) means "derive a fresh seed per session at session-creation
// time" rather than a fixed global.
// Configurable via SMALLMIND_RNG_SEED.
func RNGSeed() int64 {
	s := Var("SMALLMIND_RNG_SEED")
	if s == "" {
		return -1
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		slog.Warn("invalid SMALLMIND_RNG_SEED, deriving a fresh seed", "value", s)
		return -1
	}
	return n
}

// EnvVar bundles a config value with its name and description for
// diagnostic dumps.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap reports every recognized environment variable, its current
// value, and a human-readable description.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"SMALLMIND_NUM_THREADS": {"SMALLMIND_NUM_THREADS", NumThreads(), "Worker threads for kernels (0 = auto)"},
		"SMALLMIND_MODEL_CACHE": {"SMALLMIND_MODEL_CACHE", ModelCache(), "Root directory for the model registry cache"},
		"SMALLMIND_RNG_SEED":    {"SMALLMIND_RNG_SEED", RNGSeed(), "Global default sampling seed (-1 = derive per session)"},
	}
}
