// Package config loads the environment-variable driven settings shared by
// the Service Facade and the CLI entrypoint, following the teacher's
// internal/embedder.NewFromEnv precedence idiom generalized to the whole
// service: explicit env var first, then a safe default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the settings read once at startup from the environment
// (optionally seeded by a .env file in the working directory).
type Config struct {
	// DBDir is the per-project application-data root (§6 Persistence
	// layout). Each project gets its own subdirectory under it.
	DBDir string
	// ModelDir is the model artifact directory (§6 Model artifact layout),
	// handed to embedder.NewDirModelProvider. Empty means the caller must
	// supply one explicitly (e.g. in tests, a Fake embedder needs none).
	ModelDir string
	// MaxTokens is the chunker's token ceiling override.
	MaxTokens int
	// ScoreThreshold and TopK are search defaults (§6).
	ScoreThreshold float64
	TopK           int
	// DebounceMs is the file-change collapse window (§5 Backpressure).
	DebounceMs int
}

const (
	envDBDir          = "XMLINDEX_DB_DIR"
	envModelDir       = "XMLINDEX_MODEL_DIR"
	envMaxTokens      = "XMLINDEX_MAX_TOKENS"
	envScoreThreshold = "XMLINDEX_SCORE_THRESHOLD"
	envTopK           = "XMLINDEX_TOP_K"
	envDebounceMs     = "XMLINDEX_DEBOUNCE_MS"

	defaultMaxTokens  = 1000
	defaultDebounceMs = 2000
)

// Load reads a .env file if present (silently ignored if absent, since
// overrides during development are optional) and builds a Config from the
// environment, falling back to documented defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbDir := os.Getenv(envDBDir)
	if dbDir == "" {
		root, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve user config dir: %w", err)
		}
		dbDir = filepath.Join(root, "xmlindex")
	}

	return &Config{
		DBDir:          dbDir,
		ModelDir:       os.Getenv(envModelDir),
		MaxTokens:      envInt(envMaxTokens, defaultMaxTokens),
		ScoreThreshold: envFloat(envScoreThreshold, 0.25),
		TopK:           envInt(envTopK, 10),
		DebounceMs:     envInt(envDebounceMs, defaultDebounceMs),
	}, nil
}

// ProjectDBPath resolves the embeddings.db path for projectPath under the
// config's DBDir, namespacing projects by a short hash of their normalized
// absolute path so two projects never collide (§6: "Nothing is ever
// written into the user's project directory").
func (c *Config) ProjectDBPath(projectPath string) (string, error) {
	norm, err := NormalizeProjectPath(projectPath)
	if err != nil {
		return "", err
	}
	sub := projectDirName(norm)
	dir := filepath.Join(c.DBDir, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create project data dir: %w", err)
	}
	return filepath.Join(dir, "embeddings.db"), nil
}

// NormalizeProjectPath turns a possibly relative, possibly dirty project
// path into the canonical absolute form used as a registry key (§9
// "registry keyed by normalized project path").
func NormalizeProjectPath(projectPath string) (string, error) {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return "", fmt.Errorf("resolve absolute project path: %w", err)
	}
	return filepath.Clean(abs), nil
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}
