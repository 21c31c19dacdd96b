package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UsesDefaultsWhenUnset(t *testing.T) {
	for _, k := range []string{envDBDir, envModelDir, envMaxTokens, envScoreThreshold, envTopK, envDebounceMs} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaultMaxTokens, cfg.MaxTokens)
	assert.Equal(t, defaultDebounceMs, cfg.DebounceMs)
	assert.Equal(t, 0.25, cfg.ScoreThreshold)
	assert.Equal(t, 10, cfg.TopK)
	assert.NotEmpty(t, cfg.DBDir)
}

func TestLoad_HonorsExplicitOverrides(t *testing.T) {
	t.Setenv(envMaxTokens, "750")
	t.Setenv(envScoreThreshold, "0.4")
	t.Setenv(envTopK, "20")
	t.Setenv(envDebounceMs, "500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 750, cfg.MaxTokens)
	assert.Equal(t, 0.4, cfg.ScoreThreshold)
	assert.Equal(t, 20, cfg.TopK)
	assert.Equal(t, 500, cfg.DebounceMs)
}

func TestLoad_IgnoresUnparsableOverrides(t *testing.T) {
	t.Setenv(envMaxTokens, "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaultMaxTokens, cfg.MaxTokens)
}

func TestProjectDBPath_IsStableAndNamespacedPerProject(t *testing.T) {
	dbDir := t.TempDir()
	cfg := &Config{DBDir: dbDir}

	projectA := filepath.Join(t.TempDir(), "repo-a")
	require.NoError(t, os.MkdirAll(projectA, 0o755))

	first, err := cfg.ProjectDBPath(projectA)
	require.NoError(t, err)
	second, err := cfg.ProjectDBPath(projectA)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "embeddings.db", filepath.Base(first))

	projectB := filepath.Join(t.TempDir(), "repo-b")
	require.NoError(t, os.MkdirAll(projectB, 0o755))
	other, err := cfg.ProjectDBPath(projectB)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestNormalizeProjectPath_CleansRelativePaths(t *testing.T) {
	dir := t.TempDir()
	rel := filepath.Join(dir, "a", "..", "b")
	norm, err := NormalizeProjectPath(rel)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b"), norm)
}
