package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oss.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 20, cfg.TotalProcs)
	assert.Equal(t, 5, cfg.ConcurrencyLimit)
	assert.Equal(t, 5, cfg.ChildTimeLimit)
	assert.Equal(t, 100*time.Millisecond, cfg.LaunchInterval())
	assert.Equal(t, "oss.log", cfg.LogFile)
	assert.Equal(t, 20, cfg.TableCapacity)

	limit, err := cfg.RealTimeLimit()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, limit)
	assert.Empty(t, ValidateConfig(cfg))
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
totalProcs: 3
concurrencyLimit: 1
launchIntervalMs: 0
timeLimit: 5s
seed: 42
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.TotalProcs)
	assert.Equal(t, 1, cfg.ConcurrencyLimit)
	assert.Equal(t, 0, cfg.LaunchIntervalMs)
	assert.Equal(t, "5s", cfg.TimeLimit)
	assert.Equal(t, uint64(42), cfg.Seed)

	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultChildTimeLimit, cfg.ChildTimeLimit)
	assert.Equal(t, DefaultLogFile, cfg.LogFile)
	assert.Equal(t, DefaultTableCapacity, cfg.TableCapacity)
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfig_NotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "totalProcs: [1,\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing config file")
}

func TestLoadConfig_SchemaViolations(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantPath string
	}{
		{"unknown key", "workers: 3\n", "(root)"},
		{"wrong type", "totalProcs: many\n", "totalProcs"},
		{"below minimum", "childTimeLimit: 0\n", "childTimeLimit"},
		{"empty log file", "logFile: \"\"\n", "logFile"},
		{"bad time limit", "timeLimit: forever\n", "timeLimit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "expected ValidationErrors, got %T: %v", err, err)
			require.NotEmpty(t, verrs)
			assert.Equal(t, tt.wantPath, verrs[0].Path)
		})
	}
}

func TestParse_SummaryFields(t *testing.T) {
	cfg, err := Parse([]byte("inProcess: true\nsummaryOut: out/summary.yaml\n"))
	require.NoError(t, err)
	assert.True(t, cfg.InProcess)
	assert.Equal(t, "out/summary.yaml", cfg.SummaryOut)
}
