package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/oss/internal/config"
	"github.com/wesleyorama2/oss/internal/metrics"
	"github.com/wesleyorama2/oss/internal/scheduler"
	"github.com/wesleyorama2/oss/internal/simclock"
)

func sample() (config.Config, scheduler.Summary) {
	cfg := *config.Default()
	cfg.Seed = 7
	summary := scheduler.Summary{
		RunID:        "5f1d",
		Launched:     20,
		MessagesSent: 311,
		Terminated:   19,
		Abnormal:     1,
		PeakActive:   5,
		FinalClock:   simclock.Time{Seconds: 12, Nanos: 500},
		Metrics: metrics.Snapshot{
			Completed:     19,
			Abnormal:      1,
			TurnaroundP50: 3 * time.Second,
			MessagesMean:  15.5,
		},
	}
	return cfg, summary
}

func TestWriteRead(t *testing.T) {
	cfg, summary := sample()
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "summary.yaml")

	doc := New(cfg, summary, "process", started, started.Add(2*time.Second), nil)
	require.NoError(t, Write(path, doc))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "5f1d", got.RunID)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "messagesSent: 311")
	assert.Contains(t, string(raw), "turnaroundP50: 3s")
}

func TestNew_RecordsError(t *testing.T) {
	cfg, summary := sample()
	doc := New(cfg, summary, "in-process", time.Now(), time.Now(), errors.New("scheduler: real time limit reached"))
	assert.Equal(t, "failed", doc.Status)
	assert.Equal(t, "scheduler: real time limit reached", doc.Error)
}

func TestWrite_ReplacesExisting(t *testing.T) {
	cfg, summary := sample()
	path := filepath.Join(t.TempDir(), "summary.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, Write(path, New(cfg, summary, "process", time.Now(), time.Now(), nil)))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Summary.Launched)
}

func TestWrite_MissingDirectory(t *testing.T) {
	cfg, summary := sample()
	path := filepath.Join(t.TempDir(), "missing", "summary.yaml")
	err := Write(path, New(cfg, summary, "process", time.Now(), time.Now(), nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report: write")
}

func TestRead_UnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 9\n"), 0o644))

	_, err := Read(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version 9")
}
