// Package report exports a run summary as a YAML document.
package report

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/oss/internal/config"
	"github.com/wesleyorama2/oss/internal/scheduler"
)

// Version is the document format version.
const Version = 1

// Document is the exported form of a run.
type Document struct {
	Version    int               `yaml:"version"`
	RunID      string            `yaml:"runId"`
	Mode       string            `yaml:"mode"`
	StartedAt  time.Time         `yaml:"startedAt"`
	FinishedAt time.Time         `yaml:"finishedAt"`
	Status     string            `yaml:"status"`
	Error      string            `yaml:"error,omitempty"`
	Config     config.Config     `yaml:"config"`
	Summary    scheduler.Summary `yaml:"summary"`
}

// New builds a document for a finished run. runErr is recorded when set.
func New(cfg config.Config, summary scheduler.Summary, mode string, started, finished time.Time, runErr error) *Document {
	doc := &Document{
		Version:    Version,
		RunID:      summary.RunID,
		Mode:       mode,
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
		Status:     "completed",
		Config:     cfg,
		Summary:    summary,
	}
	if runErr != nil {
		doc.Status = "failed"
		doc.Error = runErr.Error()
	}
	return doc
}

// Write stores doc at path. Readers never observe a partially written file.
func Write(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

// Read loads a document written by Write.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("report: decode %s: %w", path, err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("report: %s: unsupported version %d", path, doc.Version)
	}
	return &doc, nil
}
