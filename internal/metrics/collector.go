// Package metrics aggregates per-worker accounting for a scheduling run.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector records turnaround (simulated time from launch to reclaim) and
// messages exchanged per worker using HDR histograms.
//
// Collector is safe for concurrent use; the scheduler records from one
// goroutine while the CLI may snapshot from another.
type Collector struct {
	// Turnaround in simulated microseconds.
	turnaround *hdrhistogram.Histogram
	// Wake messages per finished worker.
	messages *hdrhistogram.Histogram
	histMu   sync.Mutex

	completed atomic.Int64
	abnormal  atomic.Int64

	config Config
}

// Config contains histogram bounds.
type Config struct {
	// TurnaroundMax is the largest recordable turnaround in simulated
	// microseconds (default: one simulated hour).
	TurnaroundMax int64

	// MessagesMax is the largest recordable per-worker message count.
	MessagesMax int64

	// SigFigs is the number of significant figures (default: 3).
	SigFigs int
}

// DefaultConfig returns the default histogram bounds.
func DefaultConfig() Config {
	return Config{
		TurnaroundMax: 3_600_000_000,
		MessagesMax:   10_000_000,
		SigFigs:       3,
	}
}

// NewCollector creates a collector with default configuration.
func NewCollector() *Collector {
	return NewCollectorWithConfig(DefaultConfig())
}

// NewCollectorWithConfig creates a collector with custom bounds.
func NewCollectorWithConfig(config Config) *Collector {
	return &Collector{
		turnaround: hdrhistogram.New(1, config.TurnaroundMax, config.SigFigs),
		messages:   hdrhistogram.New(1, config.MessagesMax, config.SigFigs),
		config:     config,
	}
}

// RecordExit records a reclaimed worker. Abnormal exits are workers reaped
// without a Terminate reply.
func (c *Collector) RecordExit(turnaround time.Duration, messages int, abnormal bool) {
	micros := clamp(turnaround.Microseconds(), 1, c.config.TurnaroundMax)
	count := clamp(int64(messages), 1, c.config.MessagesMax)

	c.histMu.Lock()
	_ = c.turnaround.RecordValue(micros)
	_ = c.messages.RecordValue(count)
	c.histMu.Unlock()

	if abnormal {
		c.abnormal.Add(1)
	} else {
		c.completed.Add(1)
	}
}

// Snapshot is a point-in-time view of the collected metrics.
type Snapshot struct {
	Completed int64 `yaml:"completed" json:"completed"`
	Abnormal  int64 `yaml:"abnormal" json:"abnormal"`

	TurnaroundMean time.Duration `yaml:"turnaroundMean" json:"turnaroundMean"`
	TurnaroundP50  time.Duration `yaml:"turnaroundP50" json:"turnaroundP50"`
	TurnaroundP95  time.Duration `yaml:"turnaroundP95" json:"turnaroundP95"`
	TurnaroundP99  time.Duration `yaml:"turnaroundP99" json:"turnaroundP99"`
	TurnaroundMax  time.Duration `yaml:"turnaroundMax" json:"turnaroundMax"`

	MessagesMean float64 `yaml:"messagesMean" json:"messagesMean"`
	MessagesMax  int64   `yaml:"messagesMax" json:"messagesMax"`
}

// Snapshot returns the current aggregates. Zero values are reported until
// the first exit is recorded.
func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		Completed: c.completed.Load(),
		Abnormal:  c.abnormal.Load(),
	}

	c.histMu.Lock()
	defer c.histMu.Unlock()

	if c.turnaround.TotalCount() == 0 {
		return snap
	}

	snap.TurnaroundMean = time.Duration(c.turnaround.Mean()) * time.Microsecond
	snap.TurnaroundP50 = time.Duration(c.turnaround.ValueAtQuantile(50)) * time.Microsecond
	snap.TurnaroundP95 = time.Duration(c.turnaround.ValueAtQuantile(95)) * time.Microsecond
	snap.TurnaroundP99 = time.Duration(c.turnaround.ValueAtQuantile(99)) * time.Microsecond
	snap.TurnaroundMax = time.Duration(c.turnaround.Max()) * time.Microsecond
	snap.MessagesMean = c.messages.Mean()
	snap.MessagesMax = c.messages.Max()
	return snap
}

// Reset clears all recorded values.
func (c *Collector) Reset() {
	c.histMu.Lock()
	c.turnaround.Reset()
	c.messages.Reset()
	c.histMu.Unlock()

	c.completed.Store(0)
	c.abnormal.Store(0)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
