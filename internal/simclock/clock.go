// Package simclock provides the virtual system clock shared between the
// coordinator and its workers.
//
// The clock is a (seconds, nanoseconds) pair advanced only by the
// coordinator. Workers read it between their own blocking receives. The pair
// is stored as a single 64-bit nanosecond count so a reader in another
// goroutine or another process never observes a torn value.
package simclock

import (
	"fmt"
	"sync/atomic"
	"time"
)

// NanosPerSecond is the carry threshold for the nanosecond field.
const NanosPerSecond = 1_000_000_000

// Quantum is the per-tick advance when a single worker is active.
const Quantum = 250_000_000

// Time is a point on the simulated clock.
type Time struct {
	Seconds uint32 `yaml:"seconds" json:"seconds"`
	Nanos   uint32 `yaml:"nanos" json:"nanos"`
}

// FromNanoseconds splits a nanosecond count into a normalized Time.
func FromNanoseconds(ns uint64) Time {
	return Time{
		Seconds: uint32(ns / NanosPerSecond),
		Nanos:   uint32(ns % NanosPerSecond),
	}
}

// Nanoseconds returns t as a single nanosecond count.
func (t Time) Nanoseconds() uint64 {
	return uint64(t.Seconds)*NanosPerSecond + uint64(t.Nanos)
}

// Add returns t+d with sub-second overflow carried into seconds.
func (t Time) Add(d Time) Time {
	return FromNanoseconds(t.Nanoseconds() + d.Nanoseconds())
}

// Sub returns t-u, or zero if u is later than t.
func (t Time) Sub(u Time) Time {
	a, b := t.Nanoseconds(), u.Nanoseconds()
	if b >= a {
		return Time{}
	}
	return FromNanoseconds(a - b)
}

// After reports whether t is strictly later than u, comparing seconds first
// and nanoseconds second.
func (t Time) After(u Time) bool {
	if t.Seconds != u.Seconds {
		return t.Seconds > u.Seconds
	}
	return t.Nanos > u.Nanos
}

// Duration converts t to a time.Duration for reporting.
func (t Time) Duration() time.Duration {
	return time.Duration(t.Nanoseconds())
}

func (t Time) String() string {
	return fmt.Sprintf("%d s, %d ns", t.Seconds, t.Nanos)
}

// Reader is the read-only view of a clock handed to workers.
type Reader interface {
	Read() Time
}

// Clock is the coordinator-owned simulated clock.
type Clock struct {
	word    *atomic.Uint64
	release func() error
}

// New returns a zeroed clock backed by process memory.
func New() *Clock {
	return &Clock{word: new(atomic.Uint64)}
}

// Read returns the current clock value.
func (c *Clock) Read() Time {
	return FromNanoseconds(c.word.Load())
}

// Advance moves the clock forward by Quantum divided among the active
// workers and returns the new value. An active count below one is treated
// as one so time keeps moving while the table is empty.
func (c *Clock) Advance(active int) Time {
	if active < 1 {
		active = 1
	}
	step := uint64(Quantum / active)
	return FromNanoseconds(c.word.Add(step))
}

// Close releases the clock storage. It is a no-op for heap clocks and safe
// to call more than once.
func (c *Clock) Close() error {
	if c.release == nil {
		return nil
	}
	release := c.release
	c.release = nil
	return release()
}
