// Package tracelog writes the coordinator's human-readable run trace:
// launches, table snapshots, protocol exchanges, reaps and the final
// summary. Every event is written through to the destination as it happens.
package tracelog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/wesleyorama2/oss/internal/proctable"
	"github.com/wesleyorama2/oss/internal/simclock"
)

// Trace is a coordinator-owned event stream.
type Trace struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	self   int
	err    error
}

// New writes events for coordinator identity self to w.
func New(w io.Writer, self int) *Trace {
	return &Trace{w: w, self: self}
}

// Create truncates or creates path and returns a trace writing to it.
func Create(path string, self int) (*Trace, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("tracelog: open %s: %w", path, err)
	}
	t := New(f, self)
	t.closer = f
	return t, nil
}

func (t *Trace) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

// Header records the run identity and configuration.
func (t *Trace) Header(runID string, settings string) {
	t.printf("OSS run %s PID %d started: %s\n", runID, t.self, settings)
}

// Snapshot records the clock and every table slot.
func (t *Trace) Snapshot(now simclock.Time, table *proctable.Table) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}

	if _, t.err = fmt.Fprintf(t.w, "OSS PID: %d | SysClock: %d s, %d ns\nProcess Table:\n",
		t.self, now.Seconds, now.Nanos); t.err != nil {
		return
	}
	if t.err = table.WriteSnapshot(t.w); t.err != nil {
		return
	}
	_, t.err = fmt.Fprintln(t.w)
}

// Launched records a spawn.
func (t *Trace) Launched(pid, slot int, now simclock.Time, lifetime simclock.Time) {
	t.printf("Launched worker PID %d in slot %d at simulated time %d s, %d ns (lifetime %d s, %d ns).\n",
		pid, slot, now.Seconds, now.Nanos, lifetime.Seconds, lifetime.Nanos)
}

// Sent records a wake message.
func (t *Trace) Sent(slot, pid int, now simclock.Time) {
	t.printf("OSS: Sending message to worker at index %d PID %d at time %d:%d\n",
		slot, pid, now.Seconds, now.Nanos)
}

// Received records a reply.
func (t *Trace) Received(slot, pid int, now simclock.Time) {
	t.printf("OSS: Received message from worker at index %d PID %d at time %d:%d\n",
		slot, pid, now.Seconds, now.Nanos)
}

// Terminating records a Terminate reply.
func (t *Trace) Terminating(slot, pid int) {
	t.printf("OSS: Worker at index %d PID %d is planning to terminate.\n", slot, pid)
}

// Reaped records a worker that exited without completing the handshake.
func (t *Trace) Reaped(slot, pid int, now simclock.Time) {
	t.printf("Child PID %d in slot %d terminated without a terminate reply at %d s, %d ns.\n",
		pid, slot, now.Seconds, now.Nanos)
}

// Summary records the final totals.
func (t *Trace) Summary(launched, messages int) {
	t.printf("Summary: Total processes launched: %d, Total messages sent: %d\n", launched, messages)
}

// Err returns the first write error, if any.
func (t *Trace) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close closes the destination when the trace owns it.
func (t *Trace) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closer == nil {
		return t.err
	}
	err := t.closer.Close()
	t.closer = nil
	if t.err != nil {
		return t.err
	}
	return err
}
