// Package worker implements the worker side of the scheduling protocol: a
// two-state machine that decides on each wake message whether its simulated
// deadline has passed.
package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"

	"github.com/wesleyorama2/oss/internal/msgq"
	"github.com/wesleyorama2/oss/internal/simclock"
)

// State is the lifecycle state of a worker.
type State int32

const (
	// StateRunning means the worker keeps replying Continue.
	StateRunning State = iota
	// StateTerminating is terminal: the worker has replied Terminate.
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// DrawLifetime picks a virtual lifetime with whole seconds uniform in
// [1, limit] and nanoseconds uniform in [0, 1e9). A limit below one is
// treated as one.
func DrawLifetime(rng *rand.Rand, limit int) simclock.Time {
	if limit < 1 {
		limit = 1
	}
	return simclock.Time{
		Seconds: uint32(rng.IntN(limit) + 1),
		Nanos:   uint32(rng.IntN(simclock.NanosPerSecond)),
	}
}

// Worker holds one worker's identity, private deadline and state.
type Worker struct {
	ID     int
	Parent int

	start    simclock.Time
	deadline simclock.Time

	state      atomic.Int32
	iterations atomic.Int64

	logger *slog.Logger
}

// New creates a worker whose deadline is start+lifetime. The deadline is
// fixed for the life of the worker.
func New(id, parent int, start, lifetime simclock.Time, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Worker{
		ID:       id,
		Parent:   parent,
		start:    start,
		deadline: start.Add(lifetime),
		logger:   logger.With("pid", id, "ppid", parent),
	}
}

// Deadline returns the termination time.
func (w *Worker) Deadline() simclock.Time { return w.deadline }

// State returns the current state.
func (w *Worker) State() State { return State(w.state.Load()) }

// Iterations returns the number of wake messages handled.
func (w *Worker) Iterations() int64 { return w.iterations.Load() }

// Decide handles one wake at clock value now. It returns Terminate iff now
// is strictly later than the deadline; once terminating it stays so.
func (w *Worker) Decide(now simclock.Time) msgq.Payload {
	n := w.iterations.Add(1)

	if w.State() == StateTerminating || now.After(w.deadline) {
		w.state.Store(int32(StateTerminating))
		w.logger.Info("terminating",
			"clock", now.String(), "deadline", w.deadline.String(), "iterations", n)
		return msgq.Terminate
	}

	w.logger.Debug("wake",
		"clock", now.String(), "deadline", w.deadline.String(), "iterations", n)
	return msgq.Continue
}

// Run serves wake messages until the worker decides to terminate. It
// returns nil right after the Terminate reply has been sent; any channel
// failure or ctx cancellation ends the worker with an error.
func (w *Worker) Run(ctx context.Context, ch msgq.Channel, clock simclock.Reader) error {
	w.logger.Info("starting",
		"clock", w.start.String(), "deadline", w.deadline.String())

	for {
		if _, err := ch.Receive(ctx, w.ID); err != nil {
			return fmt.Errorf("worker %d: receive: %w", w.ID, err)
		}

		reply := w.Decide(clock.Read())
		msg := msgq.Message{Source: w.ID, Target: w.Parent, Payload: reply}
		if err := ch.Send(ctx, msg); err != nil {
			return fmt.Errorf("worker %d: send: %w", w.ID, err)
		}

		if reply == msgq.Terminate {
			return nil
		}
	}
}
