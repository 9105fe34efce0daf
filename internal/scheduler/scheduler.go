// Package scheduler implements the coordinator: the loop that advances the
// simulated clock, admits new workers under concurrency and launch-rate
// limits, services active workers in round-robin order over a synchronous
// request/reply exchange, and reclaims table slots as workers exit.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/wesleyorama2/oss/internal/metrics"
	"github.com/wesleyorama2/oss/internal/msgq"
	"github.com/wesleyorama2/oss/internal/proctable"
	"github.com/wesleyorama2/oss/internal/simclock"
	"github.com/wesleyorama2/oss/internal/tracelog"
	"github.com/wesleyorama2/oss/internal/worker"
)

// SnapshotInterval is the simulated time between periodic table snapshots.
const SnapshotInterval = 500 * time.Millisecond

var (
	// ErrWatchdog is the cancellation cause when the real-time limit expires.
	ErrWatchdog = errors.New("real time limit reached")
	// ErrProtocol is returned when a reply does not match the request.
	ErrProtocol = errors.New("protocol violation")
	// ErrWorkerExited ends a reply wait whose worker exited without
	// answering.
	ErrWorkerExited = errors.New("worker exited without replying")
)

// Config holds the scheduling parameters.
type Config struct {
	// TotalProcs is the number of workers to launch over the run.
	TotalProcs int
	// ConcurrencyLimit caps simultaneously active workers.
	ConcurrencyLimit int
	// ChildTimeLimit is the upper bound, in seconds, of a worker's lifetime.
	ChildTimeLimit int
	// LaunchInterval is the minimum simulated time between launches.
	LaunchInterval time.Duration
	// TableCapacity is the process table ceiling. It wins over
	// ConcurrencyLimit when smaller.
	TableCapacity int
	// Seed seeds lifetime draws.
	Seed uint64
	// RunID identifies the run in the summary.
	RunID string
}

// Resources are the shared resources the scheduler owns for a run. Close
// releases all of them.
type Resources struct {
	// Self is the coordinator's protocol identity.
	Self    int
	Clock   *simclock.Clock
	Channel msgq.Channel
	Spawner Spawner
	Trace   *tracelog.Trace
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID        string           `yaml:"runId,omitempty" json:"runId,omitempty"`
	Launched     int              `yaml:"launched" json:"launched"`
	MessagesSent int              `yaml:"messagesSent" json:"messagesSent"`
	Terminated   int              `yaml:"terminated" json:"terminated"`
	Abnormal     int              `yaml:"abnormal" json:"abnormal"`
	PeakActive   int              `yaml:"peakActive" json:"peakActive"`
	FinalClock   simclock.Time    `yaml:"finalClock" json:"finalClock"`
	Metrics      metrics.Snapshot `yaml:"metrics" json:"metrics"`
}

// Scheduler is the coordinator. It is driven by a single goroutine.
type Scheduler struct {
	cfg Config
	res Resources

	table *proctable.Table
	procs map[int]Process // by pid
	rng   *rand.Rand

	launched   int
	active     int
	peak       int
	messages   int
	terminated int
	abnormal   int
	cursor     int

	lastLaunch   uint64
	lastSnapshot uint64

	closeOnce sync.Once
	closeErr  error
}

// New creates a scheduler that owns res.
func New(cfg Config, res Resources) *Scheduler {
	if res.Logger == nil {
		res.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if res.Metrics == nil {
		res.Metrics = metrics.NewCollector()
	}
	if res.Trace == nil {
		res.Trace = tracelog.New(io.Discard, res.Self)
	}

	s := &Scheduler{
		cfg:   cfg,
		res:   res,
		table: proctable.New(cfg.TableCapacity),
		procs: make(map[int]Process),
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}

	if cfg.ConcurrencyLimit > s.table.Capacity() {
		res.Logger.Warn("concurrency limit exceeds table capacity; capacity applies",
			"limit", cfg.ConcurrencyLimit, "capacity", s.table.Capacity())
	}
	return s
}

// Table exposes the process table for inspection.
func (s *Scheduler) Table() *proctable.Table { return s.table }

// Run executes the scheduling loop until every worker has been launched and
// none remain active, or until ctx is done or a fatal error occurs. The
// returned summary reflects the state reached either way.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	log := s.res.Logger
	log.Info("scheduler starting",
		"total", s.cfg.TotalProcs,
		"limit", s.cfg.ConcurrencyLimit,
		"childTimeLimit", s.cfg.ChildTimeLimit,
		"launchInterval", s.cfg.LaunchInterval,
		"capacity", s.table.Capacity())

	for s.launched < s.cfg.TotalProcs || s.active > 0 {
		if ctx.Err() != nil {
			return s.summary(), s.abort(ctx, nil)
		}

		now := s.res.Clock.Advance(s.active)

		if now.Nanoseconds()-s.lastSnapshot >= uint64(SnapshotInterval) {
			s.res.Trace.Snapshot(now, s.table)
			s.lastSnapshot = now.Nanoseconds()
		}

		s.reap(now)

		if err := s.admit(ctx, now); err != nil {
			return s.summary(), s.abort(ctx, err)
		}
		if err := s.dispatch(ctx, now); err != nil {
			return s.summary(), s.abort(ctx, err)
		}
	}

	summary := s.summary()
	s.res.Trace.Summary(summary.Launched, summary.MessagesSent)
	log.Info("scheduler finished",
		"launched", summary.Launched,
		"messages", summary.MessagesSent,
		"abnormal", summary.Abnormal,
		"clock", summary.FinalClock.String())
	return summary, s.res.Trace.Err()
}

// abort converts a loop failure into the returned error, preferring the
// cancellation cause when ctx is done.
func (s *Scheduler) abort(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		err = fmt.Errorf("scheduler: %w", context.Cause(ctx))
	}
	s.res.Logger.Error("scheduler aborted", "error", err, "active", s.active)
	return err
}

// reap reclaims the first active worker found to have exited without
// completing the terminate handshake.
func (s *Scheduler) reap(now simclock.Time) {
	for pid, proc := range s.procs {
		if !exited(proc) {
			continue
		}
		if slot, ok := s.table.FindByPID(pid); ok {
			s.reclaim(slot, now, true)
			return
		}
	}
}

// admit launches one worker when every admission condition holds. A full
// table is not an error; the launch is retried next iteration.
func (s *Scheduler) admit(ctx context.Context, now simclock.Time) error {
	if s.launched >= s.cfg.TotalProcs || s.active >= s.cfg.ConcurrencyLimit {
		return nil
	}
	if now.Nanoseconds()-s.lastLaunch < uint64(s.cfg.LaunchInterval) {
		return nil
	}
	slot, ok := s.table.FindFreeSlot()
	if !ok {
		return nil
	}

	lifetime := worker.DrawLifetime(s.rng, s.cfg.ChildTimeLimit)
	proc, err := s.res.Spawner.Spawn(ctx, lifetime)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := s.table.Occupy(slot, proc.PID(), now); err != nil {
		_ = proc.Kill()
		return fmt.Errorf("scheduler: %w", err)
	}

	s.procs[proc.PID()] = proc
	s.launched++
	s.active++
	s.peak = max(s.peak, s.active)
	s.lastLaunch = now.Nanoseconds()

	s.res.Trace.Launched(proc.PID(), slot, now, lifetime)
	s.res.Trace.Snapshot(now, s.table)
	s.res.Logger.Debug("launched worker",
		"pid", proc.PID(), "slot", slot, "clock", now.String(), "lifetime", lifetime.String())
	return nil
}

// dispatch services the next active worker in round-robin order: one wake
// message, one blocking reply, and reclamation on Terminate.
func (s *Scheduler) dispatch(ctx context.Context, now simclock.Time) error {
	if s.active == 0 {
		return nil
	}
	slot, ok := s.table.NextOccupiedFrom(s.cursor)
	if !ok {
		return nil
	}
	s.cursor = (slot + 1) % s.table.Capacity()

	pid := s.table.Entry(slot).PID
	proc := s.procs[pid]
	if exited(proc) {
		s.reclaim(slot, now, true)
		return nil
	}

	wake := msgq.Message{Source: s.res.Self, Target: pid, Payload: msgq.Continue}
	if err := s.res.Channel.Send(ctx, wake); err != nil {
		return fmt.Errorf("scheduler: send to worker %d: %w", pid, err)
	}
	s.messages++
	s.table.RecordMessage(slot)
	s.res.Trace.Sent(slot, pid, now)

	reply, err := s.awaitReply(ctx, proc)
	if errors.Is(err, ErrWorkerExited) {
		s.reclaim(slot, now, true)
		return nil
	}
	if err != nil {
		return fmt.Errorf("scheduler: receive from worker %d: %w", pid, err)
	}
	if reply.Source != pid {
		return fmt.Errorf("scheduler: %w: expected reply from %d, got %d", ErrProtocol, pid, reply.Source)
	}
	s.res.Trace.Received(slot, pid, now)

	if reply.Payload != msgq.Terminate {
		return nil
	}

	s.res.Trace.Terminating(slot, pid)
	select {
	case <-proc.Done():
	case <-ctx.Done():
		return fmt.Errorf("scheduler: wait for worker %d: %w", pid, ctx.Err())
	}
	s.reclaim(slot, now, false)
	return nil
}

// awaitReply blocks for the reply to a wake sent to proc. If proc exits
// first, the wait ends with ErrWorkerExited unless a reply it sent before
// exiting is already queued.
func (s *Scheduler) awaitReply(ctx context.Context, proc Process) (msgq.Message, error) {
	recvCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-proc.Done():
			cancel(ErrWorkerExited)
		case <-recvCtx.Done():
		}
	}()

	reply, err := s.res.Channel.Receive(recvCtx, s.res.Self)
	if err == nil || ctx.Err() != nil || !errors.Is(context.Cause(recvCtx), ErrWorkerExited) {
		return reply, err
	}
	// Replies are queued before Done closes; Receive returns a queued
	// message even when its context is already done.
	if reply, rerr := s.res.Channel.Receive(recvCtx, s.res.Self); rerr == nil {
		return reply, nil
	}
	return msgq.Message{}, ErrWorkerExited
}

// reclaim frees slot and accounts for the exit. Reclaiming a slot that is
// already free changes nothing.
func (s *Scheduler) reclaim(slot int, now simclock.Time, abnormal bool) {
	pcb := s.table.Entry(slot)
	if err := s.table.Release(slot); err != nil {
		s.res.Logger.Warn("reclaim skipped", "slot", slot, "error", err)
		return
	}
	proc := s.procs[pcb.PID]
	delete(s.procs, pcb.PID)
	s.active--

	s.res.Metrics.RecordExit(now.Sub(pcb.StartTime).Duration(), pcb.MessagesSent, abnormal)

	if abnormal {
		s.abnormal++
		s.res.Trace.Reaped(slot, pcb.PID, now)
		var exitErr error
		if proc != nil {
			exitErr = proc.Err()
		}
		s.res.Logger.Warn("worker exited without terminate reply",
			"pid", pcb.PID, "slot", slot, "messages", pcb.MessagesSent, "error", exitErr)
		return
	}

	s.terminated++
	s.res.Logger.Debug("worker terminated",
		"pid", pcb.PID, "slot", slot, "messages", pcb.MessagesSent, "clock", now.String())
}

func (s *Scheduler) summary() Summary {
	return Summary{
		RunID:        s.cfg.RunID,
		Launched:     s.launched,
		MessagesSent: s.messages,
		Terminated:   s.terminated,
		Abnormal:     s.abnormal,
		PeakActive:   s.peak,
		FinalClock:   s.res.Clock.Read(),
		Metrics:      s.res.Metrics.Snapshot(),
	}
}

// Close tears the run down: remaining workers are killed and waited for
// (up to grace), then the channel, clock and trace are released. It is safe
// to call on every exit path and more than once.
func (s *Scheduler) Close(grace time.Duration) error {
	s.closeOnce.Do(func() {
		var errs []error

		for _, proc := range s.procs {
			errs = append(errs, proc.Kill())
		}
		waitCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		for pid, proc := range s.procs {
			select {
			case <-proc.Done():
			case <-waitCtx.Done():
				s.res.Logger.Error("worker did not exit during teardown", "pid", pid)
			}
		}

		if c, ok := s.res.Channel.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		errs = append(errs, s.res.Clock.Close(), s.res.Trace.Close())
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
