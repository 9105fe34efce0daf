package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wesleyorama2/oss/internal/msgq"
	"github.com/wesleyorama2/oss/internal/simclock"
	"github.com/wesleyorama2/oss/internal/worker"
)

// Process is a running worker as seen by the coordinator.
type Process interface {
	// PID is the worker's protocol identity.
	PID() int
	// Done is closed once the worker has exited and its replies have been
	// drained.
	Done() <-chan struct{}
	// Err reports how the worker exited. Valid after Done is closed.
	Err() error
	// Kill asks the worker to stop.
	Kill() error
}

// Spawner starts workers with a given virtual lifetime.
type Spawner interface {
	Spawn(ctx context.Context, lifetime simclock.Time) (Process, error)
}

// exited reports whether p has exited without blocking.
func exited(p Process) bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}

// GoroutineSpawner runs each worker state machine in its own goroutine over
// an in-process channel and the coordinator's heap clock.
type GoroutineSpawner struct {
	Parent  int
	Channel *msgq.Memory
	Clock   simclock.Reader
	Logger  *slog.Logger

	lastPID atomic.Int64
}

// NewGoroutineSpawner creates a spawner whose synthetic PIDs start right
// after parent.
func NewGoroutineSpawner(parent int, ch *msgq.Memory, clock simclock.Reader, logger *slog.Logger) *GoroutineSpawner {
	s := &GoroutineSpawner{
		Parent:  parent,
		Channel: ch,
		Clock:   clock,
		Logger:  logger,
	}
	s.lastPID.Store(int64(parent))
	return s
}

// Spawn starts a worker goroutine. The worker reads its start time from the
// clock before Spawn returns.
func (s *GoroutineSpawner) Spawn(ctx context.Context, lifetime simclock.Time) (Process, error) {
	pid := int(s.lastPID.Add(1))
	w := worker.New(pid, s.Parent, s.Clock.Read(), lifetime, s.Logger)

	procCtx, cancel := context.WithCancel(ctx)
	p := &goroutineProcess{
		pid:    pid,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		defer cancel()
		err := w.Run(procCtx, s.Channel, s.Clock)
		s.Channel.Forget(pid)
		p.setErr(err)
	}()
	return p, nil
}

type goroutineProcess struct {
	pid    int
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (p *goroutineProcess) PID() int              { return p.pid }
func (p *goroutineProcess) Done() <-chan struct{} { return p.done }

func (p *goroutineProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *goroutineProcess) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *goroutineProcess) Kill() error {
	p.cancel()
	return nil
}
