package scheduler

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/wesleyorama2/oss/internal/msgq"
	"github.com/wesleyorama2/oss/internal/simclock"
)

// DefaultKillGrace is how long a worker gets between SIGTERM and SIGKILL.
const DefaultKillGrace = 2 * time.Second

// CommandFactoryFunc creates an exec.Cmd. Tests substitute it to run a
// helper instead of the real worker binary.
type CommandFactoryFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// ExecSpawner starts each worker as an OS process running
// `<Path> <Args...> <seconds> <nanoseconds>`. The worker's stdin carries
// wake messages and its stdout carries replies, both through Router.
type ExecSpawner struct {
	Path   string
	Args   []string
	Env    []string
	Router *msgq.Router
	Stderr io.Writer

	KillGrace      time.Duration
	CommandFactory CommandFactoryFunc
}

// Spawn starts one worker process.
func (s *ExecSpawner) Spawn(ctx context.Context, lifetime simclock.Time) (Process, error) {
	procCtx, cancel := context.WithCancel(ctx)

	args := append(append([]string{}, s.Args...),
		strconv.FormatUint(uint64(lifetime.Seconds), 10),
		strconv.FormatUint(uint64(lifetime.Nanos), 10),
	)

	var cmd *exec.Cmd
	if s.CommandFactory != nil {
		cmd = s.CommandFactory(procCtx, s.Path, args...)
	} else {
		// #nosec G204 -- path is our own executable, args are numbers
		cmd = exec.CommandContext(procCtx, s.Path, args...)
	}
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	cmd.Stderr = s.Stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = s.KillGrace
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultKillGrace
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("spawn: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		_ = stdin.Close()
		return nil, fmt.Errorf("spawn: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		_ = stdin.Close()
		return nil, fmt.Errorf("spawn: start %s: %w", s.Path, err)
	}

	p := &execProcess{
		pid:    cmd.Process.Pid,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	drained := s.Router.Attach(p.pid, stdin, stdout)

	go func() {
		defer close(p.done)
		defer cancel()
		<-drained
		err := cmd.Wait()
		_ = s.Router.Detach(p.pid)
		p.setErr(err)
	}()
	return p, nil
}

type execProcess struct {
	pid    int
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (p *execProcess) PID() int              { return p.pid }
func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *execProcess) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Kill sends SIGTERM; the process is killed outright if it has not exited
// after the grace period.
func (p *execProcess) Kill() error {
	p.cancel()
	return nil
}
