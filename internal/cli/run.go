package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/wesleyorama2/oss/internal/config"
	"github.com/wesleyorama2/oss/internal/logging"
	"github.com/wesleyorama2/oss/internal/metrics"
	"github.com/wesleyorama2/oss/internal/msgq"
	"github.com/wesleyorama2/oss/internal/output"
	"github.com/wesleyorama2/oss/internal/report"
	"github.com/wesleyorama2/oss/internal/scheduler"
	"github.com/wesleyorama2/oss/internal/simclock"
	"github.com/wesleyorama2/oss/internal/tracelog"
)

// Environment variables passed to worker processes.
const (
	EnvClockPath = "OSS_CLOCK_PATH"
	EnvLogLevel  = "OSS_LOG_LEVEL"
)

// teardownGrace bounds how long Close waits for workers after the kill
// grace has elapsed.
const teardownGrace = scheduler.DefaultKillGrace + time.Second

// Environment carries the process-level inputs of a run.
type Environment struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Verbose bool
	NoColor bool

	// Executable is the binary re-executed for workers. Empty means
	// os.Executable.
	Executable string
}

func (e Environment) level() string {
	if e.Verbose {
		return "debug"
	}
	return "info"
}

// Run executes one scheduling run described by cfg. The watchdog, SIGINT
// and SIGTERM all cancel the run; every shared resource is released before
// Run returns.
func Run(ctx context.Context, cfg *config.Config, env Environment) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}

	limit, err := cfg.RealTimeLimit()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   env.level(),
		Format:  "auto",
		Output:  env.Stderr,
		NoColor: env.NoColor,
	})

	runID := uuid.NewString()
	self := os.Getpid()
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	mode := "process"
	if cfg.InProcess {
		mode = "in-process"
	}
	logger = logger.With("run", runID)

	trace, err := tracelog.Create(cfg.LogFile, self)
	if err != nil {
		return err
	}
	trace.Header(runID, fmt.Sprintf("-n %d -s %d -t %d -i %d -f %s (table %d, seed %d, %s)",
		cfg.TotalProcs, cfg.ConcurrencyLimit, cfg.ChildTimeLimit, cfg.LaunchIntervalMs,
		cfg.LogFile, cfg.TableCapacity, seed, mode))

	res := scheduler.Resources{
		Self:    self,
		Trace:   trace,
		Metrics: metrics.NewCollector(),
		Logger:  logger,
	}
	if err := acquire(&res, cfg, env, runID, logger); err != nil {
		return errors.Join(err, trace.Close())
	}

	sched := scheduler.New(scheduler.Config{
		TotalProcs:       cfg.TotalProcs,
		ConcurrencyLimit: cfg.ConcurrencyLimit,
		ChildTimeLimit:   cfg.ChildTimeLimit,
		LaunchInterval:   cfg.LaunchInterval(),
		TableCapacity:    cfg.TableCapacity,
		Seed:             seed,
		RunID:            runID,
	}, res)
	defer func() {
		if cerr := sched.Close(teardownGrace); cerr != nil {
			logger.Error("teardown failed", "error", cerr)
			err = errors.Join(err, cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeoutCause(ctx, limit, scheduler.ErrWatchdog)
	defer cancel()

	console := output.NewConsole(env.Stdout, env.NoColor)
	console.PrintHeader(output.RunInfo{
		RunID:            runID,
		Mode:             mode,
		TotalProcs:       cfg.TotalProcs,
		ConcurrencyLimit: cfg.ConcurrencyLimit,
		ChildTimeLimit:   cfg.ChildTimeLimit,
		LaunchInterval:   cfg.LaunchInterval(),
		TableCapacity:    cfg.TableCapacity,
		LogFile:          cfg.LogFile,
	})

	started := time.Now()
	summary, runErr := sched.Run(ctx)
	finished := time.Now()
	console.PrintSummary(summary, finished.Sub(started), runErr)

	if cfg.SummaryOut != "" {
		doc := report.New(*cfg, summary, mode, started, finished, runErr)
		if werr := report.Write(cfg.SummaryOut, doc); werr != nil {
			logger.Error("summary export failed", "path", cfg.SummaryOut, "error", werr)
			runErr = errors.Join(runErr, werr)
		}
	}
	return runErr
}

// acquire creates the clock, the message channel and the spawner for the
// configured worker mode.
func acquire(res *scheduler.Resources, cfg *config.Config, env Environment, runID string, logger *slog.Logger) error {
	if cfg.InProcess {
		clock := simclock.New()
		ch := msgq.NewMemory()
		res.Clock = clock
		res.Channel = ch
		res.Spawner = scheduler.NewGoroutineSpawner(res.Self, ch, clock, logger.With("component", "worker"))
		return nil
	}

	exe := env.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}
	}

	clockPath := filepath.Join(os.TempDir(), "oss-clock-"+runID)
	clock, err := simclock.CreateShared(clockPath)
	if err != nil {
		return err
	}
	router := msgq.NewRouter(res.Self)

	res.Clock = clock
	res.Channel = router
	res.Spawner = &scheduler.ExecSpawner{
		Path:   exe,
		Args:   []string{"worker"},
		Env:    []string{EnvClockPath + "=" + clockPath, EnvLogLevel + "=" + env.level()},
		Router: router,
		Stderr: env.Stderr,
	}
	return nil
}
