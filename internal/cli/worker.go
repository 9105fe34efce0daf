package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/oss/internal/logging"
	"github.com/wesleyorama2/oss/internal/msgq"
	"github.com/wesleyorama2/oss/internal/simclock"
	"github.com/wesleyorama2/oss/internal/worker"
)

// newWorkerCmd is the entry point of worker processes started by the
// coordinator. Stdin and stdout carry protocol frames, so all diagnostics
// go to stderr.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "worker <seconds> <nanoseconds>",
		Short:  "Run one worker (started by the coordinator)",
		Hidden: true,
		Args:   cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lifetime, err := parseLifetime(args[0], args[1])
			if err != nil {
				return err
			}

			path := os.Getenv(EnvClockPath)
			if path == "" {
				return fmt.Errorf("worker: %s is not set", EnvClockPath)
			}
			clock, err := simclock.OpenShared(path)
			if err != nil {
				return err
			}
			defer clock.Close()

			logger := logging.New(logging.Config{
				Level:  os.Getenv(EnvLogLevel),
				Format: "auto",
				Output: cmd.ErrOrStderr(),
			}).With("component", "worker")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			self := os.Getpid()
			endpoint := msgq.NewEndpoint(self, cmd.InOrStdin(), cmd.OutOrStdout())
			w := worker.New(self, os.Getppid(), clock.Read(), lifetime, logger)
			return w.Run(ctx, endpoint, clock)
		},
	}
}

// parseLifetime reads the lifetime arguments. Nanoseconds must be below one
// second.
func parseLifetime(secArg, nanoArg string) (simclock.Time, error) {
	sec, err := strconv.ParseUint(secArg, 10, 32)
	if err != nil {
		return simclock.Time{}, fmt.Errorf("worker: invalid seconds %q: %w", secArg, err)
	}
	nano, err := strconv.ParseUint(nanoArg, 10, 32)
	if err != nil {
		return simclock.Time{}, fmt.Errorf("worker: invalid nanoseconds %q: %w", nanoArg, err)
	}
	if nano >= simclock.NanosPerSecond {
		return simclock.Time{}, fmt.Errorf("worker: nanoseconds %d out of range", nano)
	}
	return simclock.Time{Seconds: uint32(sec), Nanos: uint32(nano)}, nil
}
