// Package cli implements the oss command line.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/oss/internal/config"
)

var version = "0.1.0"

// NewRootCmd builds the oss command tree.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{flags: config.Default()}
	flags := opts.flags

	cmd := &cobra.Command{
		Use:     "oss",
		Short:   "Simulated operating system process scheduler",
		Version: version,
		Long: `oss runs a coordinator that owns a simulated system clock and a process
table. It launches worker processes under a concurrency limit and a minimum
launch interval, then services them round robin: each worker is woken with one
message, checks the simulated clock against its randomly drawn lifetime, and
replies whether it will continue or terminate.

Every scheduling event is written to the trace log (--log-file).`,
		Example: `  oss -n 20 -s 5 -t 5 -i 100 -f oss.log
  oss --config run.yaml --seed 42 --summary-out summary.yaml
  oss --in-process -n 3 -s 1 -t 1 -i 0`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts.configPath, flags)
			if err != nil {
				return err
			}
			return Run(cmd.Context(), cfg, Environment{
				Stdout:  cmd.OutOrStdout(),
				Stderr:  cmd.ErrOrStderr(),
				Verbose: opts.verbose,
				NoColor: opts.noColor,
			})
		},
	}

	f := cmd.Flags()
	f.IntVarP(&flags.TotalProcs, "total-procs", "n", flags.TotalProcs, "Total number of workers to launch")
	f.IntVarP(&flags.ConcurrencyLimit, "simul-limit", "s", flags.ConcurrencyLimit, "Maximum number of workers active at once")
	f.IntVarP(&flags.ChildTimeLimit, "child-time-limit", "t", flags.ChildTimeLimit, "Upper bound in seconds of a worker's simulated lifetime")
	f.IntVarP(&flags.LaunchIntervalMs, "launch-interval", "i", flags.LaunchIntervalMs, "Minimum simulated milliseconds between launches")
	f.StringVarP(&flags.LogFile, "log-file", "f", flags.LogFile, "Trace log file")
	f.IntVar(&flags.TableCapacity, "table-capacity", flags.TableCapacity, "Process table size")
	f.Duration("time-limit", time.Minute, "Real time limit for the whole run")
	f.Uint64Var(&flags.Seed, "seed", 0, "Seed for lifetime draws (0 picks one from the current time)")
	f.BoolVar(&flags.InProcess, "in-process", false, "Run workers as goroutines instead of processes")
	f.StringVar(&flags.SummaryOut, "summary-out", "", "Write the run summary as YAML to this file")
	f.StringVarP(&opts.configPath, "config", "c", "", "Configuration file (YAML)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	f.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newWorkerCmd())
	return cmd, opts
}

type rootOptions struct {
	// flags holds the values bound to the command-line flags.
	flags      *config.Config
	configPath string
	verbose    bool
	noColor    bool
}

// Execute runs the command line and prints any error to stderr.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

// resolveConfig layers the configuration file (when given) over the
// defaults and then applies every flag set explicitly on the command line.
func resolveConfig(cmd *cobra.Command, path string, flags *config.Config) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	f := cmd.Flags()
	overrides := map[string]func(){
		"total-procs":      func() { cfg.TotalProcs = flags.TotalProcs },
		"simul-limit":      func() { cfg.ConcurrencyLimit = flags.ConcurrencyLimit },
		"child-time-limit": func() { cfg.ChildTimeLimit = flags.ChildTimeLimit },
		"launch-interval":  func() { cfg.LaunchIntervalMs = flags.LaunchIntervalMs },
		"log-file":         func() { cfg.LogFile = flags.LogFile },
		"table-capacity":   func() { cfg.TableCapacity = flags.TableCapacity },
		"seed":             func() { cfg.Seed = flags.Seed },
		"in-process":       func() { cfg.InProcess = flags.InProcess },
		"summary-out":      func() { cfg.SummaryOut = flags.SummaryOut },
	}
	for name, apply := range overrides {
		if f.Changed(name) {
			apply()
		}
	}
	if f.Changed("time-limit") {
		d, err := f.GetDuration("time-limit")
		if err != nil {
			return nil, err
		}
		cfg.TimeLimit = d.String()
	}

	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		return nil, config.ValidationErrors(errs)
	}
	return cfg, nil
}
