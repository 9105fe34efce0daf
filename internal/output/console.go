package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/wesleyorama2/oss/internal/scheduler"
)

const ruleWidth = 56

// RunInfo describes a run for the console header.
type RunInfo struct {
	RunID            string
	Mode             string
	TotalProcs       int
	ConcurrencyLimit int
	ChildTimeLimit   int
	LaunchInterval   time.Duration
	TableCapacity    int
	LogFile          string
}

// Console prints the run header and summary.
type Console struct {
	w       io.Writer
	scheme  *ColorScheme
	noColor bool
}

// NewConsole creates a console writer. Colors are used only when w is a
// terminal, noColor is unset, and NO_COLOR is not in the environment.
func NewConsole(w io.Writer, noColor bool) *Console {
	if w == nil {
		w = os.Stdout
	}
	noColor = noColor || os.Getenv("NO_COLOR") != "" || !isTerminal(w)
	return newConsole(w, noColor)
}

func newConsole(w io.Writer, noColor bool) *Console {
	scheme := NoColorScheme()
	if !noColor {
		scheme = DefaultColorScheme().forceColor()
	}
	return &Console{w: w, scheme: scheme, noColor: noColor}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// PrintHeader prints the run parameters.
func (c *Console) PrintHeader(info RunInfo) {
	line := strings.Repeat("━", ruleWidth)
	c.writeln(c.scheme.Rule.Sprint(line))
	c.writeln(c.scheme.Title.Sprintf("oss - %s run %s", info.Mode, info.RunID))
	c.writeln(c.scheme.Rule.Sprint(line))
	c.field("Workers", fmt.Sprintf("%d (at most %d at once, table of %d)",
		info.TotalProcs, info.ConcurrencyLimit, info.TableCapacity))
	c.field("Lifetime", fmt.Sprintf("up to %ds simulated", info.ChildTimeLimit))
	c.field("Interval", formatDuration(info.LaunchInterval))
	c.field("Trace log", info.LogFile)
	c.writeln("")
}

// PrintSummary prints the outcome of a run. A non-nil err marks the run as
// failed; the partial summary is still shown.
func (c *Console) PrintSummary(s scheduler.Summary, elapsed time.Duration, err error) {
	line := strings.Repeat("━", ruleWidth)

	status := c.scheme.Success.Sprint("Completed " + SuccessIcon(c.noColor))
	switch {
	case errors.Is(err, scheduler.ErrWatchdog):
		status = c.scheme.Error.Sprint("Time limit reached " + ErrorIcon(c.noColor))
	case err != nil:
		status = c.scheme.Error.Sprint("Failed " + ErrorIcon(c.noColor))
	case s.Abnormal > 0:
		status = c.scheme.Warn.Sprint("Completed with abnormal exits " + WarningIcon(c.noColor))
	}

	c.writeln("")
	c.writeln(c.scheme.Rule.Sprint(line))
	c.writeln(status)
	c.writeln(c.scheme.Rule.Sprint(line))
	c.field("Launched", fmt.Sprintf("%d", s.Launched))
	c.field("Terminated", fmt.Sprintf("%d", s.Terminated))
	if s.Abnormal > 0 {
		c.field("Abnormal", c.scheme.Warn.Sprintf("%d", s.Abnormal))
	}
	c.field("Messages", fmt.Sprintf("%d", s.MessagesSent))
	c.field("Peak active", fmt.Sprintf("%d", s.PeakActive))
	c.field("Sim clock", s.FinalClock.String())
	c.field("Wall time", formatDuration(elapsed))

	m := s.Metrics
	if m.Completed+m.Abnormal > 0 {
		c.writeln("")
		c.writeln(c.scheme.Title.Sprint("Turnaround (simulated):"))
		c.field("  Mean", formatDuration(m.TurnaroundMean))
		c.field("  P50", formatDuration(m.TurnaroundP50))
		c.field("  P95", formatDuration(m.TurnaroundP95))
		c.field("  P99", formatDuration(m.TurnaroundP99))
		c.field("  Max", formatDuration(m.TurnaroundMax))
		c.writeln(c.scheme.Title.Sprint("Messages per worker:"))
		c.field("  Mean", fmt.Sprintf("%.1f", m.MessagesMean))
		c.field("  Max", fmt.Sprintf("%d", m.MessagesMax))
	}

	if err != nil {
		c.writeln("")
		c.writeln(c.scheme.Error.Sprintf("Error: %v", err))
	}
}

func (c *Console) field(label, value string) {
	c.writeln(fmt.Sprintf("%s %s", c.scheme.Label.Sprintf("%-13s", label+":"), c.scheme.Value.Sprint(value)))
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.w, s)
}

// formatDuration renders d with a unit suited to its magnitude.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}
