package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/hb9tf/cellscan/scan"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// Terminal prints a colored end of run report.
type Terminal struct {
	// Out defaults to stdout.
	Out io.Writer
}

func (t *Terminal) Name() string { return "terminal" }

func (t *Terminal) Export(ctx context.Context, s *scan.Summary) error {
	out := t.Out
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprintf(out, "%s %s (run %s) in %s\n", bold("scan"), s.ScanID, s.RunID, s.Ended.Sub(s.Started).Round(time.Second))
	for _, r := range s.Results {
		fmt.Fprintf(out, "  %s %-40s %s\n", stateLabel(r.Status), r.Job.Key(), r.Message)
	}
	for _, j := range s.Skipped {
		fmt.Fprintf(out, "  %s %-40s already scanned\n", stateLabel(scan.StateSkipped), j.Key())
	}
	for _, c := range s.Cells() {
		fmt.Fprintf(out, "  %s %s %s\n", cyan("[cell]"), c.Provider, c)
	}

	done := s.Counts[scan.StateDone]
	line := fmt.Sprintf("%d done, %d failed, %d skipped", done, s.Failures(), s.Counts[scan.StateSkipped])
	switch {
	case s.Aborted:
		fmt.Fprintf(out, "%s %s: %s\n", red("[aborted]"), line, s.AbortReason)
	case s.Failures() > 0:
		fmt.Fprintf(out, "%s %s\n", yellow("[partial]"), line)
	default:
		fmt.Fprintf(out, "%s %s\n", green("[ok]"), line)
	}
	return nil
}

func stateLabel(st scan.State) string {
	label := fmt.Sprintf("[%s]", st)
	switch {
	case st == scan.StateDone:
		return green(label)
	case st == scan.StateSkipped:
		return yellow(label)
	case st.Failed():
		return red(label)
	}
	return label
}
