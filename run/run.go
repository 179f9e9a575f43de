// Package run executes a plan job by job, isolating job failures, and hands
// the finished summary to the exporters.
package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/hb9tf/cellscan/plan"
	"github.com/hb9tf/cellscan/scan"
)

// Process exit codes.
const (
	ExitOK = 0
	// ExitError is used for config, region and plan errors before the run starts.
	ExitError = 1
	// ExitPartial means the run completed but at least one job failed.
	ExitPartial = 2
	// ExitAborted means the run stopped early.
	ExitAborted = 3
)

// Fault aborts a whole run.
type Fault struct {
	Op  string
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("run aborted: %s: %s", f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

type JobRunner interface {
	Run(ctx context.Context, job scan.Job) *scan.Result
}

type Exporter interface {
	Name() string
	Export(ctx context.Context, s *scan.Summary) error
}

type Orchestrator struct {
	Runner JobRunner
	// Preflight checks the hardware before the first job. Nil skips the check.
	Preflight func(ctx context.Context) error
	// Exporters receive the finished summary in order. The first one is the
	// primary record of the run and its failure is a Fault.
	Exporters []Exporter
	// OnResult observes every job result as soon as it is final.
	OnResult func(*scan.Result)
}

// Execute runs the jobs of p strictly one after the other.
func (o *Orchestrator) Execute(ctx context.Context, p *plan.Plan) (*scan.Summary, error) {
	s := &scan.Summary{
		RunID:   uuid.NewString(),
		ScanID:  p.ScanID,
		Dir:     p.Dir,
		Started: time.Now(),
		Skipped: p.Skipped,
	}

	if err := probe(p.Dir); err != nil {
		return o.abort(s, &Fault{Op: "results directory not writable", Err: err})
	}
	if o.Preflight != nil {
		if err := o.Preflight(ctx); err != nil {
			return o.abort(s, &Fault{Op: "preflight", Err: err})
		}
	}

	glog.Infof("run %s: %d job(s), %d band(s) already done", s.RunID, len(p.Jobs), len(p.Skipped))
	for i, job := range p.Jobs {
		if ctx.Err() != nil {
			for _, rest := range p.Jobs[i:] {
				res := scan.NewResult(rest)
				if err := res.Finish(scan.StateSkipped, "run cancelled"); err != nil {
					panic(err)
				}
				o.add(s, res)
			}
			break
		}
		glog.Infof("starting %s (%d/%d)", job, i+1, len(p.Jobs))
		o.add(s, o.Runner.Run(ctx, job))
	}
	if ctx.Err() != nil {
		s.Aborted = true
		s.AbortReason = fmt.Sprintf("cancelled: %s", context.Cause(ctx))
		glog.Warningf("run %s %s", s.RunID, s.AbortReason)
	}
	s.Finalize(time.Now())

	return s, o.export(context.WithoutCancel(ctx), s)
}

func (o *Orchestrator) add(s *scan.Summary, res *scan.Result) {
	s.Add(res)
	if o.OnResult != nil {
		o.OnResult(res)
	}
}

func (o *Orchestrator) abort(s *scan.Summary, f *Fault) (*scan.Summary, error) {
	s.Aborted = true
	s.AbortReason = f.Error()
	s.Finalize(time.Now())
	glog.Errorf("%s", f)
	return s, f
}

func (o *Orchestrator) export(ctx context.Context, s *scan.Summary) error {
	for i, e := range o.Exporters {
		if err := e.Export(ctx, s); err != nil {
			if i == 0 {
				return &Fault{Op: "writing " + e.Name(), Err: err}
			}
			glog.Warningf("exporter %s failed: %s", e.Name(), err)
			continue
		}
		glog.V(1).Infof("exported run %s via %s", s.RunID, e.Name())
	}
	return nil
}

// probe makes sure dir exists and accepts new files.
func probe(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_, werr := f.WriteString("ok\n")
	cerr := f.Close()
	if err := os.Remove(name); err != nil {
		return err
	}
	return errors.Join(werr, cerr)
}

// ExitCode maps the outcome of Execute to the process exit status.
func ExitCode(s *scan.Summary, err error) int {
	if err != nil {
		var f *Fault
		if errors.As(err, &f) {
			return ExitAborted
		}
		return ExitError
	}
	if s == nil || s.Aborted {
		return ExitAborted
	}
	if s.Failures() > 0 {
		return ExitPartial
	}
	return ExitOK
}
