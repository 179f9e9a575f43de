// Package job runs a single scan job: the scanner over the job's window and,
// when it succeeds, one recording per cell frequency found.
package job

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/cellscan/hackrf"
	"github.com/hb9tf/cellscan/scan"
)

const (
	LogFile   = "job.log"
	CellsFile = "cells.json"
)

type Runner struct {
	Tools hackrf.Tools
	// Retries is the number of extra attempts for a failed or timed out phase.
	Retries int

	now func() time.Time
}

func New(tools hackrf.Tools, retries int) *Runner {
	return &Runner{Tools: tools, Retries: retries, now: time.Now}
}

// Run executes job and returns its result in a terminal state. Failures are
// reported through the result, never as an error.
func (r *Runner) Run(ctx context.Context, job scan.Job) *scan.Result {
	res := scan.NewResult(job)

	if err := ctx.Err(); err != nil {
		r.finish(res, scan.StateCancelled, "cancelled before start: %s", context.Cause(ctx))
		return res
	}

	log, err := r.openLog(job)
	if err != nil {
		r.fail(res, "%s", err)
		return res
	}
	defer log.Close()
	res.LogFile = log.Name()

	if job.Search {
		r.advance(res, scan.StateScanning)
		if !r.scan(ctx, res, log) {
			return res
		}
	}
	if job.Record {
		targets := recordTargets(res)
		if len(targets) == 0 {
			msg := fmt.Sprintf("%d cell(s) found, no cell to record", len(res.Cells))
			r.finish(res, scan.StateDone, "%s", msg)
			glog.Infof("%s done: %s", job, msg)
			return res
		}
		r.advance(res, scan.StateRecording)
		for _, t := range targets {
			if !r.record(ctx, res, t, log) {
				return res
			}
		}
	}

	msg := fmt.Sprintf("%d cell(s) found", len(res.Cells))
	switch len(res.Artifacts) {
	case 0:
	case 1:
		msg += ", recorded " + filepath.Base(res.Artifacts[0])
	default:
		msg += fmt.Sprintf(", %d recordings", len(res.Artifacts))
	}
	r.finish(res, scan.StateDone, "%s", msg)
	glog.Infof("%s done: %s", job, msg)
	return res
}

func (r *Runner) openLog(job scan.Job) (*os.File, error) {
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create output directory: %w", err)
	}
	log, err := os.Create(filepath.Join(job.OutputDir, LogFile))
	if err != nil {
		return nil, fmt.Errorf("unable to create job log: %w", err)
	}
	return log, nil
}

// scan runs the scanner over the job window and, for a gross sweep, once more
// at step width 1 over every window with peaks. It stores the parsed cells and
// reports whether the job may continue.
func (r *Runner) scan(ctx context.Context, res *scan.Result, log io.Writer) bool {
	job := res.Job
	report, ok := r.sweep(ctx, res, "scan", job, log)
	if !ok {
		return false
	}
	found := report.Cells

	if job.StepWidth > 1 {
		for _, w := range hackrf.PeakWindows(report.Peaks, job.StepWidth, job.Start, job.End) {
			fine := job
			fine.Start, fine.End, fine.StepWidth = w.Start, w.End, 1
			glog.V(1).Infof("%s: peak scan %.1f-%.1f MHz", job, float64(w.Start)/1e6, float64(w.End)/1e6)
			peak, ok := r.sweep(ctx, res, "peak scan", fine, log)
			if !ok {
				return false
			}
			found = append(found, peak.Cells...)
		}
	}

	seen := r.now()
	type key struct {
		id   int
		freq int64
	}
	known := map[key]bool{}
	res.Cells = make([]scan.Cell, 0, len(found))
	for _, cell := range found {
		k := key{cell.CellID, cell.FreqCenter}
		if known[k] {
			continue
		}
		known[k] = true
		cell.ScanID = job.ScanID
		cell.BandKey = job.Band.Key()
		cell.Provider = job.Band.Provider
		cell.Seen = seen
		res.Cells = append(res.Cells, cell)
	}
	if err := writeCells(filepath.Join(job.OutputDir, CellsFile), res.Cells); err != nil {
		glog.Warningf("%s: %s", job, err)
	}
	glog.Infof("%s: scan found %d cell(s)", job, len(res.Cells))
	return true
}

// sweep runs the scanner once over the window of j. On failure it finishes
// res and returns false.
func (r *Runner) sweep(ctx context.Context, res *scan.Result, name string, j scan.Job, log io.Writer) (*hackrf.Report, bool) {
	var report *hackrf.Report
	bin, args := r.Tools.ScanCommand(j)
	c := command{
		name:    name,
		bin:     bin,
		args:    args,
		timeout: j.ScanTimeout,
		idle:    j.IdleTimeout,
		feed:    func(line string) { report.Feed(line) },
	}

	switch r.phase(ctx, res, c, log, func() { report = hackrf.NewReport(j.Start, j.End) }) {
	case outcomeCancelled:
		r.finish(res, scan.StateCancelled, "scanner cancelled")
		return nil, false
	case outcomeTimedOut:
		r.finish(res, scan.StateTimedOut, "scanner: %s", lastError(res))
		return nil, false
	case outcomeFailed:
		r.finish(res, scan.StateScanFailed, "scanner: %s", lastError(res))
		return nil, false
	}
	return report, true
}

func (r *Runner) record(ctx context.Context, res *scan.Result, t target, log io.Writer) bool {
	job := res.Job
	if err := os.MkdirAll(job.RecordDir, 0o755); err != nil {
		r.finish(res, scan.StateRecordFailed, "unable to create record directory: %s", err)
		return false
	}
	path := filepath.Join(job.RecordDir, hackrf.RecordingName(job, t.cellID, t.freq, r.now()))
	bin, args := r.Tools.RecordCommand(job, path, t.freq)
	c := command{
		name:    "record",
		bin:     bin,
		args:    args,
		timeout: job.RecordTimeout,
	}
	glog.Infof("%s: recording %.3f MHz for %s (%d samples, bw %.2f MHz, l_gain %d dB, g_gain %d dB)",
		job, float64(t.freq)/1e6, job.Radio.RecordingTime, job.Radio.Samples(), float64(job.Radio.FilterBW)/1e6, job.Radio.LGain, job.Radio.GGain)

	switch r.phase(ctx, res, c, log, nil) {
	case outcomeCancelled:
		r.finish(res, scan.StateCancelled, "recorder cancelled")
		return false
	case outcomeTimedOut:
		r.finish(res, scan.StateTimedOut, "recorder: %s", lastError(res))
		return false
	case outcomeFailed:
		r.finish(res, scan.StateRecordFailed, "recorder: %s", lastError(res))
		return false
	}
	res.Artifacts = append(res.Artifacts, path)
	return true
}

// phase runs c with retries. reset, when set, is called before every attempt.
func (r *Runner) phase(ctx context.Context, res *scan.Result, c command, log io.Writer, reset func()) outcome {
	var o outcome
	for attempt := 1; attempt <= r.Retries+1; attempt++ {
		if reset != nil {
			reset()
		}
		p := scan.Phase{Name: c.name, Args: append([]string{c.bin}, c.args...), Attempt: attempt}
		fmt.Fprintf(log, "=== %s attempt %d: %s\n", c.name, attempt, c)
		o = execute(ctx, c, log, &p)
		fmt.Fprintf(log, "=== %s attempt %d: %s (exit code %d)\n", c.name, attempt, o, p.ExitCode)
		res.Phases = append(res.Phases, p)

		if o == outcomeOK || o == outcomeCancelled {
			return o
		}
		if attempt <= r.Retries {
			glog.Warningf("%s: %s attempt %d %s: %s, retrying", res.Job, c.name, attempt, o, p.Error)
		}
	}
	return o
}

// target is one capture: a frequency and the id of the strongest cell found
// there, or -1.
type target struct {
	freq   int64
	cellID int
	power  float64
}

// recordTargets lists one capture per distinct frequency of the found cells,
// in frequency order. Fast jobs only record their target, and only when the
// scan confirmed a cell there. Without a scan the window center is recorded.
func recordTargets(res *scan.Result) []target {
	job := res.Job
	if !job.Search {
		freq := job.Center()
		if job.Kind == scan.KindFast {
			freq = job.Target
		}
		return []target{{freq: freq, cellID: -1}}
	}

	byFreq := map[int64]int{}
	var out []target
	for _, c := range res.Cells {
		if job.Kind == scan.KindFast && c.FreqCenter != job.Target {
			continue
		}
		i, ok := byFreq[c.FreqCenter]
		if !ok {
			byFreq[c.FreqCenter] = len(out)
			out = append(out, target{freq: c.FreqCenter, cellID: c.CellID, power: c.RxPower})
			continue
		}
		if c.RxPower > out[i].power {
			out[i].cellID, out[i].power = c.CellID, c.RxPower
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].freq < out[j].freq })
	return out
}

func lastError(res *scan.Result) string {
	if len(res.Phases) == 0 {
		return "no attempt made"
	}
	return res.Phases[len(res.Phases)-1].Error
}

func writeCells(path string, cells []scan.Cell) error {
	data, err := json.MarshalIndent(cells, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode cells: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("unable to write cells: %w", err)
	}
	return nil
}

// fail ends a job that could not start its first phase.
func (r *Runner) fail(res *scan.Result, format string, args ...any) {
	if res.Job.Search {
		r.advance(res, scan.StateScanning)
		r.finish(res, scan.StateScanFailed, format, args...)
		return
	}
	r.advance(res, scan.StateRecording)
	r.finish(res, scan.StateRecordFailed, format, args...)
}

func (r *Runner) advance(res *scan.Result, to scan.State) {
	if err := res.Advance(to); err != nil {
		panic(err)
	}
}

func (r *Runner) finish(res *scan.Result, to scan.State, format string, args ...any) {
	if err := res.Finish(to, format, args...); err != nil {
		panic(err)
	}
	if to.Failed() {
		glog.Warningf("%s %s: %s", res.Job, to, res.Message)
	}
}
