// Package plan expands a validated config and a set of bands into the ordered
// list of jobs a run executes.
package plan

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang/glog"

	"github.com/hb9tf/cellscan/band"
	"github.com/hb9tf/cellscan/config"
	"github.com/hb9tf/cellscan/scan"
)

// FastWindow is how far a fast job scans around a known cell, in Hz.
const FastWindow = 200_000

// HistoryReader gives access to what earlier runs recorded for a scan id.
type HistoryReader interface {
	History(ctx context.Context, scanID string) (*scan.History, error)
}

// PlanError is returned when no consistent plan can be built.
type PlanError struct {
	ScanID string
	Reason string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("cannot plan scan %q: %s", e.ScanID, e.Reason)
}

type Plan struct {
	ScanID string
	// Dir is the run directory that holds the job directories and the summary.
	Dir string
	// Fast is set when the plan only revisits known cells.
	Fast bool
	Jobs []scan.Job
	// Skipped holds full jobs left out because history marks their band done.
	Skipped []scan.Job
}

type Planner struct {
	history HistoryReader
	fast    bool
}

// New returns a planner. history may be nil when no earlier runs are known.
func New(history HistoryReader, fast bool) *Planner {
	return &Planner{history: history, fast: fast}
}

// Plan builds the jobs for bands. The output is a pure function of the config,
// the bands and the history snapshot, which is read once per call.
func (p *Planner) Plan(ctx context.Context, cfg *config.ScanConfig, bands []band.Band) (*Plan, error) {
	scanID := cfg.General.ScanID
	if len(bands) == 0 {
		return nil, &PlanError{ScanID: scanID, Reason: "no bands to scan"}
	}
	if !cfg.Search.Enable && !cfg.Record.Enable {
		return nil, &PlanError{ScanID: scanID, Reason: "search and record are both disabled"}
	}
	if err := checkOverlaps(scanID, bands); err != nil {
		return nil, err
	}

	history := &scan.History{}
	if p.history != nil {
		h, err := p.history.History(ctx, scanID)
		if err != nil {
			return nil, fmt.Errorf("unable to read history of scan %q: %w", scanID, err)
		}
		if h != nil {
			history = h
		}
	}

	pl := &Plan{ScanID: scanID, Dir: cfg.SearchDir(), Fast: p.fast}
	if p.fast {
		pl.Jobs = fastJobs(cfg, bands, history)
		if len(pl.Jobs) == 0 {
			return nil, &PlanError{ScanID: scanID, Reason: "fast scan needs known cells but history has none for the selected bands"}
		}
	} else {
		for _, b := range bands {
			job := newJob(cfg, b, scan.KindFull, b.Start, b.End, 0)
			if !cfg.Search.Rescan && history.Done(b.Key()) {
				glog.Infof("skipping %s: already scanned for %q", b, scanID)
				pl.Skipped = append(pl.Skipped, job)
				continue
			}
			pl.Jobs = append(pl.Jobs, job)
		}
	}

	seen := map[string]bool{}
	for _, j := range append(append([]scan.Job{}, pl.Jobs...), pl.Skipped...) {
		if seen[j.OutputDir] {
			return nil, &PlanError{ScanID: scanID, Reason: fmt.Sprintf("output directory %q used by more than one job", j.OutputDir)}
		}
		seen[j.OutputDir] = true
	}
	for i := range pl.Jobs {
		pl.Jobs[i].Index = i + 1
	}
	return pl, nil
}

// checkOverlaps rejects bands of one provider that share a frequency range.
// Identical bands are left to the output directory check.
func checkOverlaps(scanID string, bands []band.Band) error {
	var conflicts []string
	for i, a := range bands {
		for _, b := range bands[i+1:] {
			if a.Provider != b.Provider || a.Key() == b.Key() || !a.Overlaps(b) {
				continue
			}
			conflicts = append(conflicts, fmt.Sprintf("%s (%s) overlaps %s (%s)", a, a.Region, b, b.Region))
		}
	}
	if len(conflicts) > 0 {
		return &PlanError{ScanID: scanID, Reason: "overlapping bands: " + strings.Join(conflicts, "; ")}
	}
	return nil
}

// fastJobs creates one job per known cell frequency of every band scanned before.
func fastJobs(cfg *config.ScanConfig, bands []band.Band, history *scan.History) []scan.Job {
	var jobs []scan.Job
	for _, b := range bands {
		if !history.Done(b.Key()) {
			glog.V(1).Infof("fast scan: %s was never scanned, ignoring it", b)
			continue
		}
		freqs := map[int64]bool{}
		for _, c := range history.Cells {
			if c.BandKey != b.Key() || freqs[c.FreqCenter] {
				continue
			}
			freqs[c.FreqCenter] = true
			jobs = append(jobs, newJob(cfg, b, scan.KindFast, c.FreqCenter-FastWindow, c.FreqCenter+FastWindow, c.FreqCenter))
		}
	}
	return jobs
}

func newJob(cfg *config.ScanConfig, b band.Band, kind scan.Kind, start, end, target int64) scan.Job {
	j := scan.Job{
		ScanID:    cfg.General.ScanID,
		Kind:      kind,
		Band:      b,
		Start:     start,
		End:       end,
		Target:    target,
		StepWidth: cfg.Search.StepWidth,
		Search:    cfg.Search.Enable,
		Record:    cfg.Record.Enable,
		Radio: scan.Radio{
			AmpEnable:     cfg.Record.AmpEnable,
			AntennaEnable: cfg.Record.AntennaEnable,
			LGain:         cfg.Record.LGain,
			GGain:         cfg.Record.GGain,
			SampleRate:    cfg.Record.SampleRate,
			FilterBW:      cfg.Record.BasebandFilterBW,
			RecordingTime: cfg.RecordingDuration(),
		},
		ScanTimeout:   cfg.Tools.ScanTimeout,
		IdleTimeout:   cfg.Tools.IdleTimeout,
		RecordTimeout: cfg.RecordTimeout(),
	}
	j.OutputDir = filepath.Join(cfg.SearchDir(), j.Key())
	j.RecordDir = filepath.Join(cfg.RecordDir(), j.Key())
	return j
}
