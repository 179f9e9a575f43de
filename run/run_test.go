package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/cellscan/band"
	"github.com/hb9tf/cellscan/config"
	"github.com/hb9tf/cellscan/export"
	"github.com/hb9tf/cellscan/hackrf"
	"github.com/hb9tf/cellscan/job"
	"github.com/hb9tf/cellscan/plan"
	"github.com/hb9tf/cellscan/scan"
)

func testConfig(dir string) *config.ScanConfig {
	return &config.ScanConfig{
		General: config.General{ScanID: "e2e", BaseDir: dir, Regions: []string{"A"}},
		Search:  config.Search{Enable: true, Rescan: true, ResultsDir: "search", StepWidth: 1},
		Record: config.Record{
			Enable:           true,
			ResultsDir:       "search",
			LGain:            16,
			GGain:            20,
			SampleRate:       10_000_000,
			RecordingTime:    10,
			BasebandFilterBW: 10_000_000,
		},
		Tools: config.Tools{ScanTimeout: 10 * time.Second, RecordMargin: 10 * time.Second},
	}
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

type exporterFunc struct {
	name string
	fn   func(*scan.Summary) error
}

func (e exporterFunc) Name() string { return e.name }

func (e exporterFunc) Export(_ context.Context, s *scan.Summary) error { return e.fn(s) }

// The first job's scanner fails, the second job scans and records.
func TestEndToEndPartialFailure(t *testing.T) {
	dir := t.TempDir()
	recorded := filepath.Join(dir, "recorded")
	scanner := writeScript(t, dir, "scanner", `if [ "$2" = "700000000" ]; then echo "no device"; exit 1; fi
echo "FDD 42 2 725M -1.0k -25.0 N 50 N one 1.0000001"`)
	recorder := writeScript(t, dir, "recorder", fmt.Sprintf(`echo "$4" >> %s`, recorded))

	cfg := testConfig(dir)
	bands := []band.Band{
		{Region: "A", Provider: "ProviderX", Start: 700_000_000, End: 710_000_000},
		{Region: "A", Provider: "ProviderX", Start: 720_000_000, End: 730_000_000},
	}
	p, err := plan.New(nil, false).Plan(context.Background(), cfg, bands)
	require.NoError(t, err)
	require.Len(t, p.Jobs, 2)
	assert.NotEqual(t, p.Jobs[0].OutputDir, p.Jobs[1].OutputDir)

	var observed []scan.State
	o := &Orchestrator{
		Runner:    job.New(hackrf.Tools{Scanner: scanner, Recorder: recorder}, 0),
		Exporters: []Exporter{&export.JSON{}},
		OnResult:  func(r *scan.Result) { observed = append(observed, r.Status) },
	}
	s, err := o.Execute(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, s.Results, 2)
	assert.Equal(t, scan.StateScanFailed, s.Results[0].Status)
	assert.Equal(t, scan.StateDone, s.Results[1].Status)
	assert.Equal(t, []scan.State{scan.StateScanFailed, scan.StateDone}, observed)
	assert.Equal(t, ExitPartial, ExitCode(s, err))
	assert.False(t, s.Aborted)
	assert.NotEmpty(t, s.RunID)

	// The recorder only ran for the second job, on the cell it found.
	data, err := os.ReadFile(recorded)
	require.NoError(t, err)
	assert.Equal(t, "725000000\n", string(data))

	for _, j := range p.Jobs {
		_, err := os.Stat(filepath.Join(j.OutputDir, job.LogFile))
		assert.NoError(t, err)
	}

	data, err = os.ReadFile(filepath.Join(cfg.SearchDir(), export.SummaryJSON))
	require.NoError(t, err)
	written := &scan.Summary{}
	require.NoError(t, json.Unmarshal(data, written))
	require.Len(t, written.Results, 2)
	assert.Equal(t, scan.StateScanFailed, written.Results[0].Status)
	assert.Equal(t, scan.StateDone, written.Results[1].Status)
}

type fakeRunner struct {
	statuses []scan.State
	calls    int
	onRun    func(i int)
}

func (f *fakeRunner) Run(ctx context.Context, j scan.Job) *scan.Result {
	i := f.calls
	f.calls++
	if f.onRun != nil {
		f.onRun(i)
	}
	r := scan.NewResult(j)
	st := f.statuses[i]
	if st != scan.StateCancelled {
		if err := r.Advance(scan.StateScanning); err != nil {
			panic(err)
		}
	}
	if err := r.Advance(st); err != nil {
		panic(err)
	}
	return r
}

func testPlan(t *testing.T, n int) *plan.Plan {
	p := &plan.Plan{ScanID: "unit", Dir: filepath.Join(t.TempDir(), "run")}
	for i := 0; i < n; i++ {
		b := band.Band{Provider: "ProviderX", Start: int64(700+20*i) * 1e6, End: int64(710+20*i) * 1e6}
		p.Jobs = append(p.Jobs, scan.Job{Index: i + 1, ScanID: "unit", Band: b, Start: b.Start, End: b.End})
	}
	return p
}

func TestExecuteAllDone(t *testing.T) {
	p := testPlan(t, 3)
	p.Skipped = []scan.Job{{ScanID: "unit"}}
	o := &Orchestrator{Runner: &fakeRunner{statuses: []scan.State{scan.StateDone, scan.StateDone, scan.StateDone}}}

	s, err := o.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, ExitOK, ExitCode(s, err))
	assert.Equal(t, 3, s.Counts[scan.StateDone])
	assert.Equal(t, 1, s.Counts[scan.StateSkipped])
	assert.True(t, s.Succeeded())
}

func TestExecuteCancellation(t *testing.T) {
	p := testPlan(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &fakeRunner{
		statuses: []scan.State{scan.StateDone, scan.StateCancelled},
		onRun: func(i int) {
			if i == 1 {
				cancel()
			}
		},
	}
	var exported *scan.Summary
	o := &Orchestrator{
		Runner: runner,
		Exporters: []Exporter{exporterFunc{name: "capture", fn: func(s *scan.Summary) error {
			exported = s
			return nil
		}}},
	}

	s, err := o.Execute(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2, runner.calls)
	require.Len(t, s.Results, 3)
	assert.Equal(t, scan.StateDone, s.Results[0].Status)
	assert.Equal(t, scan.StateCancelled, s.Results[1].Status)
	assert.Equal(t, scan.StateSkipped, s.Results[2].Status)
	assert.True(t, s.Aborted)
	assert.Equal(t, ExitAborted, ExitCode(s, err))
	assert.Same(t, s, exported, "summary is exported even after cancellation")
}

func TestExecuteUnwritableDir(t *testing.T) {
	p := testPlan(t, 1)
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	p.Dir = filepath.Join(file, "run")
	runner := &fakeRunner{statuses: []scan.State{scan.StateDone}}

	s, err := (&Orchestrator{Runner: runner}).Execute(context.Background(), p)
	var f *Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, 0, runner.calls)
	assert.True(t, s.Aborted)
	assert.Equal(t, ExitAborted, ExitCode(s, err))
}

func TestExecutePreflightFault(t *testing.T) {
	p := testPlan(t, 2)
	runner := &fakeRunner{statuses: []scan.State{scan.StateDone, scan.StateDone}}
	o := &Orchestrator{
		Runner:    runner,
		Preflight: func(context.Context) error { return errors.New("No HackRF boards found.") },
	}

	_, err := o.Execute(context.Background(), p)
	var f *Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "preflight", f.Op)
	assert.Equal(t, 0, runner.calls)
}

func TestExecuteExporterFailures(t *testing.T) {
	failing := exporterFunc{name: "broken", fn: func(*scan.Summary) error { return errors.New("disk full") }}
	var secondary bool
	ok := exporterFunc{name: "ok", fn: func(*scan.Summary) error { secondary = true; return nil }}

	// A failing secondary exporter is only logged.
	o := &Orchestrator{Runner: &fakeRunner{statuses: []scan.State{scan.StateDone}}, Exporters: []Exporter{ok, failing}}
	s, err := o.Execute(context.Background(), testPlan(t, 1))
	require.NoError(t, err)
	assert.True(t, secondary)
	assert.Equal(t, ExitOK, ExitCode(s, err))

	// The primary exporter is the record of the run.
	o = &Orchestrator{Runner: &fakeRunner{statuses: []scan.State{scan.StateDone}}, Exporters: []Exporter{failing, ok}}
	s, err = o.Execute(context.Background(), testPlan(t, 1))
	var f *Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, ExitAborted, ExitCode(s, err))
}

func TestExitCode(t *testing.T) {
	done := &scan.Result{Status: scan.StateDone}
	failed := &scan.Result{Status: scan.StateTimedOut}

	tests := []struct {
		name string
		s    *scan.Summary
		err  error
		want int
	}{
		{"all done", &scan.Summary{Results: []*scan.Result{done, done}}, nil, ExitOK},
		{"no jobs", &scan.Summary{}, nil, ExitOK},
		{"partial", &scan.Summary{Results: []*scan.Result{done, failed}}, nil, ExitPartial},
		{"aborted", &scan.Summary{Aborted: true, Results: []*scan.Result{done}}, nil, ExitAborted},
		{"fault", nil, &Fault{Op: "preflight", Err: errors.New("x")}, ExitAborted},
		{"other error", nil, errors.New("x"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.s, tt.err))
		})
	}
}
