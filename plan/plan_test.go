package plan

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/cellscan/band"
	"github.com/hb9tf/cellscan/config"
	"github.com/hb9tf/cellscan/scan"
)

type fakeHistory struct {
	history *scan.History
	err     error
	calls   int
}

func (f *fakeHistory) History(_ context.Context, scanID string) (*scan.History, error) {
	f.calls++
	return f.history, f.err
}

func testConfig(rescan bool) *config.ScanConfig {
	return &config.ScanConfig{
		General: config.General{ScanID: "scan-1", BaseDir: "/data", Regions: []string{"A"}},
		Search:  config.Search{Enable: true, Rescan: rescan, ResultsDir: "search", StepWidth: 2},
		Record: config.Record{
			Enable:           true,
			ResultsDir:       "rec",
			LGain:            8,
			GGain:            10,
			SampleRate:       10_000_000,
			RecordingTime:    10,
			BasebandFilterBW: 10_000_000,
		},
		Tools: config.Tools{ScanTimeout: time.Minute, RecordMargin: 30 * time.Second},
	}
}

var (
	bandX1 = band.Band{Region: "A", Provider: "ProviderX", Start: 700_000_000, End: 710_000_000}
	bandX2 = band.Band{Region: "A", Provider: "ProviderX", Start: 720_000_000, End: 730_000_000}
	bandY  = band.Band{Region: "A", Provider: "ProviderY", Start: 705_000_000, End: 715_000_000}
)

func TestPlanFull(t *testing.T) {
	pl, err := New(nil, false).Plan(context.Background(), testConfig(true), []band.Band{bandX1, bandX2})
	require.NoError(t, err)

	assert.Equal(t, "/data/search/scan-1", pl.Dir)
	require.Len(t, pl.Jobs, 2)
	assert.Empty(t, pl.Skipped)

	j := pl.Jobs[0]
	assert.Equal(t, 1, j.Index)
	assert.Equal(t, scan.KindFull, j.Kind)
	assert.Equal(t, bandX1, j.Band)
	assert.Equal(t, int64(700_000_000), j.Start)
	assert.Equal(t, int64(710_000_000), j.End)
	assert.Equal(t, 2, j.StepWidth)
	assert.True(t, j.Search)
	assert.True(t, j.Record)
	assert.Equal(t, filepath.Join("/data/search/scan-1", "ProviderX_700000000_710000000"), j.OutputDir)
	assert.Equal(t, filepath.Join("/data/rec/scan-1", "ProviderX_700000000_710000000"), j.RecordDir)
	assert.Equal(t, 10*time.Second, j.Radio.RecordingTime)
	assert.Equal(t, 40*time.Second, j.RecordTimeout)
	assert.Equal(t, time.Minute, j.ScanTimeout)

	assert.Equal(t, 2, pl.Jobs[1].Index)
	assert.Equal(t, bandX2, pl.Jobs[1].Band)
	assert.NotEqual(t, pl.Jobs[0].OutputDir, pl.Jobs[1].OutputDir)
}

func TestPlanIsDeterministic(t *testing.T) {
	bands := []band.Band{bandX2, bandY, bandX1}
	h := &fakeHistory{history: &scan.History{Completed: map[string]bool{bandY.Key(): true}}}

	first, err := New(h, false).Plan(context.Background(), testConfig(false), bands)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := New(h, false).Plan(context.Background(), testConfig(false), bands)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	require.Len(t, first.Jobs, 2)
	assert.Equal(t, bandX2, first.Jobs[0].Band)
	assert.Equal(t, bandX1, first.Jobs[1].Band)
}

func TestPlanHistory(t *testing.T) {
	h := &fakeHistory{history: &scan.History{Completed: map[string]bool{bandX1.Key(): true}}}
	bands := []band.Band{bandX1, bandX2}

	pl, err := New(h, false).Plan(context.Background(), testConfig(false), bands)
	require.NoError(t, err)
	assert.Equal(t, 1, h.calls)
	require.Len(t, pl.Jobs, 1)
	assert.Equal(t, bandX2, pl.Jobs[0].Band)
	require.Len(t, pl.Skipped, 1)
	assert.Equal(t, bandX1, pl.Skipped[0].Band)

	pl, err = New(h, false).Plan(context.Background(), testConfig(true), bands)
	require.NoError(t, err)
	assert.Equal(t, 2, h.calls)
	assert.Len(t, pl.Jobs, 2)
	assert.Empty(t, pl.Skipped)
}

func TestPlanHistoryError(t *testing.T) {
	h := &fakeHistory{err: errors.New("disk on fire")}
	_, err := New(h, false).Plan(context.Background(), testConfig(false), []band.Band{bandX1})
	assert.ErrorContains(t, err, "disk on fire")
}

func TestPlanFast(t *testing.T) {
	h := &fakeHistory{history: &scan.History{
		Completed: map[string]bool{bandX1.Key(): true},
		Cells: []scan.Cell{
			{CellID: 7, FreqCenter: 706_000_000, BandKey: bandX1.Key()},
			{CellID: 9, FreqCenter: 706_000_000, BandKey: bandX1.Key()},
			{CellID: 3, FreqCenter: 702_500_000, BandKey: bandX1.Key()},
			{CellID: 1, FreqCenter: 725_000_000, BandKey: bandX2.Key()},
		},
	}}

	pl, err := New(h, true).Plan(context.Background(), testConfig(false), []band.Band{bandX1, bandX2})
	require.NoError(t, err)
	assert.True(t, pl.Fast)
	require.Len(t, pl.Jobs, 2)

	assert.Equal(t, scan.KindFast, pl.Jobs[0].Kind)
	assert.Equal(t, int64(705_800_000), pl.Jobs[0].Start)
	assert.Equal(t, int64(706_200_000), pl.Jobs[0].End)
	assert.Equal(t, int64(706_000_000), pl.Jobs[0].Target)
	assert.Equal(t, int64(702_500_000), pl.Jobs[1].Target)
	assert.Equal(t, filepath.Join("/data/search/scan-1", "ProviderX_705800000_706200000"), pl.Jobs[0].OutputDir)
}

func TestPlanFastWithoutHistory(t *testing.T) {
	_, err := New(nil, true).Plan(context.Background(), testConfig(false), []band.Band{bandX1})
	var pe *PlanError
	assert.True(t, errors.As(err, &pe))
}

func TestPlanErrors(t *testing.T) {
	overlapping := band.Band{Region: "B", Provider: "ProviderX", Start: 705_000_000, End: 708_000_000}
	disabled := testConfig(true)
	disabled.Search.Enable = false
	disabled.Record.Enable = false

	tests := []struct {
		name   string
		cfg    *config.ScanConfig
		bands  []band.Band
		reason string
	}{
		{"empty band set", testConfig(true), nil, "no bands"},
		{"duplicate band", testConfig(true), []band.Band{bandX1, bandX2, bandX1}, "used by more than one job"},
		{"same provider overlap", testConfig(true), []band.Band{bandX1, overlapping}, "overlapping bands"},
		{"nothing enabled", disabled, []band.Band{bandX1}, "both disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil, false).Plan(context.Background(), tt.cfg, tt.bands)
			var pe *PlanError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Contains(t, pe.Reason, tt.reason)
		})
	}
}

func TestPlanAllowsCrossProviderOverlap(t *testing.T) {
	pl, err := New(nil, false).Plan(context.Background(), testConfig(true), []band.Band{bandX1, bandY})
	require.NoError(t, err)
	assert.Len(t, pl.Jobs, 2)
}
