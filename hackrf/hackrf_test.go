package hackrf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/cellscan/band"
	"github.com/hb9tf/cellscan/scan"
)

func testJob() scan.Job {
	b := band.Band{Provider: band.ProviderA1, Start: 801_000_000, End: 811_000_000}
	return scan.Job{
		ScanID:    "vienna",
		Kind:      scan.KindFull,
		Band:      b,
		Start:     b.Start,
		End:       b.End,
		StepWidth: 3,
		OutputDir: "/data/search/vienna/A1_801000000_811000000",
		Radio: scan.Radio{
			AmpEnable:     true,
			LGain:         16,
			GGain:         20,
			SampleRate:    12_500_000,
			FilterBW:      20_000_000,
			RecordingTime: 12 * time.Second,
		},
	}
}

func TestScanCommand(t *testing.T) {
	bin, args := Tools{}.ScanCommand(testJob())
	assert.Equal(t, "CellSearch", bin)
	assert.Equal(t, []string{
		"-s", "801000000", "-e", "811000000", "-x", "3", "-g", "40", "-n", "1",
		"-d", "/data/search/vienna/A1_801000000_811000000", "-r",
	}, args)

	bin, args = Tools{Scanner: "/opt/CellSearch", ScannerGain: 30}.ScanCommand(testJob())
	assert.Equal(t, "/opt/CellSearch", bin)
	assert.Equal(t, "30", args[7])
}

func TestRecordCommand(t *testing.T) {
	bin, args := Tools{}.RecordCommand(testJob(), "/rec/x.bin", 806_000_000)
	assert.Equal(t, "hackrf_transfer", bin)
	assert.Equal(t, []string{
		"-r", "/rec/x.bin", "-f", "806000000", "-a", "1", "-p", "0", "-l", "16", "-g", "20",
		"-s", "12500000", "-n", "150000000", "-b", "20000000",
	}, args)
}

func TestRecordingName(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 5, 0, 0, time.UTC)
	assert.Equal(t,
		"240307_0905_hackrf_recording_vienna_cell125_f806000000_bw20000000_l16_g20_amp1_12s.bin",
		RecordingName(testJob(), 125, 806_000_000, ts))
	assert.Equal(t,
		"240307_0905_hackrf_recording_vienna_cellnone_f806000000_bw20000000_l16_g20_amp1_12s.bin",
		RecordingName(testJob(), -1, 806_000_000, ts))
}

func TestParseCell(t *testing.T) {
	cell, err := ParseCell("  FDD  125   2    806.1M   -2.3k    -27.8  N  50  N  one 1.0000021312")
	require.NoError(t, err)
	assert.Equal(t, scan.Cell{
		Duplex:            "FDD",
		CellID:            125,
		AntennaPorts:      "2",
		FreqCenter:        806_100_000,
		FreqOffset:        -2_300,
		RxPower:           -27.8,
		CPType:            "N",
		NRB:               50,
		PHICHDuration:     "N",
		PHICHResource:     "one",
		CrystalCorrection: 1.0000021312,
	}, cell)

	for _, line := range []string{
		"DPX CID A fc foff RXPWR C nRB P PR CrystalCorrectionFactor",
		"Detected the following cells:",
		"",
	} {
		_, err := ParseCell(line)
		assert.ErrorIs(t, err, errNotCell, line)
	}
}

func TestReportFeed(t *testing.T) {
	r := NewReport(800_000_000, 810_000_000)
	for _, line := range []string{
		"Examining center frequency 800 MHz ...",
		"Hit  num peaks 0",
		"Examining center frequency 805.0 MHz ...",
		"Hit  num peaks 2",
		"Detected the following cells:",
		"DPX CID A fc foff RXPWR C nRB P PR CrystalCorrectionFactor",
		"FDD 125 2 806M -1.7k -27.8 N 50 N one 1.0000021312",
		"FDD 301 4 806M -1.2k -31.0 N 50 N one 1.0000015",
	} {
		r.Feed(line)
	}

	assert.Equal(t, int64(805_000_000), r.Current)
	assert.Equal(t, 50, r.Progress())
	assert.Equal(t, map[int64]int{805_000_000: 2}, r.Peaks)
	require.Len(t, r.Cells, 2)
	assert.Equal(t, 125, r.Cells[0].CellID)
	assert.Equal(t, 301, r.Cells[1].CellID)
	assert.False(t, r.NoCells)

	empty := NewReport(800_000_000, 810_000_000)
	empty.Feed("No LTE cells were found...")
	assert.True(t, empty.NoCells)
	assert.Empty(t, empty.Cells)
}

func TestPeakWindows(t *testing.T) {
	tests := []struct {
		name  string
		peaks map[int64]int
		want  []Window
	}{
		{
			name: "no peaks",
		},
		{
			name:  "single peak",
			peaks: map[int64]int{805_000_000: 2},
			want:  []Window{{Start: 804_600_000, End: 805_400_000}},
		},
		{
			name:  "adjacent peaks share a window",
			peaks: map[int64]int{805_500_000: 1, 805_000_000: 3, 807_500_000: 1},
			want: []Window{
				{Start: 804_600_000, End: 805_900_000},
				{Start: 807_100_000, End: 807_900_000},
			},
		},
		{
			name:  "clamped to the band",
			peaks: map[int64]int{800_000_000: 1, 810_000_000: 1},
			want: []Window{
				{Start: 800_000_000, End: 800_400_000},
				{Start: 809_600_000, End: 810_000_000},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeakWindows(tt.peaks, 5, 800_000_000, 810_000_000))
		})
	}
}

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestPreflight(t *testing.T) {
	ok := writeScript(t, "info", `echo "Found HackRF"`)
	broken := writeScript(t, "info", `echo "No HackRF boards found." ; exit 1`)
	scanner := writeScript(t, "scanner", "exit 0")

	out, err := Tools{Scanner: scanner, Recorder: scanner, Info: ok}.Preflight(context.Background(), true, true)
	require.NoError(t, err)
	assert.Contains(t, out, "Found HackRF")

	_, err = Tools{Info: broken}.Preflight(context.Background(), false, false)
	var pe *PreflightError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, broken, pe.Tool)
	assert.Contains(t, pe.Error(), "No HackRF boards found.")

	missing := filepath.Join(t.TempDir(), "CellSearch")
	_, err = Tools{Scanner: missing, Info: ok}.Preflight(context.Background(), true, false)
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, missing, pe.Tool)
}
