package hackrf

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/hb9tf/cellscan/scan"
)

var (
	examiningRE = regexp.MustCompile(`^Examining center frequency ([\d.]+) MHz`)
	peaksRE     = regexp.MustCompile(`^Hit\s+num peaks (\d+)`)
	noCellsRE   = regexp.MustCompile(`^No LTE cells were found`)

	errNotCell = errors.New("not a cell row")
)

// cellColumns is the number of whitespace separated columns of a cell row:
// DPX CID A fc foff RXPWR C nRB P PR CrystalCorrectionFactor
const cellColumns = 11

// Report collects what the scanner printed while sweeping one window.
type Report struct {
	Start int64
	End   int64

	// Current is the center frequency examined last, in Hz.
	Current int64
	// Peaks maps examined center frequencies to the number of peaks found there.
	Peaks   map[int64]int
	Cells   []scan.Cell
	NoCells bool
}

func NewReport(start, end int64) *Report {
	return &Report{Start: start, End: end, Peaks: map[int64]int{}}
}

// Progress is the share of the window examined so far, in percent.
func (r *Report) Progress() int {
	if r.End <= r.Start {
		return 100
	}
	if r.Current <= r.Start {
		return 0
	}
	p := int((r.Current - r.Start) * 100 / (r.End - r.Start))
	if p > 100 {
		p = 100
	}
	return p
}

// Feed parses a single output line of the scanner.
func (r *Report) Feed(line string) {
	line = strings.TrimSpace(line)
	if len(line) < 3 {
		return
	}

	if m := examiningRE.FindStringSubmatch(line); m != nil {
		mhz, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			glog.Warningf("error parsing line %q: %s\n", line, err)
			return
		}
		r.Current = int64(math.Round(mhz * 1e6))
		glog.V(2).Infof("scan %.1f-%.1f MHz: examining %.1f MHz (%d%%)", float64(r.Start)/1e6, float64(r.End)/1e6, mhz, r.Progress())
		return
	}
	if m := peaksRE.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			r.Peaks[r.Current] = n
			glog.V(2).Infof("found %d peaks at %.1f MHz", n, float64(r.Current)/1e6)
		}
		return
	}
	if noCellsRE.MatchString(line) {
		r.NoCells = true
		return
	}

	cell, err := ParseCell(line)
	if err != nil {
		return
	}
	glog.V(2).Infof("found %s", cell)
	r.Cells = append(r.Cells, cell)
}

// peakStep is the frequency step of the scanner at step width 1.
const peakStep = 100_000

// Window is a frequency range in Hz.
type Window struct {
	Start int64
	End   int64
}

// PeakWindows groups the peaks of a sweep at step width step into windows for
// a fine sweep at step width 1. Peaks closer than one gross step share a
// window, and every window grows by the part of a gross step the sweep skipped
// on each side, clamped to [start, end].
func PeakWindows(peaks map[int64]int, step int, start, end int64) []Window {
	if len(peaks) == 0 {
		return nil
	}
	freqs := make([]int64, 0, len(peaks))
	for f := range peaks {
		freqs = append(freqs, f)
	}
	sort.Slice(freqs, func(i, j int) bool { return freqs[i] < freqs[j] })

	gap := int64(step) * peakStep
	margin := int64(step-1) * peakStep
	var out []Window
	w := Window{Start: freqs[0], End: freqs[0]}
	for _, f := range freqs[1:] {
		if f-w.End > gap {
			out = append(out, w)
			w = Window{Start: f}
		}
		w.End = f
	}
	out = append(out, w)

	for i := range out {
		out[i].Start = max(out[i].Start-margin, start)
		out[i].End = min(out[i].End+margin, end)
	}
	return out
}

// ParseCell parses a cell row of the scanner's final report.
func ParseCell(line string) (scan.Cell, error) {
	row := strings.Fields(line)
	if len(row) != cellColumns {
		return scan.Cell{}, errNotCell
	}

	cellID, err := strconv.Atoi(row[1])
	if err != nil {
		return scan.Cell{}, errNotCell
	}
	center, err := parseScaled(row[3], "M", 1e6)
	if err != nil {
		return scan.Cell{}, fmt.Errorf("center frequency: %w", err)
	}
	offset, err := parseScaled(row[4], "k", 1e3)
	if err != nil {
		return scan.Cell{}, fmt.Errorf("frequency offset: %w", err)
	}
	power, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return scan.Cell{}, fmt.Errorf("rx power: %w", err)
	}
	nrb, err := strconv.Atoi(row[7])
	if err != nil {
		return scan.Cell{}, fmt.Errorf("nRB: %w", err)
	}
	crystal, err := strconv.ParseFloat(row[10], 64)
	if err != nil {
		return scan.Cell{}, errNotCell
	}

	return scan.Cell{
		Duplex:            row[0],
		CellID:            cellID,
		AntennaPorts:      row[2],
		FreqCenter:        center,
		FreqOffset:        offset,
		RxPower:           power,
		CPType:            row[6],
		NRB:               nrb,
		PHICHDuration:     row[8],
		PHICHResource:     row[9],
		CrystalCorrection: crystal,
	}, nil
}

// parseScaled parses values like "806.1M" or "-2.3k".
func parseScaled(v, suffix string, scale float64) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, suffix), 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f * scale)), nil
}
