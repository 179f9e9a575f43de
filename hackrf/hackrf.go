// Package hackrf knows the command line contracts of the external tools: the
// LTE-Cell-Scanner CellSearch binary, hackrf_transfer and hackrf_info.
package hackrf

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hb9tf/cellscan/scan"
)

const (
	SourceName = "hackrf"

	scannerAlias  = "CellSearch"
	recorderAlias = "hackrf_transfer"
	infoAlias     = "hackrf_info"

	// scannerGain is the gain CellSearch is run with unless configured otherwise.
	scannerGain = 40
)

// Tools names the binaries to run. Empty fields fall back to the usual names.
type Tools struct {
	Scanner     string
	Recorder    string
	Info        string
	ScannerGain int
}

func (t Tools) scanner() string {
	if t.Scanner == "" {
		return scannerAlias
	}
	return t.Scanner
}

func (t Tools) recorder() string {
	if t.Recorder == "" {
		return recorderAlias
	}
	return t.Recorder
}

func (t Tools) info() string {
	if t.Info == "" {
		return infoAlias
	}
	return t.Info
}

func (t Tools) gain() int {
	if t.ScannerGain == 0 {
		return scannerGain
	}
	return t.ScannerGain
}

// ScanCommand returns the scanner binary and its arguments for the job window.
func (t Tools) ScanCommand(job scan.Job) (string, []string) {
	return t.scanner(), []string{
		"-s", strconv.FormatInt(job.Start, 10),
		"-e", strconv.FormatInt(job.End, 10),
		"-x", strconv.Itoa(job.StepWidth),
		"-g", strconv.Itoa(t.gain()),
		"-n", "1",
		"-d", job.OutputDir,
		"-r",
	}
}

// RecordCommand returns the recorder binary and its arguments for a capture of
// freq into path.
func (t Tools) RecordCommand(job scan.Job, path string, freq int64) (string, []string) {
	r := job.Radio
	return t.recorder(), []string{
		"-r", path,
		"-f", strconv.FormatInt(freq, 10),
		"-a", boolFlag(r.AmpEnable),
		"-p", boolFlag(r.AntennaEnable),
		"-l", strconv.Itoa(r.LGain),
		"-g", strconv.Itoa(r.GGain),
		"-s", strconv.FormatInt(r.SampleRate, 10),
		"-n", strconv.FormatInt(r.Samples(), 10),
		"-b", strconv.FormatInt(r.FilterBW, 10),
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// RecordingName is the capture file name for a recording of freq started at ts.
// A negative cellID marks a capture without a detected cell.
func RecordingName(job scan.Job, cellID int, freq int64, ts time.Time) string {
	cell := "none"
	if cellID >= 0 {
		cell = strconv.Itoa(cellID)
	}
	r := job.Radio
	return fmt.Sprintf("%s_%s_recording_%s_cell%s_f%d_bw%d_l%d_g%d_amp%s_%gs.bin",
		ts.Format("060102_1504"), SourceName, job.ScanID, cell, freq,
		r.FilterBW, r.LGain, r.GGain, boolFlag(r.AmpEnable), r.RecordingTime.Seconds())
}

// PreflightError means the tools or the device are not usable.
type PreflightError struct {
	Tool   string
	Output string
	Err    error
}

func (e *PreflightError) Error() string {
	msg := fmt.Sprintf("preflight %s: %s", e.Tool, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *PreflightError) Unwrap() error { return e.Err }

// Preflight checks that the needed binaries are on the PATH and that the info
// tool finds a device. It returns the info tool's output.
func (t Tools) Preflight(ctx context.Context, search, record bool) (string, error) {
	if search {
		if _, err := exec.LookPath(t.scanner()); err != nil {
			return "", &PreflightError{Tool: t.scanner(), Err: err}
		}
	}
	if record {
		if _, err := exec.LookPath(t.recorder()); err != nil {
			return "", &PreflightError{Tool: t.recorder(), Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, t.info()).CombinedOutput()
	if err != nil {
		return string(out), &PreflightError{Tool: t.info(), Output: string(out), Err: err}
	}
	return string(out), nil
}
