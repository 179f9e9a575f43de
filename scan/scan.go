package scan

import (
	"fmt"
	"time"

	"github.com/hb9tf/cellscan/band"
)

type Kind string

const (
	// KindFull sweeps a whole band.
	KindFull Kind = "full"
	// KindFast revisits a single known cell.
	KindFast Kind = "fast"
)

// Radio holds the recorder settings passed to the capture tool.
type Radio struct {
	AmpEnable     bool          `json:"amp_enable" yaml:"amp_enable"`
	AntennaEnable bool          `json:"antenna_enable" yaml:"antenna_enable"`
	LGain         int           `json:"l_gain" yaml:"l_gain"`
	GGain         int           `json:"g_gain" yaml:"g_gain"`
	SampleRate    int64         `json:"sample_rate" yaml:"sample_rate"`
	FilterBW      int64         `json:"baseband_filter_bw" yaml:"baseband_filter_bw"`
	RecordingTime time.Duration `json:"recording_time" yaml:"recording_time"`
}

// Samples is the number of samples to capture for RecordingTime.
func (r Radio) Samples() int64 {
	return int64(float64(r.SampleRate) * r.RecordingTime.Seconds())
}

// Job is one scan and optional recording over a frequency window.
type Job struct {
	Index  int       `json:"index" yaml:"index"`
	ScanID string    `json:"scan_id" yaml:"scan_id"`
	Kind   Kind      `json:"kind" yaml:"kind"`
	Band   band.Band `json:"band" yaml:"band"`

	// Start and End delimit the scanned window in Hz. Full jobs cover the band.
	Start int64 `json:"start" yaml:"start"`
	End   int64 `json:"end" yaml:"end"`
	// Target is the known cell frequency a fast job revisits.
	Target int64 `json:"target,omitempty" yaml:"target,omitempty"`

	// StepWidth in units of 100 kHz.
	StepWidth int   `json:"step_width" yaml:"step_width"`
	Search    bool  `json:"search" yaml:"search"`
	Record    bool  `json:"record" yaml:"record"`
	Radio     Radio `json:"radio" yaml:"radio"`

	OutputDir string `json:"output_dir" yaml:"output_dir"`
	RecordDir string `json:"record_dir" yaml:"record_dir"`

	ScanTimeout   time.Duration `json:"scan_timeout" yaml:"scan_timeout"`
	IdleTimeout   time.Duration `json:"idle_timeout,omitempty" yaml:"idle_timeout,omitempty"`
	RecordTimeout time.Duration `json:"record_timeout" yaml:"record_timeout"`
}

// Key names the job's window, unique within a plan.
func (j Job) Key() string {
	return fmt.Sprintf("%s_%d_%d", j.Band.Provider, j.Start, j.End)
}

func (j Job) String() string {
	return fmt.Sprintf("job %d (%s %s %.1f-%.1f MHz)", j.Index, j.Kind, j.Band.Provider, float64(j.Start)/1e6, float64(j.End)/1e6)
}

// Center is the frequency recorded when no cell pinpoints a better one.
func (j Job) Center() int64 {
	if j.Target != 0 {
		return j.Target
	}
	return (j.Start + j.End) / 2
}

// Cell is one row of the scanner's cell report.
type Cell struct {
	CellID            int     `json:"cell_id" yaml:"cell_id"`
	Duplex            string  `json:"duplex" yaml:"duplex"`
	AntennaPorts      string  `json:"antenna_ports" yaml:"antenna_ports"`
	FreqCenter        int64   `json:"freq_center" yaml:"freq_center"`
	FreqOffset        int64   `json:"freq_offset" yaml:"freq_offset"`
	RxPower           float64 `json:"rx_power" yaml:"rx_power"`
	CPType            string  `json:"cp_type" yaml:"cp_type"`
	NRB               int     `json:"nrb" yaml:"nrb"`
	PHICHDuration     string  `json:"phich_duration" yaml:"phich_duration"`
	PHICHResource     string  `json:"phich_resource" yaml:"phich_resource"`
	CrystalCorrection float64 `json:"crystal_correction" yaml:"crystal_correction"`

	ScanID   string        `json:"scan_id,omitempty" yaml:"scan_id,omitempty"`
	BandKey  string        `json:"band_key,omitempty" yaml:"band_key,omitempty"`
	Provider band.Provider `json:"provider,omitempty" yaml:"provider,omitempty"`
	Seen     time.Time     `json:"seen" yaml:"seen"`
}

func (c Cell) String() string {
	return fmt.Sprintf("cell %d (%s) at %.3f MHz, %.1f dB", c.CellID, c.Duplex, float64(c.FreqCenter)/1e6, c.RxPower)
}

// History is what earlier runs of a scan id left behind. It is read once before
// planning and never changed during a run.
type History struct {
	// Completed holds the keys of bands with a successful full scan.
	Completed map[string]bool
	// Cells holds the cells found so far, oldest first.
	Cells []Cell
}

func (h *History) Done(key string) bool {
	if h == nil {
		return false
	}
	return h.Completed[key]
}
