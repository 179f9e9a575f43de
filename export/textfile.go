package export

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hb9tf/cellscan/scan"
)

// Metrics writes run metrics in the node exporter textfile format.
type Metrics struct {
	// Dir overrides the output directory. Defaults to the run directory.
	Dir string
}

func (m *Metrics) Name() string { return Textfile }

func (m *Metrics) Export(ctx context.Context, s *scan.Summary) error {
	dir := m.Dir
	if dir == "" {
		dir = s.Dir
	}
	reg := Registry(s)
	if err := prometheus.WriteToTextfile(filepath.Join(dir, Textfile), reg); err != nil {
		return fmt.Errorf("unable to write metrics: %s", err)
	}
	return nil
}

// Registry builds a private registry describing s.
func Registry(s *scan.Summary) *prometheus.Registry {
	labels := prometheus.Labels{"scan_id": s.ScanID}

	jobs := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "cellscan_jobs",
		Help:        "Jobs of the last run by final state.",
		ConstLabels: labels,
	}, []string{"state"})
	cells := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "cellscan_cells_found",
		Help:        "Cells found in the last run by provider.",
		ConstLabels: labels,
	}, []string{"provider"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "cellscan_run_duration_seconds",
		Help:        "Wall clock duration of the last run.",
		ConstLabels: labels,
	})
	finished := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "cellscan_run_finished_timestamp_seconds",
		Help:        "Unix time the last run finished.",
		ConstLabels: labels,
	})
	aborted := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "cellscan_run_aborted",
		Help:        "1 if the last run stopped early.",
		ConstLabels: labels,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(jobs, cells, duration, finished, aborted)

	for _, st := range scan.States {
		if st.Terminal() {
			jobs.WithLabelValues(string(st)).Set(float64(s.Counts[st]))
		}
	}
	for _, c := range s.Cells() {
		cells.WithLabelValues(string(c.Provider)).Inc()
	}
	duration.Set(s.Ended.Sub(s.Started).Seconds())
	finished.Set(float64(s.Ended.Unix()))
	if s.Aborted {
		aborted.Set(1)
	}
	return reg
}
