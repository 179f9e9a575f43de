package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/cellscan/scan"
)

var csvHeader = []string{
	"cell_id",
	"scan_id",
	"run_id",
	"time",
	"dpx",
	"antenna_port",
	"frequency_center",
	"frequency_offset",
	"rx_power",
	"cp_type",
	"nRB",
	"PHICH_duration",
	"PHICH_resource_type",
	"crystal_correction_factor",
	"provider",
	"band",
}

// CSV appends the cells of every run to cells.csv in the run directory, so the
// file accumulates everything found for a scan id.
type CSV struct{}

func (c *CSV) Name() string { return CellsCSV }

func (c *CSV) Export(ctx context.Context, s *scan.Summary) error {
	path := filepath.Join(s.Dir, CellsCSV)
	_, statErr := os.Stat(path)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("unable to open %q: %s", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if os.IsNotExist(statErr) {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("unable to write %q: %s", path, err)
		}
	}
	for _, cell := range s.Cells() {
		if err := w.Write([]string{
			fmt.Sprintf("%d", cell.CellID),
			cell.ScanID,
			s.RunID,
			cell.Seen.UTC().Format(time.RFC3339),
			cell.Duplex,
			cell.AntennaPorts,
			fmt.Sprintf("%d", cell.FreqCenter),
			fmt.Sprintf("%d", cell.FreqOffset),
			fmt.Sprintf("%.1f", cell.RxPower),
			cell.CPType,
			fmt.Sprintf("%d", cell.NRB),
			cell.PHICHDuration,
			cell.PHICHResource,
			fmt.Sprintf("%.10f", cell.CrystalCorrection),
			string(cell.Provider),
			cell.BandKey,
		}); err != nil {
			glog.Warningf("error while writing CSV line: %s\n", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("error flushing CSV: %s", err)
	}
	return f.Close()
}
