// Package export writes finished run summaries to files, databases and other
// sinks.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hb9tf/cellscan/scan"
)

const (
	SummaryJSON = "summary.json"
	SummaryYAML = "summary.yaml"
	CellsCSV    = "cells.csv"
	ChartPNG    = "summary.png"
	Textfile    = "cellscan.prom"
)

type Exporter interface {
	Name() string
	Export(context.Context, *scan.Summary) error
}

// writeFile replaces path atomically so readers never see a partial file.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("unable to write %q: %s", path, err)
	}
	return nil
}
