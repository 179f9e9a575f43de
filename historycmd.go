package main

import (
	"context"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/hb9tf/cellscan/config"
	"github.com/hb9tf/cellscan/export"
	"github.com/hb9tf/cellscan/run"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the jobs recorded for the configured scan id",
	Run: func(cmd *cobra.Command, args []string) {
		if err := printHistory(cmd.Context(), cmd.OutOrStdout(), configPath); err != nil {
			glog.Errorf("%s", err)
			exitCode = run.ExitError
		}
	},
}

func printHistory(ctx context.Context, w io.Writer, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	store, err := export.Open(cfg.History.Driver, cfg.HistoryDSN())
	if err != nil {
		return err
	}
	defer store.Close()

	jobs, err := store.Jobs(ctx, cfg.General.ScanID)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintf(w, "no jobs recorded for scan %q\n", cfg.General.ScanID)
		return nil
	}
	for _, j := range jobs {
		fmt.Fprintf(w, "%s  %-36s %-5s %-40s %-14s %s\n",
			j.Started.Format("2006-01-02 15:04:05"), j.RunID, j.Kind, j.BandKey, j.Status, j.Message)
	}

	cells, err := store.Cells(ctx, cfg.General.ScanID)
	if err != nil {
		return err
	}
	for _, c := range cells {
		fmt.Fprintf(w, "%-40s %s\n", c.BandKey, c)
	}
	return nil
}
