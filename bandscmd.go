package main

import (
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/hb9tf/cellscan/band"
	"github.com/hb9tf/cellscan/config"
	"github.com/hb9tf/cellscan/run"
)

var bandRegions []string

var bandsCmd = &cobra.Command{
	Use:   "bands",
	Short: "List the band table",
	Long: `List the bands of the table selected by the settings file. Without --region,
every region of the table is listed.`,
	Run: func(cmd *cobra.Command, args []string) {
		table := band.Default()
		if cfg, err := config.Load(configPath); err == nil {
			if table, err = loadTable(cfg); err != nil {
				glog.Errorf("%s", err)
				exitCode = run.ExitError
				return
			}
		} else {
			glog.V(1).Infof("using the built-in band table: %s", err)
		}
		if err := listBands(cmd.OutOrStdout(), table, bandRegions); err != nil {
			glog.Errorf("%s", err)
			exitCode = run.ExitError
		}
	},
}

func init() {
	bandsCmd.Flags().StringSliceVar(&bandRegions, "region", nil, "Only list this region (repeatable).")
}

func listBands(w io.Writer, table *band.Table, regions []string) error {
	if len(regions) == 0 {
		regions = table.Regions()
	}
	for _, region := range regions {
		bands, err := table.BandsFor([]string{region})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s:\n", region)
		for _, b := range bands {
			fmt.Fprintf(w, "  %-8s %10d %10d  %s\n", b.Provider, b.Start, b.End, b.Key())
		}
	}
	return nil
}
