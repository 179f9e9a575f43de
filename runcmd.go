package main

import (
	"context"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/hb9tf/cellscan/band"
	"github.com/hb9tf/cellscan/config"
	"github.com/hb9tf/cellscan/export"
	"github.com/hb9tf/cellscan/filter"
	"github.com/hb9tf/cellscan/hackrf"
	"github.com/hb9tf/cellscan/job"
	"github.com/hb9tf/cellscan/plan"
	"github.com/hb9tf/cellscan/run"
)

type runOptions struct {
	ValidateOnly bool
	Fast         bool
	Log          logOptions

	Providers []string
	MinFreq   int64
	MaxFreq   int64

	YAML    bool
	Chart   bool
	Metrics bool
	Server  string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan all configured bands once",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runOpts.Log.apply(cmd.Flags().Changed); err != nil {
			glog.Errorf("%s", err)
			exitCode = run.ExitError
			return
		}
		exitCode = runScan(cmd.Context(), configPath, runOpts)
	},
}

func addRunFlags(cmd *cobra.Command, o *runOptions) {
	f := cmd.Flags()
	f.BoolVar(&o.ValidateOnly, "validate-config", false, "Only validate the settings file and exit.")
	f.BoolVar(&o.Fast, "fast-scan", false, "Only revisit cells found by earlier runs of this scan id.")
	f.StringVar(&o.Log.Level, "loglevel", "", "Log level (one of: debug, info, warning, error).")
	f.BoolVar(&o.Log.DisableStdout, "disable-log-stdout", false, "Do not log to the terminal.")
	f.BoolVar(&o.Log.DisableFile, "disable-log-file", false, "Do not write log files.")
	f.BoolVar(&o.Log.Syslog, "log-syslog", false, "Report job results to the local syslog daemon.")
	f.StringVar(&o.Log.Dir, "log-dir", "", "Directory for log files.")
	f.StringSliceVar(&o.Providers, "provider", nil, "Only scan bands of this provider (repeatable).")
	f.Int64Var(&o.MinFreq, "min-freq", 0, "Skip bands entirely below this frequency in Hz.")
	f.Int64Var(&o.MaxFreq, "max-freq", 0, "Skip bands entirely above this frequency in Hz.")
	f.BoolVar(&o.YAML, "yaml", false, "Also write the summary as YAML.")
	f.BoolVar(&o.Chart, "chart", false, "Render a PNG chart of the run.")
	f.BoolVar(&o.Metrics, "metrics", false, "Write node exporter textfile metrics.")
	f.StringVar(&o.Server, "server", "", "Base URL of a status server to submit the summary to.")
}

func init() {
	addRunFlags(runCmd, &runOpts)
}

// filters builds the band filters selected on the command line.
func (o runOptions) filters() ([]filter.Filterer, error) {
	var filters []filter.Filterer
	if len(o.Providers) > 0 {
		fp := &filter.FilterProvider{}
		for _, name := range o.Providers {
			p := band.Provider(name)
			if !p.Valid() {
				return nil, fmt.Errorf("unknown provider %q", name)
			}
			fp.Providers = append(fp.Providers, p)
		}
		filters = append(filters, fp)
	}
	if o.MinFreq > 0 || o.MaxFreq > 0 {
		if o.MaxFreq > 0 && o.MinFreq > o.MaxFreq {
			return nil, fmt.Errorf("min-freq %d is above max-freq %d", o.MinFreq, o.MaxFreq)
		}
		filters = append(filters, &filter.FilterFreq{FreqLow: o.MinFreq, FreqHigh: o.MaxFreq})
	}
	return filters, nil
}

func loadTable(cfg *config.ScanConfig) (*band.Table, error) {
	if cfg.Search.ScanConfig == "" {
		return band.Default(), nil
	}
	return band.Load(cfg.Search.ScanConfig)
}

func toolsFor(cfg *config.ScanConfig) hackrf.Tools {
	return hackrf.Tools{
		Scanner:     cfg.Tools.Scanner,
		Recorder:    cfg.Tools.Recorder,
		Info:        cfg.Tools.Info,
		ScannerGain: cfg.Tools.ScannerGain,
	}
}

// runScan performs one complete run and returns the process exit code.
func runScan(ctx context.Context, path string, o runOptions) int {
	cfg, err := config.Load(path)
	if err != nil {
		glog.Errorf("%s", err)
		return run.ExitError
	}
	if o.ValidateOnly {
		fmt.Printf("%s is valid\n", path)
		return run.ExitOK
	}

	table, err := loadTable(cfg)
	if err != nil {
		glog.Errorf("%s", err)
		return run.ExitError
	}
	bands, err := table.BandsFor(cfg.General.Regions)
	if err != nil {
		glog.Errorf("%s", err)
		return run.ExitError
	}
	filters, err := o.filters()
	if err != nil {
		glog.Errorf("%s", err)
		return run.ExitError
	}
	if len(filters) > 0 {
		all := len(bands)
		bands = filter.Filter(bands, filters)
		glog.Infof("filters kept %d of %d band(s)", len(bands), all)
	}

	// The default sqlite history lives in the scan directory.
	if err := os.MkdirAll(cfg.SearchDir(), 0o755); err != nil {
		glog.Errorf("unable to create results directory: %s", err)
		return run.ExitAborted
	}
	store, err := export.Open(cfg.History.Driver, cfg.HistoryDSN())
	if err != nil {
		glog.Errorf("%s", err)
		return run.ExitError
	}
	defer store.Close()

	p, err := plan.New(store, o.Fast).Plan(ctx, cfg, bands)
	if err != nil {
		glog.Errorf("%s", err)
		return run.ExitError
	}
	if cfg.Matlab.Enable {
		glog.Infof("matlab post-processing is enabled; run it on %s once the scan is done", cfg.RecordDir())
	}

	tools := toolsFor(cfg)
	orch := &run.Orchestrator{
		Runner:    job.New(tools, cfg.Tools.Retries),
		Exporters: exporters(store, o),
	}
	if cfg.Tools.Preflight {
		orch.Preflight = func(ctx context.Context) error {
			out, err := tools.Preflight(ctx, cfg.Search.Enable, cfg.Record.Enable)
			glog.V(1).Infof("preflight:\n%s", out)
			return err
		}
	}
	if o.Log.Syslog {
		w, err := openSyslog()
		if err != nil {
			glog.Warningf("%s\n", err)
		} else {
			defer w.Close()
			orch.OnResult = resultLogger(w)
		}
	}

	s, err := orch.Execute(ctx, p)
	if err != nil {
		glog.Errorf("%s", err)
	}
	return run.ExitCode(s, err)
}

// exporters lists the summary sinks in order. summary.json comes first as the
// primary record of the run.
func exporters(store *export.SQL, o runOptions) []run.Exporter {
	list := []run.Exporter{&export.JSON{}, store, &export.CSV{}}
	if o.YAML {
		list = append(list, &export.YAML{})
	}
	if o.Chart {
		list = append(list, &export.PNG{})
	}
	if o.Metrics {
		list = append(list, &export.Metrics{})
	}
	if o.Server != "" {
		list = append(list, &export.Server{Server: o.Server})
	}
	return append(list, &export.Terminal{})
}
