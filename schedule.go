package main

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/hb9tf/cellscan/run"
)

var (
	scheduleSpec string
	scheduleOpts runOptions
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Repeat runs on a cron schedule until interrupted",
	Long: `Repeat runs on a standard five field cron schedule. A run that is still going
when the next one is due makes the scheduler skip that slot, so only one run uses
the radio at a time.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := scheduleOpts.Log.apply(cmd.Flags().Changed); err != nil {
			glog.Errorf("%s", err)
			exitCode = run.ExitError
			return
		}
		exitCode = schedule(cmd.Context(), scheduleSpec, func(ctx context.Context) int {
			return runScan(ctx, configPath, scheduleOpts)
		})
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleSpec, "cron", "", "Cron schedule, e.g. \"0 */6 * * *\".")
	scheduleCmd.MarkFlagRequired("cron")
	addRunFlags(scheduleCmd, &scheduleOpts)
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// glogPrintf feeds cron's logger into glog.
type glogPrintf struct{}

func (glogPrintf) Printf(format string, args ...interface{}) {
	glog.V(1).Infof(format, args...)
}

// schedule calls runOnce on every tick of spec until ctx is done.
func schedule(ctx context.Context, spec string, runOnce func(context.Context) int) int {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		glog.Errorf("invalid cron schedule %q: %s", spec, err)
		return run.ExitError
	}

	logger := cron.PrintfLogger(glogPrintf{})
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	runs := 0
	if _, err := c.AddFunc(spec, func() {
		runs++
		code := runOnce(ctx)
		glog.Infof("scheduled run %d finished with exit code %d", runs, code)
	}); err != nil {
		glog.Errorf("unable to schedule runs: %s", err)
		return run.ExitError
	}

	c.Start()
	glog.Infof("scheduled runs on %q, next at %s", spec, sched.Next(time.Now()).Format(time.RFC3339))
	<-ctx.Done()
	// Wait for a run in progress to wind down.
	<-c.Stop().Done()
	return run.ExitOK
}
