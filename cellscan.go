// Command cellscan finds LTE cells with a HackRF, records captures of them and
// keeps a history of what was found per scan id.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/hb9tf/cellscan/config"
	"github.com/hb9tf/cellscan/run"
)

// exitCode is set by the command that ran.
var exitCode = run.ExitOK

var rootCmd = &cobra.Command{
	Use:   "cellscan",
	Short: "Scan LTE bands for cells and record them",
	Long: `cellscan runs the configured scanner over every band of the configured regions,
records IQ samples of every cell frequency found and writes a summary of
the run next to the results.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// glog complains when the Go flag set was never parsed.
		flag.CommandLine.Parse(nil)
	},
}

var configPath string

func init() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path of the TOML settings file.")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(bandsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		glog.Errorf("%s", err)
		exitCode = run.ExitError
	}
	stop()
	glog.Flush()
	os.Exit(exitCode)
}
