package main

import (
	"flag"
	"fmt"
	"log/syslog"
	"strings"

	"github.com/golang/glog"

	"github.com/hb9tf/cellscan/scan"
)

type logOptions struct {
	Level         string
	DisableStdout bool
	DisableFile   bool
	Syslog        bool
	Dir           string
}

var logLevels = map[string]string{
	"debug":   "2",
	"info":    "1",
	"warning": "0",
	"error":   "0",
}

// glogFlags maps o to glog flag values. changed reports whether a flag was set
// on the command line; such flags keep their value unless o overrides them.
func (o logOptions) glogFlags(changed func(name string) bool) (map[string]string, error) {
	flags := map[string]string{}
	if o.Level != "" {
		v, ok := logLevels[strings.ToLower(o.Level)]
		if !ok {
			return nil, fmt.Errorf("unknown log level %q, pick one of: debug, info, warning, error", o.Level)
		}
		flags["v"] = v
		if strings.EqualFold(o.Level, "error") {
			flags["stderrthreshold"] = "ERROR"
		}
	}
	switch {
	case o.DisableFile && o.DisableStdout:
		// glog always writes somewhere; keep only fatal messages on stderr.
		flags["logtostderr"] = "true"
		flags["v"] = "0"
		flags["stderrthreshold"] = "FATAL"
	case o.DisableFile:
		flags["logtostderr"] = "true"
	case o.DisableStdout:
		flags["alsologtostderr"] = "false"
		flags["stderrthreshold"] = "FATAL"
	default:
		if !changed("alsologtostderr") {
			flags["alsologtostderr"] = "true"
		}
	}
	if o.Dir != "" {
		flags["log_dir"] = o.Dir
	}
	return flags, nil
}

func (o logOptions) apply(changed func(name string) bool) error {
	flags, err := o.glogFlags(changed)
	if err != nil {
		return err
	}
	for name, value := range flags {
		if err := flag.Set(name, value); err != nil {
			return fmt.Errorf("unable to set log flag %s=%s: %s", name, value, err)
		}
	}
	return nil
}

// syslogger is the subset of *syslog.Writer used to report job results.
type syslogger interface {
	Info(string) error
	Warning(string) error
}

func openSyslog() (*syslog.Writer, error) {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, "cellscan")
	if err != nil {
		return nil, fmt.Errorf("unable to connect to syslog: %s", err)
	}
	return w, nil
}

// resultLogger returns an OnResult hook writing one line per finished job.
func resultLogger(w syslogger) func(*scan.Result) {
	return func(r *scan.Result) {
		msg := fmt.Sprintf("%s %s: %s", r.Job.Key(), r.Status, r.Message)
		var err error
		if r.Status.Failed() {
			err = w.Warning(msg)
		} else {
			err = w.Info(msg)
		}
		if err != nil {
			glog.Warningf("unable to write to syslog: %s\n", err)
		}
	}
}
