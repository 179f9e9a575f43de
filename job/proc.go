package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/cellscan/scan"
)

// waitDelay bounds how long output is drained after the process was killed.
const waitDelay = 5 * time.Second

var (
	errTimeout = errors.New("wall clock timeout")
	errIdle    = errors.New("idle timeout")
)

type outcome int

const (
	outcomeOK outcome = iota
	outcomeFailed
	outcomeTimedOut
	outcomeCancelled
)

func (o outcome) String() string {
	switch o {
	case outcomeOK:
		return "ok"
	case outcomeFailed:
		return "failed"
	case outcomeTimedOut:
		return "timed out"
	case outcomeCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// command describes one subprocess invocation.
type command struct {
	name    string
	bin     string
	args    []string
	timeout time.Duration
	idle    time.Duration
	// feed receives every complete output line.
	feed func(string)
}

func (c command) String() string {
	return strings.Join(append([]string{c.bin}, c.args...), " ")
}

// lineWriter copies output to the job log and hands complete lines to feed.
type lineWriter struct {
	out   io.Writer
	feed  func(string)
	touch func()
	buf   []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	if w.touch != nil {
		w.touch()
	}
	if _, err := w.out.Write(p); err != nil {
		return 0, err
	}
	if w.feed == nil {
		return len(p), nil
	}
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.feed(string(bytes.TrimRight(w.buf[:i], "\r")))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if w.feed != nil && len(w.buf) > 0 {
		w.feed(string(w.buf))
	}
	w.buf = nil
}

// execute runs c once. The process gets its own process group which is killed
// when the timeout expires, the output stays idle too long or ctx is cancelled.
// The process is always waited for before execute returns.
func execute(ctx context.Context, c command, log io.Writer, p *scan.Phase) outcome {
	parent := ctx
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if c.timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeoutCause(ctx, c.timeout, errTimeout)
		defer stop()
	}

	w := &lineWriter{out: log, feed: c.feed}
	if c.idle > 0 {
		timer := time.AfterFunc(c.idle, func() { cancel(errIdle) })
		defer timer.Stop()
		w.touch = func() { timer.Reset(c.idle) }
	}

	cmd := exec.CommandContext(ctx, c.bin, c.args...)
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	p.Started = time.Now()
	p.ExitCode = -1
	defer func() { p.Ended = time.Now() }()

	glog.Infof("Running %s: %q\n", c.name, cmd)
	if err := cmd.Start(); err != nil {
		p.Error = fmt.Sprintf("unable to start %s: %s", c.bin, err)
		return outcomeFailed
	}
	err := cmd.Wait()
	w.flush()
	// Stragglers that left the process running in the background go too.
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)

	if cmd.ProcessState != nil {
		p.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case parent.Err() != nil:
		p.Error = fmt.Sprintf("cancelled: %s", context.Cause(parent))
		return outcomeCancelled
	case errors.Is(context.Cause(ctx), errTimeout):
		p.Error = fmt.Sprintf("killed after %s", c.timeout)
		return outcomeTimedOut
	case errors.Is(context.Cause(ctx), errIdle):
		p.Error = fmt.Sprintf("killed after %s without output", c.idle)
		return outcomeTimedOut
	case err == nil, errors.Is(err, exec.ErrWaitDelay) && p.ExitCode == 0:
		return outcomeOK
	}
	p.Error = err.Error()
	return outcomeFailed
}
