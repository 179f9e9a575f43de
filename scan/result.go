package scan

import (
	"fmt"
	"time"
)

type State string

const (
	StatePending      State = "pending"
	StateScanning     State = "scanning"
	StateRecording    State = "recording"
	StateDone         State = "done"
	StateScanFailed   State = "scan_failed"
	StateRecordFailed State = "record_failed"
	StateTimedOut     State = "timed_out"
	StateCancelled    State = "cancelled"
	StateSkipped      State = "skipped"
)

// States lists every state in display order.
var States = []State{
	StatePending, StateScanning, StateRecording,
	StateDone, StateScanFailed, StateRecordFailed, StateTimedOut, StateCancelled, StateSkipped,
}

var transitions = map[State][]State{
	StatePending:   {StateScanning, StateRecording, StateSkipped, StateCancelled},
	StateScanning:  {StateRecording, StateDone, StateScanFailed, StateTimedOut, StateCancelled},
	StateRecording: {StateDone, StateRecordFailed, StateTimedOut, StateCancelled},
}

func (s State) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// Failed reports whether s is a terminal state other than done or skipped.
func (s State) Failed() bool {
	switch s {
	case StateScanFailed, StateRecordFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

func (s State) can(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Phase records one subprocess invocation.
type Phase struct {
	Name     string    `json:"name" yaml:"name"`
	Args     []string  `json:"args" yaml:"args"`
	Attempt  int       `json:"attempt" yaml:"attempt"`
	ExitCode int       `json:"exit_code" yaml:"exit_code"`
	Started  time.Time `json:"started" yaml:"started"`
	Ended    time.Time `json:"ended" yaml:"ended"`
	Error    string    `json:"error,omitempty" yaml:"error,omitempty"`
}

type Transition struct {
	State State     `json:"state" yaml:"state"`
	At    time.Time `json:"at" yaml:"at"`
}

// Result is the outcome of one Job.
type Result struct {
	Job         Job          `json:"job" yaml:"job"`
	Status      State        `json:"status" yaml:"status"`
	Message     string       `json:"message,omitempty" yaml:"message,omitempty"`
	Phases      []Phase      `json:"phases,omitempty" yaml:"phases,omitempty"`
	LogFile     string       `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	Artifacts   []string     `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Cells       []Cell       `json:"cells,omitempty" yaml:"cells,omitempty"`
	Started     time.Time    `json:"started" yaml:"started"`
	Ended       time.Time    `json:"ended" yaml:"ended"`
	Transitions []Transition `json:"transitions" yaml:"transitions"`
}

func NewResult(job Job) *Result {
	now := time.Now()
	return &Result{
		Job:         job,
		Status:      StatePending,
		Started:     now,
		Transitions: []Transition{{State: StatePending, At: now}},
	}
}

// Advance moves the result to the next state. Terminal states set Ended.
func (r *Result) Advance(to State) error {
	if !r.Status.can(to) {
		return fmt.Errorf("%s: illegal transition %s -> %s", r.Job, r.Status, to)
	}
	now := time.Now()
	r.Status = to
	r.Transitions = append(r.Transitions, Transition{State: to, At: now})
	if to.Terminal() {
		r.Ended = now
	}
	return nil
}

// Finish moves the result into a terminal state with a message.
func (r *Result) Finish(to State, format string, args ...any) error {
	if err := r.Advance(to); err != nil {
		return err
	}
	r.Message = fmt.Sprintf(format, args...)
	return nil
}
