package scan

import "time"

// Summary is the record of a whole run.
type Summary struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	ScanID      string        `json:"scan_id" yaml:"scan_id"`
	Dir         string        `json:"dir" yaml:"dir"`
	Started     time.Time     `json:"started" yaml:"started"`
	Ended       time.Time     `json:"ended" yaml:"ended"`
	Results     []*Result     `json:"results" yaml:"results"`
	Skipped     []Job         `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Counts      map[State]int `json:"counts" yaml:"counts"`
	Aborted     bool          `json:"aborted" yaml:"aborted"`
	AbortReason string        `json:"abort_reason,omitempty" yaml:"abort_reason,omitempty"`
}

// Add appends a result. Results keep the order they were added in.
func (s *Summary) Add(r *Result) {
	s.Results = append(s.Results, r)
}

// Finalize stamps the end time and computes the per state counts.
func (s *Summary) Finalize(end time.Time) {
	s.Ended = end
	s.Counts = map[State]int{}
	for _, r := range s.Results {
		s.Counts[r.Status]++
	}
	if len(s.Skipped) > 0 {
		s.Counts[StateSkipped] += len(s.Skipped)
	}
}

// Failures counts results in a failed terminal state.
func (s *Summary) Failures() int {
	n := 0
	for _, r := range s.Results {
		if r.Status.Failed() {
			n++
		}
	}
	return n
}

// Cells returns the cells found by all jobs in result order.
func (s *Summary) Cells() []Cell {
	var cells []Cell
	for _, r := range s.Results {
		cells = append(cells, r.Cells...)
	}
	return cells
}

// Succeeded reports whether the run completed and every executed job is done.
func (s *Summary) Succeeded() bool {
	if s.Aborted {
		return false
	}
	for _, r := range s.Results {
		if r.Status != StateDone && r.Status != StateSkipped {
			return false
		}
	}
	return true
}
