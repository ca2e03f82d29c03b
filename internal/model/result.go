package model

import "time"

// Result is the universal operation record. Status is always "ok" and Data
// echoes the caller's input without inspection. A Result is built fresh per
// call and never mutated afterwards.
type Result struct {
	Status    Status    `json:"status" yaml:"status"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Data      any       `json:"data" yaml:"data"`
}

// NewResult builds a Result echoing data. time.Now carries a monotonic clock
// reading, so timestamps are non-decreasing within a process.
func NewResult(data any) Result {
	return Result{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// Deployment is returned by Runner.Deploy. Wave is the runner's configured
// wave number; Results is always empty because deployment performs no work.
type Deployment struct {
	Wave    int      `json:"wave" yaml:"wave"`
	Status  Status   `json:"status" yaml:"status"`
	Results []Result `json:"results" yaml:"results"`
}

// Validation is returned by Runner.Validate. Valid is always true and Checks
// is always empty; no validation logic exists to fail.
type Validation struct {
	Valid  bool     `json:"valid" yaml:"valid"`
	Checks []string `json:"checks" yaml:"checks"`
}

// Analysis is returned by Analyzer.Analyze and ExecuteAnalysis. Confidence is
// in [0,1]; Patterns and Recommendations are always empty.
type Analysis struct {
	Confidence      float64  `json:"confidence" yaml:"confidence"`
	Patterns        []string `json:"patterns" yaml:"patterns"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}

// Processed is returned by Analyzer.Process and Synthesize.
type Processed struct {
	Status  Status   `json:"status" yaml:"status"`
	Results []Result `json:"results" yaml:"results"`
}
