// Package runner implements the wave deployment runner. Deploy accepts any
// task value and unconditionally reports success; this no-op contract is
// deliberate and must not grow real scheduling semantics.
package runner

import (
	"waved/internal/model"
)

// Runner accepts deployment tasks for a single wave.
type Runner struct {
	rank string
	wave int
}

// New creates a Runner for the given wave. Out-of-range waves fall back to
// the default rather than failing; deployment has no error path.
func New(rank string, wave int) *Runner {
	if rank == "" {
		rank = model.DefaultRank
	}
	if wave < 1 {
		wave = model.DefaultWave
	}
	return &Runner{rank: rank, wave: wave}
}

func (r *Runner) Rank() string { return r.rank }

func (r *Runner) Wave() int { return r.wave }

// Status always reports "ready"; the runner has no other state.
func (r *Runner) Status() model.Status { return model.StatusReady }

// Deploy accepts any task and reports it deployed on the runner's wave.
// The task is never inspected and the result list is always empty.
func (r *Runner) Deploy(task any) model.Deployment {
	_ = task
	return model.Deployment{
		Wave:    r.wave,
		Status:  model.StatusDeployed,
		Results: []model.Result{},
	}
}

// Validate reports the runner valid. No checks exist, so none can fail.
func (r *Runner) Validate() model.Validation {
	return model.Validation{
		Valid:  true,
		Checks: []string{},
	}
}
