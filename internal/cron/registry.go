package cron

import (
	"context"
	"sort"
)

// Trigger targets. A target names the group of jobs a fire-and-forget trigger runs.
const (
	TargetAlways     = "always"
	TargetSettlement = "settlement"
	TargetRates      = "rates"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry tracks registered cron jobs and the targets that select them.
type Registry struct {
	jobs    []Job
	targets map[string][]Job
}

// NewRegistry builds a registry preloaded with jobs that only run on the schedule.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{targets: map[string][]Job{}}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job to the scheduled cycle and to every listed target.
func (r *Registry) Register(job Job, targets ...string) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
	for _, target := range targets {
		r.targets[target] = append(r.targets[target], job)
	}
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// ForTarget returns the jobs registered under target, or nil when it is unknown.
func (r *Registry) ForTarget(target string) []Job {
	listed, ok := r.targets[target]
	if !ok {
		return nil
	}
	jobs := make([]Job, len(listed))
	copy(jobs, listed)
	return jobs
}

// Targets lists the known targets.
func (r *Registry) Targets() []string {
	out := make([]string, 0, len(r.targets))
	for target := range r.targets {
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}
