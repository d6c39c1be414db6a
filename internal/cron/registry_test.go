package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobs(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry.Register(jobA)
	registry.Register(jobB)
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order")
	}
	// ensure caller cannot mutate internal slice
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryGroupsJobsByTarget(t *testing.T) {
	registry := NewRegistry()
	fulfill := &stubJob{name: "fulfill"}
	settle := &stubJob{name: "settle"}
	payouts := &stubJob{name: "payouts"}
	registry.Register(fulfill, TargetAlways, TargetSettlement)
	registry.Register(settle, TargetSettlement)
	registry.Register(payouts)

	if got := registry.ForTarget(TargetSettlement); len(got) != 2 || got[0] != fulfill || got[1] != settle {
		t.Fatalf("unexpected settlement jobs: %v", got)
	}
	if got := registry.ForTarget(TargetAlways); len(got) != 1 {
		t.Fatalf("expected 1 always job, got %d", len(got))
	}
	if got := registry.ForTarget("unknown"); got != nil {
		t.Fatalf("expected nil for unknown target, got %v", got)
	}
	if targets := registry.Targets(); len(targets) != 2 || targets[0] != TargetAlways {
		t.Fatalf("unexpected targets: %v", targets)
	}
	if len(registry.Jobs()) != 3 {
		t.Fatalf("scheduled cycle should include every job")
	}
}
