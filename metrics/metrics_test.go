package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"oss.nandlabs.io/enginecore/events"
	"oss.nandlabs.io/enginecore/jobs"
)

func TestRegisterDefaultGathersWithoutError(t *testing.T) {
	scheduler := jobs.NewScheduler(jobs.Config{MaxJobs: 8, MaxSyncPoints: 8, WorkerCount: 1})
	system := events.NewSystem(events.DefaultConfig(), scheduler)

	registry := prometheus.NewRegistry()
	if err := RegisterDefault(registry, scheduler, system, "test"); err != nil {
		t.Fatalf("RegisterDefault() error: %v", err)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"enginecore_jobs_submitted_total",
		"enginecore_event_emissions_total",
		"enginecore_build_info",
	} {
		if !names[want] {
			t.Errorf("Gather() missing metric family %q", want)
		}
	}
}
