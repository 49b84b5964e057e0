// Package enginecore is the concurrency substrate shared by every subsystem
// of the engine runtime: handle-indexed fixed storage, a priority job
// scheduler built around reference-counted SyncPoint barriers, and an event
// bus that routes by execution mode across both.
//
// The three subsystems are layered:
//
//	import "oss.nandlabs.io/enginecore/handle"  // packed generation-stamped handles
//	import "oss.nandlabs.io/enginecore/storage" // FixedStorage[T], the object pool they index
//	import "oss.nandlabs.io/enginecore/jobs"    // Job, SyncPoint, Scheduler, JobBatch
//	import "oss.nandlabs.io/enginecore/events"  // EventSystem, Event, Subscription
//
// Init brings up the process-wide job scheduler and event system as a pair
// of managed lifecycle components, and Shutdown tears them down in reverse
// order. Application code otherwise talks to the Scheduler and EventSystem
// values directly; enginecore itself owns no other global state.
package enginecore

import (
	"oss.nandlabs.io/enginecore/events"
	"oss.nandlabs.io/enginecore/jobs"
	"oss.nandlabs.io/enginecore/l3"
	"oss.nandlabs.io/enginecore/lifecycle"
	"oss.nandlabs.io/enginecore/semver"
)

var logger = l3.Get()

// Version is the running core's semantic version, bumped on release.
var Version = semver.MustParse("0.1.0")

var (
	components = lifecycle.NewSimpleComponentManager().(*lifecycle.SimpleComponentManager)

	// Scheduler is the process-wide job scheduler, valid after Init.
	Scheduler *jobs.Scheduler

	// Events is the process-wide event system, valid after Init.
	Events *events.System
)

// Config controls the sizing and budgets of the core singletons at Init time.
type Config struct {
	// Jobs configures the job scheduler; see jobs.DefaultConfig for defaults.
	Jobs jobs.Config
	// Events configures the event system; see events.DefaultConfig for defaults.
	Events events.Config
}

// DefaultConfig returns sensible defaults for a 60Hz real-time application.
func DefaultConfig() Config {
	return Config{
		Jobs:   jobs.DefaultConfig(),
		Events: events.DefaultConfig(),
	}
}

// Init brings up the job scheduler and event system as managed components,
// in dependency order (events depends on jobs for its Async dispatch mode).
// It is the single process-wide initializer the core exposes; callers are
// expected to borrow Scheduler/Events rather than construct their own.
func Init(cfg Config) error {
	logger.InfoF("[enginecore] initializing core v%s", Version.String())

	Scheduler = jobs.NewScheduler(cfg.Jobs)
	components.Register(&lifecycle.SimpleComponent{
		CompId: "jobs",
		StartFunc: func() error {
			return Scheduler.Start()
		},
		StopFunc: func() error {
			Scheduler.Shutdown()
			return nil
		},
	})

	Events = events.NewSystem(cfg.Events, Scheduler)
	components.Register(&lifecycle.SimpleComponent{
		CompId: "events",
		StartFunc: func() error {
			return nil
		},
		StopFunc: func() error {
			Events.Shutdown()
			return nil
		},
	})

	if err := components.AddDependency("events", "jobs"); err != nil {
		return err
	}

	if err := components.Start("jobs"); err != nil {
		return err
	}
	return components.Start("events")
}

// Shutdown tears down the event system and job scheduler, in reverse order.
func Shutdown() {
	logger.InfoF("[enginecore] shutting down core")
	_ = components.Stop("events")
	_ = components.Stop("jobs")
}
