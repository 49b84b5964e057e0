// Package metrics wires jobs.Scheduler and events.System counters onto
// Prometheus collectors, using github.com/prometheus/client_golang the
// same pull-based way the rest of the ecosystem scrapes a process: a
// Collector's Collect method reads Stats() fresh on every scrape rather
// than a background goroutine pushing updates into gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"oss.nandlabs.io/enginecore/events"
	"oss.nandlabs.io/enginecore/jobs"
	"oss.nandlabs.io/enginecore/queue"
)

// SchedulerCollector exposes a jobs.Scheduler's Stats() as Prometheus
// metrics.
type SchedulerCollector struct {
	scheduler *jobs.Scheduler

	jobsSubmitted      *prometheus.Desc
	jobsCompleted      *prometheus.Desc
	jobsFailed         *prometheus.Desc
	jobsCancelled      *prometheus.Desc
	jobsEvicted        *prometheus.Desc
	syncPointsCreated  *prometheus.Desc
	syncPointsSignaled *prometheus.Desc
	queueLength        *prometheus.Desc
	storageUsage       *prometheus.Desc
	storageInUse       *prometheus.Desc
}

// NewSchedulerCollector builds a collector over scheduler. Register it
// with a prometheus.Registerer to expose it on a scrape endpoint.
func NewSchedulerCollector(scheduler *jobs.Scheduler) *SchedulerCollector {
	return &SchedulerCollector{
		scheduler:          scheduler,
		jobsSubmitted:      prometheus.NewDesc("enginecore_jobs_submitted_total", "Total jobs submitted.", nil, nil),
		jobsCompleted:      prometheus.NewDesc("enginecore_jobs_completed_total", "Total jobs that completed with a Success result.", nil, nil),
		jobsFailed:         prometheus.NewDesc("enginecore_jobs_failed_total", "Total jobs that completed with a Failed result.", nil, nil),
		jobsCancelled:      prometheus.NewDesc("enginecore_jobs_cancelled_total", "Total jobs cancelled before or during execution.", nil, nil),
		jobsEvicted:        prometheus.NewDesc("enginecore_jobs_evicted_total", "Completed-job aging by stage: n1 and n2 count promotions made by BeginFrame, released counts completed job slots reclaimed.", []string{"stage"}, nil),
		syncPointsCreated:  prometheus.NewDesc("enginecore_sync_points_created_total", "Total sync points created.", nil, nil),
		syncPointsSignaled: prometheus.NewDesc("enginecore_sync_points_signaled_total", "Total sync points whose counter reached zero.", nil, nil),
		queueLength:        prometheus.NewDesc("enginecore_job_queue_length", "Current job queue length.", []string{"queue", "priority"}, nil),
		storageUsage:       prometheus.NewDesc("enginecore_job_storage_usage_ratio", "Job storage usage fraction in [0,1], driving backpressure.", nil, nil),
		storageInUse:       prometheus.NewDesc("enginecore_storage_slots_in_use", "Allocated slots in a fixed storage.", []string{"storage"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *SchedulerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobsSubmitted
	ch <- c.jobsCompleted
	ch <- c.jobsFailed
	ch <- c.jobsCancelled
	ch <- c.jobsEvicted
	ch <- c.syncPointsCreated
	ch <- c.syncPointsSignaled
	ch <- c.queueLength
	ch <- c.storageUsage
	ch <- c.storageInUse
}

// Collect implements prometheus.Collector by taking a fresh Stats()
// snapshot on every scrape.
func (c *SchedulerCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.scheduler.Stats()

	ch <- prometheus.MustNewConstMetric(c.jobsSubmitted, prometheus.CounterValue, float64(stats.JobsSubmitted))
	ch <- prometheus.MustNewConstMetric(c.jobsCompleted, prometheus.CounterValue, float64(stats.JobsCompleted))
	ch <- prometheus.MustNewConstMetric(c.jobsFailed, prometheus.CounterValue, float64(stats.JobsFailed))
	ch <- prometheus.MustNewConstMetric(c.jobsCancelled, prometheus.CounterValue, float64(stats.JobsCancelled))
	ch <- prometheus.MustNewConstMetric(c.jobsEvicted, prometheus.CounterValue, float64(stats.JobsEvictedN1), "n1")
	ch <- prometheus.MustNewConstMetric(c.jobsEvicted, prometheus.CounterValue, float64(stats.JobsEvictedN2), "n2")
	ch <- prometheus.MustNewConstMetric(c.jobsEvicted, prometheus.CounterValue, float64(stats.JobsEvictedCompleted), "released")
	ch <- prometheus.MustNewConstMetric(c.syncPointsCreated, prometheus.CounterValue, float64(stats.SyncPointsCreated))
	ch <- prometheus.MustNewConstMetric(c.syncPointsSignaled, prometheus.CounterValue, float64(stats.SyncPointsSignaled))

	for p := 0; p < queue.NumPriorities; p++ {
		priority := queue.Priority(p).String()
		ch <- prometheus.MustNewConstMetric(c.queueLength, prometheus.GaugeValue, float64(stats.WorkerQueueLengths[p]), "worker", priority)
		ch <- prometheus.MustNewConstMetric(c.queueLength, prometheus.GaugeValue, float64(stats.MainThreadQueueLengths[p]), "main_thread", priority)
	}

	ch <- prometheus.MustNewConstMetric(c.storageUsage, prometheus.GaugeValue, stats.BackpressureLevel)
	ch <- prometheus.MustNewConstMetric(c.storageInUse, prometheus.GaugeValue, float64(stats.JobsInUse), "jobs")
	ch <- prometheus.MustNewConstMetric(c.storageInUse, prometheus.GaugeValue, float64(stats.SyncPointsInUse), "sync_points")
}

// EventsCollector exposes an events.System's Stats() as Prometheus metrics.
type EventsCollector struct {
	system *events.System

	emissions           *prometheus.Desc
	eventsProcessed     *prometheus.Desc
	processingTime      *prometheus.Desc
	deferredQueueDepth  *prometheus.Desc
	storageUsage        *prometheus.Desc
}

// NewEventsCollector builds a collector over system.
func NewEventsCollector(system *events.System) *EventsCollector {
	return &EventsCollector{
		system:             system,
		emissions:          prometheus.NewDesc("enginecore_event_emissions_total", "Total events emitted, by routing mode.", []string{"mode"}, nil),
		eventsProcessed:    prometheus.NewDesc("enginecore_events_processed_total", "Total events dispatched to their subscribers.", nil, nil),
		processingTime:     prometheus.NewDesc("enginecore_event_processing_seconds", "Observed per-dispatch processing time.", []string{"stat"}, nil),
		deferredQueueDepth: prometheus.NewDesc("enginecore_event_deferred_queue_depth", "Events queued, awaiting the next ProcessDeferredEvents drain.", nil, nil),
		storageUsage:       prometheus.NewDesc("enginecore_event_storage_usage_ratio", "Event storage usage fraction in [0,1].", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *EventsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.emissions
	ch <- c.eventsProcessed
	ch <- c.processingTime
	ch <- c.deferredQueueDepth
	ch <- c.storageUsage
}

// Collect implements prometheus.Collector.
func (c *EventsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.system.Stats()

	ch <- prometheus.MustNewConstMetric(c.emissions, prometheus.CounterValue, float64(stats.EmissionsImmediate), "immediate")
	ch <- prometheus.MustNewConstMetric(c.emissions, prometheus.CounterValue, float64(stats.EmissionsDeferred), "deferred")
	ch <- prometheus.MustNewConstMetric(c.emissions, prometheus.CounterValue, float64(stats.EmissionsAsync), "async")
	ch <- prometheus.MustNewConstMetric(c.emissions, prometheus.CounterValue, float64(stats.EmissionsLost), "lost")
	ch <- prometheus.MustNewConstMetric(c.eventsProcessed, prometheus.CounterValue, float64(stats.EventsProcessed))
	ch <- prometheus.MustNewConstMetric(c.processingTime, prometheus.GaugeValue, stats.MinProcessingTime.Seconds(), "min")
	ch <- prometheus.MustNewConstMetric(c.processingTime, prometheus.GaugeValue, stats.MaxProcessingTime.Seconds(), "max")
	ch <- prometheus.MustNewConstMetric(c.processingTime, prometheus.GaugeValue, stats.TotalProcessingTime.Seconds(), "total")
	ch <- prometheus.MustNewConstMetric(c.deferredQueueDepth, prometheus.GaugeValue, float64(stats.DeferredQueueDepth))
	ch <- prometheus.MustNewConstMetric(c.storageUsage, prometheus.GaugeValue, stats.StorageUsage)
}

// RegisterDefault registers a SchedulerCollector and EventsCollector, plus
// a static enginecore_build_info gauge, against registry.
func RegisterDefault(registry *prometheus.Registry, scheduler *jobs.Scheduler, system *events.System, version string) error {
	if err := registry.Register(NewSchedulerCollector(scheduler)); err != nil {
		return err
	}
	if err := registry.Register(NewEventsCollector(system)); err != nil {
		return err
	}
	buildInfo := promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: "enginecore_build_info",
		Help: "Static build metadata; the gauge value is always 1.",
	}, []string{"version"})
	buildInfo.WithLabelValues(version).Set(1)
	return nil
}
