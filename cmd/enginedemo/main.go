// Command enginedemo exercises the engine core's job scheduler and event
// system end to end: it brings up the process singletons, fans out a
// batch of worker jobs, emits immediate window events and deferred input
// events, ticks the main-thread loop for a handful of frames, and, when
// --metrics-addr is set, serves its Prometheus metrics before shutting
// down cleanly.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oss.nandlabs.io/enginecore"
	"oss.nandlabs.io/enginecore/cli"
	"oss.nandlabs.io/enginecore/events"
	"oss.nandlabs.io/enginecore/events/appevents"
	"oss.nandlabs.io/enginecore/fnutils"
	"oss.nandlabs.io/enginecore/jobs"
	"oss.nandlabs.io/enginecore/l3"
	"oss.nandlabs.io/enginecore/metrics"
)

var logger = l3.Get()

func main() {
	app := cli.NewCLI()
	app.AddVersion(enginecore.Version.String())
	runCmd := cli.NewCommand("run", "run the demo frame loop", enginecore.Version.String(), runAction)
	runCmd.Flags = append(runCmd.Flags,
		&cli.Flag{Name: "frames", Usage: "number of frames to simulate", Default: "10"},
		&cli.Flag{Name: "metrics-addr", Usage: "address to serve /metrics on, empty to disable", Default: ""},
	)
	app.AddCommand(runCmd)
	if err := app.Execute(); err != nil {
		logger.ErrorF("[enginedemo] %v", err)
		os.Exit(1)
	}
}

func runAction(ctx *cli.Context) error {
	frames := 10
	if raw, ok := ctx.GetFlag("frames"); ok && raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			frames = n
		}
	}
	metricsAddr := ""
	if raw, ok := ctx.GetFlag("metrics-addr"); ok {
		metricsAddr = raw
	}

	if err := enginecore.Init(enginecore.DefaultConfig()); err != nil {
		return fmt.Errorf("init core: %w", err)
	}
	defer enginecore.Shutdown()

	registry := prometheus.NewRegistry()
	if err := metrics.RegisterDefault(registry, enginecore.Scheduler, enginecore.Events, enginecore.Version.String()); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.ErrorF("[enginedemo] metrics server: %v", err)
			}
		}()
		defer server.Close()
	}

	unsubClose := events.Subscribe(enginecore.Events, func(e appevents.WindowClose) {
		logger.InfoF("[enginedemo] window close requested")
	})
	defer unsubClose.Unsubscribe()

	unsubResize := events.Subscribe(enginecore.Events, func(e appevents.WindowResized) {
		logger.InfoF("[enginedemo] window resized to %s", e.String())
	})
	defer unsubResize.Unsubscribe()

	unsubMoved := events.Subscribe(enginecore.Events, func(e appevents.WindowMoved) {
		logger.InfoF("[enginedemo] window moved: %s", e.String())
	})
	defer unsubMoved.Unsubscribe()

	unsubKey := events.Subscribe(enginecore.Events, func(e appevents.KeyPressed) {
		logger.InfoF("[enginedemo] key pressed: %s", e.String())
	})
	defer unsubKey.Unsubscribe()

	events.Emit(enginecore.Events, appevents.WindowResized{Width: 1280, Height: 720})

	go func() {
		if err := fnutils.ExecuteAfter(func() {
			logger.InfoF("[enginedemo] halfway through the demo run")
		}, time.Duration(frames/2)*16*time.Millisecond); err != nil {
			logger.WarnF("[enginedemo] halfway notice: %v", err)
		}
	}()

	for frame := 0; frame < frames; frame++ {
		runFrame(frame)
		time.Sleep(16 * time.Millisecond)
	}

	events.Emit(enginecore.Events, appevents.WindowClose{})
	return nil
}

// runFrame submits a small fan-out batch of worker jobs, emits two
// deferred input events, and drains both the main-thread job queue and the
// deferred event queue the way an application's frame loop would.
func runFrame(frame int) {
	batch := jobs.NewJobBatch(enginecore.Scheduler, fmt.Sprintf("frame-%d", frame))
	for i := 0; i < 4; i++ {
		i := i
		batch.Add(func(ctx context.Context) jobs.Result {
			logger.DebugF("[enginedemo] frame %d: worker job %d", frame, i)
			return jobs.SucceededResult()
		}, jobs.PriorityNormal, "frame-work", jobs.Any())
	}

	events.Emit(enginecore.Events, appevents.MouseMoved{X: uint32(frame), Y: uint32(frame * 2)})
	events.Emit(enginecore.Events, appevents.KeyPressed{KeyCode: 32, RepeatCount: frame % 3})

	batch.Wait()

	enginecore.Scheduler.BeginFrame()
	enginecore.Scheduler.ProcessMainThreadJobs(2 * time.Millisecond)
	enginecore.Events.BeginFrame()
	enginecore.Events.ProcessDeferredEvents(2 * time.Millisecond)
}
