package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smazurov/edgeviewer/internal/api"
	"github.com/smazurov/edgeviewer/internal/capture"
	"github.com/smazurov/edgeviewer/internal/config"
	"github.com/smazurov/edgeviewer/internal/devices"
	"github.com/smazurov/edgeviewer/internal/display"
	"github.com/smazurov/edgeviewer/internal/edges"
	"github.com/smazurov/edgeviewer/internal/events"
	"github.com/smazurov/edgeviewer/internal/frame"
	"github.com/smazurov/edgeviewer/internal/gate"
	"github.com/smazurov/edgeviewer/internal/led"
	"github.com/smazurov/edgeviewer/internal/logging"
	"github.com/smazurov/edgeviewer/internal/metrics"
	"github.com/smazurov/edgeviewer/internal/metrics/exporters"
	"github.com/smazurov/edgeviewer/internal/pipeline"
	"github.com/smazurov/edgeviewer/internal/relay"
	"github.com/smazurov/edgeviewer/internal/snapshot"
	"github.com/smazurov/edgeviewer/internal/systemd"
)

// app owns every long-lived component of the serve command.
type app struct {
	opts   *Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup

	bus          *events.Bus
	source       capture.Source
	gate         *gate.Gate
	pipeline     *pipeline.Pipeline
	displayRelay *relay.Relay[display.Payload]
	networkRelay *relay.Relay[snapshot.Payload]
	sink         *display.Sink
	renderer     *display.Renderer
	memory       *display.MemorySurface
	x11          *display.X11Surface
	server       *api.Server
	watcher      *config.Watcher[config.Runtime]
	exporter     *exporters.SSEExporter
	notifier     *systemd.Notifier
	leds         *led.Manager
}

func newApp(opts *Options, logger *slog.Logger) *app {
	ctx, cancel := context.WithCancel(context.Background())
	return &app{
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// build wires the components without starting any goroutines.
func (a *app) build() error {
	o := a.opts

	mode, err := snapshot.ParseMode(o.SnapshotMode)
	if err != nil {
		return err
	}

	a.bus = events.New()
	a.notifier = systemd.NewNotifier(logging.GetLogger("systemd"))

	lister := devices.NewLister(logging.GetLogger("devices"))
	device := o.CaptureDevice
	if capture.Kind(strings.ToLower(o.CaptureSource)) == capture.KindV4L2 {
		// Stable IDs from /api/devices survive re-enumeration
		if device, err = lister.Resolve(device); err != nil {
			return fmt.Errorf("capture: %w", err)
		}
	}

	a.source, err = capture.NewSource(capture.Config{
		Kind:   capture.Kind(o.CaptureSource),
		Device: device,
		File:   o.CaptureFile,
		Loop:   o.CaptureLoop,
		Width:  o.CaptureWidth,
		Height: o.CaptureHeight,
		FPS:    o.CaptureFPS,
	}, logging.GetLogger("capture"))
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	a.gate = gate.New(edges.NewDefault(), o.EdgeDetection, logging.GetLogger("gate"))
	a.networkRelay = relay.New[snapshot.Payload]()

	pool := &frame.SlicePool{}
	pipeOpts := pipeline.Options{
		Gate: a.gate,
		Encoder: snapshot.NewEncoder(snapshot.Options{
			Mode:     mode,
			Quality:  o.SnapshotQuality,
			MaxWidth: o.SnapshotMaxWidth,
		}),
		Network:  a.networkRelay,
		Pool:     pool,
		EventBus: a.bus,
		Logger:   logging.GetLogger("pipeline"),
	}

	if err := a.buildDisplay(pool); err != nil {
		return err
	}
	if a.renderer != nil {
		pipeOpts.Display = a.displayRelay
		pipeOpts.OnDisplayPublish = a.renderer.RequestRedraw
	}
	a.pipeline = pipeline.New(pipeOpts)

	apiOpts := &api.Options{
		AuthUsername: o.AuthUsername,
		AuthPassword: o.AuthPassword,
		Pipeline:     a.pipeline,
		Gate:         a.gate,
		Snapshots:    a.networkRelay,
		EventBus:     a.bus,
		Capture:      a.source,
		NetworkRelay: a.networkRelay,
		Devices:      lister,
	}
	if a.sink != nil {
		apiOpts.Display = a.sink
		apiOpts.DisplayRelay = a.displayRelay
	}
	if a.memory != nil {
		apiOpts.DisplayImage = a.memory.Image
	}
	if o.MetricsEnabled {
		apiOpts.PrometheusHandler = exporters.HTTPHandler()
		a.registerMetrics()
	}
	a.server = api.NewServer(apiOpts)
	a.exporter = exporters.NewSSEExporter(a.bus)
	if o.LEDEnabled {
		ledLogger := logging.GetLogger("led")
		a.leds = led.NewManager(led.New(ledLogger), a.bus, ledLogger)
	}

	if o.Config != "" {
		a.watcher = config.NewWatcher(o.Config, config.LoadRuntime, logging.GetLogger("config"))
		a.watcher.OnReload(a.applyRuntime)
	}
	return nil
}

func (a *app) buildDisplay(pool *frame.SlicePool) error {
	var surface display.Surface
	switch strings.ToLower(a.opts.DisplayBackend) {
	case "none", "":
		return nil
	case "memory":
		a.memory = display.NewMemorySurface()
		surface = a.memory
	case "x11":
		x, err := display.NewX11Surface(a.opts.DisplayTitle, logging.GetLogger("display"))
		if err != nil {
			return fmt.Errorf("display: %w", err)
		}
		a.x11 = x
		surface = x
	default:
		return fmt.Errorf("unknown display backend %q", a.opts.DisplayBackend)
	}

	// Overwritten and uploaded copies go back to the pool
	a.displayRelay = relay.New(relay.WithDiscard(func(p display.Payload) { pool.Put(p.Pix) }))
	a.sink = display.NewSink(a.displayRelay, surface,
		display.WithRecycle(pool.Put),
		display.WithLogger(logging.GetLogger("display")))
	a.renderer = display.NewRenderer(a.sink, surface, logging.GetLogger("display"))
	return nil
}

func (a *app) registerMetrics() {
	register := func(subsystem, name, help string, labels prometheus.Labels, fn func() float64) {
		if err := metrics.RegisterCounterFunc(subsystem, name, help, labels, fn); err != nil {
			a.logger.Warn("Failed to register metric", "name", name, "error", err)
		}
	}

	src := prometheus.Labels{"source": a.source.Name()}
	register("capture", "frames_produced_total", "Frames read from the capture source", src,
		func() float64 { return float64(a.source.Stats().Produced) })
	register("capture", "frames_dropped_total", "Frames replaced before the pipeline took them", src,
		func() float64 { return float64(a.source.Stats().Dropped) })

	net := prometheus.Labels{"relay": "network"}
	register("relay", "overwritten_total", "Values replaced before a consumer took them", net,
		func() float64 { return float64(a.networkRelay.Stats().Overwritten) })
	if a.displayRelay != nil {
		disp := prometheus.Labels{"relay": "display"}
		register("relay", "overwritten_total", "Values replaced before a consumer took them", disp,
			func() float64 { return float64(a.displayRelay.Stats().Overwritten) })
		register("display", "uploads_total", "Frames uploaded to the display surface", nil,
			func() float64 { return float64(a.sink.Stats().Uploads) })
	}
}

// applyRuntime applies a reloaded config file.
func (a *app) applyRuntime(rt config.Runtime) {
	if rt.EdgeDetection != nil {
		a.pipeline.SetEdgeDetection(*rt.EdgeDetection, "config")
	}
	if err := logging.SetLevel("global", rt.Logging.Level); err != nil {
		a.logger.Warn("Ignoring logging level", "error", err)
	}
	for module, level := range rt.Logging.Modules {
		if err := logging.SetLevel(module, level); err != nil {
			a.logger.Warn("Ignoring module logging level", "module", module, "error", err)
		}
	}
}

func (a *app) publishCapture(state string, err error) {
	ev := events.CaptureStateEvent{
		Source:    a.source.Name(),
		State:     state,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	a.bus.Publish(ev)
}

// run starts everything and blocks until stop is called or a component
// fails. A returned error is fatal.
func (a *app) run() error {
	defer close(a.done)

	if err := a.build(); err != nil {
		return err
	}
	ctx := a.ctx

	if err := a.source.Start(ctx); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if a.leds != nil {
		a.leds.Start(a.gate.Enabled())
	}
	a.publishCapture("running", nil)

	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			a.logger.Warn("Config reload disabled", "path", a.opts.Config, "error", err)
			a.watcher = nil
		}
	}

	a.exporter.Start(ctx)
	unsubStatus := a.bus.Subscribe(func(e events.PipelineStatsEvent) {
		a.notifier.Status(fmt.Sprintf("%s fps, edges %t", e.FPS, e.EdgeDetection))
	})
	defer unsubStatus()

	if a.renderer != nil {
		a.goFunc(func() {
			_ = a.renderer.Run(ctx)
		})
	}
	if a.x11 != nil {
		a.goFunc(func() { a.x11.WatchEvents(a.renderer.RequestRedraw) })
	}

	a.goFunc(func() {
		a.notifier.RunWatchdog(ctx, func() bool { return a.source.Err() == nil })
	})

	errc := make(chan error, 2)
	a.goFunc(func() {
		err := a.pipeline.Run(ctx, a.source.Frames())
		if err == nil && ctx.Err() == nil {
			// Frames closed on its own: the source ended
			err = a.source.Err()
			if err != nil {
				a.publishCapture("failed", err)
				err = fmt.Errorf("capture: %w", err)
			} else {
				a.publishCapture("stopped", nil)
				a.logger.Info("Capture finished, serving last frame")
				return
			}
		}
		if err != nil {
			errc <- err
		}
	})

	a.goFunc(func() {
		if err := a.server.Start(a.opts.Port); err != nil {
			errc <- fmt.Errorf("http: %w", err)
		}
	})

	a.notifier.Ready()
	a.logger.Info("edgeviewer running",
		"addr", a.opts.Port,
		"source", a.source.Name(),
		"display", a.opts.DisplayBackend,
		"detector", edges.Backend,
		"edge_detection", a.gate.Enabled())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}

	a.shutdown()
	return runErr
}

func (a *app) goFunc(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

func (a *app) shutdown() {
	a.notifier.Stopping()

	timeout, err := time.ParseDuration(a.opts.ShutdownTimeout)
	if err != nil || timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), timeout)
	defer cancelShutdown()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP shutdown", "error", err)
	}

	if err := a.source.Stop(); err != nil && !errors.Is(err, capture.ErrClosed) {
		a.logger.Warn("Capture stop", "error", err)
	}
	a.cancel()
	a.exporter.Stop()
	if a.watcher != nil {
		_ = a.watcher.Stop()
	}
	if a.x11 != nil {
		// Closing the connection ends WatchEvents
		a.x11.Close()
	}
	a.wg.Wait()
	a.publishCapture("stopped", nil)
	if a.leds != nil {
		a.leds.Stop()
	}
}

// stop ends run and waits for shutdown to finish.
func (a *app) stop() {
	a.cancel()
	<-a.done
}
