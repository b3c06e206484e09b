package main

import (
	"log/slog"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/edgeviewer/cmd"
	"github.com/smazurov/edgeviewer/internal/config"
	"github.com/smazurov/edgeviewer/internal/logging"
	"github.com/smazurov/edgeviewer/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"edgeviewer.toml"`

	// Server settings
	Port            string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	ShutdownTimeout string `help:"Time allowed for streaming clients to drain on shutdown" default:"5s" toml:"server.shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`

	// Pipeline settings
	EdgeDetection bool `help:"Apply edge detection at startup" default:"true" toml:"pipeline.edge_detection" env:"PIPELINE_EDGE_DETECTION"`

	// Capture settings
	CaptureSource string `help:"Frame source (synthetic, file, v4l2)" default:"synthetic" toml:"capture.source" env:"CAPTURE_SOURCE"`
	CaptureDevice string `help:"V4L2 device path or stable ID from /api/devices" default:"/dev/video0" toml:"capture.device" env:"CAPTURE_DEVICE"`
	CaptureFile   string `help:"Raw I420 file for the file source" toml:"capture.file" env:"CAPTURE_FILE"`
	CaptureLoop   bool   `help:"Restart the file source at end of file" default:"true" toml:"capture.loop" env:"CAPTURE_LOOP"`
	CaptureWidth  int    `help:"Capture width in pixels" default:"640" toml:"capture.width" env:"CAPTURE_WIDTH"`
	CaptureHeight int    `help:"Capture height in pixels" default:"480" toml:"capture.height" env:"CAPTURE_HEIGHT"`
	CaptureFPS    int    `help:"Capture rate for synthetic and file sources" default:"30" toml:"capture.fps" env:"CAPTURE_FPS"`

	// Snapshot settings
	SnapshotMode     string `help:"Snapshot encoding (gray, color)" default:"gray" toml:"snapshot.mode" env:"SNAPSHOT_MODE"`
	SnapshotQuality  int    `help:"JPEG quality 1-100" default:"90" toml:"snapshot.quality" env:"SNAPSHOT_QUALITY"`
	SnapshotMaxWidth int    `help:"Downscale snapshots wider than this, 0 keeps full size" default:"0" toml:"snapshot.max_width" env:"SNAPSHOT_MAX_WIDTH"`

	// Display settings
	DisplayBackend string `help:"Local display (memory, x11, none)" default:"memory" toml:"display.backend" env:"DISPLAY_BACKEND"`
	DisplayTitle   string `help:"X11 window title" default:"edgeviewer" toml:"display.title" env:"DISPLAY_TITLE"`

	// Auth settings
	AuthUsername string `help:"Basic auth username, empty disables auth" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Observability settings
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`
	LEDEnabled     bool `help:"Mirror capture and edge detection state on board LEDs" default:"true" toml:"led.enabled" env:"LED_ENABLED"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPipeline string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingCapture  string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingDisplay  string `help:"Display logging level" default:"info" toml:"logging.display" env:"LOGGING_DISPLAY"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP     string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func (o *Options) loggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"pipeline": o.LoggingPipeline,
			"capture":  o.LoggingCapture,
			"display":  o.LoggingDisplay,
			"api":      o.LoggingAPI,
			"http":     o.LoggingHTTP,
		},
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")

		a := newApp(opts, logger)

		hooks.OnStart(func() {
			if runErr := a.run(); runErr != nil {
				logger.Error("Stopped on fatal error", "error", runErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			a.stop()
		})
	})

	root := cli.Root()
	root.Use = "edgeviewer"
	root.Short = "Live video viewer with switchable edge detection"
	root.Version = version.String()

	root.AddCommand(cmd.CreateSnapshotCmd())

	cli.Run()
}
