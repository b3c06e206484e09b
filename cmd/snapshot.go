// Package cmd holds the CLI subcommands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/smazurov/edgeviewer/internal/capture"
	"github.com/smazurov/edgeviewer/internal/devices"
	"github.com/smazurov/edgeviewer/internal/edges"
	"github.com/smazurov/edgeviewer/internal/gate"
	"github.com/smazurov/edgeviewer/internal/logging"
	"github.com/smazurov/edgeviewer/internal/pipeline"
	"github.com/smazurov/edgeviewer/internal/relay"
	"github.com/smazurov/edgeviewer/internal/snapshot"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type snapshotFlags struct {
	source  string
	device  string
	file    string
	width   int
	height  int
	fps     int
	frames  int
	edges   bool
	mode    string
	quality int
	out     string
	timeout time.Duration
	logJSON bool
}

func (f *snapshotFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.source, "source", "synthetic", "Frame source (synthetic, file, v4l2)")
	fs.StringVar(&f.device, "device", "/dev/video0", "V4L2 device path")
	fs.StringVar(&f.file, "file", "", "Raw I420 file for the file source")
	fs.IntVar(&f.width, "width", 640, "Capture width in pixels")
	fs.IntVar(&f.height, "height", 480, "Capture height in pixels")
	fs.IntVar(&f.fps, "fps", 30, "Capture rate for synthetic and file sources")
	fs.IntVarP(&f.frames, "frames", "n", 1, "Frames to process before writing the last one")
	fs.BoolVar(&f.edges, "edges", true, "Apply edge detection")
	fs.StringVar(&f.mode, "mode", string(snapshot.ModeGray), "Snapshot encoding (gray, color)")
	fs.IntVar(&f.quality, "quality", snapshot.DefaultQuality, "JPEG quality 1-100")
	fs.StringVarP(&f.out, "out", "o", "snapshot.jpg", "Output file, - for stdout")
	fs.DurationVar(&f.timeout, "timeout", 10*time.Second, "Give up after this long")
	fs.BoolVar(&f.logJSON, "log-json", false, "Log as JSON")
}

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd() *cobra.Command {
	flags := &snapshotFlags{}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture frames and write one processed JPEG",
		Long: `Runs the frame pipeline without the server: captures --frames frames, ` +
			`applies edge detection unless --edges=false, and writes the last encoded snapshot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if flags.logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)

			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()
			return runSnapshot(ctx, flags)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func runSnapshot(ctx context.Context, f *snapshotFlags) error {
	logger := logging.GetLogger("snapshot")

	if f.frames < 1 {
		return errors.New("--frames must be at least 1")
	}
	mode, err := snapshot.ParseMode(f.mode)
	if err != nil {
		return err
	}

	device := f.device
	if capture.Kind(f.source) == capture.KindV4L2 {
		if device, err = devices.NewLister(logger).Resolve(device); err != nil {
			return err
		}
	}

	source, err := capture.NewSource(capture.Config{
		Kind:   capture.Kind(f.source),
		Device: device,
		File:   f.file,
		Width:  f.width,
		Height: f.height,
		FPS:    f.fps,
	}, logging.GetLogger("capture"))
	if err != nil {
		return err
	}

	network := relay.New[snapshot.Payload]()
	p := pipeline.New(pipeline.Options{
		Gate:    gate.New(edges.NewDefault(), f.edges, logging.GetLogger("gate")),
		Encoder: snapshot.NewEncoder(snapshot.Options{Mode: mode, Quality: f.quality}),
		Network: network,
		Logger:  logging.GetLogger("pipeline"),
	})

	if err := source.Start(ctx); err != nil {
		return err
	}
	defer source.Stop()

	for done := 0; done < f.frames; {
		select {
		case <-ctx.Done():
			return fmt.Errorf("captured %d of %d frames: %w", done, f.frames, ctx.Err())
		case raw, ok := <-source.Frames():
			if !ok {
				if ctx.Err() != nil {
					return fmt.Errorf("captured %d of %d frames: %w", done, f.frames, ctx.Err())
				}
				if err := source.Err(); err != nil {
					return err
				}
				if done == 0 {
					return errors.New("source ended before the first frame")
				}
				logger.Warn("Source ended early", "frames", done)
				f.frames = done
				continue
			}
			if err := p.ProcessFrame(ctx, raw); err != nil {
				return err
			}
			done++
		}
	}

	payload, _, ok := network.Peek()
	if !ok {
		return errors.New("no snapshot was encoded")
	}
	if err := writeOutput(f.out, payload.JPEG); err != nil {
		return err
	}
	logger.Info("Snapshot written",
		"out", f.out,
		"bytes", len(payload.JPEG),
		"size", fmt.Sprintf("%dx%d", payload.ImageWidth, payload.ImageHeight),
		"edge_detection", payload.EdgeDetection,
		"mode", mode)
	return nil
}

func writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
