// Package pipeline drives captured frames through conversion, edge
// detection and distribution to the display and network relays.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/edgeviewer/internal/colorconv"
	"github.com/smazurov/edgeviewer/internal/display"
	"github.com/smazurov/edgeviewer/internal/events"
	"github.com/smazurov/edgeviewer/internal/frame"
	"github.com/smazurov/edgeviewer/internal/gate"
	"github.com/smazurov/edgeviewer/internal/metrics"
	"github.com/smazurov/edgeviewer/internal/relay"
	"github.com/smazurov/edgeviewer/internal/snapshot"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Encoder compresses processed frames into snapshots.
type Encoder interface {
	Encode(f frame.RGBA) (snapshot.Payload, error)
}

// Options wires a Pipeline to its collaborators.
type Options struct {
	Gate    *gate.Gate
	Encoder Encoder
	// Display receives a copy of every processed frame. Optional.
	Display relay.Slot[display.Payload]
	// Network receives every encoded snapshot. Optional.
	Network relay.Slot[snapshot.Payload]
	// Pool supplies display copies. Optional.
	Pool *frame.SlicePool
	// OnDisplayPublish is called after each display publish, typically
	// to request a redraw.
	OnDisplayPublish func()
	EventBus         EventPublisher
	Logger           *slog.Logger
}

// Pipeline processes one frame at a time. Run and ProcessFrame must not be
// called concurrently; the working buffer belongs to the worker goroutine.
type Pipeline struct {
	opts   Options
	buf    *frame.Buffer
	pool   *frame.SlicePool
	logger *slog.Logger

	frames       atomic.Uint64
	completed    atomic.Uint64
	encodeErrors atomic.Uint64
	detectErrors atomic.Uint64
	aborted      atomic.Uint64
	lastSeq      atomic.Uint64
	lastDuration atomic.Int64

	// toggleMu orders gate swaps with the gauge and change events
	toggleMu sync.Mutex
}

// New creates a pipeline. Gate and Encoder are required.
func New(opts Options) *Pipeline {
	if opts.Gate == nil || opts.Encoder == nil {
		panic("pipeline: Options.Gate and Options.Encoder are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pool := opts.Pool
	if pool == nil {
		pool = &frame.SlicePool{}
	}
	p := &Pipeline{
		opts:   opts,
		buf:    frame.NewBuffer(0),
		pool:   pool,
		logger: logger,
	}
	metrics.SetEdgeDetection(opts.Gate.Enabled())
	return p
}

// Run processes frames until the channel closes or ctx is done. It returns
// an error only for fatal conditions such as malformed frame geometry.
func (p *Pipeline) Run(ctx context.Context, frames <-chan *frame.Raw) error {
	p.logger.Info("Pipeline started", "edge_detection", p.opts.Gate.Enabled())
	defer p.logger.Info("Pipeline stopped", "frames", p.frames.Load(), "completed", p.completed.Load())

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-frames:
			if !ok {
				return nil
			}
			err := p.ProcessFrame(ctx, raw)
			switch {
			case err == nil:
			case errors.Is(err, colorconv.ErrInvalidGeometry):
				return err
			case ctx.Err() != nil:
				return nil
			default:
				p.logger.Warn("Frame failed", "error", err)
			}
		}
	}
}

// ProcessFrame runs one frame through every stage and releases it.
func (p *Pipeline) ProcessFrame(ctx context.Context, raw *frame.Raw) error {
	defer raw.Release()
	p.frames.Add(1)
	start := time.Now()

	stageStart := start
	converted, err := colorconv.ConvertInto(raw, p.buf)
	if err != nil {
		p.fail(raw.Seq, "convert", err, true)
		metrics.ObserveFrame(metrics.ResultInvalid, time.Since(start))
		return fmt.Errorf("convert frame %d: %w", raw.Seq, err)
	}
	metrics.ObserveStage("convert", time.Since(stageStart))
	if err := p.checkAbort(ctx, raw.Seq, start); err != nil {
		return err
	}

	stageStart = time.Now()
	res := p.opts.Gate.Process(converted)
	if res.Err != nil {
		p.detectErrors.Add(1)
		metrics.IncDetectorFailures()
		p.fail(raw.Seq, "process", res.Err, false)
	}
	metrics.ObserveStage("process", time.Since(stageStart))
	if err := p.checkAbort(ctx, raw.Seq, start); err != nil {
		return err
	}

	if p.opts.Display != nil {
		stageStart = time.Now()
		pix := p.pool.Get(len(converted.Pix()))
		copy(pix, converted.Pix())
		p.opts.Display.Publish(display.Payload{
			Pix:    pix,
			Width:  converted.Width,
			Height: converted.Height,
			Seq:    converted.Seq,
		})
		metrics.ObserveStage("display", time.Since(stageStart))
		if p.opts.OnDisplayPublish != nil {
			p.opts.OnDisplayPublish()
		}
	}

	stageStart = time.Now()
	snap, err := p.opts.Encoder.Encode(converted)
	if err != nil {
		p.encodeErrors.Add(1)
		p.fail(raw.Seq, "encode", err, false)
		p.finish(raw, start, metrics.ResultEncodeError, res.Applied, 0)
		return nil
	}
	snap.EdgeDetection = res.Applied
	if p.opts.Network != nil {
		p.opts.Network.Publish(snap)
	}
	metrics.ObserveStage("encode", time.Since(stageStart))
	metrics.SetSnapshotBytes(len(snap.JPEG))

	p.finish(raw, start, metrics.ResultOK, res.Applied, len(snap.JPEG))
	return nil
}

func (p *Pipeline) checkAbort(ctx context.Context, seq uint64, start time.Time) error {
	if err := ctx.Err(); err != nil {
		p.aborted.Add(1)
		metrics.ObserveFrame(metrics.ResultAborted, time.Since(start))
		p.logger.Debug("Frame aborted", "seq", seq)
		return err
	}
	return nil
}

func (p *Pipeline) finish(raw *frame.Raw, start time.Time, result string, applied bool, snapBytes int) {
	d := time.Since(start)
	p.completed.Add(1)
	p.lastSeq.Store(raw.Seq)
	p.lastDuration.Store(int64(d))
	metrics.ObserveFrame(result, d)

	if p.opts.EventBus != nil {
		p.opts.EventBus.Publish(events.FrameProcessedEvent{
			Seq:           raw.Seq,
			Width:         raw.Width,
			Height:        raw.Height,
			EdgeDetection: applied,
			SnapshotBytes: snapBytes,
			DurationMs:    float64(d.Microseconds()) / 1000,
			Timestamp:     raw.Timestamp.Format(time.RFC3339Nano),
		})
	}
}

func (p *Pipeline) fail(seq uint64, stage string, err error, fatal bool) {
	if fatal {
		p.logger.Error("Pipeline stage failed", "stage", stage, "seq", seq, "error", err)
	} else {
		p.logger.Warn("Pipeline stage failed", "stage", stage, "seq", seq, "error", err)
	}
	if p.opts.EventBus != nil {
		p.opts.EventBus.Publish(events.PipelineErrorEvent{
			Seq:       seq,
			Stage:     stage,
			Error:     err.Error(),
			Fatal:     fatal,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

// SetEdgeDetection sets the toggle on behalf of source (api, config) and
// returns the previous value.
func (p *Pipeline) SetEdgeDetection(enabled bool, source string) bool {
	p.toggleMu.Lock()
	defer p.toggleMu.Unlock()
	prev := p.opts.Gate.SetEnabled(enabled)
	p.toggled(enabled, prev, source)
	return prev
}

// ToggleEdgeDetection flips the toggle and returns the new value.
func (p *Pipeline) ToggleEdgeDetection(source string) bool {
	p.toggleMu.Lock()
	defer p.toggleMu.Unlock()
	enabled := p.opts.Gate.Toggle()
	p.toggled(enabled, !enabled, source)
	return enabled
}

// EdgeDetection reports the current toggle.
func (p *Pipeline) EdgeDetection() bool {
	return p.opts.Gate.Enabled()
}

func (p *Pipeline) toggled(enabled, prev bool, source string) {
	metrics.SetEdgeDetection(p.opts.Gate.Enabled())
	if enabled == prev {
		return
	}
	p.logger.Info("Edge detection toggled", "enabled", enabled, "source", source)
	if p.opts.EventBus != nil {
		p.opts.EventBus.Publish(events.EdgeDetectionChangedEvent{
			Enabled:   enabled,
			Previous:  prev,
			Source:    source,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}
