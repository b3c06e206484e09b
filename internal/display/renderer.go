package display

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Renderer is the host render loop. It draws on demand only.
type Renderer struct {
	sink     *Sink
	surface  Surface
	requests chan struct{}
	logger   *slog.Logger
	frames   atomic.Uint64
}

// NewRenderer creates a render loop for sink drawing to surface.
func NewRenderer(sink *Sink, surface Surface, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		sink:     sink,
		surface:  surface,
		requests: make(chan struct{}, 1),
		logger:   logger,
	}
}

// RequestRedraw schedules a redraw. It never blocks; requests made while one
// is already pending are coalesced.
func (r *Renderer) RequestRedraw() {
	select {
	case r.requests <- struct{}{}:
	default:
	}
}

// Frames returns how many redraws have completed.
func (r *Renderer) Frames() uint64 {
	return r.frames.Load()
}

// Run services redraw requests until ctx is done.
func (r *Renderer) Run(ctx context.Context) error {
	r.logger.Info("Render loop started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Render loop stopped")
			return nil
		case <-r.requests:
			r.draw()
		}
	}
}

func (r *Renderer) draw() {
	if _, err := r.sink.Render(); err != nil {
		r.logger.Warn("Render failed, keeping previous texture", "error", err)
	}
	if err := r.surface.Present(); err != nil {
		r.logger.Warn("Present failed", "error", err)
		return
	}
	r.frames.Add(1)
}
