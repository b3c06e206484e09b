// Package gate applies the live edge-detection toggle to converted frames.
package gate

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/smazurov/edgeviewer/internal/edges"
	"github.com/smazurov/edgeviewer/internal/frame"
)

// Result describes what Process did to a frame.
type Result struct {
	// Applied is true when the detector ran and its output is in the frame.
	Applied bool
	// Err is the detector failure, if any. The frame is unmodified when set.
	Err error
}

// Gate holds the process-wide edge-detection toggle and serializes
// calls into the non-reentrant detector.
type Gate struct {
	enabled  atomic.Bool
	mu       sync.Mutex
	detector edges.Detector
	logger   *slog.Logger

	applied  atomic.Uint64
	bypassed atomic.Uint64
	failures atomic.Uint64
}

// New creates a gate around detector with the given initial toggle.
func New(detector edges.Detector, enabled bool, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{detector: detector, logger: logger}
	g.enabled.Store(enabled)
	return g
}

// SetEnabled sets the toggle and returns the previous value. It takes
// effect from the next frame processed.
func (g *Gate) SetEnabled(enabled bool) bool {
	return g.enabled.Swap(enabled)
}

// Enabled reports the current toggle.
func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

// Toggle flips the toggle and returns the new value.
func (g *Gate) Toggle() bool {
	for {
		cur := g.enabled.Load()
		if g.enabled.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}

// Process runs the detector on f in place when the toggle is on.
// A failing detector leaves f untouched.
func (g *Gate) Process(f frame.RGBA) Result {
	if !g.enabled.Load() {
		g.bypassed.Add(1)
		return Result{}
	}

	g.mu.Lock()
	err := g.detect(f)
	g.mu.Unlock()

	if err != nil {
		g.failures.Add(1)
		g.logger.Warn("Edge detection failed, passing frame through",
			"seq", f.Seq, "width", f.Width, "height", f.Height, "error", err)
		return Result{Err: err}
	}
	g.applied.Add(1)
	return Result{Applied: true}
}

func (g *Gate) detect(f frame.RGBA) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return g.detector.Detect(f.Pix(), f.Width, f.Height)
}

// Stats is a snapshot of gate counters.
type Stats struct {
	Enabled  bool   `json:"enabled"`
	Applied  uint64 `json:"applied"`
	Bypassed uint64 `json:"bypassed"`
	Failures uint64 `json:"failures"`
}

// Stats returns the current counters.
func (g *Gate) Stats() Stats {
	return Stats{
		Enabled:  g.enabled.Load(),
		Applied:  g.applied.Load(),
		Bypassed: g.bypassed.Load(),
		Failures: g.failures.Load(),
	}
}
