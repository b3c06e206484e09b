// Package display moves processed frames from the display relay onto a
// texture-backed surface on the render schedule.
package display

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/smazurov/edgeviewer/internal/relay"
)

// Payload is a copy of a processed RGBA frame owned by the display relay.
type Payload struct {
	Pix    []byte
	Width  int
	Height int
	Seq    uint64
}

// Surface is the texture side of a display. Draw mechanics live behind Present.
type Surface interface {
	// AllocTexture (re)allocates texture storage for width x height RGBA.
	AllocTexture(width, height int) error
	// UploadTexture copies RGBA pixels into the allocated texture.
	UploadTexture(pix []byte, width, height int) error
	// Present draws the current texture.
	Present() error
}

// Stats is a snapshot of sink counters.
type Stats struct {
	Uploads  uint64 `json:"uploads"`
	Reallocs uint64 `json:"reallocs"`
	Redraws  uint64 `json:"redraws"`
	LastSeq  uint64 `json:"last_seq"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Sink consumes the display relay. Render must only be called from the
// render goroutine.
type Sink struct {
	slot    relay.Slot[Payload]
	surface Surface
	recycle func([]byte)
	logger  *slog.Logger

	width  int
	height int

	uploads  atomic.Uint64
	reallocs atomic.Uint64
	redraws  atomic.Uint64
	lastSeq  atomic.Uint64
	size     atomic.Uint64
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithRecycle returns uploaded pixel buffers to fn once the surface has copied them.
func WithRecycle(fn func([]byte)) SinkOption {
	return func(s *Sink) {
		s.recycle = fn
	}
}

// WithLogger sets the sink logger.
func WithLogger(logger *slog.Logger) SinkOption {
	return func(s *Sink) {
		s.logger = logger
	}
}

// NewSink creates a sink reading slot and drawing to surface.
func NewSink(slot relay.Slot[Payload], surface Surface, opts ...SinkOption) *Sink {
	s := &Sink{slot: slot, surface: surface, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Render uploads the latest payload if one is pending. It reports whether a
// new frame reached the texture; when false the previous texture is reused.
func (s *Sink) Render() (bool, error) {
	p, ok := s.slot.TakeIfDirty()
	if !ok {
		s.redraws.Add(1)
		return false, nil
	}
	defer s.release(p.Pix)

	if p.Width != s.width || p.Height != s.height {
		if err := s.surface.AllocTexture(p.Width, p.Height); err != nil {
			return false, fmt.Errorf("allocate %dx%d texture: %w", p.Width, p.Height, err)
		}
		s.logger.Debug("Texture reallocated",
			"old_width", s.width, "old_height", s.height, "width", p.Width, "height", p.Height)
		s.width, s.height = p.Width, p.Height
		s.size.Store(uint64(p.Width)<<32 | uint64(p.Height))
		s.reallocs.Add(1)
	}

	if err := s.surface.UploadTexture(p.Pix, p.Width, p.Height); err != nil {
		return false, fmt.Errorf("upload frame %d: %w", p.Seq, err)
	}
	s.uploads.Add(1)
	s.lastSeq.Store(p.Seq)
	return true, nil
}

func (s *Sink) release(pix []byte) {
	if s.recycle != nil {
		s.recycle(pix)
	}
}

// Stats returns the current counters. Safe for concurrent use.
func (s *Sink) Stats() Stats {
	size := s.size.Load()
	return Stats{
		Uploads:  s.uploads.Load(),
		Reallocs: s.reallocs.Load(),
		Redraws:  s.redraws.Load(),
		LastSeq:  s.lastSeq.Load(),
		Width:    int(size >> 32),
		Height:   int(size & 0xffffffff),
	}
}
