package capture

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/smazurov/edgeviewer/internal/frame"
)

// Stats counts frames through a Handoff.
type Stats struct {
	Source    string `json:"source"`
	Produced  uint64 `json:"produced"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

// Handoff sits between a capture goroutine and the pipeline worker. Offer
// never blocks: a newer frame replaces an undelivered one, which is released.
// A frame is only delivered once the previous delivery has been released.
type Handoff struct {
	mu      sync.Mutex
	pending *frame.Raw
	closed  bool
	seq     uint64

	ready chan struct{}
	out   chan *frame.Raw

	produced  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewHandoff creates an idle handoff. Call Run to start delivery.
func NewHandoff() *Handoff {
	return &Handoff{
		ready: make(chan struct{}, 1),
		out:   make(chan *frame.Raw),
	}
}

// Frames returns the delivery channel.
func (h *Handoff) Frames() <-chan *frame.Raw {
	return h.out
}

// Offer queues raw as the latest frame and assigns its sequence number.
func (h *Handoff) Offer(raw *frame.Raw) {
	h.produced.Add(1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		raw.Release()
		h.dropped.Add(1)
		return
	}
	h.seq++
	raw.Seq = h.seq
	old := h.pending
	h.pending = raw
	h.mu.Unlock()

	if old != nil {
		old.Release()
		h.dropped.Add(1)
	}

	select {
	case h.ready <- struct{}{}:
	default:
	}
}

// Run delivers frames until ctx is done, then closes Frames.
func (h *Handoff) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.ready:
		}

		h.mu.Lock()
		raw := h.pending
		h.pending = nil
		h.mu.Unlock()
		if raw == nil {
			continue
		}

		released := make(chan struct{})
		raw.OnRelease(func() { close(released) })

		select {
		case h.out <- raw:
			h.delivered.Add(1)
		case <-ctx.Done():
			raw.Release()
			h.dropped.Add(1)
			return
		}

		select {
		case <-released:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handoff) shutdown() {
	h.mu.Lock()
	h.closed = true
	raw := h.pending
	h.pending = nil
	h.mu.Unlock()
	if raw != nil {
		raw.Release()
		h.dropped.Add(1)
	}
	close(h.out)
}

// Stats returns the current counters.
func (h *Handoff) Stats() Stats {
	return Stats{
		Produced:  h.produced.Load(),
		Delivered: h.delivered.Load(),
		Dropped:   h.dropped.Load(),
	}
}
