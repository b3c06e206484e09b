// Package capture delivers raw I420 frames to the pipeline with a
// keep-only-latest discipline: at most one frame is in flight at a time.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/edgeviewer/internal/frame"
)

// ErrClosed is returned when a stopped source is started again.
var ErrClosed = errors.New("capture source closed")

// errFinished ends capture without reporting a failure.
var errFinished = errors.New("capture finished")

// Source produces raw frames on its own schedule.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Start begins capture. Frames flow until ctx is done or Stop is called.
	Start(ctx context.Context) error
	// Frames delivers one frame at a time. The next frame is only sent after
	// the previous one has been released. Closed when capture ends.
	Frames() <-chan *frame.Raw
	// Stop ends capture and waits for the capture goroutine.
	Stop() error
	// Err returns the error that ended capture, if any.
	Err() error
	// Stats returns delivery counters.
	Stats() Stats
}

// Kind names a source implementation.
type Kind string

// Source kinds.
const (
	KindSynthetic Kind = "synthetic"
	KindFile      Kind = "file"
	KindV4L2      Kind = "v4l2"
)

// Config selects and configures a source.
type Config struct {
	Kind   Kind
	Device string
	File   string
	Loop   bool
	Width  int
	Height int
	FPS    int
}

// NewSource builds the source named by cfg.Kind.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid capture size %dx%d", cfg.Width, cfg.Height)
	}

	switch Kind(strings.ToLower(string(cfg.Kind))) {
	case KindSynthetic, "":
		return NewSynthetic(cfg.Width, cfg.Height, cfg.FPS, logger), nil
	case KindFile:
		if cfg.File == "" {
			return nil, errors.New("file source requires a path")
		}
		return NewFile(cfg.File, cfg.Width, cfg.Height, cfg.FPS, cfg.Loop, logger), nil
	case KindV4L2:
		return NewV4L2(cfg.Device, cfg.Width, cfg.Height, logger), nil
	default:
		return nil, fmt.Errorf("unknown capture source %q", cfg.Kind)
	}
}

// producer is the lifecycle shared by the sources: a capture goroutine
// feeding a Handoff.
type producer struct {
	name    string
	handoff *Handoff
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	err     error
}

func newProducer(name string, logger *slog.Logger) *producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &producer{name: name, handoff: NewHandoff(), logger: logger}
}

func (p *producer) Name() string { return p.name }

func (p *producer) Frames() <-chan *frame.Raw { return p.handoff.Frames() }

func (p *producer) Stats() Stats {
	st := p.handoff.Stats()
	st.Source = p.name
	return st
}

func (p *producer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// start runs loop in a goroutine. loop returns when ctx is done or capture fails.
func (p *producer) start(ctx context.Context, loop func(ctx context.Context) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrClosed
	}
	if p.started {
		return fmt.Errorf("%s source already started", p.name)
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.handoff.Run(ctx)
	}()
	go func() {
		defer p.wg.Done()
		defer p.cancel()
		err := loop(ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errFinished) {
			p.logger.Error("Capture stopped", "source", p.name, "error", err)
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
		}
	}()
	p.logger.Info("Capture started", "source", p.name)
	return nil
}

func (p *producer) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.logger.Info("Capture stopped", "source", p.name, "dropped", p.handoff.Stats().Dropped)
	return nil
}

// tick calls fn at fps until ctx is done or fn fails.
func tick(ctx context.Context, fps int, fn func() error) error {
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := fn(); err != nil {
				return err
			}
		}
	}
}
