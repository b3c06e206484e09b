package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/edgeviewer/internal/events"
	"github.com/smazurov/edgeviewer/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes pipeline throughput for Server-Sent Events.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	lastFrames uint64
	lastTime   time.Time
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.lastFrames = metrics.GetPipelineMetrics().Frames
	s.lastTime = time.Now()
	s.wg.Add(1)
	go s.run()
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.publishMetrics(now)
		}
	}
}

func (s *SSEExporter) publishMetrics(now time.Time) {
	m := metrics.GetPipelineMetrics()

	var fps float64
	if elapsed := now.Sub(s.lastTime).Seconds(); elapsed > 0 && m.Frames >= s.lastFrames {
		fps = float64(m.Frames-s.lastFrames) / elapsed
	}
	s.lastFrames = m.Frames
	s.lastTime = now

	s.eventBus.Publish(events.PipelineStatsEvent{
		FPS:            strconv.FormatFloat(fps, 'f', 2, 64),
		Frames:         m.Frames,
		EncodeErrors:   m.EncodeErrors,
		LastDurationMs: strconv.FormatFloat(float64(m.LastDuration.Microseconds())/1000, 'f', 2, 64),
		SnapshotBytes:  m.SnapshotBytes,
		EdgeDetection:  m.EdgeDetection,
	})
}
