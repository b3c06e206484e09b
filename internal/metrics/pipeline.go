// Package metrics provides Prometheus metrics for the frame pipeline.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "edgeviewer"

// Frame results.
const (
	ResultOK          = "ok"
	ResultEncodeError = "encode_error"
	ResultAborted     = "aborted"
	ResultInvalid     = "invalid"
)

var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "frames_total",
		Help:      "Frames handled by the pipeline worker by result",
	}, []string{"result"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each pipeline stage",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"stage"})

	edgeDetectionEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "edge_detection_enabled",
		Help:      "1 when edge detection is applied to new frames",
	})

	detectorFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "detector_failures_total",
		Help:      "Frames passed through unmodified after a detector failure",
	})

	snapshotBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "bytes",
		Help:      "Size of the latest encoded snapshot",
	})

	// Local cache for SSE exporter access.
	cache   PipelineMetrics
	cacheMu sync.RWMutex
)

// PipelineMetrics holds current values for the SSE exporter.
type PipelineMetrics struct {
	Frames        uint64
	EncodeErrors  uint64
	LastDuration  time.Duration
	SnapshotBytes int
	EdgeDetection bool
}

// ObserveFrame records a completed frame.
func ObserveFrame(result string, total time.Duration) {
	framesTotal.WithLabelValues(result).Inc()
	stageDuration.WithLabelValues("total").Observe(total.Seconds())
	updateCache(func(m *PipelineMetrics) {
		switch result {
		case ResultOK:
			m.Frames++
			m.LastDuration = total
		case ResultEncodeError:
			m.Frames++
			m.EncodeErrors++
			m.LastDuration = total
		}
	})
}

// ObserveStage records the duration of one stage.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetEdgeDetection records the toggle state.
func SetEdgeDetection(enabled bool) {
	v := 0.0
	if enabled {
		v = 1
	}
	edgeDetectionEnabled.Set(v)
	updateCache(func(m *PipelineMetrics) { m.EdgeDetection = enabled })
}

// IncDetectorFailures counts a detector failure.
func IncDetectorFailures() {
	detectorFailures.Inc()
}

// SetSnapshotBytes records the latest snapshot size.
func SetSnapshotBytes(n int) {
	snapshotBytes.Set(float64(n))
	updateCache(func(m *PipelineMetrics) { m.SnapshotBytes = n })
}

// GetPipelineMetrics returns a copy of the cached values.
func GetPipelineMetrics() PipelineMetrics {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	return cache
}

func updateCache(update func(*PipelineMetrics)) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	update(&cache)
}

// RegisterCounterFunc exports a monotonically increasing value read from fn,
// such as relay overwrites or capture drops. Registering the same series
// twice is not an error.
func RegisterCounterFunc(subsystem, name, help string, labels prometheus.Labels, fn func() float64) error {
	c := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, fn)
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return err
	}
	return nil
}
