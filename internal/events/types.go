package events

// Event type constants for kelindar/event.
const (
	TypeFrameProcessed uint32 = iota + 1
	TypeEdgeDetectionChanged
	TypePipelineError
	TypeCaptureState
	TypePipelineStats
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// FrameProcessedEvent is published after a frame has reached both relays.
type FrameProcessedEvent struct {
	Seq           uint64  `json:"seq" example:"1024" doc:"Capture sequence number"`
	Width         int     `json:"width" example:"640" doc:"Frame width in pixels"`
	Height        int     `json:"height" example:"480" doc:"Frame height in pixels"`
	EdgeDetection bool    `json:"edge_detection" example:"true" doc:"Whether edge detection was applied"`
	SnapshotBytes int     `json:"snapshot_bytes" example:"18432" doc:"Encoded snapshot size, 0 if encoding failed"`
	DurationMs    float64 `json:"duration_ms" example:"7.4" doc:"Pipeline time for this frame"`
	Timestamp     string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Capture timestamp"`
}

// Type returns the event type identifier for FrameProcessedEvent.
func (e FrameProcessedEvent) Type() uint32 { return TypeFrameProcessed }

// EdgeDetectionChangedEvent is published when the toggle changes.
type EdgeDetectionChangedEvent struct {
	Enabled   bool   `json:"enabled" example:"false" doc:"New toggle value"`
	Previous  bool   `json:"previous" example:"true" doc:"Previous toggle value"`
	Source    string `json:"source" example:"api" doc:"What changed the toggle: api, config"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EdgeDetectionChangedEvent.
func (e EdgeDetectionChangedEvent) Type() uint32 { return TypeEdgeDetectionChanged }

// PipelineErrorEvent reports a frame that did not complete every stage.
type PipelineErrorEvent struct {
	Seq       uint64 `json:"seq" example:"1024" doc:"Capture sequence number"`
	Stage     string `json:"stage" example:"encode" doc:"Pipeline stage: convert, process, encode"`
	Error     string `json:"error" example:"jpeg: invalid size" doc:"Error description"`
	Fatal     bool   `json:"fatal" example:"false" doc:"Whether the pipeline stopped"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PipelineErrorEvent.
func (e PipelineErrorEvent) Type() uint32 { return TypePipelineError }

// CaptureStateEvent reports capture source lifecycle changes.
type CaptureStateEvent struct {
	Source    string `json:"source" example:"v4l2" doc:"Capture source name"`
	State     string `json:"state" example:"running" doc:"State: running, stopped, failed"`
	Error     string `json:"error,omitempty" doc:"Failure reason"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStateEvent.
func (e CaptureStateEvent) Type() uint32 { return TypeCaptureState }

// PipelineStatsEvent is a periodic pipeline throughput sample.
type PipelineStatsEvent struct {
	FPS            string `json:"fps" example:"29.97" doc:"Frames completed per second over the last interval"`
	Frames         uint64 `json:"frames" example:"1024" doc:"Frames completed since start"`
	EncodeErrors   uint64 `json:"encode_errors" example:"0" doc:"Frames whose snapshot failed to encode"`
	LastDurationMs string `json:"last_duration_ms" example:"6.20" doc:"Pipeline time of the last frame"`
	SnapshotBytes  int    `json:"snapshot_bytes" example:"18432" doc:"Size of the latest snapshot"`
	EdgeDetection  bool   `json:"edge_detection" example:"true" doc:"Current toggle state"`
}

// Type returns the event type identifier for PipelineStatsEvent.
func (e PipelineStatsEvent) Type() uint32 { return TypePipelineStats }
