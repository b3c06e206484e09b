package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/edgeviewer/internal/events"
)

// sseEventTypes maps SSE event names to payload types.
var sseEventTypes = map[string]any{
	"frame-processed":        events.FrameProcessedEvent{},
	"edge-detection-changed": events.EdgeDetectionChangedEvent{},
	"pipeline-error":         events.PipelineErrorEvent{},
	"capture-state":          events.CaptureStateEvent{},
	"pipeline-stats":         events.PipelineStatsEvent{},
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time pipeline events: processed frames, toggle changes, errors, capture state and stats",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, sseEventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		bus := s.options.EventBus
		subs := events.Subscriptions{
			events.SubscribeToChannel[events.FrameProcessedEvent](bus, eventCh, events.DropNewest),
			events.SubscribeToChannel[events.EdgeDetectionChangedEvent](bus, eventCh, events.DropNewest),
			events.SubscribeToChannel[events.PipelineErrorEvent](bus, eventCh, events.DropNewest),
			events.SubscribeToChannel[events.CaptureStateEvent](bus, eventCh, events.DropNewest),
			events.SubscribeToChannel[events.PipelineStatsEvent](bus, eventCh, events.DropNewest),
		}
		defer subs.Cancel()

		// Current toggle state so the client starts in sync
		enabled := s.options.Pipeline.EdgeDetection()
		if err := send.Data(events.EdgeDetectionChangedEvent{
			Enabled:   enabled,
			Previous:  enabled,
			Source:    "sync",
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
