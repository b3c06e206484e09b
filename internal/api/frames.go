package api

import (
	"context"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gorilla/websocket"
	"github.com/smazurov/edgeviewer/internal/api/models"
	"github.com/smazurov/edgeviewer/internal/events"
	"github.com/smazurov/edgeviewer/internal/snapshot"
)

const (
	mjpegBoundary = "frame"
	wsWriteWait   = 2 * time.Second
	wsPingPeriod  = 20 * time.Second
)

func etag(seq uint64) string {
	return `"` + strconv.FormatUint(seq, 10) + `"`
}

func (s *Server) registerFrameRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-frame",
		Method:      http.MethodGet,
		Path:        "/frame.jpg",
		Summary:     "Latest Snapshot",
		Description: "Latest encoded frame from the network relay. Reading does not consume it.",
		Tags:        []string{"frames"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "JPEG snapshot",
				Content:     map[string]*huma.MediaType{"image/jpeg": {}},
			},
		},
	}, func(_ context.Context, input *models.FrameRequest) (*models.FrameResponse, error) {
		payload, seq, ok := s.options.Snapshots.Peek()
		if !ok {
			return nil, huma.Error503ServiceUnavailable("no frame has been encoded yet")
		}
		tag := etag(seq)
		if input.IfNoneMatch == tag {
			return nil, huma.Status304NotModified()
		}
		return &models.FrameResponse{
			ContentType:  "image/jpeg",
			CacheControl: "no-store",
			ETag:         tag,
			Seq:          strconv.FormatUint(seq, 10),
			Size:         fmt.Sprintf("%dx%d", payload.Width, payload.Height),
			Body:         payload.JPEG,
		}, nil
	})

	s.rawRoute("GET /stream.mjpeg", s.handleMJPEG)
	s.rawRoute("GET /api/frames/ws", s.handleFrameSocket)
	if s.options.DisplayImage != nil {
		s.rawRoute("GET /display.png", s.handleDisplayPNG)
	}
}

// rawRoute registers a handler outside huma with the same CORS, logging
// and auth treatment as API operations.
func (s *Server) rawRoute(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, withCORS(s.cors, logRequests(s.requireAuth(h))))
}

// frameTicks signals processed frames. The channel holds the newest pending
// tick so slow clients skip frames instead of queueing them.
func (s *Server) frameTicks() (<-chan any, func()) {
	ch := make(chan any, 1)
	unsub := events.SubscribeToChannel[events.FrameProcessedEvent](s.options.EventBus, ch, events.KeepLatest)
	return ch, unsub
}

// nextSnapshot returns the relay's payload if it is newer than last.
func (s *Server) nextSnapshot(last uint64) (snapshot.Payload, uint64, bool) {
	payload, seq, ok := s.options.Snapshots.Peek()
	if !ok || seq == last {
		return snapshot.Payload{}, last, false
	}
	return payload, seq, true
}

func (s *Server) handleMJPEG(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "close")

	ticks, unsub := s.frameTicks()
	defer unsub()

	flusher, _ := w.(http.Flusher)
	var last uint64
	write := func() error {
		payload, seq, ok := s.nextSnapshot(last)
		if !ok {
			return nil
		}
		last = seq
		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\nX-Frame-Seq: %d\r\n\r\n",
			mjpegBoundary, len(payload.JPEG), seq); err != nil {
			return err
		}
		if _, err := w.Write(payload.JPEG); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	s.logger.Debug("MJPEG client connected", "remote_addr", r.RemoteAddr)
	defer s.logger.Debug("MJPEG client disconnected", "remote_addr", r.RemoteAddr)

	if err := write(); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticks:
			if err := write(); err != nil {
				return
			}
		}
	}
}

// handleFrameSocket streams snapshots as binary WebSocket messages.
func (s *Server) handleFrameSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader drains control frames and notices the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticks, unsub := s.frameTicks()
	defer unsub()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	var last uint64
	send := func() error {
		payload, seq, ok := s.nextSnapshot(last)
		if !ok {
			return nil
		}
		last = seq
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(websocket.BinaryMessage, payload.JPEG)
	}

	if err := send(); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		case <-ticks:
			if err := send(); err != nil {
				s.logger.Debug("WebSocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleDisplayPNG(w http.ResponseWriter, _ *http.Request) {
	img := s.options.DisplayImage()
	if img == nil {
		http.Error(w, "nothing presented yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		s.logger.Warn("PNG encode failed", "error", err)
	}
}
