package api

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/edgeviewer/internal/logging"
)

// quietPaths are polled by viewers several times a second or hold a
// connection open. Their successes only show at debug level.
var quietPaths = map[string]bool{
	"/frame.jpg":     true,
	"/stream.mjpeg":  true,
	"/api/frames/ws": true,
	"/api/events":    true,
	"/api/health":    true,
	"/display.png":   true,
	"/api/stats":     true,
}

// requestLevel picks the log level for a finished request.
func requestLevel(method, path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case method == http.MethodOptions, quietPaths[path], status == http.StatusNotModified:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func logRequest(ctx context.Context, method, path, remote string, status int, start time.Time, extra ...slog.Attr) {
	logger := logging.GetLogger("http")
	level := requestLevel(method, path, status)
	if !logger.Enabled(ctx, level) {
		return
	}
	attrs := append([]slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("remote_addr", remote),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	}, extra...)
	logger.LogAttrs(ctx, level, "HTTP request completed", attrs...)
}

// HTTPLoggingMiddleware logs huma operations.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)

	var extra []slog.Attr
	if q := ctx.URL().RawQuery; q != "" {
		extra = append(extra, slog.String("query", q))
	}
	logRequest(ctx.Context(), ctx.Method(), ctx.URL().Path, ctx.RemoteAddr(), ctx.Status(), start, extra...)
}

// logRequests logs raw mux routes once the response ends, which for
// streams is when the client goes away.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logRequest(r.Context(), r.Method, r.URL.Path, r.RemoteAddr, rec.status, start,
			slog.Int64("bytes", rec.written))
	})
}

// statusRecorder keeps Flush and Hijack reachable for MJPEG and websocket
// handlers.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
	wrote   bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	n, err := r.ResponseWriter.Write(b)
	r.written += int64(n)
	return n, err
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
