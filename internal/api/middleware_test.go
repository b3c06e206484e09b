package api

import (
	"image"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLevel(t *testing.T) {
	tests := []struct {
		method string
		path   string
		status int
		want   slog.Level
	}{
		{http.MethodGet, "/frame.jpg", http.StatusOK, slog.LevelDebug},
		{http.MethodGet, "/frame.jpg", http.StatusNotModified, slog.LevelDebug},
		{http.MethodGet, "/frame.jpg", http.StatusServiceUnavailable, slog.LevelError},
		{http.MethodGet, "/stream.mjpeg", http.StatusOK, slog.LevelDebug},
		{http.MethodGet, "/api/frames/ws", http.StatusSwitchingProtocols, slog.LevelDebug},
		{http.MethodGet, "/api/frames/ws", http.StatusUnauthorized, slog.LevelWarn},
		{http.MethodPut, "/api/edge-detection", http.StatusOK, slog.LevelInfo},
		{http.MethodPut, "/api/edge-detection", http.StatusUnprocessableEntity, slog.LevelWarn},
		{http.MethodOptions, "/api/edge-detection", http.StatusNoContent, slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := requestLevel(tt.method, tt.path, tt.status); got != tt.want {
			t.Errorf("requestLevel(%s %s %d) = %v, want %v", tt.method, tt.path, tt.status, got, tt.want)
		}
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	sr.WriteHeader(http.StatusUnauthorized)
	sr.WriteHeader(http.StatusOK)
	_, _ = sr.Write([]byte("denied"))
	sr.Flush()

	if sr.status != http.StatusUnauthorized {
		t.Errorf("status = %d, want first written 401", sr.status)
	}
	if sr.written != 6 {
		t.Errorf("written = %d, want 6", sr.written)
	}
	if !rec.Flushed {
		t.Error("Flush not forwarded")
	}
	if _, _, err := sr.Hijack(); err == nil {
		t.Error("Hijack() on a non-hijacker returned nil error")
	}
}

func TestCORSPreflightAllowsConditionalPolls(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodOptions, "/frame.jpg", "", http.Header{
		"Origin":                         {"http://viewer.local"},
		"Access-Control-Request-Method":  {"GET"},
		"Access-Control-Request-Headers": {"If-None-Match"},
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "If-None-Match") {
		t.Errorf("Allow-Headers = %q, want If-None-Match", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPut) {
		t.Errorf("Allow-Methods = %q, want PUT", got)
	}
}

func TestCORSExposesFrameHeaders(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.DisplayImage = func() *image.RGBA { return image.NewRGBA(image.Rect(0, 0, 1, 1)) }
	})
	f.publish("jpeg")

	for _, path := range []string{"/frame.jpg", "/display.png"} {
		rec := f.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("%s Allow-Origin = %q, want *", path, got)
		}
		expose := rec.Header().Get("Access-Control-Expose-Headers")
		for _, h := range []string{"ETag", "X-Frame-Seq", "X-Frame-Size"} {
			if !strings.Contains(expose, h) {
				t.Errorf("%s Expose-Headers = %q, missing %s", path, expose, h)
			}
		}
	}
}
