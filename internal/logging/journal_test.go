package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

type journalCapture struct {
	message  string
	priority journal.Priority
	fields   map[string]string
	err      error
	calls    int
}

func (c *journalCapture) send(message string, priority journal.Priority, fields map[string]string) error {
	c.calls++
	c.message, c.priority, c.fields = message, priority, fields
	return c.err
}

func TestJournalKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"module", "MODULE"},
		{"edge_detection", "EDGE_DETECTION"},
		{"http.status", "HTTP_STATUS"},
		{"frame-seq", "FRAME_SEQ"},
		{"_source", "SOURCE"},
		{"2x", "ATTR_2X"},
		{"message", "ATTR_MESSAGE"},
		{"priority", "ATTR_PRIORITY"},
		{"__", ""},
	}
	for _, tt := range tests {
		if got := journalKey(tt.in); got != tt.want {
			t.Errorf("journalKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJournalHandlerFields(t *testing.T) {
	c := &journalCapture{}
	h := newJournalHandler(slog.LevelDebug, c.send)
	logger := slog.New(h).With("module", "capture").WithGroup("frame")

	logger.Warn("Short frame",
		"seq", 7,
		"ratio", 0.5,
		"error", errors.New("truncated"),
		slog.Group("size", "w", 640),
		"at", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	)

	if c.message != "Short frame" || c.priority != journal.PriWarning {
		t.Errorf("entry = %q %d, want Short frame %d", c.message, c.priority, journal.PriWarning)
	}
	want := map[string]string{
		"SYSLOG_IDENTIFIER": SyslogIdentifier,
		"MODULE":            "capture",
		"FRAME_SEQ":         "7",
		"FRAME_RATIO":       "0.5",
		"FRAME_ERROR":       "truncated",
		"FRAME_SIZE_W":      "640",
		"FRAME_AT":          "2026-01-02T03:04:05Z",
	}
	for k, v := range want {
		if got := c.fields[k]; got != v {
			t.Errorf("fields[%s] = %q, want %q", k, got, v)
		}
	}
	if !strings.HasSuffix(c.fields["CODE_FILE"], "journal_test.go") {
		t.Errorf("CODE_FILE = %q, want this file", c.fields["CODE_FILE"])
	}
}

func TestJournalHandlerWithAttrsIsolated(t *testing.T) {
	c := &journalCapture{}
	base := slog.New(newJournalHandler(slog.LevelInfo, c.send))
	a := base.With("module", "api")
	b := base.With("module", "pipeline")

	a.Info("one")
	if c.fields["MODULE"] != "api" {
		t.Errorf("MODULE = %q, want api", c.fields["MODULE"])
	}
	b.Info("two")
	if c.fields["MODULE"] != "pipeline" {
		t.Errorf("MODULE = %q, want pipeline", c.fields["MODULE"])
	}
	base.Info("three")
	if _, ok := c.fields["MODULE"]; ok {
		t.Error("base logger picked up a derived logger's attrs")
	}
}

func TestJournalHandlerLevel(t *testing.T) {
	c := &journalCapture{}
	level := &slog.LevelVar{}
	level.Set(slog.LevelWarn)
	logger := slog.New(newJournalHandler(level, c.send))

	logger.Info("hidden")
	if c.calls != 0 {
		t.Errorf("calls = %d below level, want 0", c.calls)
	}
	level.Set(slog.LevelInfo)
	logger.Info("shown")
	if c.calls != 1 {
		t.Errorf("calls = %d after lowering level, want 1", c.calls)
	}
}

func TestJournalHandlerReturnsSendError(t *testing.T) {
	c := &journalCapture{err: errors.New("socket gone")}
	h := newJournalHandler(slog.LevelInfo, c.send)
	r := slog.NewRecord(time.Now(), slog.LevelError, "lost", 0)

	for range 2 {
		if err := h.Handle(t.Context(), r); err == nil {
			t.Error("Handle() error = nil, want send error")
		}
	}
	if !h.failed.Load() {
		t.Error("failure not recorded")
	}
	c.err = nil
	if err := h.Handle(t.Context(), r); err != nil {
		t.Errorf("Handle() after recovery = %v", err)
	}
	if h.failed.Load() {
		t.Error("failure flag not cleared after recovery")
	}
}
