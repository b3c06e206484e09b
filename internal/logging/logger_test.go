package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"pipeline": "debug",
			"http":     "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"pipeline", true, true, true},
		{"http", false, false, true},
		{"capture", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()

			if got := handler.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(context.Background(), slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(context.Background(), slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	before := GetLogger("display")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Logger created before Initialize should NOT have debug enabled")
	}

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"display": "debug"},
	})

	after := GetLogger("display")
	if !after.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Logger after Initialize should have debug enabled")
	}
}

func TestSetLevel(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info", Format: "text"})

	logger := GetLogger("gate")
	if err := SetLevel("gate", "debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Debug not enabled after SetLevel(gate, debug)")
	}

	if err := SetLevel("global", "error"); err != nil {
		t.Fatalf("SetLevel(global) error = %v", err)
	}
	if GetLogger("snapshot").Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("Warn enabled for snapshot after global error level")
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("module override lost after global level change")
	}

	if err := SetLevel("gate", "loud"); err == nil {
		t.Error("SetLevel() with unknown level returned nil")
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")

	output := buf.String()
	if count := strings.Count(output, "debug only message"); count != 1 {
		t.Errorf("Expected 1 debug message, got %d. Output: %s", count, output)
	}
	if !strings.Contains(output, "module=test") {
		t.Errorf("WithAttrs not propagated. Output: %s", output)
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("sink down")
}

func TestMultiHandlerContinuesAfterError(t *testing.T) {
	var buf bytes.Buffer
	ok := slog.NewTextHandler(&buf, nil)
	bad := failingHandler{slog.NewTextHandler(&bytes.Buffer{}, nil)}

	multi := NewMultiHandler(bad, ok)
	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "still written", 0)
	if err := multi.Handle(context.Background(), r); err == nil {
		t.Error("Handle() error = nil, want joined error")
	}
	if !strings.Contains(buf.String(), "still written") {
		t.Error("second handler skipped after first failed")
	}
}

func TestMultiHandlerFlattensAndDerives(t *testing.T) {
	var a, b, c bytes.Buffer
	inner := NewMultiHandler(slog.NewTextHandler(&a, nil), slog.NewTextHandler(&b, nil))
	multi := NewMultiHandler(inner, slog.NewTextHandler(&c, nil))
	if len(multi.handlers) != 3 {
		t.Fatalf("len(handlers) = %d, want 3", len(multi.handlers))
	}
	if multi.WithGroup("") != slog.Handler(multi) || multi.WithAttrs(nil) != slog.Handler(multi) {
		t.Error("empty group or attrs should return the same handler")
	}

	slog.New(multi).WithGroup("req").Info("served", "status", 200)
	for name, buf := range map[string]*bytes.Buffer{"a": &a, "b": &b, "c": &c} {
		if !strings.Contains(buf.String(), "req.status=200") {
			t.Errorf("handler %s output = %q, want req.status=200", name, buf.String())
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]*slog.Level{
		"debug":   ptr(slog.LevelDebug),
		"INFO":    ptr(slog.LevelInfo),
		"warning": ptr(slog.LevelWarn),
		"error":   ptr(slog.LevelError),
		"verbose": nil,
	}
	for in, want := range tests {
		got := parseLevel(in)
		if (got == nil) != (want == nil) || (got != nil && *got != *want) {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMapLevelToPriority(t *testing.T) {
	if mapLevelToPriority(slog.LevelError) >= mapLevelToPriority(slog.LevelInfo) {
		t.Error("error priority should be more urgent than info")
	}
}

func ptr(l slog.Level) *slog.Level { return &l }
