package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/edgeviewer/internal/frame"
)

func TestSyntheticDeliversFrames(t *testing.T) {
	src := NewSynthetic(16, 8, 200, nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer src.Stop()

	var last uint64
	for i := 0; i < 3; i++ {
		raw := receive(t, src.Frames())
		if raw.Width != 16 || raw.Height != 8 || raw.Format != frame.FormatI420 {
			t.Errorf("frame = %dx%d %s", raw.Width, raw.Height, raw.Format)
		}
		if raw.Seq <= last {
			t.Errorf("seq = %d after %d", raw.Seq, last)
		}
		last = raw.Seq
		raw.Release()
	}
}

func TestSyntheticStopClosesFrames(t *testing.T) {
	src := NewSynthetic(4, 4, 100, nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	for raw := range src.Frames() {
		raw.Release()
	}
	if err := src.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() after Stop() = %v, want ErrClosed", err)
	}
}

func TestFillPatternChromaNeutralRange(t *testing.T) {
	w, h := 6, 5
	planes := frame.I420Planes(make([]byte, frame.I420Size(w, h)), w, h)
	FillPattern(planes, w, h, 3)
	for _, v := range planes[0].Data {
		if v < 16 || v > 235 {
			t.Fatalf("luma %d outside video range", v)
		}
	}
}

func writeFrames(t *testing.T, w, h int, fills ...byte) string {
	t.Helper()
	size := frame.I420Size(w, h)
	data := make([]byte, 0, size*len(fills))
	for _, f := range fills {
		for i := 0; i < size; i++ {
			data = append(data, f)
		}
	}
	path := filepath.Join(t.TempDir(), "clip.yuv")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileReplayLoops(t *testing.T) {
	path := writeFrames(t, 4, 4, 10, 20)
	src := NewFile(path, 4, 4, 200, true, nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer src.Stop()

	seen := map[byte]bool{}
	for i := 0; i < 6 && len(seen) < 2; i++ {
		raw := receive(t, src.Frames())
		seen[raw.Y().Data[0]] = true
		raw.Release()
	}
	if !seen[10] || !seen[20] {
		t.Errorf("seen fills = %v, want both frames", seen)
	}
}

func TestFileReplayEndsWithoutLoop(t *testing.T) {
	path := writeFrames(t, 4, 4, 1)
	src := NewFile(path, 4, 4, 500, false, nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer src.Stop()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case raw, ok := <-src.Frames():
			if !ok {
				if err := src.Err(); err != nil {
					t.Errorf("Err() = %v, want nil at end of file", err)
				}
				return
			}
			raw.Release()
		case <-timeout:
			t.Fatal("Frames() not closed at end of file")
		}
	}
}

func TestNewSource(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"default synthetic", Config{Width: 4, Height: 4}, "synthetic", false},
		{"file", Config{Kind: KindFile, File: "x.yuv", Width: 4, Height: 4}, "file", false},
		{"file without path", Config{Kind: KindFile, Width: 4, Height: 4}, "", true},
		{"v4l2", Config{Kind: "V4L2", Width: 4, Height: 4}, "v4l2", false},
		{"bad size", Config{Kind: KindSynthetic}, "", true},
		{"unknown", Config{Kind: "rtsp", Width: 4, Height: 4}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewSource(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && src.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", src.Name(), tt.want)
			}
		})
	}
}
