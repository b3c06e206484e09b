package snapshot

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/smazurov/edgeviewer/internal/frame"
)

func rgbaFrame(w, h int, r, g, b byte) frame.RGBA {
	buf := frame.NewBuffer(w * h * 4)
	pix := buf.Bytes(w * h * 4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, 255
	}
	return frame.RGBA{Width: w, Height: h, Seq: 7, Buf: buf}
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("jpeg.Decode() error = %v", err)
	}
	return img
}

func TestEncodeGray(t *testing.T) {
	enc := NewEncoder(Options{})
	p, err := enc.Encode(rgbaFrame(16, 8, 200, 100, 50))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if p.Width != 16 || p.Height != 8 || p.ImageWidth != 16 || p.ImageHeight != 8 || p.Seq != 7 {
		t.Errorf("payload = %dx%d (image %dx%d) seq %d", p.Width, p.Height, p.ImageWidth, p.ImageHeight, p.Seq)
	}

	img := decode(t, p.JPEG)
	if _, ok := img.(*image.Gray); !ok {
		t.Errorf("decoded %T, want *image.Gray", img)
	}
	// 0.299*200 + 0.587*100 + 0.114*50
	want := 124
	got := int(img.(*image.Gray).GrayAt(3, 3).Y)
	if d := got - want; d < -3 || d > 3 {
		t.Errorf("gray value = %d, want %d±3", got, want)
	}
}

func TestEncodeColor(t *testing.T) {
	enc := NewEncoder(Options{Mode: ModeColor, Quality: 95})
	p, err := enc.Encode(rgbaFrame(8, 8, 250, 10, 10))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	r, g, _, _ := decode(t, p.JPEG).At(4, 4).RGBA()
	if r>>8 < 200 || g>>8 > 60 {
		t.Errorf("decoded color r=%d g=%d, want red", r>>8, g>>8)
	}
}

func TestEncodeDownscale(t *testing.T) {
	enc := NewEncoder(Options{MaxWidth: 32})
	p, err := enc.Encode(rgbaFrame(64, 48, 128, 128, 128))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if p.Width != 64 || p.Height != 48 {
		t.Errorf("payload frame size = %dx%d, want 64x48", p.Width, p.Height)
	}
	if p.ImageWidth != 32 || p.ImageHeight != 24 {
		t.Errorf("payload image size = %dx%d, want 32x24", p.ImageWidth, p.ImageHeight)
	}
	b := decode(t, p.JPEG).Bounds()
	if b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("decoded size = %v", b)
	}
}

func TestEncodePayloadOwnsBytes(t *testing.T) {
	enc := NewEncoder(Options{})
	first, err := enc.Encode(rgbaFrame(8, 8, 0, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	saved := bytes.Clone(first.JPEG)
	if _, err := enc.Encode(rgbaFrame(8, 8, 255, 255, 255)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.JPEG, saved) {
		t.Error("second Encode() overwrote the first payload")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeGray, false},
		{"gray", ModeGray, false},
		{"COLOR", ModeColor, false},
		{"sepia", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}
