// Package snapshot encodes processed frames into JPEG snapshots for network readers.
package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"github.com/smazurov/edgeviewer/internal/frame"
)

// Mode selects the snapshot color fidelity.
type Mode string

// Supported modes.
const (
	ModeGray  Mode = "gray"
	ModeColor Mode = "color"
)

// DefaultQuality matches the JPEG quality used for monitoring streams.
const DefaultQuality = 90

// ParseMode parses a mode name. The empty string selects gray.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeGray:
		return ModeGray, nil
	case ModeColor:
		return ModeColor, nil
	default:
		return "", fmt.Errorf("unknown snapshot mode %q (want gray or color)", s)
	}
}

// Payload is an encoded snapshot held by the network relay. Width and
// Height are the source frame's; ImageWidth and ImageHeight are the JPEG's,
// which differ when MaxWidth downscaled it.
type Payload struct {
	JPEG          []byte    `json:"-"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	ImageWidth    int       `json:"image_width"`
	ImageHeight   int       `json:"image_height"`
	Seq           uint64    `json:"seq"`
	Timestamp     time.Time `json:"timestamp"`
	EdgeDetection bool      `json:"edge_detection"`
}

// Options configures an Encoder.
type Options struct {
	Mode     Mode
	Quality  int
	MaxWidth int
}

// Encoder turns RGBA frames into JPEG bytes. The mode is fixed for the
// encoder's lifetime so consecutive snapshots are consistent. Not safe for
// concurrent use.
type Encoder struct {
	mode     Mode
	quality  int
	maxWidth int

	gray *image.Gray
	buf  bytes.Buffer
}

// NewEncoder creates an encoder. Zero values select gray and DefaultQuality.
func NewEncoder(opts Options) *Encoder {
	if opts.Mode == "" {
		opts.Mode = ModeGray
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	return &Encoder{mode: opts.Mode, quality: opts.Quality, maxWidth: opts.MaxWidth}
}

// Mode returns the encoder mode.
func (e *Encoder) Mode() Mode {
	return e.mode
}

// Encode compresses f. The returned payload owns its bytes.
func (e *Encoder) Encode(f frame.RGBA) (Payload, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return Payload{}, fmt.Errorf("encode %dx%d frame: invalid size", f.Width, f.Height)
	}

	src := &image.RGBA{
		Pix:    f.Pix(),
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}

	var img image.Image = src
	if e.mode == ModeGray {
		img = e.toGray(src)
	}
	img = e.scale(img)

	e.buf.Reset()
	if err := jpeg.Encode(&e.buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return Payload{}, fmt.Errorf("encode frame %d: %w", f.Seq, err)
	}

	b := img.Bounds()
	return Payload{
		JPEG:        bytes.Clone(e.buf.Bytes()),
		Width:       f.Width,
		Height:      f.Height,
		ImageWidth:  b.Dx(),
		ImageHeight: b.Dy(),
		Seq:         f.Seq,
		Timestamp:   f.Timestamp,
	}, nil
}

// toGray converts with BT.601 luma weights into a reused gray image.
func (e *Encoder) toGray(src *image.RGBA) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if e.gray == nil || e.gray.Rect.Dx() != w || e.gray.Rect.Dy() != h {
		e.gray = image.NewGray(image.Rect(0, 0, w, h))
	}
	for i, j := 0, 0; j < w*h; i, j = i+4, j+1 {
		p := src.Pix[i : i+3 : i+3]
		e.gray.Pix[j] = uint8((int(p[0])*4899 + int(p[1])*9617 + int(p[2])*1868 + 8192) >> 14)
	}
	return e.gray
}

func (e *Encoder) scale(img image.Image) image.Image {
	b := img.Bounds()
	if e.maxWidth <= 0 || b.Dx() <= e.maxWidth {
		return img
	}
	h := b.Dy() * e.maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	r := image.Rect(0, 0, e.maxWidth, h)

	var dst draw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(r)
	} else {
		dst = image.NewRGBA(r)
	}
	draw.ApproxBiLinear.Scale(dst, r, img, b, draw.Src, nil)
	return dst
}
