// Package colorconv converts planar YUV 4:2:0 capture frames to interleaved RGBA.
//
// The transform is ITU-R BT.601 with limited-range luma (16-235), chroma
// upsampled by nearest neighbour. Alpha is always 255.
package colorconv

import (
	"errors"
	"fmt"

	"github.com/smazurov/edgeviewer/internal/frame"
)

// ErrInvalidGeometry is returned when plane sizes do not match the declared
// frame dimensions. It indicates a broken capture contract and is not recoverable.
var ErrInvalidGeometry = errors.New("invalid frame geometry")

// Fixed-point BT.601 coefficients scaled by 2^20.
const (
	shift = 20
	half  = 1 << (shift - 1)
	cy    = 1220542  // 1.164
	cvr   = 1673527  // 1.596
	cvg   = -852492  // -0.813
	cug   = -409993  // -0.391
	cub   = 2116026  // 2.018
)

// Validate checks that raw is a well-formed I420 frame.
func Validate(raw *frame.Raw) error {
	if raw == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidGeometry)
	}
	if raw.Format != frame.FormatI420 {
		return fmt.Errorf("%w: format %s, want i420", ErrInvalidGeometry, raw.Format)
	}
	if raw.Width <= 0 || raw.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidGeometry, raw.Width, raw.Height)
	}

	cw, ch := frame.ChromaSize(raw.Width, raw.Height)
	if err := checkPlane("y", raw.Y(), raw.Width, raw.Height); err != nil {
		return err
	}
	if err := checkPlane("u", raw.U(), cw, ch); err != nil {
		return err
	}
	return checkPlane("v", raw.V(), cw, ch)
}

// checkPlane verifies that p holds exactly rows rows of at least width bytes.
func checkPlane(name string, p frame.Plane, width, rows int) error {
	if p.Stride < width {
		return fmt.Errorf("%w: %s stride %d < width %d", ErrInvalidGeometry, name, p.Stride, width)
	}
	n := len(p.Data)
	got := (n + p.Stride - 1) / p.Stride
	if got != rows || n-p.Stride*(rows-1) < width {
		return fmt.Errorf("%w: %s plane of %d bytes (stride %d) is not %dx%d",
			ErrInvalidGeometry, name, n, p.Stride, width, rows)
	}
	return nil
}

// Convert allocates a new buffer and converts raw into it.
func Convert(raw *frame.Raw) (frame.RGBA, error) {
	return ConvertInto(raw, frame.NewBuffer(0))
}

// ConvertInto converts raw into dst, growing dst as needed.
func ConvertInto(raw *frame.Raw, dst *frame.Buffer) (frame.RGBA, error) {
	if err := Validate(raw); err != nil {
		return frame.RGBA{}, err
	}

	w, h := raw.Width, raw.Height
	dst.EnsureCapacity(w * h * 4)
	dst.SetGeometry(w, h, frame.FormatRGBA)
	out := dst.Bytes(w * h * 4)

	yp, up, vp := raw.Y(), raw.U(), raw.V()
	for row := 0; row < h; row++ {
		yRow := yp.Data[row*yp.Stride:]
		uRow := up.Data[(row/2)*up.Stride:]
		vRow := vp.Data[(row/2)*vp.Stride:]
		o := out[row*w*4:]
		for col := 0; col < w; col++ {
			r, g, b := yuvToRGB(yRow[col], uRow[col/2], vRow[col/2])
			i := col * 4
			o[i] = r
			o[i+1] = g
			o[i+2] = b
			o[i+3] = 0xff
		}
	}

	return frame.RGBA{
		Width:     w,
		Height:    h,
		Seq:       raw.Seq,
		Timestamp: raw.Timestamp,
		Buf:       dst,
	}, nil
}

func yuvToRGB(y, u, v uint8) (uint8, uint8, uint8) {
	yy := int(y) - 16
	if yy < 0 {
		yy = 0
	}
	yy *= cy
	uu := int(u) - 128
	vv := int(v) - 128

	r := (yy + cvr*vv + half) >> shift
	g := (yy + cvg*vv + cug*uu + half) >> shift
	b := (yy + cub*uu + half) >> shift
	return clamp(r), clamp(g), clamp(b)
}

func clamp(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}
