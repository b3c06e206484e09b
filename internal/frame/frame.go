// Package frame defines the raw and converted frame types that flow through
// the pipeline together with the reusable memory that backs them.
package frame

import (
	"sync"
	"time"
)

// Format identifies a pixel layout.
type Format int

// Supported pixel formats.
const (
	FormatUnknown Format = iota
	// FormatI420 is planar YUV 4:2:0: full resolution Y, then quarter resolution U and V.
	FormatI420
	// FormatRGBA is interleaved 8-bit RGBA.
	FormatRGBA
)

func (f Format) String() string {
	switch f {
	case FormatI420:
		return "i420"
	case FormatRGBA:
		return "rgba"
	default:
		return "unknown"
	}
}

// Plane is one image plane and its row stride in bytes.
type Plane struct {
	Data   []byte
	Stride int
}

// Raw is a capture frame. It is read-only to the pipeline and must be
// released exactly once when processing completes.
type Raw struct {
	Width     int
	Height    int
	Format    Format
	Planes    [3]Plane
	Seq       uint64
	Timestamp time.Time

	releaseOnce sync.Once
	release     func()
}

// NewRaw builds a raw frame. The release function runs once on Release.
func NewRaw(width, height int, format Format, planes [3]Plane, release func()) *Raw {
	return &Raw{
		Width:     width,
		Height:    height,
		Format:    format,
		Planes:    planes,
		Timestamp: time.Now(),
		release:   release,
	}
}

// Y returns the luma plane.
func (r *Raw) Y() Plane { return r.Planes[0] }

// U returns the Cb plane.
func (r *Raw) U() Plane { return r.Planes[1] }

// V returns the Cr plane.
func (r *Raw) V() Plane { return r.Planes[2] }

// Release hands the frame back to its producer. Safe to call more than once.
func (r *Raw) Release() {
	r.releaseOnce.Do(func() {
		if r.release != nil {
			r.release()
		}
	})
}

// OnRelease chains fn after the existing release hook. It must be called
// before the frame is handed to a consumer.
func (r *Raw) OnRelease(fn func()) {
	prev := r.release
	r.release = func() {
		if prev != nil {
			prev()
		}
		fn()
	}
}

// RGBA is an interleaved RGBA frame backed by a reusable Buffer.
type RGBA struct {
	Width     int
	Height    int
	Seq       uint64
	Timestamp time.Time
	Buf       *Buffer
}

// Pix returns the width*height*4 pixel bytes.
func (f RGBA) Pix() []byte {
	return f.Buf.Bytes(f.Width * f.Height * 4)
}

// ChromaSize returns the expected chroma plane dimensions for a 4:2:0 frame.
func ChromaSize(width, height int) (int, int) {
	return (width + 1) / 2, (height + 1) / 2
}

// I420Size returns the byte size of a tightly packed I420 frame.
func I420Size(width, height int) int {
	cw, ch := ChromaSize(width, height)
	return width*height + 2*cw*ch
}

// I420Stride infers the luma row stride of a V4L2 YU12 buffer of n bytes.
// Chroma rows are stride/2 bytes apart. A tightly packed buffer reports
// width. ok is false when n cannot hold a width by height frame.
func I420Stride(n, width, height int) (stride int, ok bool) {
	if n == I420Size(width, height) {
		return width, true
	}
	_, ch := ChromaSize(width, height)
	stride = (n / (height + ch)) &^ 1
	if stride < width {
		return 0, false
	}
	return stride, true
}

// I420StridedPlanes slices an I420 buffer whose luma rows are stride bytes
// apart and chroma rows stride/2. stride == width is the tightly packed
// layout only for even widths; use I420Planes for tight buffers.
func I420StridedPlanes(data []byte, width, height, stride int) [3]Plane {
	_, ch := ChromaSize(width, height)
	ySize := stride * height
	cStride := stride / 2
	cSize := cStride * ch
	return [3]Plane{
		{Data: data[:ySize], Stride: stride},
		{Data: data[ySize : ySize+cSize], Stride: cStride},
		{Data: data[ySize+cSize : ySize+2*cSize], Stride: cStride},
	}
}

// I420Planes slices a tightly packed I420 buffer into its three planes.
func I420Planes(data []byte, width, height int) [3]Plane {
	cw, ch := ChromaSize(width, height)
	ySize := width * height
	cSize := cw * ch
	return [3]Plane{
		{Data: data[:ySize], Stride: width},
		{Data: data[ySize : ySize+cSize], Stride: cw},
		{Data: data[ySize+cSize : ySize+2*cSize], Stride: cw},
	}
}
