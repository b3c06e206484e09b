//go:build linux

package capture

import (
	"context"
	"log/slog"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"

	"github.com/smazurov/edgeviewer/internal/frame"
)

// fourccYU12 is V4L2_PIX_FMT_YUV420, planar I420.
const fourccYU12 = webcam.PixelFormat('Y' | 'U'<<8 | '1'<<16 | '2'<<24)

// V4L2 captures I420 frames from a Video4Linux2 device.
type V4L2 struct {
	*producer
	device string
	width  int
	height int
}

// NewV4L2 creates a V4L2 source for device, e.g. /dev/video0.
func NewV4L2(device string, width, height int, logger *slog.Logger) *V4L2 {
	if device == "" {
		device = "/dev/video0"
	}
	return &V4L2{
		producer: newProducer(string(KindV4L2), logger),
		device:   device,
		width:    width,
		height:   height,
	}
}

// Start opens the device and begins streaming.
func (v *V4L2) Start(ctx context.Context) error {
	cam, err := webcam.Open(v.device)
	if err != nil {
		return errors.Wrapf(err, "can not open device %s", v.device)
	}

	if _, ok := cam.GetSupportedFormats()[fourccYU12]; !ok {
		cam.Close()
		return errors.Errorf("device %s does not support YU12", v.device)
	}

	_, w, h, err := cam.SetImageFormat(fourccYU12, uint32(v.width), uint32(v.height))
	if err != nil {
		cam.Close()
		return errors.Wrap(err, "can not set image format")
	}
	width, height := int(w), int(h)
	if width != v.width || height != v.height {
		v.logger.Warn("Device adjusted capture size",
			"device", v.device, "requested", [2]int{v.width, v.height}, "actual", [2]int{width, height})
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return errors.Wrap(err, "can not start streaming")
	}

	tight := frame.I420Size(width, height)
	var pool *frame.BytePool
	err = v.start(ctx, func(ctx context.Context) error {
		defer cam.Close()
		defer cam.StopStreaming()
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			err := cam.WaitForFrame(1)
			switch err.(type) {
			case nil:
			case *webcam.Timeout:
				continue
			default:
				return errors.Wrap(err, "frame wait failed")
			}

			data, err := cam.ReadFrame()
			if err != nil {
				return errors.Wrap(err, "read frame failed")
			}
			if len(data) == 0 {
				continue
			}

			// Drivers may pad rows to their bytesperline; the buffer size gives it away
			stride, ok := frame.I420Stride(len(data), width, height)
			if !ok {
				return errors.Errorf("short frame: %d bytes, want %d", len(data), tight)
			}
			size := tight
			if stride != width {
				_, ch := frame.ChromaSize(width, height)
				size = stride*height + 2*(stride/2)*ch
			}
			if pool == nil || pool.Size() != size {
				if pool != nil {
					v.logger.Info("Capture row stride changed", "device", v.device, "stride", stride)
				}
				pool = frame.NewBytePool(size)
			}

			buf := pool.Get()
			copy(buf, data)
			planes := frame.I420Planes(buf, width, height)
			if stride != width {
				planes = frame.I420StridedPlanes(buf, width, height, stride)
			}
			p := pool
			v.handoff.Offer(frame.NewRaw(width, height, frame.FormatI420, planes, func() { p.Put(buf) }))
		}
	})
	if err != nil {
		cam.Close()
	}
	return err
}
