// Package edges provides in-place edge detectors for RGBA frames.
package edges

import (
	"errors"
	"fmt"
)

// Detector transforms an RGBA buffer in place without changing its
// dimensions or format. Implementations are not required to be reentrant.
type Detector interface {
	Detect(pix []byte, width, height int) error
}

// ErrBufferTooSmall is returned when pix cannot hold width*height RGBA pixels.
var ErrBufferTooSmall = errors.New("edges: buffer too small")

// Default Canny hysteresis thresholds.
const (
	DefaultLowThreshold  = 100
	DefaultHighThreshold = 200
)

func checkBuffer(pix []byte, width, height int) error {
	if width <= 0 || height <= 0 || len(pix) < width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d", ErrBufferTooSmall, len(pix), width, height)
	}
	return nil
}
