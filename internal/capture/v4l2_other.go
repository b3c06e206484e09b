//go:build !linux

package capture

import (
	"context"
	"errors"
	"log/slog"
)

// V4L2 is only available on linux.
type V4L2 struct {
	*producer
}

// NewV4L2 returns a source whose Start always fails on this platform.
func NewV4L2(_ string, _, _ int, logger *slog.Logger) *V4L2 {
	return &V4L2{producer: newProducer(string(KindV4L2), logger)}
}

// Start implements Source.
func (v *V4L2) Start(context.Context) error {
	return errors.New("v4l2 capture is only supported on linux")
}
