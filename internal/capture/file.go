package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/smazurov/edgeviewer/internal/frame"
)

// File replays a raw I420 file (concatenated frames, no header) at a fixed rate.
type File struct {
	*producer
	path   string
	width  int
	height int
	fps    int
	loop   bool
	pool   *frame.BytePool
}

// NewFile creates a file replay source.
func NewFile(path string, width, height, fps int, loop bool, logger *slog.Logger) *File {
	return &File{
		producer: newProducer(string(KindFile), logger),
		path:     path,
		width:    width,
		height:   height,
		fps:      fps,
		loop:     loop,
		pool:     frame.NewBytePool(frame.I420Size(width, height)),
	}
}

// Start implements Source.
func (f *File) Start(ctx context.Context) error {
	fh, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	err = f.start(ctx, func(ctx context.Context) error {
		defer fh.Close()
		return tick(ctx, f.fps, func() error {
			raw, readErr := f.read(fh)
			if readErr != nil {
				return readErr
			}
			f.handoff.Offer(raw)
			return nil
		})
	})
	if err != nil {
		fh.Close()
	}
	return err
}

func (f *File) read(r io.ReadSeeker) (*frame.Raw, error) {
	buf := f.pool.Get()
	_, err := io.ReadFull(r, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if !f.loop {
			f.pool.Put(buf)
			f.logger.Info("Capture file finished", "path", f.path)
			return nil, errFinished
		}
		if _, err = r.Seek(0, io.SeekStart); err != nil {
			f.pool.Put(buf)
			return nil, fmt.Errorf("rewind %s: %w", f.path, err)
		}
		_, err = io.ReadFull(r, buf)
	}
	if err != nil {
		f.pool.Put(buf)
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	planes := frame.I420Planes(buf, f.width, f.height)
	return frame.NewRaw(f.width, f.height, frame.FormatI420, planes, func() { f.pool.Put(buf) }), nil
}
