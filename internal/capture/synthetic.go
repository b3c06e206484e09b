package capture

import (
	"context"
	"log/slog"

	"github.com/smazurov/edgeviewer/internal/frame"
)

// Synthetic generates a moving test pattern: a diagonal luma gradient with a
// bright square sweeping across it and a slowly rotating chroma tint.
type Synthetic struct {
	*producer
	width  int
	height int
	fps    int
	pool   *frame.BytePool
	n      int
}

// NewSynthetic creates a test-pattern source.
func NewSynthetic(width, height, fps int, logger *slog.Logger) *Synthetic {
	return &Synthetic{
		producer: newProducer(string(KindSynthetic), logger),
		width:    width,
		height:   height,
		fps:      fps,
		pool:     frame.NewBytePool(frame.I420Size(width, height)),
	}
}

// Start implements Source.
func (s *Synthetic) Start(ctx context.Context) error {
	return s.start(ctx, func(ctx context.Context) error {
		return tick(ctx, s.fps, func() error {
			s.handoff.Offer(s.Next())
			return nil
		})
	})
}

// Next renders the next pattern frame.
func (s *Synthetic) Next() *frame.Raw {
	buf := s.pool.Get()
	planes := frame.I420Planes(buf, s.width, s.height)
	FillPattern(planes, s.width, s.height, s.n)
	s.n++
	return frame.NewRaw(s.width, s.height, frame.FormatI420, planes, func() { s.pool.Put(buf) })
}

// FillPattern draws pattern frame n into tightly packed I420 planes.
func FillPattern(planes [3]frame.Plane, width, height, n int) {
	side := height / 4
	if side < 1 {
		side = 1
	}
	span := width - side
	if span < 1 {
		span = 1
	}
	sx := (n * 4) % span
	sy := (height - side) / 2

	y := planes[0]
	for row := 0; row < height; row++ {
		line := y.Data[row*y.Stride:]
		inRow := row >= sy && row < sy+side
		for col := 0; col < width; col++ {
			v := byte(32 + (col+row)*160/(width+height))
			if inRow && col >= sx && col < sx+side {
				v = 235
			}
			line[col] = v
		}
	}

	cw, ch := frame.ChromaSize(width, height)
	u, v := planes[1], planes[2]
	tint := byte(n % 64)
	for row := 0; row < ch; row++ {
		ul := u.Data[row*u.Stride:]
		vl := v.Data[row*v.Stride:]
		for col := 0; col < cw; col++ {
			ul[col] = 96 + tint
			vl[col] = 160 - tint
		}
	}
}
