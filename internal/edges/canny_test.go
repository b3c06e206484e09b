package edges

import (
	"errors"
	"testing"
)

func fillRGBA(w, h int, at func(x, y int) uint8) []byte {
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := at(x, y)
			i := (y*w + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, 255
		}
	}
	return pix
}

func TestCannyUniformImageHasNoEdges(t *testing.T) {
	pix := fillRGBA(16, 16, func(int, int) uint8 { return 128 })
	if err := NewCanny().Detect(pix, 16, 16); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	for i := 0; i < len(pix); i += 4 {
		if pix[i] != 0 || pix[i+3] != 255 {
			t.Fatalf("pixel %d = %v, want opaque black", i/4, pix[i:i+4])
		}
	}
}

func TestCannyVerticalStep(t *testing.T) {
	const w, h = 16, 8
	pix := fillRGBA(w, h, func(x, _ int) uint8 {
		if x < w/2 {
			return 0
		}
		return 255
	})
	if err := NewCanny().Detect(pix, w, h); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	for y := 0; y < h; y++ {
		edgeCols := 0
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			if pix[i] == 255 {
				edgeCols++
				if x < w/2-1 || x > w/2 {
					t.Errorf("row %d: unexpected edge at x=%d", y, x)
				}
			}
			if pix[i] != pix[i+1] || pix[i] != pix[i+2] {
				t.Fatalf("pixel (%d,%d) is not gray", x, y)
			}
		}
		if edgeCols == 0 {
			t.Errorf("row %d: no edge detected at the step", y)
		}
	}
}

func TestCannyKeepsDimensions(t *testing.T) {
	pix := fillRGBA(5, 3, func(x, y int) uint8 { return uint8(x * 50) })
	before := len(pix)
	if err := NewCanny().Detect(pix, 5, 3); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(pix) != before {
		t.Errorf("len(pix) = %d, want %d", len(pix), before)
	}
}

func TestCannyRejectsShortBuffer(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	orig := append([]byte(nil), pix...)
	err := NewCanny().Detect(pix, 4, 4)
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("Detect() error = %v, want ErrBufferTooSmall", err)
	}
	for i := range pix {
		if pix[i] != orig[i] {
			t.Fatal("Detect() modified buffer on error")
		}
	}
}

func TestCannyReusesScratch(t *testing.T) {
	c := NewCanny()
	big := fillRGBA(32, 32, func(x, _ int) uint8 { return uint8(x * 8) })
	small := fillRGBA(4, 4, func(int, int) uint8 { return 10 })
	if err := c.Detect(big, 32, 32); err != nil {
		t.Fatal(err)
	}
	if err := c.Detect(small, 4, 4); err != nil {
		t.Fatal(err)
	}
	if cap(c.gray) < 32*32 {
		t.Errorf("scratch shrank to %d", cap(c.gray))
	}
}
