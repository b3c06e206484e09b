package edges

// Canny is a pure Go Canny edge detector. It keeps scratch buffers between
// calls and must not be used concurrently.
type Canny struct {
	Low  int
	High int

	gray  []uint8
	gx    []int32
	gy    []int32
	mag   []int32
	label []uint8
	stack []int
}

// NewCanny returns a detector with the default 100/200 thresholds.
func NewCanny() *Canny {
	return &Canny{Low: DefaultLowThreshold, High: DefaultHighThreshold}
}

const (
	labelNone uint8 = iota
	labelWeak
	labelStrong
)

// Detect replaces pix with its edge map as opaque gray RGBA.
// pix is only written after the edge map has been fully computed.
func (c *Canny) Detect(pix []byte, width, height int) error {
	if err := checkBuffer(pix, width, height); err != nil {
		return err
	}
	n := width * height
	c.grow(n)

	for i := 0; i < n; i++ {
		p := pix[i*4:]
		c.gray[i] = uint8((int(p[0])*4899 + int(p[1])*9617 + int(p[2])*1868 + 8192) >> 14)
	}

	c.sobel(width, height)
	c.suppress(width, height)
	c.hysteresis(width, height)

	for i := 0; i < n; i++ {
		var v uint8
		if c.label[i] == labelStrong {
			v = 255
		}
		p := pix[i*4 : i*4+4]
		p[0], p[1], p[2], p[3] = v, v, v, 255
	}
	return nil
}

func (c *Canny) grow(n int) {
	if cap(c.gray) < n {
		c.gray = make([]uint8, n)
		c.gx = make([]int32, n)
		c.gy = make([]int32, n)
		c.mag = make([]int32, n)
		c.label = make([]uint8, n)
	}
	c.gray = c.gray[:n]
	c.gx = c.gx[:n]
	c.gy = c.gy[:n]
	c.mag = c.mag[:n]
	c.label = c.label[:n]
	c.stack = c.stack[:0]
}

// sobel computes 3x3 gradients with replicated borders and the L1 magnitude.
func (c *Canny) sobel(w, h int) {
	at := func(x, y int) int32 {
		x = clampInt(x, 0, w-1)
		y = clampInt(y, 0, h-1)
		return int32(c.gray[y*w+x])
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tl, t, tr := at(x-1, y-1), at(x, y-1), at(x+1, y-1)
			l, r := at(x-1, y), at(x+1, y)
			bl, b, br := at(x-1, y+1), at(x, y+1), at(x+1, y+1)

			gx := (tr + 2*r + br) - (tl + 2*l + bl)
			gy := (bl + 2*b + br) - (tl + 2*t + tr)
			i := y*w + x
			c.gx[i] = gx
			c.gy[i] = gy
			c.mag[i] = abs32(gx) + abs32(gy)
		}
	}
}

// suppress applies non-maximum suppression along the quantized gradient
// direction and labels surviving pixels against the thresholds.
func (c *Canny) suppress(w, h int) {
	mag := func(x, y int) int32 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return c.mag[y*w+x]
	}
	low, high := int32(c.Low), int32(c.High)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := c.mag[i]
			c.label[i] = labelNone
			if m <= low {
				continue
			}

			gx, gy := c.gx[i], c.gy[i]
			ax, ay := int64(abs32(gx)), int64(abs32(gy))
			// tan(22.5) ~ 0.4142 and tan(67.5) ~ 2.4142 in Q15
			tg22 := ax * 13573
			tg67 := tg22 + ax<<16
			ay <<= 15

			var a, b int32
			switch {
			case ay < tg22:
				a, b = mag(x-1, y), mag(x+1, y)
			case ay > tg67:
				a, b = mag(x, y-1), mag(x, y+1)
			case (gx < 0) == (gy < 0):
				a, b = mag(x-1, y-1), mag(x+1, y+1)
			default:
				a, b = mag(x+1, y-1), mag(x-1, y+1)
			}
			if m <= a || m < b {
				continue
			}

			if m > high {
				c.label[i] = labelStrong
				c.stack = append(c.stack, i)
			} else {
				c.label[i] = labelWeak
			}
		}
	}
}

// hysteresis promotes weak pixels 8-connected to strong ones.
func (c *Canny) hysteresis(w, h int) {
	for len(c.stack) > 0 {
		i := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if c.label[j] == labelWeak {
					c.label[j] = labelStrong
					c.stack = append(c.stack, j)
				}
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
