package display

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// maxPutImageBytes keeps each PutImage request under the core protocol limit.
const maxPutImageBytes = 256 * 1024

// X11Surface draws the texture into an X11 window.
type X11Surface struct {
	mu     sync.Mutex
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	window xproto.Window
	gc     xproto.Gcontext
	logger *slog.Logger
	title  string

	mapped        bool
	width         int
	height        int
	bytesPerPixel int
	stride        int
	tex           []byte
}

var _ Surface = (*X11Surface)(nil)

// NewX11Surface connects to the X server named by $DISPLAY.
func NewX11Surface(title string, logger *slog.Logger) (*X11Surface, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	setup := xproto.Setup(conn)
	return &X11Surface{
		conn:   conn,
		screen: setup.DefaultScreen(conn),
		logger: logger,
		title:  title,
	}, nil
}

// AllocTexture implements Surface. The window is created on first use and
// resized afterwards.
func (x *X11Surface) AllocTexture(width, height int) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.mapped {
		if err := x.createWindow(width, height); err != nil {
			return err
		}
	} else {
		err := xproto.ConfigureWindowChecked(x.conn, x.window,
			xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
			[]uint32{uint32(width), uint32(height)}).Check()
		if err != nil {
			return fmt.Errorf("failed to resize window: %w", err)
		}
	}

	bpp, pad, err := x.pixmapFormat()
	if err != nil {
		return err
	}
	x.bytesPerPixel = bpp
	unpadded := width * bpp
	x.stride = ((unpadded + pad - 1) / pad) * pad
	x.tex = make([]byte, x.stride*height)
	x.width, x.height = width, height
	return nil
}

// UploadTexture implements Surface by converting RGBA to the server's BGRx layout.
func (x *X11Surface) UploadTexture(pix []byte, width, height int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if width != x.width || height != x.height {
		return fmt.Errorf("upload %dx%d into %dx%d texture", width, height, x.width, x.height)
	}

	depth := x.screen.RootDepth
	for row := 0; row < height; row++ {
		dst := x.tex[row*x.stride:]
		src := pix[row*width*4:]
		for col := 0; col < width; col++ {
			s := src[col*4:]
			d := dst[col*x.bytesPerPixel:]
			d[0], d[1], d[2] = s[2], s[1], s[0]
			if x.bytesPerPixel == 4 {
				if depth == 32 {
					d[3] = s[3]
				} else {
					d[3] = 0
				}
			}
		}
	}
	return nil
}

// Present implements Surface.
func (x *X11Surface) Present() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.mapped || x.tex == nil {
		return nil
	}

	rows := maxPutImageBytes / x.stride
	if rows < 1 {
		rows = 1
	}
	for y := 0; y < x.height; y += rows {
		n := rows
		if y+n > x.height {
			n = x.height - y
		}
		err := xproto.PutImageChecked(
			x.conn,
			xproto.ImageFormatZPixmap,
			xproto.Drawable(x.window),
			x.gc,
			uint16(x.width), uint16(n),
			0, int16(y),
			0,
			x.screen.RootDepth,
			x.tex[y*x.stride:(y+n)*x.stride],
		).Check()
		if err != nil {
			return fmt.Errorf("failed to put image: %w", err)
		}
	}
	x.conn.Sync()
	return nil
}

// WatchEvents calls onLayout for expose and configure events until the
// connection closes. Run it in its own goroutine.
func (x *X11Surface) WatchEvents(onLayout func()) {
	for {
		ev, err := x.conn.WaitForEvent()
		if ev == nil && err == nil {
			return
		}
		if err != nil {
			x.logger.Debug("X11 event error", "error", err)
			continue
		}
		switch ev.(type) {
		case xproto.ExposeEvent, xproto.ConfigureNotifyEvent:
			onLayout()
		}
	}
}

// Close destroys the window and closes the connection.
func (x *X11Surface) Close() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.mapped {
		xproto.FreeGC(x.conn, x.gc)
		xproto.DestroyWindow(x.conn, x.window)
		x.mapped = false
	}
	x.conn.Close()
}

func (x *X11Surface) createWindow(width, height int) error {
	wid, err := xproto.NewWindowId(x.conn)
	if err != nil {
		return fmt.Errorf("failed to create window ID: %w", err)
	}
	x.window = wid

	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	values := []uint32{
		0x000000,
		xproto.EventMaskExposure | xproto.EventMaskStructureNotify,
	}
	err = xproto.CreateWindowChecked(
		x.conn,
		x.screen.RootDepth,
		x.window,
		x.screen.Root,
		0, 0,
		uint16(width), uint16(height),
		0,
		xproto.WindowClassInputOutput,
		x.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	if err := x.setTitle(x.title); err != nil {
		x.logger.Warn("Failed to set window title", "error", err)
	}

	if err := xproto.MapWindowChecked(x.conn, x.window).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}

	gc, err := xproto.NewGcontextId(x.conn)
	if err != nil {
		return fmt.Errorf("failed to create graphics context: %w", err)
	}
	if err := xproto.CreateGCChecked(x.conn, gc, xproto.Drawable(x.window), 0, nil).Check(); err != nil {
		return fmt.Errorf("failed to create GC: %w", err)
	}
	x.gc = gc
	x.conn.Sync()
	x.mapped = true

	x.logger.Info("Display window created",
		"width", width, "height", height, "window_id", uint32(x.window))
	return nil
}

// pixmapFormat returns bytes per pixel and scanline padding for the root depth.
func (x *X11Surface) pixmapFormat() (int, int, error) {
	depth := x.screen.RootDepth
	for _, f := range xproto.Setup(x.conn).PixmapFormats {
		if f.Depth != depth {
			continue
		}
		bpp := int(f.BitsPerPixel) / 8
		if bpp != 3 && bpp != 4 {
			return 0, 0, fmt.Errorf("unsupported bytes per pixel: %d", bpp)
		}
		pad := int(f.ScanlinePad) / 8
		if pad == 0 {
			pad = 1
		}
		return bpp, pad, nil
	}
	return 0, 0, fmt.Errorf("no pixmap format for depth %d", depth)
}

func (x *X11Surface) setTitle(title string) error {
	nameAtom, err := x.atom("_NET_WM_NAME")
	if err != nil {
		return err
	}
	utf8Atom, err := x.atom("UTF8_STRING")
	if err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(
		x.conn,
		xproto.PropModeReplace,
		x.window,
		nameAtom,
		utf8Atom,
		8,
		uint32(len(title)),
		[]byte(title),
	).Check()
}

func (x *X11Surface) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(x.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}
