package display

import (
	"fmt"
	"image"
	"sync"
)

// MemorySurface is a headless surface that keeps the texture in memory.
type MemorySurface struct {
	mu       sync.RWMutex
	tex      []byte
	width    int
	height   int
	allocs   int
	presents int
}

var _ Surface = (*MemorySurface)(nil)

// NewMemorySurface creates an empty headless surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{}
}

// AllocTexture implements Surface.
func (m *MemorySurface) AllocTexture(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid texture size %dx%d", width, height)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tex = make([]byte, width*height*4)
	m.width, m.height = width, height
	m.allocs++
	return nil
}

// UploadTexture implements Surface.
func (m *MemorySurface) UploadTexture(pix []byte, width, height int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if width != m.width || height != m.height {
		return fmt.Errorf("upload %dx%d into %dx%d texture", width, height, m.width, m.height)
	}
	if len(pix) < width*height*4 {
		return fmt.Errorf("upload of %d bytes for %dx%d", len(pix), width, height)
	}
	copy(m.tex, pix)
	return nil
}

// Present implements Surface.
func (m *MemorySurface) Present() error {
	m.mu.Lock()
	m.presents++
	m.mu.Unlock()
	return nil
}

// Image returns a copy of the current texture, or nil before the first allocation.
func (m *MemorySurface) Image() *image.RGBA {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tex == nil {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	copy(img.Pix, m.tex)
	return img
}

// Counts returns allocation and present counts.
func (m *MemorySurface) Counts() (allocs, presents int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allocs, m.presents
}
