package frame

import "fmt"

// Buffer is a reusable block of pixel memory with declared dimensions.
// Storage grows on demand and never shrinks.
type Buffer struct {
	data   []byte
	width  int
	height int
	format Format
}

// NewBuffer creates a buffer with at least capacity bytes of storage.
func NewBuffer(capacity int) *Buffer {
	b := &Buffer{}
	b.EnsureCapacity(capacity)
	return b
}

// EnsureCapacity grows the backing storage to hold at least n bytes.
// Contents are not preserved across growth.
func (b *Buffer) EnsureCapacity(n int) {
	if n <= cap(b.data) {
		b.data = b.data[:cap(b.data)]
		return
	}
	b.data = make([]byte, n)
}

// Cap returns the current storage capacity in bytes.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Write copies p into the buffer at offset.
// Callers guarantee offset+len(p) <= Cap(); a violation panics.
func (b *Buffer) Write(offset int, p []byte) {
	if offset < 0 || offset+len(p) > len(b.data) {
		panic(fmt.Sprintf("frame: write [%d:%d] out of range for buffer of %d bytes",
			offset, offset+len(p), len(b.data)))
	}
	copy(b.data[offset:], p)
}

// Bytes returns the first n bytes of storage. It panics if n exceeds Cap().
func (b *Buffer) Bytes(n int) []byte {
	return b.data[:n]
}

// SetGeometry records the dimensions and pixel format of the current contents.
func (b *Buffer) SetGeometry(width, height int, format Format) {
	b.width = width
	b.height = height
	b.format = format
}

// Geometry returns the declared width, height and format.
func (b *Buffer) Geometry() (width, height int, format Format) {
	return b.width, b.height, b.format
}
