package frame

import "sync"

// BytePool recycles fixed-size byte slices. Slices of a different size
// than the pool was created for are dropped on Put.
type BytePool struct {
	size int
	pool sync.Pool
}

// NewBytePool creates a pool handing out slices of size bytes.
func NewBytePool(size int) *BytePool {
	p := &BytePool{size: size}
	p.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return p
}

// Size returns the slice length handed out by the pool.
func (p *BytePool) Size() int {
	return p.size
}

// Get returns a slice of Size() bytes with undefined contents.
func (p *BytePool) Get() []byte {
	return *(p.pool.Get().(*[]byte))
}

// Put returns b to the pool.
func (p *BytePool) Put(b []byte) {
	if cap(b) < p.size {
		return
	}
	b = b[:p.size]
	p.pool.Put(&b)
}

// SlicePool recycles byte slices of varying length, such as per-frame
// display copies whose size follows the capture resolution.
type SlicePool struct {
	pool sync.Pool
}

// Get returns a slice of length n, reusing pooled storage when it is large enough.
func (p *SlicePool) Get(n int) []byte {
	if v, ok := p.pool.Get().(*[]byte); ok && cap(*v) >= n {
		return (*v)[:n]
	}
	return make([]byte, n)
}

// Put returns b to the pool.
func (p *SlicePool) Put(b []byte) {
	if cap(b) == 0 {
		return
	}
	p.pool.Put(&b)
}
