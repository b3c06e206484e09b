package frame

import (
	"bytes"
	"testing"
)

func TestBufferEnsureCapacity(t *testing.T) {
	b := NewBuffer(16)
	if b.Cap() != 16 {
		t.Fatalf("Cap() = %d, want 16", b.Cap())
	}

	before := &b.Bytes(16)[0]
	b.EnsureCapacity(8)
	if b.Cap() != 16 {
		t.Errorf("Cap() after shrink request = %d, want 16", b.Cap())
	}
	if &b.Bytes(16)[0] != before {
		t.Error("EnsureCapacity reallocated although capacity was sufficient")
	}

	b.EnsureCapacity(64)
	if b.Cap() != 64 {
		t.Errorf("Cap() after growth = %d, want 64", b.Cap())
	}
}

func TestBufferWrite(t *testing.T) {
	b := NewBuffer(8)
	b.Write(2, []byte{1, 2, 3})
	if got := b.Bytes(6); !bytes.Equal(got, []byte{0, 0, 1, 2, 3, 0}) {
		t.Errorf("Bytes(6) = %v", got)
	}
}

func TestBufferWriteOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Write past capacity did not panic")
		}
	}()
	b := NewBuffer(4)
	b.Write(2, []byte{1, 2, 3})
}

func TestRawReleaseOnce(t *testing.T) {
	calls := 0
	raw := NewRaw(2, 2, FormatI420, I420Planes(make([]byte, I420Size(2, 2)), 2, 2), func() { calls++ })
	chained := 0
	raw.OnRelease(func() { chained++ })

	raw.Release()
	raw.Release()

	if calls != 1 || chained != 1 {
		t.Errorf("release calls = %d/%d, want 1/1", calls, chained)
	}
}

func TestI420Planes(t *testing.T) {
	tests := []struct {
		width, height int
		cw, ch        int
	}{
		{4, 4, 2, 2},
		{5, 3, 3, 2},
		{1, 1, 1, 1},
	}
	for _, tt := range tests {
		data := make([]byte, I420Size(tt.width, tt.height))
		planes := I420Planes(data, tt.width, tt.height)
		if len(planes[0].Data) != tt.width*tt.height {
			t.Errorf("%dx%d: Y len = %d", tt.width, tt.height, len(planes[0].Data))
		}
		if planes[1].Stride != tt.cw || len(planes[1].Data) != tt.cw*tt.ch {
			t.Errorf("%dx%d: U stride/len = %d/%d, want %d/%d",
				tt.width, tt.height, planes[1].Stride, len(planes[1].Data), tt.cw, tt.cw*tt.ch)
		}
		if len(planes[2].Data) != tt.cw*tt.ch {
			t.Errorf("%dx%d: V len = %d", tt.width, tt.height, len(planes[2].Data))
		}
	}
}

func TestBytePool(t *testing.T) {
	p := NewBytePool(32)
	b := p.Get()
	if len(b) != 32 {
		t.Fatalf("len(Get()) = %d, want 32", len(b))
	}
	p.Put(b)
	p.Put(make([]byte, 4))
	if got := p.Get(); len(got) != 32 {
		t.Errorf("len(Get()) after Put = %d, want 32", len(got))
	}
}

func TestSlicePool(t *testing.T) {
	var p SlicePool
	b := p.Get(64)
	if len(b) != 64 {
		t.Fatalf("len(Get(64)) = %d", len(b))
	}
	p.Put(b)
	if got := p.Get(16); len(got) != 16 {
		t.Errorf("len(Get(16)) = %d, want 16", len(got))
	}
	if got := p.Get(128); len(got) != 128 {
		t.Errorf("len(Get(128)) = %d, want 128", len(got))
	}
}

func TestI420Stride(t *testing.T) {
	tests := []struct {
		name          string
		n             int
		width, height int
		want          int
		ok            bool
	}{
		{"tight even", I420Size(640, 480), 640, 480, 640, true},
		{"tight odd", I420Size(5, 3), 5, 3, 5, true},
		{"padded rows", 704 * 480 * 3 / 2, 640, 480, 704, true},
		{"padded odd width", 6*3 + 2*3*2, 5, 3, 6, true},
		{"short", I420Size(640, 480) - 1, 640, 480, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := I420Stride(tt.n, tt.width, tt.height)
			if got != tt.want || ok != tt.ok {
				t.Errorf("I420Stride(%d, %d, %d) = %d, %v, want %d, %v",
					tt.n, tt.width, tt.height, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestI420StridedPlanes(t *testing.T) {
	data := make([]byte, 8*4+2*4*2)
	planes := I420StridedPlanes(data, 6, 4, 8)
	want := [3]struct{ stride, n int }{{8, 32}, {4, 8}, {4, 8}}
	for i, p := range planes {
		if p.Stride != want[i].stride || len(p.Data) != want[i].n {
			t.Errorf("plane %d stride/len = %d/%d, want %d/%d", i, p.Stride, len(p.Data), want[i].stride, want[i].n)
		}
	}
	if &planes[1].Data[0] != &data[32] || &planes[2].Data[0] != &data[40] {
		t.Error("chroma planes not at padded offsets")
	}
}
