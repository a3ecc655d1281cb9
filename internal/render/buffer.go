package render

import "sync"

// Allocator hands out byte buffers for canvases and takes them back when a
// render call is done with them.
type Allocator struct {
	pool sync.Pool
}

// Alloc returns a zeroed buffer of exactly size bytes.
func (a *Allocator) Alloc(size int) []byte {
	if v := a.pool.Get(); v != nil {
		buf := *(v.(*[]byte))
		if cap(buf) >= size {
			buf = buf[:size]
			clear(buf)
			return buf
		}
	}
	return make([]byte, size)
}

// Release returns buf to the allocator. buf must not be used afterwards.
func (a *Allocator) Release(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	buf = buf[:0]
	a.pool.Put(&buf)
}

var defaultAllocator Allocator
