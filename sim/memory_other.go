//go:build !unix

package sim

import (
	"fmt"
	"unsafe"
)

func pageSize() int { return 4096 }

// memory falls back to a heap slice, trimmed to a page-aligned start.
type memory struct {
	b []byte
}

func newMemory(size int) (*memory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("sim: memory size must be positive, got %d", size)
	}
	page := pageSize()
	size = alignUp(size, page)
	raw := make([]byte, size+page)
	off := alignUp(int(uintptr(unsafe.Pointer(&raw[0]))), page) - int(uintptr(unsafe.Pointer(&raw[0])))
	return &memory{b: raw[off : off+size]}, nil
}

func (m *memory) base() uintptr {
	return uintptr(unsafe.Pointer(&m.b[0]))
}

func (m *memory) close() error {
	m.b = nil
	return nil
}
