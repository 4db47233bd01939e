//go:build unix

package sim

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	cachedPageSize int
	pageSizeOnce   sync.Once
)

// pageSize returns the host page size, cached
func pageSize() int {
	pageSizeOnce.Do(func() {
		cachedPageSize = unix.Getpagesize()
	})
	return cachedPageSize
}

// memory is the machine's physical memory: an anonymous mapping outside the Go
// heap, so addresses handed to the image never move.
type memory struct {
	b []byte
}

func newMemory(size int) (*memory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("sim: memory size must be positive, got %d", size)
	}
	size = alignUp(size, pageSize())
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("sim: failed to map %d bytes: %w", size, err)
	}
	return &memory{b: b}, nil
}

func (m *memory) base() uintptr {
	return uintptr(unsafe.Pointer(&m.b[0]))
}

func (m *memory) close() error {
	if m.b == nil {
		return nil
	}
	err := unix.Munmap(m.b)
	m.b = nil
	return err
}
