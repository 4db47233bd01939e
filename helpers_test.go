package hartboot

import (
	"strings"
	"sync"
	"unsafe"
)

type startCall struct {
	hartID, startAddr, opaque uint64
}

// fakeFirmware records every call. Console bytes are copied out of the buffer
// the way real firmware would read them.
type fakeFirmware struct {
	mu         sync.Mutex
	console    []string
	starts     []startCall
	startErrs  map[uint64]error
	consoleErr error
}

// addrLo is a physical address as far as the firmware knows.
//
//go:nocheckptr
func (f *fakeFirmware) ConsoleWrite(n, addrLo, addrHi uint64) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addrLo))), n)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consoleErr != nil {
		return f.consoleErr
	}
	f.console = append(f.console, string(b))
	return nil
}

func (f *fakeFirmware) HartStart(hartID, startAddr, opaque uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, startCall{hartID, startAddr, opaque})
	return f.startErrs[hartID]
}

func (f *fakeFirmware) output() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.console, "")
}

func (f *fakeFirmware) startCalls() []startCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]startCall(nil), f.starts...)
}

type fakeTree struct {
	model  string
	cpus   []uint64
	memory []MemoryRegion
}

func (t *fakeTree) Model() string                 { return t.model }
func (t *fakeTree) CPUs() []uint64                { return t.cpus }
func (t *fakeTree) MemoryRegions() []MemoryRegion { return t.memory }

func denseTree(n int) *fakeTree {
	t := &fakeTree{
		model:  "riscv-virtio,qemu",
		memory: []MemoryRegion{{Start: 0x80000000, Size: 128 << 20}},
	}
	for i := 0; i < n; i++ {
		t.cpus = append(t.cpus, uint64(i))
	}
	return t
}

// countingParser returns tree (or err) and counts how often it was asked.
type countingParser struct {
	mu    sync.Mutex
	calls int
	ptrs  []uintptr
	tree  DeviceTree
	err   error
}

func (p *countingParser) Parse(ptr uintptr) (DeviceTree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.ptrs = append(p.ptrs, ptr)
	if p.err != nil {
		return nil, p.err
	}
	return p.tree, nil
}

func (p *countingParser) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeCPU records parked harts and returns, so callers unwind in tests.
type fakeCPU struct {
	mu     sync.Mutex
	idle   []uint64
	halted []uint64
}

func (c *fakeCPU) Idle(hartID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idle = append(c.idle, hartID)
}

func (c *fakeCPU) Halt(hartID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.halted = append(c.halted, hartID)
}

func (c *fakeCPU) snapshot() (idle, halted []uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint64(nil), c.idle...), append([]uint64(nil), c.halted...)
}

const testDTB uintptr = 0x87e00000
const testEntry uint64 = 0x80200000
