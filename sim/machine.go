// Package sim runs a hartboot image on the host. Each hart is a goroutine and
// the machine plays the SBI firmware: it owns physical memory, the debug
// console, and hart state management.
package sim

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"slices"
	"sync"

	hartboot "github.com/blacktop/go-hartboot"
	"github.com/blacktop/go-hartboot/fdt"
)

// DefaultEntry is the address secondaries must be started at.
const DefaultEntry = 0x80200000

// DefaultModel is the model string of generated device trees.
const DefaultModel = "riscv-virtio,qemu"

// DefaultMemory is the DRAM region of generated device trees.
var DefaultMemory = hartboot.MemoryRegion{Start: 0x80000000, Size: 128 << 20}

// HartState is a hart's state as the firmware sees it.
type HartState int

const (
	HartStopped HartState = iota
	HartStartPending
	HartRunning
	HartIdle
	HartHalted
)

func (s HartState) String() string {
	switch s {
	case HartStopped:
		return "stopped"
	case HartStartPending:
		return "start-pending"
	case HartRunning:
		return "running"
	case HartIdle:
		return "idle"
	case HartHalted:
		return "halted"
	default:
		return fmt.Sprintf("HartState(%d)", int(s))
	}
}

// Hart is a snapshot of one hart.
type Hart struct {
	ID     uint64
	State  HartState
	Opaque uint64
	Stack  hartboot.HartRecord
}

// StartRequest records one hart_start call.
type StartRequest struct {
	HartID    uint64
	StartAddr uint64
	Opaque    uint64
	Err       error
}

// Config describes the simulated machine.
type Config struct {
	// Harts is the number of harts, numbered 0..Harts-1. Ignored when HartIDs is set.
	Harts int
	// HartIDs lists the hart ids of the machine.
	HartIDs []uint64
	// BootHart is the hart the firmware enters first.
	BootHart uint64
	// Model is written to the generated device tree.
	Model string
	// Memory is written to the generated device tree. Nil means DefaultMemory;
	// an empty non-nil slice produces a tree without memory nodes.
	Memory []hartboot.MemoryRegion
	// Lottery starts every hart at once with the device tree pointer, leaving
	// the boot flag to pick the boot hart.
	Lottery bool
	// Blob replaces the generated device tree.
	Blob []byte
	// StartErrors makes hart_start fail with the given SBI code for a hart id.
	StartErrors map[uint64]int64
	// ConsoleError makes every console write fail with the given SBI code.
	ConsoleError int64
	// Console receives everything the image prints.
	Console io.Writer
}

// Machine is a running simulation.
type Machine struct {
	cfg   Config
	mem   *memory
	dtb   uintptr
	pool  hartboot.StackPool
	coord *hartboot.Coordinator

	mu       sync.Mutex
	harts    map[uint64]*Hart
	requests []StartRequest
	console  bytes.Buffer
	busy     int
	started  bool

	changed  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New lays out physical memory (device tree, then the stack pool) and builds
// the coordinator every hart will run.
func New(cfg Config) (*Machine, error) {
	ids := cfg.HartIDs
	if len(ids) == 0 {
		if cfg.Harts <= 0 {
			return nil, fmt.Errorf("sim: machine needs at least one hart")
		}
		for i := 0; i < cfg.Harts; i++ {
			ids = append(ids, uint64(i))
		}
	}
	if !slices.Contains(ids, cfg.BootHart) {
		return nil, fmt.Errorf("sim: boot hart %d is not one of %v", cfg.BootHart, ids)
	}
	if cfg.BootHart >= hartboot.MaxHarts {
		return nil, fmt.Errorf("sim: boot hart %d: %w", cfg.BootHart, hartboot.ErrHartOutOfRange)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Memory == nil {
		cfg.Memory = []hartboot.MemoryRegion{DefaultMemory}
	}

	blob := cfg.Blob
	if blob == nil {
		var err error
		blob, err = fdt.Build(fdt.Topology{
			Model:    cfg.Model,
			HartIDs:  ids,
			Memory:   cfg.Memory,
			BootHart: uint32(cfg.BootHart),
		})
		if err != nil {
			return nil, fmt.Errorf("sim: failed to build device tree: %w", err)
		}
	}

	if len(blob) >= 8 && binary.BigEndian.Uint32(blob) == fdt.Magic {
		if total := binary.BigEndian.Uint32(blob[4:8]); uint64(total) > uint64(len(blob)) {
			return nil, fmt.Errorf("sim: device tree claims %d bytes, %d given: %w", total, len(blob), fdt.ErrTruncated)
		}
	}

	poolOff := alignUp(len(blob), pageSize())
	mem, err := newMemory(poolOff + hartboot.StackPoolSize)
	if err != nil {
		return nil, err
	}
	copy(mem.b, blob)

	pool, err := hartboot.NewStackPool(mem.base() + uintptr(poolOff))
	if err != nil {
		mem.close()
		return nil, err
	}

	m := &Machine{
		cfg:     cfg,
		mem:     mem,
		pool:    pool,
		harts:   make(map[uint64]*Hart, len(ids)),
		changed: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	if len(blob) > 0 {
		m.dtb = mem.base()
	}
	for _, id := range ids {
		m.harts[id] = &Hart{ID: id}
	}
	m.coord = hartboot.NewCoordinator(hartboot.Config{
		Firmware:  m,
		Parser:    fdt.Parser{Limit: uint64(len(mem.b))},
		Processor: m,
		Entry:     DefaultEntry,
	})
	return m, nil
}

// Start releases the boot hart, or every hart in lottery mode.
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("sim: machine already started")
	}
	m.started = true

	if !m.cfg.Lottery {
		m.launch(m.harts[m.cfg.BootHart], uint64(m.dtb))
		return nil
	}
	for _, id := range m.ids() {
		m.launch(m.harts[id], uint64(m.dtb))
	}
	return nil
}

// Wait blocks until every released hart is idle or halted.
func (m *Machine) Wait(ctx context.Context) error {
	for {
		m.mu.Lock()
		settled := m.started && m.busy == 0
		m.mu.Unlock()
		if settled {
			return nil
		}

		select {
		case <-m.changed:
		case <-ctx.Done():
			return fmt.Errorf("sim: harts did not settle: %w", ctx.Err())
		}
	}
}

// Stop releases every parked hart. Harts still booting park and exit on their own.
func (m *Machine) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

// Close stops the machine, waits for every hart goroutine and unmaps memory.
func (m *Machine) Close() error {
	m.Stop()
	m.wg.Wait()
	return m.mem.close()
}

// DeviceTree returns the physical address of the device tree blob.
func (m *Machine) DeviceTree() uintptr { return m.dtb }

// Stacks returns the machine's stack pool.
func (m *Machine) Stacks() hartboot.StackPool { return m.pool }

// Coordinator returns the coordinator the harts run.
func (m *Machine) Coordinator() *hartboot.Coordinator { return m.coord }

// Console returns everything printed so far.
func (m *Machine) Console() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.console.String()
}

// Harts returns a snapshot of every hart ordered by id.
func (m *Machine) Harts() []Hart {
	m.mu.Lock()
	defer m.mu.Unlock()

	harts := make([]Hart, 0, len(m.harts))
	for _, id := range m.ids() {
		harts = append(harts, *m.harts[id])
	}
	return harts
}

// StartRequests returns every hart_start call in issue order.
func (m *Machine) StartRequests() []StartRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}

// ids returns the hart ids sorted. Callers hold m.mu.
func (m *Machine) ids() []uint64 {
	ids := make([]uint64, 0, len(m.harts))
	for id := range m.harts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// launch moves h to start-pending and runs it. Callers hold m.mu.
func (m *Machine) launch(h *Hart, opaque uint64) {
	h.State = HartStartPending
	h.Opaque = opaque
	m.busy++
	m.wg.Add(1)
	go m.run(h.ID, opaque)
}

// park records the final state of a hart and wakes Wait.
func (m *Machine) park(hartID uint64, state HartState) {
	m.mu.Lock()
	if h, ok := m.harts[hartID]; ok && h.State != HartIdle && h.State != HartHalted {
		h.State = state
		m.busy--
	}
	m.mu.Unlock()

	select {
	case m.changed <- struct{}{}:
	default:
	}
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
