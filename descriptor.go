package hartboot

import (
	"fmt"
	"sync"
	"time"
)

// MemoryRegion is one entry of a memory node's reg property.
type MemoryRegion struct {
	Start uint64
	Size  uint64
}

// DeviceTree is the parsed hardware descriptor the store extracts topology from.
type DeviceTree interface {
	// Model returns the root model string.
	Model() string
	// CPUs returns the hart id of every cpu node, in enumeration order.
	CPUs() []uint64
	// MemoryRegions returns every region of every memory node, in enumeration order.
	MemoryRegions() []MemoryRegion
}

// Parser decodes the descriptor blob at a physical address.
type Parser interface {
	Parse(ptr uintptr) (DeviceTree, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(ptr uintptr) (DeviceTree, error)

// Parse calls f(ptr).
func (f ParserFunc) Parse(ptr uintptr) (DeviceTree, error) { return f(ptr) }

// Descriptor is the platform topology the boot hart needs. It is never mutated
// once resolved.
type Descriptor struct {
	Model   string
	HartIDs []uint64
	Memory  []MemoryRegion
}

// HartCount returns the number of cpu nodes.
func (d *Descriptor) HartCount() int { return len(d.HartIDs) }

// MemoryStart returns the start of the first memory region.
func (d *Descriptor) MemoryStart() uint64 { return d.Memory[0].Start }

// DescriptorStore parses the device tree once and caches what it found.
type DescriptorStore struct {
	parser Parser

	once sync.Once
	desc *Descriptor
	err  error
}

// NewDescriptorStore returns a store backed by p.
func NewDescriptorStore(p Parser) *DescriptorStore {
	return &DescriptorStore{parser: p}
}

// Resolve parses the blob at ptr on the first call. Every later call returns the
// first result, whatever ptr it is given. A returned error is fatal.
func (s *DescriptorStore) Resolve(ptr uintptr) (*Descriptor, error) {
	s.once.Do(func() {
		s.desc, s.err = s.resolve(ptr)
	})
	return s.desc, s.err
}

func (s *DescriptorStore) resolve(ptr uintptr) (*Descriptor, error) {
	start := time.Now()
	defer func() {
		recordDescriptorParse(time.Since(start))
	}()

	if s.parser == nil {
		return nil, fmt.Errorf("%w: no parser configured", ErrDescriptorParse)
	}
	dt, err := s.parser.Parse(ptr)
	if err != nil {
		return nil, fmt.Errorf("%w at %#x: %w", ErrDescriptorParse, ptr, err)
	}

	desc := &Descriptor{
		Model:   dt.Model(),
		HartIDs: append([]uint64(nil), dt.CPUs()...),
	}
	if len(desc.HartIDs) == 0 {
		return nil, ErrNoHarts
	}
	mem := dt.MemoryRegions()
	if len(mem) == 0 {
		return nil, ErrNoMemory
	}
	desc.Memory = append([]MemoryRegion(nil), mem...)
	return desc, nil
}
