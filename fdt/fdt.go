// Package fdt reads the topology hartboot needs out of a flattened device tree.
//
// Decoding the blob itself is done by github.com/u-root/u-root/pkg/dt; this
// package only walks the resulting nodes.
package fdt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unsafe"

	hartboot "github.com/blacktop/go-hartboot"
	"github.com/u-root/u-root/pkg/dt"
)

// Magic is the big-endian value every FDT blob starts with.
const Magic = 0xd00dfeed

// HeaderSize is the size of the v17 header every blob starts with.
const HeaderSize = 40

var (
	ErrNilPointer = errors.New("fdt: nil device tree pointer")
	ErrBadMagic   = errors.New("fdt: bad magic")
	ErrTruncated  = errors.New("fdt: blob smaller than its header")
	ErrTooLarge   = errors.New("fdt: blob extends past readable memory")
	ErrNoRoot     = errors.New("fdt: no root node")
)

// Tree is a parsed device tree.
type Tree struct {
	root *dt.Node
}

// Read parses a blob from r.
func Read(r io.ReadSeeker) (*Tree, error) {
	f, err := dt.ReadFDT(r)
	if err != nil {
		return nil, fmt.Errorf("fdt: failed to read blob: %w", err)
	}
	if f.RootNode == nil {
		return nil, ErrNoRoot
	}
	return &Tree{root: f.RootNode}, nil
}

// FromBytes parses an in-memory blob.
func FromBytes(b []byte) (*Tree, error) {
	if len(b) < HeaderSize {
		return nil, ErrTruncated
	}
	if m := binary.BigEndian.Uint32(b); m != Magic {
		return nil, fmt.Errorf("%w: %#x", ErrBadMagic, m)
	}
	if total := binary.BigEndian.Uint32(b[4:8]); uint64(total) > uint64(len(b)) {
		return nil, fmt.Errorf("%w: totalsize %#x, %#x bytes given", ErrTooLarge, total, len(b))
	}
	return Read(bytes.NewReader(b))
}

// Parser reads the blob the firmware left at a physical address. The header's
// totalsize bounds the read.
type Parser struct {
	// Limit is the number of readable bytes at the blob address. A header
	// claiming more is rejected before anything past it is touched.
	// Zero trusts totalsize.
	Limit uint64
}

// Parse implements hartboot.Parser.
func (p Parser) Parse(ptr uintptr) (hartboot.DeviceTree, error) {
	b, err := blobAt(ptr, p.Limit)
	if err != nil {
		return nil, err
	}
	t, err := FromBytes(b)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// blobAt maps the blob at ptr in place. ptr is a physical address handed over
// by firmware, not a Go pointer.
//
//go:nocheckptr
func blobAt(ptr uintptr, limit uint64) ([]byte, error) {
	if ptr == 0 {
		return nil, ErrNilPointer
	}
	if limit != 0 && limit < HeaderSize {
		return nil, ErrTruncated
	}
	hdr := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), HeaderSize)
	if m := binary.BigEndian.Uint32(hdr[0:4]); m != Magic {
		return nil, fmt.Errorf("%w at %#x: %#x", ErrBadMagic, ptr, m)
	}
	total := binary.BigEndian.Uint32(hdr[4:8])
	if total < HeaderSize {
		return nil, ErrTruncated
	}
	if limit != 0 && uint64(total) > limit {
		return nil, fmt.Errorf("%w: totalsize %#x, %#x bytes readable", ErrTooLarge, total, limit)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), total), nil
}

// Model returns the root model, falling back to the first compatible string.
func (t *Tree) Model() string {
	if p, ok := property(t.root, "model"); ok {
		return firstString(p.Value)
	}
	if p, ok := property(t.root, "compatible"); ok {
		return firstString(p.Value)
	}
	return ""
}

// CPUs returns the hart id of every cpu node under /cpus.
//
// The id comes from reg. Nodes without reg fall back to their unit address,
// then to their position.
func (t *Tree) CPUs() []uint64 {
	cpus, ok := child(t.root, "cpus")
	if !ok {
		return nil
	}
	ac := cells(cpus, "#address-cells", 1)

	var ids []uint64
	for i, n := range cpus.Children {
		if nodeName(n.Name) != "cpu" {
			continue
		}
		if p, ok := property(n, "reg"); ok && ac > 0 && len(p.Value) >= ac*4 {
			ids = append(ids, readCells(p.Value, ac))
			continue
		}
		if id, err := strconv.ParseUint(unitAddress(n.Name), 16, 64); err == nil {
			ids = append(ids, id)
			continue
		}
		ids = append(ids, uint64(i))
	}
	return ids
}

// MemoryRegions returns the reg entries of every memory node under the root.
func (t *Tree) MemoryRegions() []hartboot.MemoryRegion {
	ac := cells(t.root, "#address-cells", 2)
	sc := cells(t.root, "#size-cells", 1)

	var regions []hartboot.MemoryRegion
	for _, n := range t.root.Children {
		if !isMemory(n) {
			continue
		}
		p, ok := property(n, "reg")
		if !ok {
			continue
		}
		regions = append(regions, decodeReg(p.Value, ac, sc)...)
	}
	return regions
}

func isMemory(n *dt.Node) bool {
	if nodeName(n.Name) == "memory" {
		return true
	}
	p, ok := property(n, "device_type")
	return ok && firstString(p.Value) == "memory"
}

func decodeReg(b []byte, ac, sc int) []hartboot.MemoryRegion {
	entry := (ac + sc) * 4
	if ac <= 0 || entry <= 0 {
		return nil
	}
	var regions []hartboot.MemoryRegion
	for ; len(b) >= entry; b = b[entry:] {
		r := hartboot.MemoryRegion{Start: readCells(b, ac)}
		if sc > 0 {
			r.Size = readCells(b[ac*4:], sc)
		}
		regions = append(regions, r)
	}
	return regions
}

// readCells folds n big-endian 32-bit cells into one value.
func readCells(b []byte, n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v = v<<32 | uint64(binary.BigEndian.Uint32(b[i*4:]))
	}
	return v
}

func cells(n *dt.Node, name string, def int) int {
	p, ok := property(n, name)
	if !ok || len(p.Value) != 4 {
		return def
	}
	return int(binary.BigEndian.Uint32(p.Value))
}

func property(n *dt.Node, name string) (dt.Property, bool) {
	for _, p := range n.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return dt.Property{}, false
}

func child(n *dt.Node, name string) (*dt.Node, bool) {
	for _, c := range n.Children {
		if nodeName(c.Name) == name {
			return c, true
		}
	}
	return nil, false
}

// nodeName strips the unit address: "cpu@1" -> "cpu".
func nodeName(s string) string {
	name, _, _ := strings.Cut(s, "@")
	return name
}

func unitAddress(s string) string {
	_, addr, _ := strings.Cut(s, "@")
	return addr
}

func firstString(b []byte) string {
	s, _, _ := strings.Cut(string(b), "\x00")
	return s
}
