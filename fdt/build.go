package fdt

import (
	"bytes"
	"encoding/binary"
	"fmt"

	hartboot "github.com/blacktop/go-hartboot"
	"github.com/u-root/u-root/pkg/dt"
)

// Topology describes the machine Build encodes.
type Topology struct {
	Model    string
	HartIDs  []uint64
	Memory   []hartboot.MemoryRegion
	BootHart uint32
	// ISA is written to every cpu node's riscv,isa.
	ISA string
}

// Build encodes t as a QEMU virt style blob: 2 address cells and 2 size cells
// at the root, one cpu node per hart under /cpus and one memory node per region.
func Build(t Topology) ([]byte, error) {
	isa := t.ISA
	if isa == "" {
		isa = "rv64imafdc"
	}

	cpus := &dt.Node{
		Name: "cpus",
		Properties: []dt.Property{
			propU32("#address-cells", 1),
			propU32("#size-cells", 0),
			propU32("timebase-frequency", 10000000),
		},
	}
	for _, id := range t.HartIDs {
		cpus.Children = append(cpus.Children, &dt.Node{
			Name: fmt.Sprintf("cpu@%x", id),
			Properties: []dt.Property{
				propString("device_type", "cpu"),
				propU32("reg", uint32(id)),
				propString("status", "okay"),
				propString("compatible", "riscv"),
				propString("riscv,isa", isa),
			},
		})
	}

	root := &dt.Node{
		Name: "",
		Properties: []dt.Property{
			propU32("#address-cells", 2),
			propU32("#size-cells", 2),
			propString("compatible", "riscv-virtio"),
		},
		Children: []*dt.Node{cpus},
	}
	if t.Model != "" {
		root.Properties = append(root.Properties, propString("model", t.Model))
	}
	for _, r := range t.Memory {
		root.Children = append(root.Children, &dt.Node{
			Name: fmt.Sprintf("memory@%x", r.Start),
			Properties: []dt.Property{
				propString("device_type", "memory"),
				propU64s("reg", r.Start, r.Size),
			},
		})
	}

	f := &dt.FDT{
		Header: dt.Header{
			Magic:           Magic,
			Version:         17,
			LastCompVersion: 16,
			BootCpuidPhys:   t.BootHart,
		},
		RootNode: root,
	}
	var buf bytes.Buffer
	if _, err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("fdt: failed to encode blob: %w", err)
	}
	return buf.Bytes(), nil
}

func propString(name, v string) dt.Property {
	return dt.Property{Name: name, Value: append([]byte(v), 0)}
}

func propU32(name string, v uint32) dt.Property {
	return dt.Property{Name: name, Value: binary.BigEndian.AppendUint32(nil, v)}
}

func propU64s(name string, vs ...uint64) dt.Property {
	var b []byte
	for _, v := range vs {
		b = binary.BigEndian.AppendUint64(b, v)
	}
	return dt.Property{Name: name, Value: b}
}
