package hartboot

import (
	"errors"
	"sync"
	"testing"
)

func TestDescriptorStoreResolve(t *testing.T) {
	p := &countingParser{tree: denseTree(3)}
	s := NewDescriptorStore(p)

	desc, err := s.Resolve(testDTB)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if desc.Model != "riscv-virtio,qemu" {
		t.Errorf("Model = %q, want %q", desc.Model, "riscv-virtio,qemu")
	}
	if desc.HartCount() != 3 {
		t.Errorf("HartCount() = %d, want 3", desc.HartCount())
	}
	if desc.MemoryStart() != 0x80000000 {
		t.Errorf("MemoryStart() = %#x, want %#x", desc.MemoryStart(), 0x80000000)
	}
	if len(p.ptrs) != 1 || p.ptrs[0] != testDTB {
		t.Errorf("parser saw %v, want [%#x]", p.ptrs, testDTB)
	}
}

func TestDescriptorStoreParsesOnce(t *testing.T) {
	p := &countingParser{tree: denseTree(2)}
	s := NewDescriptorStore(p)

	first, err := s.Resolve(testDTB)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	for _, ptr := range []uintptr{testDTB, 0, 0xdead0000} {
		again, err := s.Resolve(ptr)
		if err != nil {
			t.Fatalf("Resolve(%#x) returned error: %v", ptr, err)
		}
		if again != first {
			t.Errorf("Resolve(%#x) returned a different descriptor", ptr)
		}
	}
	if p.count() != 1 {
		t.Errorf("parser called %d times, want 1", p.count())
	}
}

func TestDescriptorStoreConcurrentResolve(t *testing.T) {
	p := &countingParser{tree: denseTree(4)}
	s := NewDescriptorStore(p)

	var wg sync.WaitGroup
	results := make([]*Descriptor, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.Resolve(testDTB + uintptr(i))
		}(i)
	}
	wg.Wait()

	if p.count() != 1 {
		t.Errorf("parser called %d times, want 1", p.count())
	}
	for i, d := range results {
		if d != results[0] {
			t.Errorf("caller %d got a different descriptor", i)
		}
	}
}

func TestDescriptorStoreFatal(t *testing.T) {
	tests := []struct {
		name   string
		parser *countingParser
		want   error
	}{
		{
			name:   "parse failure",
			parser: &countingParser{err: errors.New("bad magic")},
			want:   ErrDescriptorParse,
		},
		{
			name:   "no memory region",
			parser: &countingParser{tree: &fakeTree{model: "m", cpus: []uint64{0, 1}}},
			want:   ErrNoMemory,
		},
		{
			name:   "no cpus",
			parser: &countingParser{tree: &fakeTree{model: "m", memory: []MemoryRegion{{Start: 1, Size: 1}}}},
			want:   ErrNoHarts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewDescriptorStore(tt.parser)
			desc, err := s.Resolve(testDTB)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Resolve error = %v, want %v", err, tt.want)
			}
			if desc != nil {
				t.Errorf("Resolve returned descriptor %+v alongside error", desc)
			}

			// the failure is cached, not retried
			if _, err := s.Resolve(testDTB); !errors.Is(err, tt.want) {
				t.Errorf("second Resolve error = %v, want %v", err, tt.want)
			}
			if tt.parser.count() != 1 {
				t.Errorf("parser called %d times, want 1", tt.parser.count())
			}
		})
	}
}

func TestDescriptorStoreNoParser(t *testing.T) {
	_, err := NewDescriptorStore(nil).Resolve(testDTB)
	if !errors.Is(err, ErrDescriptorParse) {
		t.Errorf("Resolve without parser error = %v, want ErrDescriptorParse", err)
	}
}

func TestDescriptorCopiesTree(t *testing.T) {
	tree := denseTree(2)
	desc, err := NewDescriptorStore(ParserFunc(func(uintptr) (DeviceTree, error) {
		return tree, nil
	})).Resolve(testDTB)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	tree.cpus[0] = 99
	tree.memory[0].Start = 0
	if desc.HartIDs[0] != 0 || desc.MemoryStart() != 0x80000000 {
		t.Error("descriptor must not alias the parser's slices")
	}
}
