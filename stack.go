package hartboot

import "fmt"

const (
	// StackSize is the per-hart stack size.
	StackSize = 64 << 10
	// MaxHarts is the number of harts the stack pool has room for.
	MaxHarts = 8
	// StackAlign is the stack pointer alignment required by the RISC-V calling convention.
	StackAlign = 16
	// StackPoolSize is the size of the static stack pool. Hart h grows down from
	// slice boundary h+1, so the last slice is never handed out.
	StackPoolSize = StackSize * (MaxHarts + 1)
)

// HartRecord is the identity and stack of one hart.
type HartRecord struct {
	ID         uint64
	StackLimit uintptr // lowest usable address
	StackTop   uintptr // initial sp, stack grows down from here
}

func (r HartRecord) String() string {
	return fmt.Sprintf("hart %d stack [%#x, %#x)", r.ID, r.StackLimit, r.StackTop)
}

// Contains reports whether addr lies in the hart's stack.
func (r HartRecord) Contains(addr uintptr) bool {
	return addr >= r.StackLimit && addr < r.StackTop
}

// StackPool partitions a block of StackPoolSize bytes into per-hart stacks.
// Hart h owns slice h, [base+h*StackSize, base+(h+1)*StackSize); slice MaxHarts
// at the top of the pool is the guard and belongs to no hart.
type StackPool struct {
	base uintptr
}

// NewStackPool wraps the pool starting at base.
func NewStackPool(base uintptr) (StackPool, error) {
	if base%StackAlign != 0 {
		return StackPool{}, fmt.Errorf("%w: %#x", ErrMisalignedPool, base)
	}
	return StackPool{base: base}, nil
}

// Base returns the first address of the pool.
func (p StackPool) Base() uintptr { return p.base }

// Hart returns the stack record for hart id.
func (p StackPool) Hart(id uint64) (HartRecord, error) {
	if id >= MaxHarts {
		return HartRecord{}, fmt.Errorf("%w: hart %d", ErrHartOutOfRange, id)
	}
	top := StackTop(p.base, id)
	return HartRecord{ID: id, StackLimit: top - StackSize, StackTop: top}, nil
}

// StackTop is the value the entry trampoline loads into sp for hart id.
// It must stay in sync with entry_riscv64.s.
func StackTop(base uintptr, id uint64) uintptr {
	return base + uintptr(id+1)*StackSize
}
