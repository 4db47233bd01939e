//go:build tamago && riscv64

package hartboot

// Image is the coordinator every hart runs once the trampoline has set up its
// stack. The image's main assigns it before the boot hart wakes anyone.
var Image *Coordinator

// Implemented in entry_riscv64.s.
func entry()
func entryAddress() uint64
func stackPoolBase() uintptr
func wfi()

// EntryAddress returns the physical address of the per-hart trampoline, the
// start address handed to the firmware for every secondary.
func EntryAddress() uint64 { return entryAddress() }

// Stacks returns the static stack pool reserved in entry_riscv64.s.
func Stacks() (StackPool, error) { return NewStackPool(stackPoolBase()) }

// hartMain is called by the trampoline with a0 and a1 as delivered by the firmware.
// A hart released before Image is set parks for good.
//
//go:nosplit
func hartMain(hartID uint64, dtb uintptr) {
	img := Image
	if img == nil {
		for {
			wfi()
		}
	}
	img.Run(hartID, dtb)
}

// WFI parks harts with wfi. Neither method returns.
type WFI struct{}

func (WFI) Idle(hartID uint64) {
	for {
		wfi()
	}
}

func (WFI) Halt(hartID uint64) {
	for {
		wfi()
	}
}
