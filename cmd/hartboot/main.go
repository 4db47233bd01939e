/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

//go:build tamago && riscv64

// Command hartboot is the bare metal image: it wires the SBI firmware, the
// device tree parser and the wfi processor into hartboot.Image and runs the
// boot hart through it.
//
// Build with the TamaGo toolchain and boot under OpenSBI, for example on QEMU virt:
//
//	GOOS=tamago GOARCH=riscv64 $TAMAGO build -ldflags "-T 0x80210000 -E _rt0_hartboot -R 0x1000" -o hartboot.elf ./cmd/hartboot
//	qemu-system-riscv64 -machine virt -smp 4 -m 128M -nographic -kernel hartboot.elf
package main

import (
	hartboot "github.com/blacktop/go-hartboot"
	"github.com/blacktop/go-hartboot/fdt"
)

func main() {
	if bootHartID == unset || bootDTB == unset {
		hartboot.NewConsole(hartboot.SBI{}).Printf("hartboot: image entered without firmware arguments\n")
		hartboot.WFI{}.Halt(0)
	}

	// the blob must not run past the end of DRAM
	var limit uint64
	if bootDTB < dramEnd {
		limit = dramEnd - bootDTB
	}

	hartboot.Image = hartboot.NewCoordinator(hartboot.Config{
		Firmware:  hartboot.SBI{},
		Parser:    fdt.Parser{Limit: limit},
		Processor: hartboot.WFI{},
		Entry:     hartboot.EntryAddress(),
	})
	hartboot.Image.Run(bootHartID, uintptr(bootDTB))
}
