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

package main

import (
	"runtime"
	_ "unsafe"

	hartboot "github.com/blacktop/go-hartboot"
)

// QEMU virt with -m 128M
const (
	timebase = 10_000_000 // timebase-frequency
	dramEnd  = 0x88000000
)

const unset = ^uint64(0)

// set in board.s; initialized so they live in data, not bss
var (
	bootHartID uint64 = unset
	bootDTB    uint64 = unset
)

// defined in board.s
func rdtime() uint64

// RAM handed to the runtime: from the image load address up to the device
// tree QEMU places below the end of a 128 MiB machine.
//
//go:linkname ramStart runtime.ramStart
var ramStart uint64 = 0x80200000

//go:linkname ramSize runtime.ramSize
var ramSize uint64 = 0x07c00000

//go:linkname nanotime1 runtime.nanotime1
func nanotime1() int64 {
	return int64(rdtime() * (1e9 / timebase))
}

//go:linkname printk runtime.printk
func printk(c byte) {
	hartboot.SBI{}.ConsoleWriteByte(c)
}

// Init takes care of the lower level initialization triggered early in runtime
// setup. The SBI console needs none.
//
//go:linkname Init runtime.hwinit
func Init() {
	runtime.Exit = func(_ int32) {
		hartboot.WFI{}.Halt(bootHartID)
	}
}
