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
package cmd

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	hartboot "github.com/blacktop/go-hartboot"
	"github.com/blacktop/go-hartboot/fdt"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Resolve a device tree blob the way the boot hart does",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blob, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read device tree: %w", err)
		}
		desc, err := resolveBlob(blob)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		fmt.Printf("Model:      %s\n", desc.Model)
		fmt.Printf("No. CPUs:   %d\n", desc.HartCount())
		fmt.Printf("Hart IDs:   %v\n", desc.HartIDs)
		fmt.Printf("DRAM start: %#x\n", desc.MemoryStart())
		for i, r := range desc.Memory {
			fmt.Printf("memory[%d]:  %#x-%#x (%d MiB)\n", i, r.Start, r.Start+r.Size, r.Size>>20)
		}
		return nil
	},
}

// resolveBlob runs blob through a DescriptorStore in place, as the boot hart
// would at a physical address. The parser is bounded by the slice.
func resolveBlob(blob []byte) (*hartboot.Descriptor, error) {
	if len(blob) < fdt.HeaderSize {
		return nil, fmt.Errorf("%d bytes is too small to be a device tree: %w", len(blob), fdt.ErrTruncated)
	}
	store := hartboot.NewDescriptorStore(fdt.Parser{Limit: uint64(len(blob))})
	desc, err := store.Resolve(uintptr(unsafe.Pointer(&blob[0])))
	runtime.KeepAlive(blob)
	return desc, err
}
