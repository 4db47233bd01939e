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

	hartboot "github.com/blacktop/go-hartboot"
	"github.com/blacktop/go-hartboot/fdt"
	"github.com/spf13/cobra"
)

func init() {
	dtbCmd.Flags().StringP("output", "o", "hartsim.dtb", "Output file")
	dtbCmd.Flags().Uint64P("boot-hart", "b", 0, "boot_cpuid_phys written to the header (env HARTSIM_BOOT_HART)")
	dtbCmd.Flags().String("isa", "", "riscv,isa of every cpu node")
	rootCmd.AddCommand(dtbCmd)
}

var dtbCmd = &cobra.Command{
	Use:   "dtb",
	Short: "Write the device tree blob the simulator would boot with",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyFlags(cmd); err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("boot-hart") {
			config.BootHart, _ = flags.GetUint64("boot-hart")
		}
		isa, _ := flags.GetString("isa")
		out, _ := flags.GetString("output")

		ids := make([]uint64, config.Harts)
		for i := range ids {
			ids[i] = uint64(i)
		}
		blob, err := fdt.Build(fdt.Topology{
			Model:    config.Model,
			HartIDs:  ids,
			Memory:   []hartboot.MemoryRegion{{Start: config.DRAMStart, Size: config.DRAMSize}},
			BootHart: uint32(config.BootHart),
			ISA:      isa,
		})
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, blob, 0o644); err != nil {
			return fmt.Errorf("failed to write device tree: %w", err)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(blob), out)
		return nil
	},
}
