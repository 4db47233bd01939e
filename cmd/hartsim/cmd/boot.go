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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	hartboot "github.com/blacktop/go-hartboot"
	"github.com/blacktop/go-hartboot/sim"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	idleColor    = color.New(color.FgGreen).SprintFunc()
	haltedColor  = color.New(color.FgRed, color.Bold).SprintFunc()
	stoppedColor = color.New(color.FgYellow).SprintFunc()
)

func init() {
	bootCmd.Flags().Uint64P("boot-hart", "b", 0, "Hart the firmware enters first (env HARTSIM_BOOT_HART)")
	bootCmd.Flags().Bool("lottery", false, "Release every hart at once and let the boot flag pick (env HARTSIM_LOTTERY)")
	bootCmd.Flags().UintSlice("fail-hart", nil, "Make hart_start fail for these hart ids")
	bootCmd.Flags().Bool("no-memory", false, "Omit memory nodes from the generated device tree")
	bootCmd.Flags().String("dtb", "", "Boot with this device tree blob instead of a generated one")
	bootCmd.Flags().Duration("timeout", 0, "Give up if the harts have not settled (env HARTSIM_TIMEOUT)")
	bootCmd.Flags().Bool("metrics", false, "Print boot metrics as JSON")
	rootCmd.AddCommand(bootCmd)
}

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Boot a simulated machine and report every hart's final state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyFlags(cmd); err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("boot-hart") {
			config.BootHart, _ = flags.GetUint64("boot-hart")
		}
		if flags.Changed("lottery") {
			config.Lottery, _ = flags.GetBool("lottery")
		}
		if flags.Changed("timeout") {
			config.Timeout, _ = flags.GetDuration("timeout")
		}

		cfg := sim.Config{
			Harts:    config.Harts,
			BootHart: config.BootHart,
			Model:    config.Model,
			Memory:   []hartboot.MemoryRegion{{Start: config.DRAMStart, Size: config.DRAMSize}},
			Lottery:  config.Lottery,
			Console:  os.Stdout,
		}
		if noMem, _ := flags.GetBool("no-memory"); noMem {
			cfg.Memory = []hartboot.MemoryRegion{}
		}
		failing, err := flags.GetUintSlice("fail-hart")
		if err != nil {
			return err
		}
		if len(failing) > 0 {
			cfg.StartErrors = make(map[uint64]int64, len(failing))
			for _, id := range failing {
				cfg.StartErrors[uint64(id)] = hartboot.SBI_ERR_FAILED
			}
		}
		if path, _ := flags.GetString("dtb"); path != "" {
			blob, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read device tree: %w", err)
			}
			cfg.Blob = blob
		}

		hartboot.ResetMetrics()

		m, err := sim.New(cfg)
		if err != nil {
			return err
		}
		defer m.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, config.Timeout)
		defer cancel()

		if err := m.Start(); err != nil {
			return err
		}
		if err := m.Wait(ctx); err != nil {
			return err
		}

		fmt.Println()
		var halted int
		for _, h := range m.Harts() {
			state := h.State.String()
			switch h.State {
			case sim.HartIdle:
				state = idleColor(state)
			case sim.HartHalted:
				state = haltedColor(state)
				halted++
			case sim.HartStopped:
				state = stoppedColor(state)
			}
			fmt.Printf("hart %-3d %-20s opaque=%#x stack=[%#x, %#x)\n",
				h.ID, state, h.Opaque, h.Stack.StackLimit, h.Stack.StackTop)
		}

		if show, _ := flags.GetBool("metrics"); show {
			out, err := json.MarshalIndent(hartboot.GetMetrics(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
		}

		if halted > 0 {
			return fmt.Errorf("%d hart(s) halted", halted)
		}
		return nil
	},
}
