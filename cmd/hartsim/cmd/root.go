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
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// Config holds the machine defaults. Every field can be set from the
// environment and overridden by the matching flag.
type Config struct {
	Harts     int           `env:"HARTSIM_HARTS" envDefault:"3"`
	BootHart  uint64        `env:"HARTSIM_BOOT_HART" envDefault:"0"`
	Model     string        `env:"HARTSIM_MODEL" envDefault:"riscv-virtio,qemu"`
	DRAMStart uint64        `env:"HARTSIM_DRAM_START" envDefault:"2147483648"`
	DRAMSize  uint64        `env:"HARTSIM_DRAM_SIZE" envDefault:"134217728"`
	Lottery   bool          `env:"HARTSIM_LOTTERY"`
	Timeout   time.Duration `env:"HARTSIM_TIMEOUT" envDefault:"5s"`
}

var config Config

// loadConfig loads configuration from environment variables.
func loadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

var rootCmd = &cobra.Command{
	Use:   "hartsim",
	Short: "Boot hartboot images on a simulated multi-hart RISC-V machine",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		config = c
		return nil
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntP("harts", "n", 0, "Number of harts (env HARTSIM_HARTS)")
	rootCmd.PersistentFlags().String("model", "", "Device tree model string (env HARTSIM_MODEL)")
	rootCmd.PersistentFlags().Uint64("dram-start", 0, "DRAM start address (env HARTSIM_DRAM_START)")
	rootCmd.PersistentFlags().Uint64("dram-size", 0, "DRAM size in bytes (env HARTSIM_DRAM_SIZE)")
}

// applyFlags overrides config with every machine flag set on the command line.
func applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()

	if flags.Changed("harts") {
		n, err := flags.GetInt("harts")
		if err != nil {
			return err
		}
		config.Harts = n
	}
	if flags.Changed("model") {
		m, err := flags.GetString("model")
		if err != nil {
			return err
		}
		config.Model = m
	}
	if flags.Changed("dram-start") {
		v, err := flags.GetUint64("dram-start")
		if err != nil {
			return err
		}
		config.DRAMStart = v
	}
	if flags.Changed("dram-size") {
		v, err := flags.GetUint64("dram-size")
		if err != nil {
			return err
		}
		config.DRAMSize = v
	}
	if config.Harts <= 0 {
		return fmt.Errorf("harts must be positive, got %d", config.Harts)
	}
	return nil
}
