// Package hartboot brings up every hart of a RISC-V machine running under
// SBI firmware.
//
// Each hart enters at the same entry point with its hart id and an opaque
// value. The first hart to arrive wins the boot flag and becomes the boot
// hart: it prints a banner, resolves the device tree the firmware handed
// it, reports the topology and wakes every other hart through the SBI hart
// state management extension. Every other hart announces itself and idles.
//
// # Requirements
//
//   - GOOS=tamago GOARCH=riscv64 for the real entry point and SBI calls
//   - SBI v2.0 firmware implementing the DBCN and HSM extensions
//   - The image loaded at the entry address passed to secondaries
//
// On any other target the SBI methods return ErrNotSupported and the
// package is driven through the sim package instead.
//
// # Basic Usage
//
// Build a coordinator from a firmware, a device tree parser and a processor:
//
//	coord := hartboot.NewCoordinator(hartboot.Config{
//		Firmware:  hartboot.SBI{},
//		Parser:    fdt.Parser{},
//		Processor: hartboot.WFI{},
//		Entry:     hartboot.EntryAddress(),
//	})
//
// Every hart then calls Run with the values the firmware delivered:
//
//	coord.Run(hartID, dtb)
//
// On hardware the image assigns the coordinator to Image; secondaries reach
// it through the entry trampoline. cmd/hartboot is such an image.
//
// Run never returns on real hardware. The boot hart idles once all
// secondaries have been started, and a fatal error halts only the hart that
// hit it.
//
// # Console
//
// Console formats into a pooled 255 byte buffer and hands it to
// sbi_debug_console_write. Longer messages are cut off; Printf reports
// whether that happened. Console failures are counted and otherwise ignored.
//
// # Error Handling
//
// SBI failures are SBIError values carrying the firmware's error code and
// match with errors.Is against the SBI_ERR_* sentinels:
//
//	if errors.Is(err, hartboot.ErrHartAlreadyStarted) {
//		// hart was already running
//	}
//
// Fatal boot errors are wrapped in a Fault recording where they were raised.
// PanicReporter prints them as
//
//	<message> in <file> at line <line>
//
// and halts the hart.
//
// # Metrics
//
// Package level counters track console writes, hart starts, elections,
// device tree parses and faults. Read them with GetMetrics and clear them
// with ResetMetrics.
package hartboot
