package hartboot

import (
	"sync/atomic"
	"time"
)

// Boot path counters
var (
	// Console
	consoleWrites      uint64
	consoleFailures    uint64
	consoleTruncations uint64

	// Hart state management
	hartStarts        uint64
	hartStartFailures uint64

	// Elections
	bootElections      uint64
	secondaryElections uint64

	// Device tree
	descriptorParses uint64
	totalParseTime   uint64 // nanoseconds
	faultsReported   uint64
)

// Metrics is a snapshot of the boot path counters.
type Metrics struct {
	ConsoleWrites      uint64 `json:"console_writes"`
	ConsoleFailures    uint64 `json:"console_failures"`
	ConsoleTruncations uint64 `json:"console_truncations"`
	HartStarts         uint64 `json:"hart_starts"`
	HartStartFailures  uint64 `json:"hart_start_failures"`
	BootElections      uint64 `json:"boot_elections"`
	SecondaryElections uint64 `json:"secondary_elections"`
	DescriptorParses   uint64 `json:"descriptor_parses"`
	AvgParseTimeNs     uint64 `json:"avg_parse_time_ns"`
	Faults             uint64 `json:"faults"`
}

// GetMetrics returns current boot path metrics
func GetMetrics() Metrics {
	parses := atomic.LoadUint64(&descriptorParses)

	var avgParse uint64
	if parses > 0 {
		avgParse = atomic.LoadUint64(&totalParseTime) / parses
	}

	return Metrics{
		ConsoleWrites:      atomic.LoadUint64(&consoleWrites),
		ConsoleFailures:    atomic.LoadUint64(&consoleFailures),
		ConsoleTruncations: atomic.LoadUint64(&consoleTruncations),
		HartStarts:         atomic.LoadUint64(&hartStarts),
		HartStartFailures:  atomic.LoadUint64(&hartStartFailures),
		BootElections:      atomic.LoadUint64(&bootElections),
		SecondaryElections: atomic.LoadUint64(&secondaryElections),
		DescriptorParses:   parses,
		AvgParseTimeNs:     avgParse,
		Faults:             atomic.LoadUint64(&faultsReported),
	}
}

// ResetMetrics clears all boot path metrics
func ResetMetrics() {
	atomic.StoreUint64(&consoleWrites, 0)
	atomic.StoreUint64(&consoleFailures, 0)
	atomic.StoreUint64(&consoleTruncations, 0)
	atomic.StoreUint64(&hartStarts, 0)
	atomic.StoreUint64(&hartStartFailures, 0)
	atomic.StoreUint64(&bootElections, 0)
	atomic.StoreUint64(&secondaryElections, 0)
	atomic.StoreUint64(&descriptorParses, 0)
	atomic.StoreUint64(&totalParseTime, 0)
	atomic.StoreUint64(&faultsReported, 0)
}

func recordConsoleWrite() {
	atomic.AddUint64(&consoleWrites, 1)
}

func recordConsoleFailure() {
	atomic.AddUint64(&consoleFailures, 1)
}

func recordConsoleTruncation() {
	atomic.AddUint64(&consoleTruncations, 1)
}

func recordHartStart() {
	atomic.AddUint64(&hartStarts, 1)
}

func recordHartStartFailure() {
	atomic.AddUint64(&hartStartFailures, 1)
}

func recordElection(r Role) {
	if r == RoleBoot {
		atomic.AddUint64(&bootElections, 1)
		return
	}
	atomic.AddUint64(&secondaryElections, 1)
}

func recordDescriptorParse(duration time.Duration) {
	atomic.AddUint64(&descriptorParses, 1)
	atomic.AddUint64(&totalParseTime, uint64(duration.Nanoseconds()))
}

func recordFault() {
	atomic.AddUint64(&faultsReported, 1)
}
