package hartboot

import "fmt"

// Launcher wakes the secondary harts through the firmware.
type Launcher struct {
	fw    Firmware
	entry uint64
}

// NewLauncher returns a launcher that starts harts at entry.
func NewLauncher(fw Firmware, entry uint64) *Launcher {
	return &Launcher{fw: fw, entry: entry}
}

// WakeAll starts every hart listed in desc except bootHart.
//
// Secondaries get 0 in a1 instead of dtb, so a secondary that ever dereferences
// it faults at once. Requests are issued one at a time and the first failure
// aborts the whole sequence; there are no retries.
func (l *Launcher) WakeAll(desc *Descriptor, bootHart uint64, dtb uintptr) error {
	for _, id := range desc.HartIDs {
		if id >= MaxHarts {
			return fmt.Errorf("cannot start hart %d: %w", id, ErrHartOutOfRange)
		}
	}

	for _, id := range desc.HartIDs {
		if id == bootHart {
			continue
		}
		if err := l.fw.HartStart(id, l.entry, 0); err != nil {
			recordHartStartFailure()
			return fmt.Errorf("failed to start hart %d: %w", id, err)
		}
		recordHartStart()
	}
	return nil
}
