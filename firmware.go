package hartboot

// SBI extension and function ids used by the boot path.
const (
	EIDDebugConsole = 0x4442434E // "DBCN"
	FIDConsoleWrite = 0x0
	// FIDConsoleWriteByte backs the image's runtime print hook.
	FIDConsoleWriteByte = 0x2

	EIDHartStateManagement = 0x48534D // "HSM"
	FIDHartStart           = 0x0
)

// Firmware is the privileged call surface the boot path consumes. Both calls are
// synchronous and fallible; deciding whether a failure matters is left to the caller.
type Firmware interface {
	// ConsoleWrite asks the firmware to print n bytes found at the physical
	// address addrHi<<XLEN | addrLo.
	ConsoleWrite(n, addrLo, addrHi uint64) error
	// HartStart asks the firmware to start hartID at startAddr with opaque in a1.
	HartStart(hartID, startAddr, opaque uint64) error
}

// Processor parks the calling hart.
//
// On hardware neither method returns. Host implementations may return once the
// hart has been parked so the caller can unwind.
type Processor interface {
	// Idle waits for work that never comes yet (wait-for-interrupt).
	Idle(hartID uint64)
	// Halt stops the hart after a fatal fault.
	Halt(hartID uint64)
}
