//go:build !(tamago && riscv64)

package hartboot

// SBI is the firmware reached through ecall. Outside a riscv64 image every call
// fails with ErrNotSupported.
type SBI struct{}

// ConsoleWrite returns ErrNotSupported on this platform.
func (SBI) ConsoleWrite(n, addrLo, addrHi uint64) error {
	return ErrNotSupported
}

// HartStart returns ErrNotSupported on this platform.
func (SBI) HartStart(hartID, startAddr, opaque uint64) error {
	return ErrNotSupported
}

// ConsoleWriteByte returns ErrNotSupported on this platform.
func (SBI) ConsoleWriteByte(b byte) error {
	return ErrNotSupported
}
