//go:build tamago && riscv64

package hartboot

// SBI is the firmware reached through ecall from S-mode.
type SBI struct{}

// defined in sbi_riscv64.s
func ecall(eid, fid, a0, a1, a2 uint64) (errno int64, value uint64)

// ConsoleWrite issues sbi_debug_console_write.
func (SBI) ConsoleWrite(n, addrLo, addrHi uint64) error {
	errno, _ := ecall(EIDDebugConsole, FIDConsoleWrite, n, addrLo, addrHi)
	return sbiErr(errno)
}

// HartStart issues sbi_hart_start.
func (SBI) HartStart(hartID, startAddr, opaque uint64) error {
	errno, _ := ecall(EIDHartStateManagement, FIDHartStart, hartID, startAddr, opaque)
	return sbiErr(errno)
}

// ConsoleWriteByte issues sbi_debug_console_write_byte.
func (SBI) ConsoleWriteByte(b byte) error {
	errno, _ := ecall(EIDDebugConsole, FIDConsoleWriteByte, uint64(b), 0, 0)
	return sbiErr(errno)
}
