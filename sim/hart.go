package sim

import (
	"runtime"
	"unsafe"

	hartboot "github.com/blacktop/go-hartboot"
)

// run is the trampoline every hart goroutine starts in. It derives the hart's
// stack from its id exactly like entry_riscv64.s, then enters the coordinator
// with the two values the firmware delivered.
func (m *Machine) run(hartID, opaque uint64) {
	defer m.wg.Done()

	rec, err := m.pool.Hart(hartID)

	m.mu.Lock()
	h := m.harts[hartID]
	h.State = HartRunning
	h.Stack = rec
	m.mu.Unlock()

	if err != nil {
		// real hardware would run off the end of the pool
		m.coord.Console().Printf("hart %d: %v\n", hartID, err)
		m.Halt(hartID)
		return
	}
	m.coord.Run(hartID, uintptr(opaque))
}

// Idle parks the hart until the machine stops, then exits its goroutine.
func (m *Machine) Idle(hartID uint64) {
	m.park(hartID, HartIdle)
	<-m.stop
	runtime.Goexit()
}

// Halt parks a faulted hart until the machine stops, then exits its goroutine.
func (m *Machine) Halt(hartID uint64) {
	m.park(hartID, HartHalted)
	<-m.stop
	runtime.Goexit()
}

// ConsoleWrite implements sbi_debug_console_write against host memory.
// addrLo arrives as a physical address, so the Go pointer it came from is gone.
//
//go:nocheckptr
func (m *Machine) ConsoleWrite(n, addrLo, addrHi uint64) error {
	if m.cfg.ConsoleError != hartboot.SBI_SUCCESS {
		return hartboot.SBIError{Code: m.cfg.ConsoleError}
	}
	if addrHi != 0 || addrLo == 0 {
		return hartboot.SBIError{Code: hartboot.SBI_ERR_INVALID_ADDRESS}
	}
	if n == 0 {
		return nil
	}

	b := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addrLo))), n)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.console.Write(b)
	if m.cfg.Console != nil {
		if _, err := m.cfg.Console.Write(b); err != nil {
			return hartboot.SBIError{Code: hartboot.SBI_ERR_FAILED}
		}
	}
	return nil
}

// HartStart implements sbi_hart_start.
func (m *Machine) HartStart(hartID, startAddr, opaque uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.hartStart(hartID, startAddr, opaque)
	m.requests = append(m.requests, StartRequest{
		HartID:    hartID,
		StartAddr: startAddr,
		Opaque:    opaque,
		Err:       err,
	})
	return err
}

// hartStart validates and performs a start. Callers hold m.mu.
func (m *Machine) hartStart(hartID, startAddr, opaque uint64) error {
	h, ok := m.harts[hartID]
	if !ok {
		return hartboot.SBIError{Code: hartboot.SBI_ERR_INVALID_PARAM}
	}
	if code, ok := m.cfg.StartErrors[hartID]; ok && code != hartboot.SBI_SUCCESS {
		return hartboot.SBIError{Code: code}
	}
	if startAddr != DefaultEntry {
		return hartboot.SBIError{Code: hartboot.SBI_ERR_INVALID_ADDRESS}
	}
	if h.State != HartStopped {
		return hartboot.SBIError{Code: hartboot.SBI_ERR_ALREADY_AVAILABLE}
	}
	m.launch(h, opaque)
	return nil
}
