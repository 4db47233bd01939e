package hartboot

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

// ConsoleBufferSize bounds a single console message. Longer output is truncated.
const ConsoleBufferSize = 255

// Message buffers live on the heap so their address stays valid for the firmware
// while the calling goroutine's stack may move.
var consoleBufPool = sync.Pool{
	New: func() any {
		return new(consoleBuffer)
	},
}

type consoleBuffer struct {
	data      [ConsoleBufferSize]byte
	n         int
	truncated bool
}

func (b *consoleBuffer) Write(p []byte) (int, error) {
	c := copy(b.data[b.n:], p)
	b.n += c
	if c < len(p) {
		b.truncated = true
	}
	// report the full length so fmt keeps going; overflow is dropped
	return len(p), nil
}

func (b *consoleBuffer) reset() {
	b.n = 0
	b.truncated = false
}

// Console prints short messages through the firmware debug console.
type Console struct {
	fw Firmware
}

// NewConsole returns a console writing through fw.
func NewConsole(fw Firmware) *Console {
	return &Console{fw: fw}
}

// Printf formats a message and sends it to the firmware. It reports whether the
// message had to be truncated to ConsoleBufferSize. Firmware failures are dropped:
// there is no other place to report them this early.
func (c *Console) Printf(format string, args ...any) bool {
	buf := consoleBufPool.Get().(*consoleBuffer)
	defer func() {
		buf.reset()
		consoleBufPool.Put(buf)
	}()

	fmt.Fprintf(buf, format, args...)
	c.write(buf)
	return buf.truncated
}

// Emit sends text as-is, truncated to ConsoleBufferSize.
func (c *Console) Emit(text string) bool {
	return c.Printf("%s", text)
}

func (c *Console) write(buf *consoleBuffer) {
	if buf.truncated {
		recordConsoleTruncation()
	}
	if c == nil || c.fw == nil || buf.n == 0 {
		return
	}

	addr := uintptr(unsafe.Pointer(&buf.data[0]))
	// physical addresses fit in the low word on rv64
	err := c.fw.ConsoleWrite(uint64(buf.n), uint64(addr), 0)
	runtime.KeepAlive(buf)
	if err != nil {
		recordConsoleFailure()
		return
	}
	recordConsoleWrite()
}
