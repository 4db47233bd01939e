package hartboot

import (
	"errors"
	"fmt"
	"path"
	"runtime"
	"strings"
)

const unknownFile = "{unknown}"

// sourceRoot is the module directory as recorded in this binary's line
// tables. Fault locations are printed relative to it.
var sourceRoot = func() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	return path.Dir(file) + "/"
}()

// relativeSource trims the build directory from file.
func relativeSource(file string) string {
	return strings.TrimPrefix(file, sourceRoot)
}

// Fault is an unrecoverable error together with where it was raised.
type Fault struct {
	Message string
	File    string
	Line    int
	Err     error
}

// Error renders the fault the way it is printed on the console.
func (f *Fault) Error() string {
	file, line := f.File, f.Line
	if file == "" {
		file, line = unknownFile, 0
	}
	return fmt.Sprintf("%s in %s at line %d", f.Message, file, line)
}

func (f *Fault) Unwrap() error { return f.Err }

// newFault wraps err and records the caller's location.
func newFault(err error) *Fault {
	f := &Fault{Message: err.Error(), Err: err}
	if _, file, line, ok := runtime.Caller(1); ok {
		f.File, f.Line = relativeSource(file), line
	}
	return f
}

// PanicReporter prints faults to the console and halts the faulting hart.
// Other harts are left alone.
type PanicReporter struct {
	console *Console
	cpu     Processor
}

// NewPanicReporter returns a reporter printing to console and halting through cpu.
func NewPanicReporter(console *Console, cpu Processor) *PanicReporter {
	return &PanicReporter{console: console, cpu: cpu}
}

// Report prints err and halts hartID.
func (p *PanicReporter) Report(hartID uint64, err error) {
	var f *Fault
	if !errors.As(err, &f) {
		f = &Fault{Message: err.Error(), Err: err}
	}
	p.report(hartID, f)
}

// Recover turns a Go panic into a reported fault. It must be deferred directly.
func (p *PanicReporter) Recover(hartID uint64) {
	r := recover()
	if r == nil {
		return
	}

	f := &Fault{Message: panicMessage(r)}
	f.File, f.Line = panicSite()
	if err, ok := r.(error); ok {
		f.Err = err
	}
	p.report(hartID, f)
}

func (p *PanicReporter) report(hartID uint64, f *Fault) {
	recordFault()
	p.console.Printf("%s\n", f.Error())
	p.cpu.Halt(hartID)
}

func panicMessage(r any) string {
	switch t := r.(type) {
	case string:
		return t
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// panicSite finds the frame that raised the panic being recovered: the first
// non-runtime frame after runtime.gopanic.
func panicSite() (string, int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	inPanic := false
	for {
		fr, more := frames.Next()
		if inPanic && !strings.HasPrefix(fr.Function, "runtime.") {
			return relativeSource(fr.File), fr.Line
		}
		if fr.Function == "runtime.gopanic" {
			inPanic = true
		}
		if !more {
			break
		}
	}
	return unknownFile, 0
}
