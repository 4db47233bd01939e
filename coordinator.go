package hartboot

import "sync/atomic"

// Role is what a hart became after the boot flag exchange.
type Role int

const (
	RoleSecondary Role = iota
	RoleBoot
)

func (r Role) String() string {
	switch r {
	case RoleBoot:
		return "boot"
	case RoleSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// BootContext is the state shared by every hart of one image. Only the boot
// flag is written concurrently; the descriptor is written once by the winner.
type BootContext struct {
	started atomic.Bool
	store   *DescriptorStore
}

// NewBootContext returns a context resolving its descriptor through p.
func NewBootContext(p Parser) *BootContext {
	return &BootContext{store: NewDescriptorStore(p)}
}

// Elect flips the boot flag. Exactly one caller over the lifetime of the
// context gets true.
func (bc *BootContext) Elect() bool {
	return bc.started.CompareAndSwap(false, true)
}

// Started reports whether a boot hart has been elected.
func (bc *BootContext) Started() bool { return bc.started.Load() }

// Descriptors returns the store holding the resolved device tree.
func (bc *BootContext) Descriptors() *DescriptorStore { return bc.store }

// Config collects what a Coordinator is built from.
type Config struct {
	Firmware  Firmware
	Parser    Parser
	Processor Processor
	// Entry is the physical address secondaries are started at.
	Entry uint64
}

// Coordinator runs the per-hart boot sequence.
type Coordinator struct {
	boot     *BootContext
	console  *Console
	launcher *Launcher
	cpu      Processor
	panics   *PanicReporter
}

// NewCoordinator builds a coordinator with a fresh BootContext.
func NewCoordinator(cfg Config) *Coordinator {
	console := NewConsole(cfg.Firmware)
	return &Coordinator{
		boot:     NewBootContext(cfg.Parser),
		console:  console,
		launcher: NewLauncher(cfg.Firmware, cfg.Entry),
		cpu:      cfg.Processor,
		panics:   NewPanicReporter(console, cfg.Processor),
	}
}

// Context returns the coordinator's boot context.
func (c *Coordinator) Context() *BootContext { return c.boot }

// Console returns the console the coordinator prints to.
func (c *Coordinator) Console() *Console { return c.console }

// Run is the first Go code every hart executes. It never returns on hardware:
// the hart ends idle, or halted after a fault.
func (c *Coordinator) Run(hartID uint64, dtb uintptr) {
	defer c.panics.Recover(hartID)

	if _, err := c.Boot(hartID, dtb); err != nil {
		c.panics.Report(hartID, err)
		return
	}
	c.cpu.Idle(hartID)
}

// Boot elects the boot hart and performs its one-time work. Secondaries only
// announce themselves. A returned error is fatal to hartID.
func (c *Coordinator) Boot(hartID uint64, dtb uintptr) (Role, error) {
	if !c.boot.Elect() {
		recordElection(RoleSecondary)
		c.console.Printf("Hart %d starting...\n", hartID)
		return RoleSecondary, nil
	}
	recordElection(RoleBoot)

	c.console.Printf("\n\n\n")
	c.console.Printf("hartboot: bringing up harts\n")
	c.console.Printf("Boot hart: %d\n\n", hartID)

	desc, err := c.boot.store.Resolve(dtb)
	if err != nil {
		return RoleBoot, newFault(err)
	}

	c.console.Printf("Device tree info:\n")
	c.console.Printf("Model: %s\n", desc.Model)
	c.console.Printf("No. CPUs: %d\n", desc.HartCount())
	c.console.Printf("DRAM start: %#x\n", desc.MemoryStart())
	c.console.Printf("\n")

	if err := c.launcher.WakeAll(desc, hartID, dtb); err != nil {
		return RoleBoot, newFault(err)
	}
	return RoleBoot, nil
}
