package sim

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	hartboot "github.com/blacktop/go-hartboot"
	"github.com/blacktop/go-hartboot/fdt"
)

func boot(t *testing.T, cfg Config) *Machine {
	t.Helper()

	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := m.Close(); err != nil {
			t.Errorf("Close returned error: %v", err)
		}
	})

	if err := m.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait returned error: %v\nconsole:\n%s", err, m.Console())
	}
	return m
}

func states(m *Machine) map[uint64]HartState {
	out := make(map[uint64]HartState)
	for _, h := range m.Harts() {
		out[h.ID] = h.State
	}
	return out
}

func TestThreeHartBoot(t *testing.T) {
	var echo bytes.Buffer
	m := boot(t, Config{Harts: 3, Console: &echo})

	for id, s := range states(m) {
		if s != HartIdle {
			t.Errorf("hart %d is %v, want idle", id, s)
		}
	}

	reqs := m.StartRequests()
	if len(reqs) != 2 {
		t.Fatalf("issued %d start requests, want 2", len(reqs))
	}
	for i, want := range []uint64{1, 2} {
		r := reqs[i]
		if r.HartID != want || r.Opaque != 0 || r.StartAddr != DefaultEntry || r.Err != nil {
			t.Errorf("request %d = %+v, want hart %d at %#x with opaque 0", i, r, want, DefaultEntry)
		}
	}

	out := m.Console()
	for _, want := range []string{
		"Boot hart: 0\n",
		"Model: riscv-virtio,qemu\n",
		"No. CPUs: 3\n",
		"DRAM start: 0x80000000\n",
		"Hart 1 starting...\n",
		"Hart 2 starting...\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console missing %q:\n%s", want, out)
		}
	}
	if echo.String() != out {
		t.Error("configured console writer should see the same stream")
	}
}

func TestSecondariesNeverSeeDeviceTree(t *testing.T) {
	m := boot(t, Config{Harts: 4, BootHart: 2})

	for _, h := range m.Harts() {
		want := uint64(0)
		if h.ID == 2 {
			want = uint64(m.DeviceTree())
		}
		if h.Opaque != want {
			t.Errorf("hart %d got opaque %#x, want %#x", h.ID, h.Opaque, want)
		}
	}
}

func TestHartStacks(t *testing.T) {
	m := boot(t, Config{Harts: hartboot.MaxHarts, BootHart: 5})

	harts := m.Harts()
	base := m.Stacks().Base()
	for _, h := range harts {
		if h.Stack.StackTop != hartboot.StackTop(base, h.ID) {
			t.Errorf("hart %d stack top %#x, want %#x", h.ID, h.Stack.StackTop, hartboot.StackTop(base, h.ID))
		}
		if h.Stack.StackTop%hartboot.StackAlign != 0 {
			t.Errorf("hart %d stack top %#x not aligned", h.ID, h.Stack.StackTop)
		}
		for _, o := range harts {
			if o.ID != h.ID && h.Stack.Contains(o.Stack.StackTop-1) {
				t.Errorf("hart %d stack overlaps hart %d", h.ID, o.ID)
			}
		}
	}
}

func TestNoMemoryRegionAbortsBoot(t *testing.T) {
	m := boot(t, Config{Harts: 3, Memory: []hartboot.MemoryRegion{}})

	if reqs := m.StartRequests(); len(reqs) != 0 {
		t.Errorf("issued %d start requests, want 0", len(reqs))
	}
	st := states(m)
	if st[0] != HartHalted {
		t.Errorf("boot hart is %v, want halted", st[0])
	}
	if st[1] != HartStopped || st[2] != HartStopped {
		t.Errorf("secondaries are %v and %v, want stopped", st[1], st[2])
	}
	if !strings.Contains(m.Console(), "unable to locate DRAM start in ") {
		t.Errorf("console missing fatal diagnostic:\n%s", m.Console())
	}
}

func TestBadDeviceTree(t *testing.T) {
	m := boot(t, Config{Harts: 2, Blob: []byte("definitely not a device tree, just padding to 64 bytes......")})

	if states(m)[0] != HartHalted {
		t.Errorf("boot hart should halt on a bad device tree")
	}
	if !strings.Contains(m.Console(), "unable to parse device tree") {
		t.Errorf("console missing parse diagnostic:\n%s", m.Console())
	}
}

func TestOversizedDeviceTreeRejected(t *testing.T) {
	blob, err := fdt.Build(fdt.Topology{Model: DefaultModel, HartIDs: []uint64{0, 1}, Memory: []hartboot.MemoryRegion{DefaultMemory}})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	// totalsize and the strings block far beyond the blob
	binary.BigEndian.PutUint32(blob[4:8], 0x20000000)
	binary.BigEndian.PutUint32(blob[12:16], 0x10000000)

	m, err := New(Config{Harts: 2, Blob: blob})
	if err == nil {
		m.Close()
		t.Fatal("New should reject a blob larger than its bytes")
	}
	if !errors.Is(err, fdt.ErrTruncated) {
		t.Errorf("New error = %v, want fdt.ErrTruncated", err)
	}
}

func TestParserBoundedByMachineMemory(t *testing.T) {
	// a small header-only blob passes New; the hart must still not read past memory
	blob := make([]byte, fdt.HeaderSize)
	binary.BigEndian.PutUint32(blob[0:4], fdt.Magic)
	binary.BigEndian.PutUint32(blob[4:8], fdt.HeaderSize)

	m := boot(t, Config{Harts: 2, Blob: blob})

	if states(m)[0] != HartHalted {
		t.Errorf("boot hart should halt on an empty device tree")
	}
	if reqs := m.StartRequests(); len(reqs) != 0 {
		t.Errorf("issued %d start requests, want 0", len(reqs))
	}
	if !strings.Contains(m.Console(), " at line ") {
		t.Errorf("console missing fault report:\n%s", m.Console())
	}
}

func TestWakeFailureHaltsBootHartOnly(t *testing.T) {
	m := boot(t, Config{
		Harts:       4,
		StartErrors: map[uint64]int64{2: hartboot.SBI_ERR_FAILED},
	})

	st := states(m)
	if st[0] != HartHalted {
		t.Errorf("boot hart is %v, want halted", st[0])
	}
	// hart 1 was woken before the failure and keeps running
	if st[1] != HartIdle {
		t.Errorf("hart 1 is %v, want idle", st[1])
	}
	if st[3] != HartStopped {
		t.Errorf("hart 3 is %v, want stopped", st[3])
	}
	if !strings.Contains(m.Console(), "failed to start hart 2") {
		t.Errorf("console should name hart 2:\n%s", m.Console())
	}
	if reqs := m.StartRequests(); len(reqs) != 2 {
		t.Errorf("issued %d start requests, want 2 (no retry)", len(reqs))
	}
}

func TestHartBeyondStackPool(t *testing.T) {
	m := boot(t, Config{HartIDs: []uint64{0, 1, hartboot.MaxHarts + 4}})

	if reqs := m.StartRequests(); len(reqs) != 0 {
		t.Errorf("issued %d start requests, want 0", len(reqs))
	}
	if !strings.Contains(m.Console(), "exceeds stack pool") {
		t.Errorf("console missing stack pool diagnostic:\n%s", m.Console())
	}
}

func TestLottery(t *testing.T) {
	m := boot(t, Config{Harts: 2, Lottery: true})

	out := m.Console()
	if n := strings.Count(out, "Boot hart: "); n != 1 {
		t.Errorf("%d boot harts elected, want 1:\n%s", n, out)
	}
	if n := strings.Count(out, " starting...\n"); n != 1 {
		t.Errorf("%d secondaries announced, want 1:\n%s", n, out)
	}
	// the winner finds the loser already running, which is fatal
	if !strings.Contains(out, "already available") {
		t.Errorf("console missing already-started diagnostic:\n%s", out)
	}
	var idle, halted int
	for _, s := range states(m) {
		switch s {
		case HartIdle:
			idle++
		case HartHalted:
			halted++
		}
	}
	if idle != 1 || halted != 1 {
		t.Errorf("idle=%d halted=%d, want 1 and 1", idle, halted)
	}
}

func TestConsoleFailureIgnored(t *testing.T) {
	m := boot(t, Config{Harts: 2, ConsoleError: hartboot.SBI_ERR_DENIED})

	if m.Console() != "" {
		t.Errorf("console = %q, want nothing", m.Console())
	}
	for id, s := range states(m) {
		if s != HartIdle {
			t.Errorf("hart %d is %v, want idle", id, s)
		}
	}
}

func TestHartStartSemantics(t *testing.T) {
	m, err := New(Config{Harts: 2})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer m.Close()

	tests := []struct {
		name   string
		hartID uint64
		addr   uint64
		want   int64
	}{
		{"unknown hart", 9, DefaultEntry, hartboot.SBI_ERR_INVALID_PARAM},
		{"wrong entry", 1, 0x1000, hartboot.SBI_ERR_INVALID_ADDRESS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.HartStart(tt.hartID, tt.addr, 0)
			var se hartboot.SBIError
			if !errors.As(err, &se) || se.Code != tt.want {
				t.Errorf("HartStart = %v, want SBI code %d", err, tt.want)
			}
		})
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no harts", Config{}},
		{"boot hart missing", Config{Harts: 2, BootHart: 3}},
		{"boot hart beyond pool", Config{HartIDs: []uint64{hartboot.MaxHarts}, BootHart: hartboot.MaxHarts}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if m, err := New(tt.cfg); err == nil {
				m.Close()
				t.Error("New should fail")
			}
		})
	}
}

func TestStartTwice(t *testing.T) {
	m := boot(t, Config{Harts: 1})
	if err := m.Start(); err == nil {
		t.Error("second Start should fail")
	}
}

func TestWaitTimeout(t *testing.T) {
	m, err := New(Config{Harts: 1})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer m.Close()

	// never started, so never settles
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
}

func TestHartStateString(t *testing.T) {
	for s, want := range map[HartState]string{
		HartStopped:      "stopped",
		HartStartPending: "start-pending",
		HartRunning:      "running",
		HartIdle:         "idle",
		HartHalted:       "halted",
		HartState(99):    "HartState(99)",
	} {
		if got := s.String(); got != want {
			t.Errorf("HartState(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
