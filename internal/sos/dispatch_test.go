package sos

import (
	"bytes"
	"testing"

	"github.com/moynes-sim/elsos/internal/vm"
)

// testDispatcher wires a Dispatcher with a single Running PCB already installed, mirroring the
// state a syscall handler finds itself in mid-trap.
type testDispatcher struct {
	d       *Dispatcher
	cpu     *vm.CPU
	pcb     *PCB
	table   *ProcessTable
	free    *FreeList
	devices *DeviceRegistry
	stdout  *bytes.Buffer
	running bool
}

func newTestDispatcher(t *testing.T, ramSize int) *testDispatcher {
	t.Helper()

	cpu := vm.New(ramSize, 5)
	table := NewProcessTable()
	free := NewFreeList(vm.Word(ramSize), &cpu.Mem)
	devices := NewDeviceRegistry()
	sched := NewScheduler(table, free, &cpu.Mem)
	catalog := NewProgramCatalog()
	loader := NewLoader(catalog, free, table, &cpu.Mem)

	td := &testDispatcher{
		cpu:     cpu,
		table:   table,
		free:    free,
		devices: devices,
		stdout:  &bytes.Buffer{},
		running: true,
	}

	td.d = NewDispatcher(cpu, table, free, devices, sched, loader, td.stdout, &td.running)

	addr, ok := free.Alloc(100, nil)
	if !ok {
		t.Fatal("test setup: alloc(100) failed")
	}

	pcb := &PCB{
		PID:   1001,
		State: Running,
		Registers: vm.RegisterFile{
			BASE: addr,
			LIM:  100,
			PC:   addr,
			SP:   addr,
		},
	}

	table.Insert(pcb)
	cpu.Reg = pcb.Registers
	td.d.current = pcb
	td.pcb = pcb

	return td
}

func (td *testDispatcher) pop(t *testing.T) vm.Word {
	t.Helper()

	w, err := td.cpu.PopStack()
	if err != nil {
		t.Fatalf("PopStack() error = %v", err)
	}

	return w
}

func TestDispatcherOpenUnusedDeviceSucceeds(t *testing.T) {
	td := newTestDispatcher(t, 1000)
	td.devices.Register(1, &fakeDriver{name: "console", readable: true, writeable: true, available: true})

	td.cpu.PushStack(1) // devId
	td.d.sysOpen()

	if got := td.pop(t); got != vm.Word(Success) {
		t.Errorf("OPEN(1) pushed %d, want Success (0)", got)
	}
}

func TestDispatcherOpenNonExistentDeviceFails(t *testing.T) {
	td := newTestDispatcher(t, 1000)

	td.cpu.PushStack(5) // unregistered devId
	td.d.sysOpen()

	if got := td.pop(t); got != vm.Word(ErrorDeviceExistence) {
		t.Errorf("OPEN(5) pushed %d, want ErrorDeviceExistence", got)
	}
}

func TestDispatcherWriteWithoutOpenFails(t *testing.T) {
	td := newTestDispatcher(t, 1000)
	td.devices.Register(1, &fakeDriver{name: "console", writeable: true, available: true})

	td.cpu.PushStack(1)  // devId
	td.cpu.PushStack(0)  // addr
	td.cpu.PushStack(42) // data
	td.d.sysWrite()

	if got := td.pop(t); got != vm.Word(ErrorDeviceNotOpen) {
		t.Errorf("WRITE without OPEN pushed %d, want ErrorDeviceNotOpen", got)
	}
}

func TestDispatcherOutputWritesToStdout(t *testing.T) {
	td := newTestDispatcher(t, 1000)

	td.cpu.PushStack(42)
	td.d.sysOutput()

	if got := td.stdout.String(); got != "42\n" {
		t.Errorf("stdout = %q, want %q", got, "42\n")
	}
}

func TestDispatcherGetpidPushesCurrentPID(t *testing.T) {
	td := newTestDispatcher(t, 1000)

	td.d.sysGetpid()

	if got := td.pop(t); got != vm.Word(1001) {
		t.Errorf("GETPID pushed %d, want 1001", got)
	}
}

func TestDispatcherExitRemovesPCBAndFreesMemory(t *testing.T) {
	td := newTestDispatcher(t, 1000)

	td.d.removeCurrent()

	if td.table.Get(1001) != nil {
		t.Error("EXIT should remove the PCB from the process table")
	}

	if blocks := td.free.Blocks(); len(blocks) != 1 || blocks[0] != (MemBlock{Addr: 0, Size: 1000}) {
		t.Errorf("Blocks() after EXIT = %+v, want single block {0 1000}", blocks)
	}

	// With no processes left ready or blocked, the scheduler halts the simulation.
	if td.running {
		t.Error("halting should clear the running flag when the table is empty")
	}

	if td.d.ExitCode() != ErrorNoProcesses {
		t.Errorf("ExitCode() = %v, want ErrorNoProcesses", td.d.ExitCode())
	}
}

func TestDispatcherReadCompletionWritesIntoBlockedProcessStack(t *testing.T) {
	td := newTestDispatcher(t, 1000)
	td.devices.Register(1, &fakeDriver{name: "console", readable: true, available: true})
	td.devices.Open(1, td.pcb.PID)

	// Simulate the process having blocked on READ(dev=1, addr=7): its saved SP sits where the
	// dispatcher left it when the syscall yielded.
	td.pcb.Registers = td.cpu.Reg
	td.pcb.State = Blocked
	td.pcb.BlockedFor = &BlockedFor{Device: 1, Op: BlockRead, Addr: 7}
	td.d.current = nil

	td.d.IOReadComplete(1, 7, 99)

	if td.pcb.State != Ready {
		t.Errorf("State = %s, want READY after completion", td.pcb.State)
	}

	// READ pushes data first, then SUCCESS, so SUCCESS is on top of the stack.
	savedSP := td.pcb.Registers.SP
	td.cpu.Reg.SP = savedSP

	top := td.pop(t)
	if top != vm.Word(Success) {
		t.Errorf("top of stack = %d, want Success", top)
	}

	data := td.pop(t)
	if data != 99 {
		t.Errorf("second word = %d, want 99 (the completed data)", data)
	}
}

func TestDispatcherWriteCompletionWritesSuccessOnly(t *testing.T) {
	td := newTestDispatcher(t, 1000)
	td.devices.Register(1, &fakeDriver{name: "console", writeable: true, available: true})
	td.devices.Open(1, td.pcb.PID)

	td.pcb.Registers = td.cpu.Reg
	td.pcb.State = Blocked
	td.pcb.BlockedFor = &BlockedFor{Device: 1, Op: BlockWrite, Addr: 3}
	td.d.current = nil

	td.d.IOWriteComplete(1, 3)

	if td.pcb.State != Ready {
		t.Errorf("State = %s, want READY after completion", td.pcb.State)
	}

	td.cpu.Reg.SP = td.pcb.Registers.SP

	top := td.pop(t)
	if top != vm.Word(Success) {
		t.Errorf("top of stack = %d, want Success", top)
	}
}

func TestDispatcherCloseWithoutOpenFails(t *testing.T) {
	td := newTestDispatcher(t, 1000)
	td.devices.Register(1, &fakeDriver{name: "console", available: true})

	td.cpu.PushStack(1)
	td.d.sysClose()

	if got := td.pop(t); got != vm.Word(ErrorDeviceNotOpen) {
		t.Errorf("CLOSE without OPEN pushed %d, want ErrorDeviceNotOpen", got)
	}
}

func TestDispatcherOpenCloseRoundTrip(t *testing.T) {
	td := newTestDispatcher(t, 1000)
	td.devices.Register(2, &fakeDriver{name: "tape", shareable: true, readable: true, available: true})

	td.cpu.PushStack(2)
	td.d.sysOpen()

	if got := td.pop(t); got != vm.Word(Success) {
		t.Fatalf("OPEN(2) pushed %d, want Success", got)
	}

	td.cpu.PushStack(2)
	td.d.sysClose()

	if got := td.pop(t); got != vm.Word(Success) {
		t.Fatalf("CLOSE(2) pushed %d, want Success", got)
	}

	if len(td.devices.Find(2).Openers) != 0 {
		t.Error("device should have no openers after the round trip")
	}
}
