package sos

// dispatch.go is the kernel's single entry point: it implements vm.TrapHandler and is the only
// type in the package allowed to touch the allocator, device registry, process table, and
// scheduler all at once.

import (
	"fmt"
	"io"

	"github.com/moynes-sim/elsos/internal/log"
	"github.com/moynes-sim/elsos/internal/vm"
)

// Syscall identifies which operation a TRAP performs; it is decoded from the word popped off the
// user stack.
type Syscall vm.Word

// Syscall table, per the dispatcher's documented opcode assignment.
const (
	SysExit Syscall = iota
	SysOutput
	SysGetpid
	SysOpen
	SysClose
	SysRead
	SysWrite
	SysExec
	SysYield
	SysCoredump
)

func (s Syscall) String() string {
	switch s {
	case SysExit:
		return "EXIT"
	case SysOutput:
		return "OUTPUT"
	case SysGetpid:
		return "GETPID"
	case SysOpen:
		return "OPEN"
	case SysClose:
		return "CLOSE"
	case SysRead:
		return "READ"
	case SysWrite:
		return "WRITE"
	case SysExec:
		return "EXEC"
	case SysYield:
		return "YIELD"
	case SysCoredump:
		return "COREDUMP"
	default:
		return "UNKNOWN"
	}
}

// Dispatcher mediates every interaction between user code and the kernel. It is the CPU's
// [vm.TrapHandler].
type Dispatcher struct {
	cpu     *vm.CPU
	table   *ProcessTable
	free    *FreeList
	devices *DeviceRegistry
	sched   *Scheduler
	loader  *Loader

	current *PCB
	running *bool

	stdout   io.Writer
	exitCode ErrorCode

	log *log.Logger
}

// NewDispatcher wires a dispatcher over the given kernel components and registers it as the CPU's
// trap handler. running is flipped to false when the simulation halts, fatally or otherwise.
func NewDispatcher(
	cpu *vm.CPU,
	table *ProcessTable,
	free *FreeList,
	devices *DeviceRegistry,
	sched *Scheduler,
	loader *Loader,
	stdout io.Writer,
	running *bool,
) *Dispatcher {
	d := &Dispatcher{
		cpu:     cpu,
		table:   table,
		free:    free,
		devices: devices,
		sched:   sched,
		loader:  loader,
		running: running,
		stdout:  stdout,
		log:     log.DefaultLogger(),
	}

	cpu.SetHandler(d)

	return d
}

// Bootstrap loads the first process from the catalog and makes it the running process. It must be
// called once, before the CPU starts stepping.
func (d *Dispatcher) Bootstrap() error {
	pcb, code, err := d.loader.Exec(d.cpu.Ticks())
	if err != nil {
		return err
	}

	if code != Success {
		return fmt.Errorf("sos: bootstrap load failed: %v", code)
	}

	d.cpu.Reg = pcb.Restore(d.cpu.Ticks())
	d.current = pcb

	return nil
}

// ExitCode reports the code the simulation halted with.
func (d *Dispatcher) ExitCode() ErrorCode { return d.exitCode }

// --- vm.TrapHandler ---

func (d *Dispatcher) IllegalMemoryAccess(addr vm.Word) {
	d.log.Error("illegal memory access", "addr", addr, "pid", d.pid())
	d.removeCurrent()
}

func (d *Dispatcher) DivideByZero() {
	d.log.Error("divide by zero", "pid", d.pid())
	d.removeCurrent()
}

func (d *Dispatcher) IllegalInstruction(instr vm.Instruction) {
	d.log.Error("illegal instruction", "instr", instr, "pid", d.pid())
	d.removeCurrent()
}

func (d *Dispatcher) Clock() {
	now := d.cpu.Ticks()

	if d.current != nil {
		d.current.Registers = d.cpu.Reg
	}

	next, err := d.sched.Select(d.current, now)
	if err != nil {
		d.halt(ErrorNoProcesses)
		return
	}

	if d.current != nil {
		d.cpu.Reg = d.current.Registers // pick up any shift from a compaction Select triggered
	}

	if d.current != nil && next.PID == d.current.PID {
		return
	}

	if d.current != nil {
		d.current.Save(d.cpu.Reg, now, nil)
		d.cpu.Charge(SaveLoadTime)
	}

	d.switchTo(next, now)
}

func (d *Dispatcher) SystemCall() {
	opWord, err := d.cpu.PopStack()
	if err != nil {
		d.IllegalMemoryAccess(d.cpu.Mem.MAR)
		return
	}

	switch Syscall(opWord) {
	case SysExit:
		d.removeCurrent()
	case SysOutput:
		d.sysOutput()
	case SysGetpid:
		d.sysGetpid()
	case SysOpen:
		d.sysOpen()
	case SysClose:
		d.sysClose()
	case SysRead:
		d.sysRead()
	case SysWrite:
		d.sysWrite()
	case SysExec:
		d.sysExec()
	case SysYield:
		d.yieldCurrent(nil)
	case SysCoredump:
		d.sysCoredump()
	default:
		d.IllegalInstruction(vm.Instruction{})
	}
}

func (d *Dispatcher) IOReadComplete(devID int, addr vm.Word, data vm.Word) {
	dev := d.devices.Find(devID)
	if dev == nil {
		d.pushCurrent(vm.Word(ErrorDeviceExistence))
		return
	}

	p := d.findBlocked(devID, BlockRead, addr)
	if p == nil {
		return
	}

	d.pushToPCB(p, data)
	d.pushToPCB(p, vm.Word(Success))
	p.Unblock()
}

func (d *Dispatcher) IOWriteComplete(devID int, addr vm.Word) {
	dev := d.devices.Find(devID)
	if dev == nil {
		d.pushCurrent(vm.Word(ErrorDeviceExistence))
		return
	}

	p := d.findBlocked(devID, BlockWrite, addr)
	if p == nil {
		return
	}

	d.pushToPCB(p, vm.Word(Success))
	p.Unblock()
}

// --- syscalls ---

func (d *Dispatcher) sysOutput() {
	val, err := d.cpu.PopStack()
	if err != nil {
		d.IllegalMemoryAccess(d.cpu.Mem.MAR)
		return
	}

	fmt.Fprintln(d.stdout, val)
}

func (d *Dispatcher) sysGetpid() {
	d.pushCurrent(vm.Word(d.current.PID))
}

func (d *Dispatcher) sysOpen() {
	devID, err := d.cpu.PopStack()
	if err != nil {
		d.IllegalMemoryAccess(d.cpu.Mem.MAR)
		return
	}

	code, blocks := d.devices.Open(int(devID), d.current.PID)

	if blocks {
		d.pushCurrent(vm.Word(Success))
		d.yieldCurrent(&BlockedFor{Device: int(devID), Op: BlockOpen})
		return
	}

	d.pushCurrent(vm.Word(code))
}

func (d *Dispatcher) sysClose() {
	devID, err := d.cpu.PopStack()
	if err != nil {
		d.IllegalMemoryAccess(d.cpu.Mem.MAR)
		return
	}

	code, wake := d.devices.Close(int(devID), d.current.PID, d.table.Blocked())
	d.pushCurrent(vm.Word(code))

	if wake != 0 {
		if p := d.table.Get(wake); p != nil {
			p.Unblock()
		}
	}
}

func (d *Dispatcher) sysRead() {
	addr, err := d.cpu.PopStack()
	if err != nil {
		d.IllegalMemoryAccess(d.cpu.Mem.MAR)
		return
	}

	devID, err := d.cpu.PopStack()
	if err != nil {
		d.IllegalMemoryAccess(d.cpu.Mem.MAR)
		return
	}

	dev := d.devices.Find(int(devID))

	switch {
	case dev == nil:
		d.pushCurrent(vm.Word(ErrorDeviceExistence))
		return
	case !dev.Openers[d.current.PID]:
		d.pushCurrent(vm.Word(ErrorDeviceNotOpen))
		return
	case !dev.Driver.Readable():
		d.pushCurrent(vm.Word(ErrorDeviceNotReadable))
		return
	case !dev.Driver.Available():
		d.retry(SysRead, devID, addr)
		return
	}

	reader, ok := dev.Driver.(vm.Reader)
	if !ok {
		d.pushCurrent(vm.Word(ErrorDeviceNotReadable))
		return
	}

	reader.StartRead(addr)
	d.yieldCurrent(&BlockedFor{Device: int(devID), Op: BlockRead, Addr: addr})
}

func (d *Dispatcher) sysWrite() {
	data, err := d.cpu.PopStack()
	if err != nil {
		d.IllegalMemoryAccess(d.cpu.Mem.MAR)
		return
	}

	addr, err := d.cpu.PopStack()
	if err != nil {
		d.IllegalMemoryAccess(d.cpu.Mem.MAR)
		return
	}

	devID, err := d.cpu.PopStack()
	if err != nil {
		d.IllegalMemoryAccess(d.cpu.Mem.MAR)
		return
	}

	dev := d.devices.Find(int(devID))

	switch {
	case dev == nil:
		d.pushCurrent(vm.Word(ErrorDeviceExistence))
		return
	case !dev.Openers[d.current.PID]:
		d.pushCurrent(vm.Word(ErrorDeviceNotOpen))
		return
	case !dev.Driver.Writeable():
		d.pushCurrent(vm.Word(ErrorDeviceNotWriteable))
		return
	case !dev.Driver.Available():
		d.retry(SysWrite, devID, addr, data)
		return
	}

	writer, ok := dev.Driver.(vm.Writer)
	if !ok {
		d.pushCurrent(vm.Word(ErrorDeviceNotWriteable))
		return
	}

	writer.StartWrite(addr, data)
	d.yieldCurrent(&BlockedFor{Device: int(devID), Op: BlockWrite, Addr: addr})
}

func (d *Dispatcher) sysExec() {
	now := d.cpu.Ticks()

	if d.current != nil {
		d.current.Registers = d.cpu.Reg
	}

	pcb, code, err := d.loader.Exec(now)

	if d.current != nil {
		d.cpu.Reg = d.current.Registers // pick up any compaction shift
	}

	if err != nil {
		d.halt(ErrorNoProcesses)
		return
	}

	if code != Success {
		d.retry(SysExec)
		return
	}

	if d.current != nil {
		d.current.Save(d.cpu.Reg, now, nil)
		d.cpu.Charge(SaveLoadTime)
	}

	d.switchTo(pcb, now)
}

func (d *Dispatcher) sysCoredump() {
	d.log.Info("coredump", "pid", d.current.PID, "registers", d.cpu.Reg)

	for i := 0; i < 3; i++ {
		val, err := d.cpu.PopStack()
		if err != nil {
			break
		}

		fmt.Fprintln(d.stdout, val)
	}

	d.removeCurrent()
}

// --- shared machinery ---

// retry rewinds PC by one instruction and re-pushes opcode followed by args (in the order they
// must appear so that the next TRAP sees exactly the stack it saw this time), then yields the CPU
// to another process. args are given bottom-to-top, i.e. the order to push them in.
func (d *Dispatcher) retry(op Syscall, args ...vm.Word) {
	d.cpu.Reg.PC -= vm.InstrSize

	for _, a := range args {
		if err := d.cpu.PushStack(a); err != nil {
			d.IllegalMemoryAccess(d.cpu.Mem.MAR)
			return
		}
	}

	if err := d.cpu.PushStack(vm.Word(op)); err != nil {
		d.IllegalMemoryAccess(d.cpu.Mem.MAR)
		return
	}

	d.yieldCurrent(nil)
}

// yieldCurrent saves the running process — Ready if blockedFor is nil, Blocked otherwise — and
// hands the CPU to whatever the scheduler selects next.
func (d *Dispatcher) yieldCurrent(blockedFor *BlockedFor) {
	now := d.cpu.Ticks()

	if d.current != nil {
		d.current.Save(d.cpu.Reg, now, blockedFor)
		d.cpu.Charge(SaveLoadTime)
	}

	d.current = nil

	next, err := d.sched.Select(nil, now)
	if err != nil {
		d.halt(ErrorNoProcesses)
		return
	}

	d.switchTo(next, now)
}

// removeCurrent destroys the running process — on EXIT or a fatal fault — frees its memory, and
// schedules something else.
func (d *Dispatcher) removeCurrent() {
	if d.current == nil {
		d.halt(ErrorNoProcesses)
		return
	}

	pid := d.current.PID
	base, lim := d.cpu.Reg.BASE, d.cpu.Reg.LIM

	d.table.Remove(pid)
	d.free.Free(base, lim)
	d.devices.RemovePCB(pid)
	d.current = nil

	now := d.cpu.Ticks()

	next, err := d.sched.Select(nil, now)
	if err != nil {
		d.halt(ErrorNoProcesses)
		return
	}

	d.switchTo(next, now)
}

// switchTo restores next's registers into the CPU and charges the context-switch cost.
func (d *Dispatcher) switchTo(next *PCB, now int) {
	d.cpu.Reg = next.Restore(now)
	d.cpu.Charge(SaveLoadTime)
	d.current = next
}

// halt stops the simulation with the given exit code, used for system-fatal conditions: an empty
// process table at schedule time, or EXEC with no programs registered.
func (d *Dispatcher) halt(code ErrorCode) {
	d.exitCode = code
	*d.running = false
}

func (d *Dispatcher) pushCurrent(val vm.Word) {
	if err := d.cpu.PushStack(val); err != nil {
		d.IllegalMemoryAccess(d.cpu.Mem.MAR)
	}
}

// pushToPCB writes val to the top of p's saved stack, bypassing access control: p is not the
// running process, so its window is not the CPU's live window.
func (d *Dispatcher) pushToPCB(p *PCB, val vm.Word) {
	p.Registers.SP++
	d.cpu.Mem.StoreAt(p.Registers.SP, []vm.Word{val})
}

// findBlocked returns the first (lowest table-scan order) PCB blocked on (dev, op, addr).
func (d *Dispatcher) findBlocked(dev int, op BlockOp, addr vm.Word) *PCB {
	for _, p := range d.table.All() {
		if p.State == Blocked && p.BlockedFor != nil &&
			p.BlockedFor.Device == dev && p.BlockedFor.Op == op && p.BlockedFor.Addr == addr {
			return p
		}
	}

	return nil
}

func (d *Dispatcher) pid() int {
	if d.current == nil {
		return -1
	}

	return d.current.PID
}
