package vm

// cpu.go assembles the CPU from its smaller parts and drives the fetch/execute cycle.

import (
	"fmt"

	"github.com/moynes-sim/elsos/internal/log"
)

// TrapHandler is the capability set the CPU calls into whenever user code can't continue without
// the kernel: a syscall trap, a fatal fault, a clock tick, or a device completion. There is no
// vector table; the CPU calls these methods directly and resumes wherever the handler leaves the
// instruction pointer.
type TrapHandler interface {
	IllegalMemoryAccess(addr Word)
	DivideByZero()
	IllegalInstruction(instr Instruction)
	SystemCall()
	IOReadComplete(devID int, addr Word, data Word)
	IOWriteComplete(devID int, addr Word)
	Clock()
}

// CPU is the simulated processor: one instruction executes per call to Step, after which pending
// device interrupts are polled and, on clock-frequency boundaries, the handler's Clock method is
// invoked.
type CPU struct {
	Reg RegisterFile // Live registers of the RUNNING process.
	Mem Memory
	INT *InterruptController

	Handler TrapHandler

	// ClockFreq is the number of ticks between clock interrupts (spec's CLOCK_FREQ).
	ClockFreq int
	ticks     int

	log *log.Logger
}

// New creates a CPU with the given RAM size and clock frequency. The handler is wired after
// construction with SetHandler, since the kernel typically needs a reference to the CPU to build
// its own handler.
func New(ramSize int, clockFreq int) *CPU {
	return &CPU{
		Mem:       NewMemory(ramSize),
		INT:       NewInterruptController(),
		ClockFreq: clockFreq,
		log:       log.DefaultLogger(),
	}
}

// SetHandler wires the kernel's trap handler into the CPU.
func (cpu *CPU) SetHandler(h TrapHandler) { cpu.Handler = h }

// WithLogger replaces the CPU's logger.
func (cpu *CPU) WithLogger(l *log.Logger) {
	cpu.log = l
	cpu.Mem.log = l
}

func (cpu *CPU) String() string {
	return fmt.Sprintf("REG: %s ticks: %d", cpu.Reg, cpu.ticks)
}

// Ticks returns the simulation clock: one tick per executed instruction, plus any ticks added by
// Charge.
func (cpu *CPU) Ticks() int { return cpu.ticks }

// Charge adds n ticks to the clock without executing an instruction. The kernel uses this to
// account for the cost of context switches (save/restore).
func (cpu *CPU) Charge(n int) { cpu.ticks += n }

// PushStack writes w to the top of the current stack: SP is incremented, then written.
func (cpu *CPU) PushStack(w Word) error {
	cpu.Reg.SP++
	cpu.Mem.MAR = cpu.Reg.SP
	cpu.Mem.MDR = w

	return cpu.Mem.Store(cpu.Reg)
}

// PopStack reads the word at the top of the current stack into MDR and returns it: SP is read,
// then decremented.
func (cpu *CPU) PopStack() (Word, error) {
	cpu.Mem.MAR = cpu.Reg.SP

	if err := cpu.Mem.Fetch(cpu.Reg); err != nil {
		return 0, err
	}

	cpu.Reg.SP--

	return cpu.Mem.MDR, nil
}

// Step fetches, decodes, and executes a single instruction, then polls for one pending device
// interrupt and, on a clock-frequency boundary, raises the clock interrupt.
func (cpu *CPU) Step() error {
	instr, err := cpu.fetch()
	if err != nil {
		cpu.Handler.IllegalMemoryAccess(cpu.Mem.MAR)
		return nil
	}

	cpu.execute(instr)

	cpu.ticks++

	if cpu.ClockFreq > 0 && cpu.ticks%cpu.ClockFreq == 0 {
		cpu.Handler.Clock()
	}

	if e, ok := cpu.INT.Poll(); ok {
		switch e.Kind {
		case ReadDone:
			cpu.Handler.IOReadComplete(e.Dev, e.Addr, e.Data)
		case WriteDone:
			cpu.Handler.IOWriteComplete(e.Dev, e.Addr)
		}
	}

	return nil
}

// Run steps the CPU until running is false or an unrecoverable error occurs. running is checked
// before each instruction so the kernel can halt the simulation (e.g. ERROR_NO_PROCESSES) by
// flipping it from a syscall handler.
func (cpu *CPU) Run(running *bool) error {
	for *running {
		if err := cpu.Step(); err != nil {
			return err
		}
	}

	return nil
}

// fetch reads the four words at PC into an Instruction and advances PC past it.
func (cpu *CPU) fetch() (Instruction, error) {
	var words [InstrSize]Word

	for i := range words {
		cpu.Mem.MAR = cpu.Reg.PC + Word(i)
		if err := cpu.Mem.Fetch(cpu.Reg); err != nil {
			return Instruction{}, err
		}

		words[i] = cpu.Mem.MDR
	}

	cpu.Reg.PC += InstrSize

	return DecodeInstruction(words), nil
}
