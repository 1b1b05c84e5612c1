package sos

// sos.go assembles the kernel's components into one runnable system.

import (
	"io"

	"github.com/moynes-sim/elsos/internal/log"
	"github.com/moynes-sim/elsos/internal/vm"
)

// DefaultRAMSize and DefaultClockFreq are the values used throughout the design's worked scenarios.
const (
	DefaultRAMSize   = 3000
	DefaultClockFreq = 5
)

// SOS is the simulated operating system: a CPU running against the kernel's free list, device
// registry, process table, scheduler, and dispatcher.
type SOS struct {
	CPU *vm.CPU

	FreeList *FreeList
	Devices  *DeviceRegistry
	Table    *ProcessTable
	Catalog  *ProgramCatalog

	sched      *Scheduler
	loader     *Loader
	dispatcher *Dispatcher

	running        bool
	stdoutOverride io.Writer

	log *log.Logger
}

// Option configures a SOS at construction time.
type Option func(*SOS)

// WithLogger replaces the logger of the SOS itself and of the CPU and its memory. The kernel
// components (free list, registry, table, scheduler, loader, dispatcher) keep the logger they were
// constructed with.
func WithLogger(l *log.Logger) Option {
	return func(s *SOS) {
		s.log = l
		s.CPU.WithLogger(l)
	}
}

// WithStdout sends OUTPUT and COREDUMP's printed words to w. Without it they are discarded.
func WithStdout(w io.Writer) Option {
	return func(s *SOS) { s.stdoutOverride = w }
}

// New builds a SOS with the given RAM size and clock frequency, with no devices or programs
// registered yet — call Devices.Register and Catalog.Register before Run.
func New(ramSize, clockFreq int, opts ...Option) *SOS {
	cpu := vm.New(ramSize, clockFreq)

	s := &SOS{
		CPU:      cpu,
		FreeList: NewFreeList(vm.Word(ramSize), &cpu.Mem),
		Devices:  NewDeviceRegistry(),
		Table:    NewProcessTable(),
		Catalog:  NewProgramCatalog(),
		log:      log.DefaultLogger(),
	}

	s.sched = NewScheduler(s.Table, s.FreeList, &cpu.Mem)
	s.loader = NewLoader(s.Catalog, s.FreeList, s.Table, &cpu.Mem)

	for _, opt := range opts {
		opt(s)
	}

	stdout := s.stdoutOverride
	if stdout == nil {
		stdout = io.Discard
	}

	s.dispatcher = NewDispatcher(cpu, s.Table, s.FreeList, s.Devices, s.sched, s.loader, stdout, &s.running)

	return s
}

// Run bootstraps the first process from the catalog and steps the CPU until the simulation halts,
// returning the exit code it halted with. A run whose processes have all exited halts with
// ErrorNoProcesses, the same code as any other empty-table halt.
func (s *SOS) Run() (ErrorCode, error) {
	if err := s.dispatcher.Bootstrap(); err != nil {
		return 0, err
	}

	s.running = true

	if err := s.CPU.Run(&s.running); err != nil {
		return 0, err
	}

	return s.dispatcher.ExitCode(), nil
}
