package sos

// loader.go registers loadable program images, picks one semi-randomly on EXEC, and materializes
// it as a new process: allocate its window, copy its image into RAM, initialize its registers.

import (
	"math/rand"

	"github.com/moynes-sim/elsos/internal/log"
	"github.com/moynes-sim/elsos/internal/vm"
)

// Program is a loadable image: a sequence of words to write verbatim at the process's BASE, an
// entry offset (relative to BASE) for PC, and a stack offset (relative to BASE) for the initial SP.
// Window, if larger than len(Image), reserves extra room above the image for the stack to grow
// into; it defaults to len(Image) when zero.
type Program struct {
	Name    string
	Image   []vm.Word
	Entry   vm.Word
	StackAt vm.Word
	Window  vm.Word
}

// Size reports how many words of RAM the program's window needs.
func (p Program) Size() vm.Word {
	if p.Window > vm.Word(len(p.Image)) {
		return p.Window
	}

	return vm.Word(len(p.Image))
}

// ProgramCatalog is the set of programs EXEC may choose from.
type ProgramCatalog struct {
	programs []Program
}

// NewProgramCatalog creates an empty catalog.
func NewProgramCatalog() *ProgramCatalog { return &ProgramCatalog{} }

// Register adds p to the catalog.
func (c *ProgramCatalog) Register(p Program) { c.programs = append(c.programs, p) }

// Len reports how many programs are registered.
func (c *ProgramCatalog) Len() int { return len(c.programs) }

// choose picks a program semi-randomly from the catalog.
func (c *ProgramCatalog) choose() (Program, bool) {
	if len(c.programs) == 0 {
		return Program{}, false
	}

	return c.programs[rand.Intn(len(c.programs))], true
}

// Loader turns a chosen Program into a running process: it owns the pid counter, starting at 1001
// per process, and coordinates with the free list and process table to place the new process in RAM.
type Loader struct {
	catalog *ProgramCatalog
	free    *FreeList
	table   *ProcessTable
	mem     *vm.Memory

	nextPID int

	log *log.Logger
}

// NewLoader creates a loader bound to the given catalog, free list, process table, and RAM.
func NewLoader(catalog *ProgramCatalog, free *FreeList, table *ProcessTable, mem *vm.Memory) *Loader {
	return &Loader{
		catalog: catalog,
		free:    free,
		table:   table,
		mem:     mem,
		nextPID: 1001,
		log:     log.DefaultLogger(),
	}
}

// Exec chooses a program, allocates its window, writes its image into RAM, and inserts a new Ready
// PCB into the process table. It returns ErrNoPrograms if the catalog is empty and ErrorNeedMoreSpace
// (as an ErrorCode, not a Go error; the EXEC syscall answers it by retrying the trap) if the free
// list cannot satisfy the request even after compaction.
func (l *Loader) Exec(now int) (*PCB, ErrorCode, error) {
	program, ok := l.catalog.choose()
	if !ok {
		return nil, 0, ErrNoPrograms
	}

	addr, ok := l.free.Alloc(program.Size(), l.table.Relocators())
	if !ok {
		return nil, ErrorNeedMoreSpace, nil
	}

	l.mem.StoreAt(addr, program.Image)

	pid := l.nextPID
	l.nextPID++

	pcb := &PCB{
		PID:   pid,
		State: Ready,
		Registers: vm.RegisterFile{
			PC:   addr + program.Entry,
			SP:   addr + program.StackAt,
			BASE: addr,
			LIM:  program.Size(),
		},
		LastReadyTime: now,
	}

	l.table.Insert(pcb)
	l.log.Debug("loaded program", "name", program.Name, "pid", pid, "addr", addr)

	return pcb, Success, nil
}
