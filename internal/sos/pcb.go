package sos

// pcb.go is the process control block and the table that owns every PCB in the system.

import (
	"fmt"
	"sort"

	"github.com/moynes-sim/elsos/internal/log"
	"github.com/moynes-sim/elsos/internal/vm"
)

// State is a PCB's position in the process lifecycle.
type State uint8

const (
	// Running is the single PCB whose registers currently live in the CPU.
	Running State = iota
	// Ready is saved, not blocked, eligible for the scheduler.
	Ready
	// Blocked is saved and waiting on a device operation named by BlockedFor.
	Blocked
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Ready:
		return "READY"
	case Blocked:
		return "BLOCKED"
	default:
		return "UNKNOWN"
	}
}

// BlockOp names the operation a blocked PCB is waiting to complete.
type BlockOp uint8

const (
	BlockOpen BlockOp = iota
	BlockRead
	BlockWrite
)

func (op BlockOp) String() string {
	switch op {
	case BlockOpen:
		return "OPEN"
	case BlockRead:
		return "READ"
	case BlockWrite:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// BlockedFor names the device operation a BLOCKED PCB is waiting on.
type BlockedFor struct {
	Device int
	Op     BlockOp
	Addr   vm.Word
}

// PCB is the kernel's per-process record: the process's saved registers when it is not running,
// its block state, and the starvation/run-time bookkeeping the scheduler reads.
type PCB struct {
	PID   int
	State State

	// Registers is the saved register file. It is meaningful only while State != Running; the
	// authoritative copy for the running process lives in the CPU.
	Registers vm.RegisterFile

	// BlockedFor is set only while State == Blocked.
	BlockedFor *BlockedFor

	// Starvation and run-time bookkeeping, all measured in simulation ticks.
	LastReadyTime int
	NumReady      int
	MaxStarve     int
	AvgStarve     float64
	TotalRunTime  int
	LastStartTime int
	LastEndTime   int
	AvgRunTime    float64
}

func (p *PCB) String() string {
	return fmt.Sprintf("PCB{pid: %d, state: %s, base: %s, lim: %s}",
		p.PID, p.State, p.Registers.BASE, p.Registers.LIM)
}

func (p *PCB) LogValue() log.Value {
	return log.GroupValue(
		log.Any("pid", p.PID),
		log.String("state", p.State.String()),
		log.Any("base", p.Registers.BASE),
		log.Any("avgStarve", p.AvgStarve),
	)
}

// Base and Limit let PCB satisfy FreeList's Relocator interface.
func (p *PCB) Base() vm.Word  { return p.Registers.BASE }
func (p *PCB) Limit() vm.Word { return p.Registers.LIM }

// Move relocates the PCB's memory window to newBase, sliding its BASE/PC/SP by the same shift.
// FreeList.compact copies the underlying words in RAM itself before calling Move; Move only adjusts
// the register bookkeeping. If this PCB is the running process, its Registers field is a stale
// mirror — the dispatcher must sync PCB.Registers from the live CPU before a call that may compact
// (sysExec does this) and copy the result back afterward.
func (p *PCB) Move(newBase vm.Word) {
	shift := newBase - p.Registers.BASE

	p.Registers.BASE = newBase
	p.Registers.PC += shift
	p.Registers.SP += shift
}

// Save copies regs into the PCB and transitions it from Running to Ready (or Blocked, if blockedFor
// is non-nil), recording the starvation and run-time bookkeeping described in the scheduler.
func (p *PCB) Save(regs vm.RegisterFile, now int, blockedFor *BlockedFor) {
	p.Registers = regs
	p.NumReady++
	p.LastReadyTime = now

	elapsed := now - p.LastStartTime
	p.TotalRunTime += elapsed
	p.LastEndTime = now

	n := p.NumReady
	if n < 1 {
		n = 1
	}

	p.AvgRunTime = p.AvgRunTime*float64(n-1)/float64(n) + float64(elapsed)/float64(n)

	if blockedFor != nil {
		p.State = Blocked
		p.BlockedFor = blockedFor
	} else {
		p.State = Ready
		p.BlockedFor = nil
	}
}

// Restore transitions the PCB to Running, updating starvation statistics from the elapsed ready
// time, and returns the register file the CPU should load.
func (p *PCB) Restore(now int) vm.RegisterFile {
	starve := now - p.LastReadyTime
	if starve > p.MaxStarve {
		p.MaxStarve = starve
	}

	n := p.NumReady
	if n < 1 {
		n = 1
	}

	p.AvgStarve = p.AvgStarve*float64(n-1)/float64(n) + float64(starve)/float64(n)
	p.LastStartTime = now
	p.State = Running

	return p.Registers
}

// Unblock transitions a Blocked PCB to Ready, clearing BlockedFor. The caller has already written
// the completion result words into the PCB's saved stack.
func (p *PCB) Unblock() {
	p.State = Ready
	p.BlockedFor = nil
}

// ProcessTable owns every live PCB.
type ProcessTable struct {
	procs map[int]*PCB
	order []int // pids in FIFO insertion order; this is the scan order select_blocked uses

	log *log.Logger
}

// NewProcessTable creates an empty process table.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{
		procs: make(map[int]*PCB),
		log:   log.DefaultLogger(),
	}
}

// Insert adds a new PCB to the table.
func (pt *ProcessTable) Insert(p *PCB) {
	pt.procs[p.PID] = p
	pt.order = append(pt.order, p.PID)
}

// Remove deletes a PCB from the table by pid, freeing its memory is the caller's responsibility.
func (pt *ProcessTable) Remove(pid int) {
	delete(pt.procs, pid)

	for i, id := range pt.order {
		if id == pid {
			pt.order = append(pt.order[:i], pt.order[i+1:]...)
			break
		}
	}
}

// Get returns the PCB with the given pid, or nil if there is none.
func (pt *ProcessTable) Get(pid int) *PCB { return pt.procs[pid] }

// Len returns the number of live PCBs.
func (pt *ProcessTable) Len() int { return len(pt.procs) }

// All returns every PCB in FIFO insertion order (the order used by select_blocked scans).
func (pt *ProcessTable) All() []*PCB {
	out := make([]*PCB, 0, len(pt.order))
	for _, id := range pt.order {
		out = append(out, pt.procs[id])
	}

	return out
}

// Ready returns every Ready PCB, in FIFO insertion order.
func (pt *ProcessTable) Ready() []*PCB {
	var out []*PCB
	for _, p := range pt.All() {
		if p.State == Ready {
			out = append(out, p)
		}
	}

	return out
}

// Blocked returns every Blocked PCB, in FIFO insertion order.
func (pt *ProcessTable) Blocked() []*PCB {
	var out []*PCB
	for _, p := range pt.All() {
		if p.State == Blocked {
			out = append(out, p)
		}
	}

	return out
}

// Relocators returns every PCB in the table as Relocator values, sorted by BASE address, for use by
// FreeList.compact. This is a distinct ordering from All's FIFO insertion order: compaction cares
// about current placement in RAM, not arrival order.
func (pt *ProcessTable) Relocators() []Relocator {
	out := make([]Relocator, 0, len(pt.procs))
	for _, p := range pt.All() {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Base() < out[j].Base() })

	return out
}
