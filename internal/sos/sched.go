package sos

// sched.go selects the next process to run, injects the idle process when everything real is
// blocked, and signals system-fatal halt when no processes remain at all.

import (
	"github.com/moynes-sim/elsos/internal/log"
	"github.com/moynes-sim/elsos/internal/vm"
)

// SaveLoadTime is the context-switch cost, in ticks, charged for every save and every restore.
const SaveLoadTime = 30

// IdlePID is the reserved pid of the synthetic idle process.
const IdlePID = 999

// idle RAM window: four 4-word instructions (SET r0=0; SET r0=0; PUSH r0; TRAP), pushing the EXIT
// opcode (0) onto its own stack via r0 before trapping.
const idleWindowSize = vm.InstrSize * 4

// candidate is a schedulable PCB together with the synthetic bias applied to the process that is
// currently running (a small preference against needless context switches).
type candidate struct {
	pcb  *PCB
	bias float64
}

// Scheduler picks the next ready process using starvation-aware heuristics, injects the idle
// process when the ready set is empty but blocked processes remain, and reports ErrNoProcesses when
// the process table is entirely empty.
type Scheduler struct {
	table *ProcessTable
	free  *FreeList
	mem   *vm.Memory

	log *log.Logger
}

// NewScheduler creates a scheduler bound to the given process table, free list, and RAM.
func NewScheduler(table *ProcessTable, free *FreeList, mem *vm.Memory) *Scheduler {
	return &Scheduler{table: table, free: free, mem: mem, log: log.DefaultLogger()}
}

// Select picks the PCB that should run next. current, if non-nil, is the PCB that was running when
// Select was called (it has not yet been saved) and receives the context-switch bias. now is the
// current tick count, used to inject the idle process and bootstrap its bookkeeping.
//
// Select returns ErrNoProcesses if the table is completely empty.
func (s *Scheduler) Select(current *PCB, now int) (*PCB, error) {
	if s.table.Len() == 0 {
		return nil, ErrNoProcesses
	}

	ready := s.table.Ready()

	candidates := make([]candidate, 0, len(ready)+1)
	if current != nil && current.State == Running {
		candidates = append(candidates, candidate{pcb: current, bias: 100})
	}

	for _, p := range ready {
		candidates = append(candidates, candidate{pcb: p, bias: 0})
	}

	if len(candidates) > 0 {
		return s.pickBest(candidates), nil
	}

	if len(s.table.Blocked()) > 0 {
		return s.injectIdle(now)
	}

	return nil, ErrNoProcesses
}

// pickBest applies the preference order from §4.4: among biased-starve scores, favor the candidate
// matching the fleet's starvation or staleness average; break remaining ties on run time, again
// preferring the hungrier process. The source's heuristic is a tangle of unconditional overwrites;
// this reproduces its described preference order with a single deterministic scoring pass rather
// than replicating its exact (and buggy) control flow.
func (s *Scheduler) pickBest(candidates []candidate) *PCB {
	var sumStarve, sumReady, sumRunTime float64

	for _, c := range candidates {
		sumStarve += c.pcb.AvgStarve + c.bias
		sumReady += float64(c.pcb.LastReadyTime)
		sumRunTime += c.pcb.AvgRunTime
	}

	n := float64(len(candidates))
	fleetAvgStarve := sumStarve / n
	fleetAvgReady := sumReady / n
	fleetAvgRunTime := sumRunTime / n

	best := candidates[0]
	bestStarve := best.pcb.AvgStarve + best.bias

	for _, c := range candidates[1:] {
		starve := c.pcb.AvgStarve + c.bias

		meetsStarveOrStale := starve >= fleetAvgStarve && starve >= bestStarve ||
			float64(c.pcb.LastReadyTime) >= fleetAvgReady

		bestMeets := bestStarve >= fleetAvgStarve && bestStarve >= starve ||
			float64(best.pcb.LastReadyTime) >= fleetAvgReady

		switch {
		case meetsStarveOrStale && !bestMeets:
			best, bestStarve = c, starve
		case meetsStarveOrStale == bestMeets:
			cRunsMore := c.pcb.AvgRunTime >= fleetAvgRunTime
			bestRunsMore := best.pcb.AvgRunTime >= fleetAvgRunTime

			if cRunsMore && !bestRunsMore || (cRunsMore == bestRunsMore && starve > bestStarve) {
				best, bestStarve = c, starve
			}
		}
	}

	return best.pcb
}

// injectIdle allocates the idle process's memory window, writes its four-instruction stub, and
// registers it in the process table with pid IdlePID.
func (s *Scheduler) injectIdle(now int) (*PCB, error) {
	if existing := s.table.Get(IdlePID); existing != nil && existing.State == Ready {
		return existing, nil
	}

	addr, ok := s.free.Alloc(idleWindowSize, s.table.Relocators())
	if !ok {
		return nil, ErrNoProcesses
	}

	program := idleStub()
	s.mem.StoreAt(addr, program)

	idle := &PCB{
		PID:   IdlePID,
		State: Ready,
		Registers: vm.RegisterFile{
			PC:   addr,
			SP:   addr,
			BASE: addr,
			LIM:  idleWindowSize,
		},
		LastReadyTime: now,
	}

	s.table.Insert(idle)
	s.log.Debug("idle process injected", "addr", addr)

	return idle, nil
}

func idleStub() []vm.Word {
	instrs := []vm.Instruction{
		{Op: vm.SET, Arg0: vm.Word(vm.R0), Arg1: 0},
		{Op: vm.SET, Arg0: vm.Word(vm.R0), Arg1: 0},
		{Op: vm.PUSH, Arg0: vm.Word(vm.R0)},
		{Op: vm.TRAP},
	}

	words := make([]vm.Word, 0, len(instrs)*vm.InstrSize)

	for _, instr := range instrs {
		enc := instr.Encode()
		words = append(words, enc[:]...)
	}

	return words
}
