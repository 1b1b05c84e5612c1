package vm

// mem.go contains the machine's memory controller.

import (
	"errors"
	"fmt"

	"github.com/moynes-sim/elsos/internal/log"
)

// Memory is flat, indexable RAM plus the address/data registers that mediate access to it. The CPU
// puts an address in MAR and either reads the resulting value out of MDR (Fetch) or writes MDR's
// value into that address (Store).
//
// Every access is range-checked against the accessible window of whichever RegisterFile is
// currently live on the CPU; this is the entirety of the machine's memory protection.
type Memory struct {
	MAR Word
	MDR Word

	cell []Word

	log *log.Logger
}

// NewMemory allocates size words of RAM.
func NewMemory(size int) Memory {
	return Memory{
		cell: make([]Word, size),
		log:  log.DefaultLogger(),
	}
}

// Size returns the number of addressable words of RAM.
func (mem *Memory) Size() int {
	return len(mem.cell)
}

var (
	// ErrMemory is the sentinel wrapped by every memory-controller error.
	ErrMemory = errors.New("memory error")

	// ErrAccessControl is returned when an address falls outside the accessing process's
	// base/limit window.
	ErrAccessControl = errors.New("access control")
)

// AccessError reports the address that a failed access attempted to reach.
type AccessError struct {
	Addr Word
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: %s: addr %s", ErrMemory, ErrAccessControl, e.Addr)
}

func (e *AccessError) Is(target error) bool {
	return target == ErrMemory || target == ErrAccessControl
}

// Fetch loads the word addressed by MAR into MDR, checking it lies within window.
func (mem *Memory) Fetch(window RegisterFile) error {
	if !window.Within(mem.MAR) {
		return &AccessError{Addr: mem.MAR}
	}

	mem.MDR = mem.cell[mem.MAR]

	return nil
}

// Store writes MDR to the word addressed by MAR, checking it lies within window.
func (mem *Memory) Store(window RegisterFile) error {
	if !window.Within(mem.MAR) {
		return &AccessError{Addr: mem.MAR}
	}

	mem.cell[mem.MAR] = mem.MDR

	return nil
}

// LoadAt reads count words starting at addr, bypassing access control. It is used by the loader and
// by the allocator's compaction step, both of which operate with system privilege over arbitrary
// process regions.
func (mem *Memory) LoadAt(addr Word, count int) []Word {
	out := make([]Word, count)
	copy(out, mem.cell[addr:addr+Word(count)])

	return out
}

// StoreAt writes words starting at addr, bypassing access control.
func (mem *Memory) StoreAt(addr Word, words []Word) {
	copy(mem.cell[addr:addr+Word(len(words))], words)
}
