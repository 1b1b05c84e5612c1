package sos

// alloc.go is the free-list allocator: best-fit placement, free-and-coalesce, and compaction.

import (
	"sort"

	"github.com/moynes-sim/elsos/internal/log"
	"github.com/moynes-sim/elsos/internal/vm"
)

// MemBlock is a contiguous region of RAM, identified by its base address and size in words.
type MemBlock struct {
	Addr vm.Word
	Size vm.Word
}

// End returns the address just past the block.
func (b MemBlock) End() vm.Word { return b.Addr + b.Size }

// adjacent reports whether b immediately precedes or follows other, with no gap between them.
func (b MemBlock) adjacent(other MemBlock) bool {
	return b.End() == other.Addr || other.End() == b.Addr
}

// Relocator is a process's memory window as compaction sees it: Move rewrites its BASE/PC/SP
// bookkeeping to reflect a new base address. The words themselves are copied by FreeList.compact,
// and Move does not touch the live CPU registers. PCB implements this; it is expressed as an
// interface here so the allocator does not need to import the process table.
type Relocator interface {
	Move(newBase vm.Word)
	Base() vm.Word
	Limit() vm.Word
}

// FreeList tracks the free regions of RAM and satisfies allocation requests from it.
type FreeList struct {
	ramSize vm.Word
	free    []MemBlock
	mem     *vm.Memory

	log *log.Logger
}

// NewFreeList creates a free list for ramSize words of RAM, entirely free. mem is the RAM compact
// slides words through; it may be nil in tests that never exercise the compaction path.
func NewFreeList(ramSize vm.Word, mem *vm.Memory) *FreeList {
	return &FreeList{
		ramSize: ramSize,
		free:    []MemBlock{{Addr: 0, Size: ramSize}},
		mem:     mem,
		log:     log.DefaultLogger(),
	}
}

// Alloc returns the base address of a size-word region carved out of the free list using best-fit
// placement, or false if no layout — even after compaction — can fit the request. allocated is the
// set of currently allocated regions (as relocators), needed only if compaction must run.
func (fl *FreeList) Alloc(size vm.Word, allocated []Relocator) (vm.Word, bool) {
	if addr, ok := fl.bestFit(size); ok {
		return addr, true
	}

	if fl.totalFree() < size {
		return 0, false
	}

	addr := fl.compact(allocated)
	fl.log.Debug("compacted RAM", "freeAt", addr, "size", size)

	return fl.bestFit(size)
}

// bestFit finds the smallest free block of at least size words (ties broken by lowest address),
// and carves size words off its front, returning the residual to the free list in its place; an
// exact fit leaves an empty residual, which is discarded.
func (fl *FreeList) bestFit(size vm.Word) (vm.Word, bool) {
	best := -1

	for i, b := range fl.free {
		if b.Size < size {
			continue
		}

		if best == -1 || b.Size < fl.free[best].Size ||
			(b.Size == fl.free[best].Size && b.Addr < fl.free[best].Addr) {
			best = i
		}
	}

	if best == -1 {
		return 0, false
	}

	block := fl.free[best]
	addr := block.Addr
	residual := MemBlock{Addr: addr + size, Size: block.Size - size}

	fl.free = append(fl.free[:best], fl.free[best+1:]...)

	if residual.Size > 0 {
		fl.free = append(fl.free, residual)
	}

	return addr, true
}

// Free returns [base, base+limit) to the free list, coalescing with any immediately-adjacent free
// neighbors on either side.
func (fl *FreeList) Free(base, limit vm.Word) {
	block := MemBlock{Addr: base, Size: limit}

	for {
		merged := false

		for i, b := range fl.free {
			if b.adjacent(block) {
				block = MemBlock{
					Addr: min(b.Addr, block.Addr),
					Size: b.Size + block.Size,
				}
				fl.free = append(fl.free[:i], fl.free[i+1:]...)
				merged = true

				break
			}
		}

		if !merged {
			break
		}
	}

	fl.free = append(fl.free, block)
}

// compact slides every allocated region downward so they occupy [0, total_allocated) contiguously
// in ascending BASE order, then collapses the free list to the single block spanning the tail of
// RAM. It returns the first free address after compaction. Sliding a region copies its words in RAM
// before the relocator's own bookkeeping (BASE/PC/SP) is updated to match.
func (fl *FreeList) compact(allocated []Relocator) vm.Word {
	sort.Slice(allocated, func(i, j int) bool { return allocated[i].Base() < allocated[j].Base() })

	next := vm.Word(0)

	for _, r := range allocated {
		limit := r.Limit()

		if r.Base() != next {
			if fl.mem != nil {
				words := fl.mem.LoadAt(r.Base(), int(limit))
				fl.mem.StoreAt(next, words)
			}

			r.Move(next)
		}

		next += limit
	}

	fl.free = []MemBlock{{Addr: next, Size: fl.ramSize - next}}

	return next
}

// Blocks returns a copy of the free list's blocks, sorted by address.
func (fl *FreeList) Blocks() []MemBlock {
	out := make([]MemBlock, len(fl.free))
	copy(out, fl.free)

	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })

	return out
}

func (fl *FreeList) totalFree() vm.Word {
	var total vm.Word
	for _, b := range fl.free {
		total += b.Size
	}

	return total
}

func min(a, b vm.Word) vm.Word {
	if a < b {
		return a
	}

	return b
}
