/*
Package sos implements the core of a simulated operating system: the syscall and interrupt
dispatcher, the process scheduler and PCB state machine, the device registry, and the free-list
memory allocator. Everything in this package is the kernel; the CPU, RAM, and device drivers it
runs on top of live in [github.com/moynes-sim/elsos/internal/vm] and are treated as external
collaborators reached only through the capability interfaces they expose.

# Shape of the simulation

The simulation is single-threaded and cooperatively interleaved. The CPU executes one instruction,
polls for at most one pending device interrupt, and, on clock-frequency boundaries, asks the
scheduler to run. All kernel logic in this package executes synchronously inside the seven
[vm.TrapHandler] callbacks; there is never more than one goroutine mutating kernel state, so none of
it needs locks of its own.

# The four hard parts

  - [FreeList] tracks RAM as a set of disjoint free regions and services allocation with best-fit
    placement, coalescing frees, and compaction when fragmentation defeats best-fit.
  - [DeviceRegistry] maps a device id to its driver and the set of processes that have it open,
    and implements the block/unblock protocol for non-shareable devices.
  - [ProcessTable] owns every [PCB]: its saved registers, its blocked-for state, and the starvation
    bookkeeping the scheduler reads.
  - [Scheduler] picks the next ready process, injects the idle process when everything is blocked,
    and halts the simulation when the process table is empty.

[Dispatcher] ties these together: it is the single entry point the CPU calls on every trap,
fault, and device completion, and it is the only thing in the package allowed to call all four.
*/
package sos
