/*
Package vm implements the simulated CPU, RAM, and device micro-architecture that the operating
system kernel in [github.com/moynes-sim/elsos/internal/sos] runs on top of.

The machine is deliberately plain. It has:

  - a file of five general-purpose registers, R0 through R4
  - a program counter, a stack pointer, and a base/limit pair that fence off the currently
    accessible window of RAM
  - a flat array of words for RAM, addressed through a memory controller that range-checks every
    access against the base/limit window
  - devices reached through a small capability interface (read/write/shareable/available)
  - an interrupt controller that is nothing more than an unbounded, FIFO queue of completion events

None of this is meant to be a faithful hardware model. It exists to give the kernel something
concrete to run on: an instruction cycle that traps into the kernel on syscalls and fatal faults,
and devices that complete asynchronously by posting to the interrupt queue for the CPU to poll
between instructions.

# Instruction encoding

Instructions are four words wide: an opcode followed by up to three operands. There is no bit
packing — decoding an instruction is just reading the next four cells of RAM. This keeps Fetch,
Decode, and Execute trivial, which is the point: the interesting work in this module happens in
the kernel, not the CPU.

# Data flow

The CPU puts an address in the memory controller's address register (MAR) and a value in its data
register (MDR), then calls Fetch or Store. This indirection sends every CPU access to RAM through
the same two range-checked calls; devices are not reached this way.

# Traps and faults

TRAP, illegal memory access, illegal instruction, and divide-by-zero all reach the kernel through
the same seven-method capability interface ([TrapHandler]); there is no vector table. The CPU calls
the handler directly and continues from wherever the handler leaves the instruction pointer.
*/
package vm
