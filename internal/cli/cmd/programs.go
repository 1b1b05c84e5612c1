package cmd

// programs.go holds a handful of built-in programs the run command can register with the kernel's
// program catalog, written directly in the instruction encoding rather than through an assembler —
// there is no assembly-language surface in this system.

import (
	"github.com/moynes-sim/elsos/internal/sos"
	"github.com/moynes-sim/elsos/internal/vm"
)

func encode(instrs ...vm.Instruction) []vm.Word {
	words := make([]vm.Word, 0, len(instrs)*vm.InstrSize)

	for _, instr := range instrs {
		enc := instr.Encode()
		words = append(words, enc[:]...)
	}

	return words
}

// builtinPrograms is the set of programs the run command knows how to register by name.
var builtinPrograms = map[string]sos.Program{
	// idle: exits immediately. Useful as a sole catalog entry to exercise EXEC/EXIT/halt.
	"idle": {
		Name: "idle",
		Image: encode(
			vm.Instruction{Op: vm.SET, Arg0: vm.Word(vm.R0), Arg1: 0},
			vm.Instruction{Op: vm.PUSH, Arg0: vm.Word(vm.R0)},
			vm.Instruction{Op: vm.TRAP},
		),
		Entry:   0,
		StackAt: 0,
		Window:  64,
	},

	// hello: opens the console, prints one word with OUTPUT, exits.
	"hello": {
		Name: "hello",
		Image: encode(
			vm.Instruction{Op: vm.SET, Arg0: vm.Word(vm.R0), Arg1: 1},  // r0 = device id 1
			vm.Instruction{Op: vm.SET, Arg0: vm.Word(vm.R1), Arg1: 3},  // r1 = OPEN opcode
			vm.Instruction{Op: vm.PUSH, Arg0: vm.Word(vm.R0)},          // push devId
			vm.Instruction{Op: vm.PUSH, Arg0: vm.Word(vm.R1)},          // push opcode
			vm.Instruction{Op: vm.TRAP},                                // OPEN(1)
			vm.Instruction{Op: vm.POP, Arg0: vm.Word(vm.R2)},           // pop result
			vm.Instruction{Op: vm.SET, Arg0: vm.Word(vm.R0), Arg1: 42}, // r0 = value to output
			vm.Instruction{Op: vm.SET, Arg0: vm.Word(vm.R1), Arg1: 1},  // r1 = OUTPUT opcode
			vm.Instruction{Op: vm.PUSH, Arg0: vm.Word(vm.R0)},
			vm.Instruction{Op: vm.PUSH, Arg0: vm.Word(vm.R1)},
			vm.Instruction{Op: vm.TRAP}, // OUTPUT(42)
			vm.Instruction{Op: vm.SET, Arg0: vm.Word(vm.R0), Arg1: 0},  // r0 = exit opcode
			vm.Instruction{Op: vm.PUSH, Arg0: vm.Word(vm.R0)},
			vm.Instruction{Op: vm.TRAP}, // EXIT
		),
		Entry:   0,
		StackAt: 0,
		Window:  128,
	},
}
