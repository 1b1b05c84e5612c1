package vm

// words.go defines the basic data types the CPU operates on.

import (
	"fmt"
	"strings"

	"github.com/moynes-sim/elsos/internal/log"
)

// Word is the base data type on which the CPU operates. Registers, memory cells, and instruction
// operands are all signed machine words.
type Word int32

func (w Word) String() string {
	return fmt.Sprintf("%d", int32(w))
}

// Register is a general-purpose or special-purpose CPU register.
type Register Word

func (r Register) String() string {
	return Word(r).String()
}

// GPR identifies one of the five general-purpose registers.
type GPR uint8

// General-purpose registers.
const (
	R0 GPR = iota
	R1
	R2
	R3
	R4

	// NumGPR is the count of general-purpose registers.
	NumGPR
)

func (g GPR) String() string {
	return fmt.Sprintf("R%d", uint8(g))
}

// RegisterFile is the set of general-purpose registers plus the special-purpose registers that
// define a process's program counter, stack, and addressable window of RAM.
//
// RegisterFile is what a PCB saves and restores: when a process is not RUNNING, its RegisterFile is
// a snapshot held by the process table; when it is RUNNING, the same values live in the CPU.
type RegisterFile struct {
	GPR  [NumGPR]Register
	PC   Word // Program counter: address of the next instruction.
	SP   Word // Stack pointer: PUSH increments then writes, POP reads then decrements.
	BASE Word // Base of the process's accessible RAM window.
	LIM  Word // Size, in words, of the accessible RAM window.
}

func (rf RegisterFile) String() string {
	b := strings.Builder{}

	for i := range rf.GPR {
		fmt.Fprintf(&b, "R%d: %s ", i, rf.GPR[i])
	}

	fmt.Fprintf(&b, "PC: %s SP: %s BASE: %s LIM: %s", Word(rf.PC), Word(rf.SP), Word(rf.BASE), Word(rf.LIM))

	return b.String()
}

func (rf RegisterFile) LogValue() log.Value {
	return log.GroupValue(
		log.String("R0", rf.GPR[R0].String()),
		log.String("R1", rf.GPR[R1].String()),
		log.String("R2", rf.GPR[R2].String()),
		log.String("R3", rf.GPR[R3].String()),
		log.String("R4", rf.GPR[R4].String()),
		log.String("PC", Word(rf.PC).String()),
		log.String("SP", Word(rf.SP).String()),
		log.String("BASE", Word(rf.BASE).String()),
		log.String("LIM", Word(rf.LIM).String()),
	)
}

// Within reports whether addr falls inside the register file's accessible RAM window.
func (rf RegisterFile) Within(addr Word) bool {
	return addr >= rf.BASE && addr < rf.BASE+rf.LIM
}
