package vm

// ops.go defines the semantics of each instruction. The ISA is simple enough — fourteen opcodes,
// no addressing modes — that a dense switch does the job of what, in a richer ISA, would want a
// per-opcode operation type; see internal/sos/dispatch.go for the analogous syscall table, which
// is exactly this shape one level up.

// execute performs the operation named by instr, mutating the CPU's live registers and memory.
// Faults (illegal instruction, divide-by-zero, illegal memory) are reported to the handler; all
// other opcodes run to completion or not at all.
func (cpu *CPU) execute(instr Instruction) {
	switch instr.Op {
	case SET:
		cpu.reg(instr.Arg0, Word(instr.Arg1))
	case ADD:
		cpu.reg(instr.Arg0, cpu.regVal(instr.Arg1)+cpu.regVal(instr.Arg2))
	case SUB:
		cpu.reg(instr.Arg0, cpu.regVal(instr.Arg1)-cpu.regVal(instr.Arg2))
	case MUL:
		cpu.reg(instr.Arg0, cpu.regVal(instr.Arg1)*cpu.regVal(instr.Arg2))
	case DIV:
		divisor := cpu.regVal(instr.Arg2)
		if divisor == 0 {
			cpu.Handler.DivideByZero()
			return
		}

		cpu.reg(instr.Arg0, cpu.regVal(instr.Arg1)/divisor)
	case COPY:
		cpu.reg(instr.Arg0, cpu.regVal(instr.Arg1))
	case BRANCH:
		cpu.branchTo(instr.Arg0)
	case BNE:
		if cpu.regVal(instr.Arg0) != cpu.regVal(instr.Arg1) {
			cpu.branchTo(instr.Arg2)
		}
	case BLT:
		if cpu.regVal(instr.Arg0) < cpu.regVal(instr.Arg1) {
			cpu.branchTo(instr.Arg2)
		}
	case POP:
		val, err := cpu.PopStack()
		if err != nil {
			cpu.Handler.IllegalMemoryAccess(cpu.Mem.MAR)
			return
		}

		cpu.reg(instr.Arg0, val)
	case PUSH:
		if err := cpu.PushStack(cpu.regVal(instr.Arg0)); err != nil {
			cpu.Handler.IllegalMemoryAccess(cpu.Mem.MAR)
		}
	case LOAD:
		cpu.Mem.MAR = instr.Arg1
		if err := cpu.Mem.Fetch(cpu.Reg); err != nil {
			cpu.Handler.IllegalMemoryAccess(cpu.Mem.MAR)
			return
		}

		cpu.reg(instr.Arg0, cpu.Mem.MDR)
	case SAVE:
		cpu.Mem.MAR = instr.Arg0
		cpu.Mem.MDR = cpu.regVal(instr.Arg1)

		if err := cpu.Mem.Store(cpu.Reg); err != nil {
			cpu.Handler.IllegalMemoryAccess(cpu.Mem.MAR)
		}
	case TRAP:
		cpu.Handler.SystemCall()
	default:
		cpu.Handler.IllegalInstruction(instr)
	}
}

// reg writes val into the general-purpose register identified by a decoded operand.
func (cpu *CPU) reg(id Word, val Word) {
	if id < 0 || Word(int(id)) >= Word(NumGPR) {
		cpu.Handler.IllegalInstruction(Instruction{})
		return
	}

	cpu.Reg.GPR[GPR(id)] = Register(val)
}

// regVal reads the value of the general-purpose register identified by a decoded operand.
func (cpu *CPU) regVal(id Word) Word {
	if id < 0 || Word(int(id)) >= Word(NumGPR) {
		cpu.Handler.IllegalInstruction(Instruction{})
		return 0
	}

	return Word(cpu.Reg.GPR[GPR(id)])
}

// branchTo jumps to a BASE-relative target, the way position-independent user code expects: the
// same target word means the same instruction no matter where the loader placed the process.
func (cpu *CPU) branchTo(target Word) {
	cpu.Reg.PC = cpu.Reg.BASE + target
}
