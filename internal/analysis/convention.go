package analysis

import "smmscan/internal/disasm"

// CallingConvention names the registers the predicates look for, so the
// matchers carry no architecture-specific register numbers.
type CallingConvention struct {
	Name        string
	Accumulator disasm.Reg
	Args        [4]disasm.Reg // first four integer arguments
}

// MicrosoftX64 is the convention used by UEFI on x86-64.
var MicrosoftX64 = CallingConvention{
	Name:        "ms-x64",
	Accumulator: "rax",
	Args:        [4]disasm.Reg{"rcx", "rdx", "r8", "r9"},
}

// Arg returns the register carrying the n-th (zero based) argument.
func (cc CallingConvention) Arg(n int) disasm.Reg {
	if n < 0 || n >= len(cc.Args) {
		return ""
	}
	return cc.Args[n]
}

// MovMemToReg matches "mov reg, [mem]" with a direct memory source.
func MovMemToReg(reg disasm.Reg) Predicate {
	return func(inst disasm.Inst) bool {
		return inst.Class == disasm.ClassMov &&
			destIs(inst, reg) &&
			srcKind(inst) == disasm.KindMem
	}
}

// LeaDisplToReg matches "lea reg, [base+disp]".
func LeaDisplToReg(reg disasm.Reg) Predicate {
	return func(inst disasm.Inst) bool {
		return inst.Class == disasm.ClassLea &&
			destIs(inst, reg) &&
			srcKind(inst) == disasm.KindDispl
	}
}

// LeaMemToReg matches "lea reg, [mem]" loading a direct address.
func LeaMemToReg(reg disasm.Reg) Predicate {
	return func(inst disasm.Inst) bool {
		return inst.Class == disasm.ClassLea &&
			destIs(inst, reg) &&
			srcKind(inst) == disasm.KindMem
	}
}

// IsIndirectCall matches calls through a register or memory operand.
func IsIndirectCall(inst disasm.Inst) bool {
	return inst.Class == disasm.ClassCallIndirect
}

// IsReturn matches return instructions.
func IsReturn(inst disasm.Inst) bool {
	return inst.Class == disasm.ClassRet
}

func destIs(inst disasm.Inst, reg disasm.Reg) bool {
	op, ok := inst.Arg(0)
	return ok && op.Kind == disasm.KindReg && disasm.SameFamily(op.Reg, reg)
}

func srcKind(inst disasm.Inst) disasm.OperandKind {
	op, ok := inst.Arg(1)
	if !ok {
		return disasm.KindNone
	}
	return op.Kind
}
