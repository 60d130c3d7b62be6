// Package disasm defines a common instruction representation used
// across architecture-specific disassemblers.
package disasm

import "fmt"

// Class is a coarse instruction category the pattern matchers key on.
type Class int

const (
	ClassOther Class = iota
	ClassMov
	ClassLea
	ClassCall         // direct call to a fixed target
	ClassCallIndirect // call through a register or memory operand
	ClassJmp
	ClassJcc
	ClassRet
	ClassNop
	ClassTrap // hlt, int3, ud2
)

var classNames = [...]string{
	ClassOther:        "other",
	ClassMov:          "mov",
	ClassLea:          "lea",
	ClassCall:         "call",
	ClassCallIndirect: "call-indirect",
	ClassJmp:          "jmp",
	ClassJcc:          "jcc",
	ClassRet:          "ret",
	ClassNop:          "nop",
	ClassTrap:         "trap",
}

func (c Class) String() string {
	if c >= 0 && int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// OperandKind describes how an operand is encoded.
type OperandKind int

const (
	KindNone OperandKind = iota
	KindReg
	KindMem    // direct memory reference, [rip+disp] or [disp]
	KindDispl  // base/index register plus non-zero displacement
	KindPhrase // base/index register without displacement
	KindImm
	KindRel // relative branch target
)

// Reg is a canonical lowercase register name ("rax", "r9").
type Reg string

// Operand is one decoded instruction argument.
type Operand struct {
	Kind OperandKind
	Reg  Reg    // register for KindReg, base register for KindDispl/KindPhrase
	Addr uint64 // resolved target for KindMem and KindRel
	Disp int64  // displacement for KindDispl, value for KindImm
}

// Inst is a simplified decoded instruction.
type Inst struct {
	VA    uint64    // virtual address of instruction
	Len   int       // encoded length in bytes
	Text  string    // formatted disassembly string
	Op    string    // mnemonic in lowercase
	Class Class     // coarse category
	Args  []Operand // operands in Intel order (destination first)
}

// Arg returns the i-th operand, or false if the instruction has fewer.
func (i Inst) Arg(n int) (Operand, bool) {
	if n < 0 || n >= len(i.Args) {
		return Operand{}, false
	}
	return i.Args[n], true
}

// End is the address of the following decodable unit.
func (i Inst) End() uint64 {
	return i.VA + uint64(i.Len)
}

// Target returns the resolved destination of a direct branch or call.
func (i Inst) Target() (uint64, bool) {
	switch i.Class {
	case ClassCall, ClassJmp, ClassJcc:
	default:
		return 0, false
	}
	if op, ok := i.Arg(0); ok && op.Kind == KindRel {
		return op.Addr, true
	}
	return 0, false
}

// Stream is a linear sequence of instructions.
type Stream []Inst
