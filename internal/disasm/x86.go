package disasm

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// ErrIncomplete is returned when the bytes end before a full instruction,
// leaving x86asm with only prefixes.
var ErrIncomplete = errors.New("incomplete instruction")

var (
	endbr64 = []byte{0xf3, 0x0f, 0x1e, 0xfa}
	endbr32 = []byte{0xf3, 0x0f, 0x1e, 0xfb}
)

// DecodeX86 decodes one 64-bit x86 instruction located at va.
//
// ENDBR64/ENDBR32 are reported as 4-byte NOPs because x86asm does not
// recognise them; they prefix most functions built with CET enabled.
func DecodeX86(code []byte, va uint64) (Inst, error) {
	if bytes.HasPrefix(code, endbr64) || bytes.HasPrefix(code, endbr32) {
		op := "endbr64"
		if code[3] == 0xfb {
			op = "endbr32"
		}
		return Inst{VA: va, Len: 4, Text: op, Op: op, Class: ClassNop}, nil
	}

	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return Inst{}, fmt.Errorf("decode at %#x: %w", va, err)
	}
	if inst.Op == 0 || inst.Len == 0 {
		return Inst{}, fmt.Errorf("decode at %#x: %w", va, ErrIncomplete)
	}

	out := Inst{
		VA:    va,
		Len:   inst.Len,
		Text:  x86asm.IntelSyntax(inst, va, nil),
		Op:    strings.ToLower(inst.Op.String()),
		Class: classifyX86(inst),
	}
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		out.Args = append(out.Args, operandX86(arg, va, inst.Len))
	}
	return out, nil
}

func classifyX86(inst x86asm.Inst) Class {
	switch inst.Op {
	case x86asm.MOV:
		return ClassMov
	case x86asm.LEA:
		return ClassLea
	case x86asm.CALL, x86asm.LCALL:
		if _, ok := inst.Args[0].(x86asm.Rel); ok {
			return ClassCall
		}
		return ClassCallIndirect
	case x86asm.JMP, x86asm.LJMP:
		return ClassJmp
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE,
		x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE,
		x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ,
		x86asm.JS, x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return ClassJcc
	case x86asm.RET, x86asm.LRET, x86asm.IRET, x86asm.IRETD, x86asm.IRETQ:
		return ClassRet
	case x86asm.NOP:
		return ClassNop
	case x86asm.HLT, x86asm.UD2:
		return ClassTrap
	case x86asm.INT:
		if imm, ok := inst.Args[0].(x86asm.Imm); ok && imm == 3 {
			return ClassTrap
		}
	}
	return ClassOther
}

func operandX86(arg x86asm.Arg, va uint64, length int) Operand {
	switch a := arg.(type) {
	case x86asm.Reg:
		return Operand{Kind: KindReg, Reg: regX86(a)}
	case x86asm.Mem:
		switch {
		case a.Base == x86asm.RIP && a.Index == 0:
			// RIP-relative operands are relative to the next instruction.
			return Operand{Kind: KindMem, Addr: va + uint64(length) + uint64(a.Disp)}
		case a.Base == 0 && a.Index == 0 && a.Segment == 0:
			return Operand{Kind: KindMem, Addr: uint64(a.Disp)}
		}
		base := a.Base
		if base == 0 {
			base = a.Index
		}
		if a.Disp != 0 {
			return Operand{Kind: KindDispl, Reg: regX86(base), Disp: a.Disp}
		}
		return Operand{Kind: KindPhrase, Reg: regX86(base)}
	case x86asm.Rel:
		return Operand{Kind: KindRel, Addr: va + uint64(length) + uint64(int64(a))}
	case x86asm.Imm:
		return Operand{Kind: KindImm, Disp: int64(a)}
	}
	return Operand{}
}

func regX86(r x86asm.Reg) Reg {
	if r == 0 {
		return ""
	}
	return Reg(strings.ToLower(r.String()))
}
