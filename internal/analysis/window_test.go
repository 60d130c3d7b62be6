package analysis

import (
	"errors"
	"testing"

	"smmscan/internal/disasm"
)

func TestFindInWindow(t *testing.T) {
	// Ten units from 0x1000; the target sits at 0x1008 (third unit).
	build := func() *fakeImage {
		f := newFake()
		f.emit(0x1000, seq(nops(2), one(movMem("rax", 0x3000)), nops(7))...)
		return f
	}
	isMov := MovMemToReg("rax")

	tests := []struct {
		name        string
		start       uint64
		dir         Direction
		steps       int
		wantAddr    uint64
		wantErr     error
		wantDecodes int
	}{
		{"backward match at step 4", 0x1014, Backward, 4, 0x1008, nil, 4},
		{"backward budget one short", 0x1014, Backward, 3, 0, ErrPatternNotMatched, 3},
		{"match at start", 0x1008, Backward, 1, 0x1008, nil, 1},
		{"forward match", 0x1000, Forward, 12, 0x1008, nil, 3},
		{"forward past match", 0x100c, Forward, 12, 0, ErrPatternNotMatched, 7},
		{"runs out of units", 0x1004, Backward, 12, 0, ErrPatternNotMatched, 2},
		{"zero budget", 0x1008, Backward, 0, 0, ErrPatternNotMatched, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := build()
			m, err := FindInWindow(f, tt.start, tt.dir, tt.steps, isMov)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if m.Addr != tt.wantAddr {
					t.Errorf("match at %#x, want %#x", m.Addr, tt.wantAddr)
				}
				if m.Inst.Class != disasm.ClassMov {
					t.Errorf("matched %v, want mov", m.Inst.Class)
				}
			}
			if len(f.decodes) != tt.wantDecodes {
				t.Errorf("decoded %d units, want %d", len(f.decodes), tt.wantDecodes)
			}
			if len(f.decodes) > tt.steps {
				t.Errorf("decoded %d units with a budget of %d", len(f.decodes), tt.steps)
			}
		})
	}
}

func TestFindInWindowDecodeFailure(t *testing.T) {
	f := newFake()
	f.emit(0x1000, movMem("rax", 0x3000), nop(), nop(), nop())
	f.bad[0x1004] = true

	_, err := FindInWindow(f, 0x100c, Backward, 4, MovMemToReg("rax"))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
	if de.Addr != 0x1004 {
		t.Errorf("decode failure at %#x, want 0x1004", de.Addr)
	}
	if !errors.Is(err, errBadUnit) {
		t.Errorf("DecodeError does not unwrap to the decoder's error")
	}
	if len(f.decodes) != 3 {
		t.Errorf("decoded %d units, want 3", len(f.decodes))
	}
}

func TestPredicates(t *testing.T) {
	eax := movMem("eax", 0x3000)
	movRcx := movMem("rcx", 0x3000)
	movImm := disasm.Inst{Class: disasm.ClassMov, Args: []disasm.Operand{reg("rax"), {Kind: disasm.KindImm}}}
	leaPhrase := disasm.Inst{Class: disasm.ClassLea, Args: []disasm.Operand{reg("r9"), {Kind: disasm.KindPhrase, Reg: "rsp"}}}
	directCall := disasm.Inst{Class: disasm.ClassCall, Args: []disasm.Operand{{Kind: disasm.KindRel, Addr: 0x1000}}}

	tests := []struct {
		name string
		pred Predicate
		inst disasm.Inst
		want bool
	}{
		{"mov rax mem", MovMemToReg("rax"), movMem("rax", 0x3000), true},
		{"mov eax same family", MovMemToReg("rax"), eax, true},
		{"mov other register", MovMemToReg("rax"), movRcx, false},
		{"mov immediate", MovMemToReg("rax"), movImm, false},
		{"lea mem is not mov", MovMemToReg("rax"), leaMem("rax", 0x3000), false},
		{"lea r9 displ", LeaDisplToReg("r9"), leaDispl("r9", 0x40), true},
		{"lea r9 phrase", LeaDisplToReg("r9"), leaPhrase, false},
		{"lea r8 wanted r9", LeaDisplToReg("r9"), leaDispl("r8", 0x40), false},
		{"lea rdx mem", LeaMemToReg("rdx"), leaMem("rdx", 0x1800), true},
		{"lea rdx displ", LeaMemToReg("rdx"), leaDispl("rdx", 0x40), false},
		{"indirect call", IsIndirectCall, callInd(), true},
		{"direct call", IsIndirectCall, directCall, false},
		{"ret", IsReturn, ret(), true},
		{"nop", IsReturn, nop(), false},
		{"no operands", MovMemToReg("rax"), disasm.Inst{Class: disasm.ClassMov}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.inst); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCallingConventionArg(t *testing.T) {
	want := []disasm.Reg{"rcx", "rdx", "r8", "r9"}
	for i, r := range want {
		if got := MicrosoftX64.Arg(i); got != r {
			t.Errorf("Arg(%d) = %s, want %s", i, got, r)
		}
	}
	if got := MicrosoftX64.Arg(4); got != "" {
		t.Errorf("Arg(4) = %q, want empty", got)
	}
}
