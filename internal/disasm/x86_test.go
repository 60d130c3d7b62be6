package disasm

import "testing"

func TestDecodeX86(t *testing.T) {
	tests := []struct {
		name      string
		code      []byte
		va        uint64
		wantLen   int
		wantClass Class
		wantArgs  []Operand
	}{
		{
			name: "mov rax, [rip+disp32]",
			// 0x1000 + 7 + 0xff9 = 0x2000
			code:      []byte{0x48, 0x8b, 0x05, 0xf9, 0x0f, 0x00, 0x00},
			va:        0x1000,
			wantLen:   7,
			wantClass: ClassMov,
			wantArgs: []Operand{
				{Kind: KindReg, Reg: "rax"},
				{Kind: KindMem, Addr: 0x2000},
			},
		},
		{
			name:      "lea r9, [rsp+0x40]",
			code:      []byte{0x4c, 0x8d, 0x4c, 0x24, 0x40},
			va:        0x1000,
			wantLen:   5,
			wantClass: ClassLea,
			wantArgs: []Operand{
				{Kind: KindReg, Reg: "r9"},
				{Kind: KindDispl, Reg: "rsp", Disp: 0x40},
			},
		},
		{
			name:      "lea r9, [rsp]",
			code:      []byte{0x4c, 0x8d, 0x0c, 0x24},
			va:        0x1000,
			wantLen:   4,
			wantClass: ClassLea,
			wantArgs: []Operand{
				{Kind: KindReg, Reg: "r9"},
				{Kind: KindPhrase, Reg: "rsp"},
			},
		},
		{
			name: "lea rdx, [rip+disp32]",
			// 0x3000 + 7 + 0x100 = 0x3107
			code:      []byte{0x48, 0x8d, 0x15, 0x00, 0x01, 0x00, 0x00},
			va:        0x3000,
			wantLen:   7,
			wantClass: ClassLea,
			wantArgs: []Operand{
				{Kind: KindReg, Reg: "rdx"},
				{Kind: KindMem, Addr: 0x3107},
			},
		},
		{
			name:      "call qword ptr [rax+8]",
			code:      []byte{0xff, 0x50, 0x08},
			va:        0x1000,
			wantLen:   3,
			wantClass: ClassCallIndirect,
			wantArgs: []Operand{
				{Kind: KindDispl, Reg: "rax", Disp: 8},
			},
		},
		{
			name:      "call rel32",
			code:      []byte{0xe8, 0x0b, 0x00, 0x00, 0x00},
			va:        0x100,
			wantLen:   5,
			wantClass: ClassCall,
			wantArgs: []Operand{
				{Kind: KindRel, Addr: 0x110},
			},
		},
		{
			name:      "ret",
			code:      []byte{0xc3},
			va:        0x1000,
			wantLen:   1,
			wantClass: ClassRet,
		},
		{
			name:      "endbr64",
			code:      []byte{0xf3, 0x0f, 0x1e, 0xfa, 0xc3},
			va:        0x1000,
			wantLen:   4,
			wantClass: ClassNop,
		},
		{
			name:      "int3",
			code:      []byte{0xcc},
			va:        0x1000,
			wantLen:   1,
			wantClass: ClassTrap,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := DecodeX86(tt.code, tt.va)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if inst.Len != tt.wantLen {
				t.Errorf("expected len %d, got %d", tt.wantLen, inst.Len)
			}
			if inst.Class != tt.wantClass {
				t.Errorf("expected class %s, got %s", tt.wantClass, inst.Class)
			}
			if inst.VA != tt.va {
				t.Errorf("expected va 0x%x, got 0x%x", tt.va, inst.VA)
			}
			if tt.wantArgs == nil {
				return
			}
			if len(inst.Args) != len(tt.wantArgs) {
				t.Fatalf("expected %d args, got %d: %+v", len(tt.wantArgs), len(inst.Args), inst.Args)
			}
			for i, want := range tt.wantArgs {
				if inst.Args[i] != want {
					t.Errorf("arg %d: expected %+v, got %+v", i, want, inst.Args[i])
				}
			}
		})
	}
}

func TestDecodeX86Truncated(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"mov rax, [rip+disp32] cut short", []byte{0x48, 0x8b, 0x05}},
		{"lone rex.w", []byte{0x48}},
		{"lone ff", []byte{0xff}},
		{"call [rax+disp8] cut short", []byte{0xff, 0x50}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := DecodeX86(tt.code, 0x1000)
			if err == nil {
				t.Fatalf("expected error for truncated instruction, got %q len=%d", inst.Text, inst.Len)
			}
		})
	}
}

func TestInstTarget(t *testing.T) {
	inst, err := DecodeX86([]byte{0xe8, 0x0b, 0x00, 0x00, 0x00}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	target, ok := inst.Target()
	if !ok || target != 0x10 {
		t.Errorf("expected target 0x10, got 0x%x (ok=%v)", target, ok)
	}
	if inst.End() != 5 {
		t.Errorf("expected end 5, got %d", inst.End())
	}

	ind, err := DecodeX86([]byte{0xff, 0x50, 0x08}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ind.Target(); ok {
		t.Error("indirect call should not have a static target")
	}
}
