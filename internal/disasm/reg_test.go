package disasm

import "testing"

func TestRegFamily(t *testing.T) {
	tests := []struct {
		reg  Reg
		want Reg
	}{
		{"rax", "rax"},
		{"eax", "rax"},
		{"ax", "rax"},
		{"al", "rax"},
		{"ah", "rax"},
		{"edx", "rdx"},
		{"dl", "rdx"},
		{"r9", "r9"},
		{"r9l", "r9"},
		{"r9d", "r9"},
		{"r8w", "r8"},
		{"r15b", "r15"},
		{"sib", "rsi"},
		{"esp", "rsp"},
		{"bp", "rbp"},
		{"rip", "rip"},
		{"eip", "rip"},
		{"x0", "x0"},
	}
	for _, tt := range tests {
		if got := tt.reg.Family(); got != tt.want {
			t.Errorf("%s.Family(): expected %s, got %s", tt.reg, tt.want, got)
		}
	}

	if !SameFamily("edx", "rdx") {
		t.Error("edx and rdx should be the same family")
	}
	if SameFamily("r8", "r9") {
		t.Error("r8 and r9 should differ")
	}
	if SameFamily("", "") {
		t.Error("empty registers never match")
	}
}
