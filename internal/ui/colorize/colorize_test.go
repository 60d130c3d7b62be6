package colorize

import (
	"strings"
	"testing"
)

func TestColorizeInstructionLine(t *testing.T) {
	lines := []string{
		"0000000000001020  call qword ptr [rax+0x8]",
		"0000000000001001  mov rax, qword ptr [rip+0x1028] ; EFI_SMM_SYSTEM_TABLE2 *gSmst;",
		"SwSmiHandler_1030:",
		"    ; comment only",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			t.Setenv(NoColorEnv, "")
			got := ColorizeInstructionLine(line)
			if !strings.Contains(got, "\x1b[") {
				t.Errorf("no escape sequences in %q", got)
			}
			if plain := StripANSI(got); strings.TrimRight(plain, " ") != strings.TrimRight(line, " ") {
				t.Errorf("visible text = %q, want %q", plain, line)
			}
		})
	}
}

func TestNoColor(t *testing.T) {
	t.Setenv(NoColorEnv, "1")
	line := "0000000000001023  ret"
	if got := ColorizeInstructionLine(line); got != line {
		t.Errorf("ColorizeInstructionLine = %q, want unchanged", got)
	}
	if got, err := ColorizeAssembly(line); err != nil || got != line {
		t.Errorf("ColorizeAssembly = %q, %v; want unchanged", got, err)
	}
}

func TestStripANSI(t *testing.T) {
	if got := StripANSI("\x1b[38;2;79;79;79m1000\x1b[0m ret"); got != "1000 ret" {
		t.Errorf("StripANSI = %q", got)
	}
}
