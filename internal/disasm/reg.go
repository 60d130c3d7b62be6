package disasm

import "strings"

// Family returns the full-width register that r is a view of, so that
// "edx", "dx" and "dl" all compare equal to "rdx". Names that are not
// x86 general purpose registers are returned unchanged.
func (r Reg) Family() Reg {
	s := string(r)
	switch s {
	case "spb", "spl":
		return "rsp"
	case "bpb", "bpl":
		return "rbp"
	case "sib", "sil":
		return "rsi"
	case "dib", "dil":
		return "rdi"
	case "ip", "eip":
		return "rip"
	}

	// r8..r15 with a b/w/l/d size suffix
	if strings.HasPrefix(s, "r") && len(s) >= 3 && s[1] >= '0' && s[1] <= '9' {
		switch s[len(s)-1] {
		case 'b', 'w', 'l', 'd':
			return Reg(s[:len(s)-1])
		}
		return r
	}

	switch len(s) {
	case 3:
		if s[0] == 'e' {
			return Reg("r" + s[1:])
		}
	case 2:
		switch s {
		case "si", "di", "bp", "sp":
			return Reg("r" + s)
		}
		switch s[1] {
		case 'x':
			return Reg("r" + s)
		case 'l', 'h':
			return Reg("r" + s[:1] + "x")
		}
	}
	return r
}

// SameFamily reports whether a and b name views of the same register.
func SameFamily(a, b Reg) bool {
	if a == "" || b == "" {
		return false
	}
	return a.Family() == b.Family()
}
