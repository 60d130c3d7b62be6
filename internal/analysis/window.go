package analysis

import "smmscan/internal/disasm"

// Direction selects which neighbour a window steps to.
type Direction int

const (
	Backward Direction = iota
	Forward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Predicate tests one decoded instruction.
type Predicate func(inst disasm.Inst) bool

// Match is the instruction that satisfied a window's predicate.
type Match struct {
	Addr uint64
	Inst disasm.Inst
}

// FindInWindow decodes up to steps units starting at start (inclusive),
// moving in dir, and returns the first one satisfying pred. It fails with
// ErrPatternNotMatched when the budget runs out or there is no neighbour to
// step to, and with a *DecodeError when a unit cannot be decoded.
func FindInWindow(code CodeModel, start uint64, dir Direction, steps int, pred Predicate) (Match, error) {
	va := start
	for i := 0; i < steps; i++ {
		inst, err := code.Decode(va)
		if err != nil {
			return Match{}, &DecodeError{Addr: va, Err: err}
		}
		if pred(inst) {
			return Match{Addr: va, Inst: inst}, nil
		}
		if i == steps-1 {
			break
		}
		var ok bool
		if dir == Forward {
			va, ok = code.Next(va)
		} else {
			va, ok = code.Prev(va)
		}
		if !ok {
			break
		}
	}
	return Match{}, ErrPatternNotMatched
}
