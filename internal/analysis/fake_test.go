package analysis

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"smmscan/internal/disasm"
	"smmscan/internal/image"
)

var errBadUnit = errors.New("bad unit")

// fakeImage is an in-memory image and code model. Every unit is four bytes
// long so tests can compute addresses by hand.
type fakeImage struct {
	sections []image.Section
	code     map[uint64]disasm.Inst
	bad      map[uint64]bool
	heads    []uint64
	xrefs    map[uint64][]uint64
	funcs    []image.Function

	// creatable maps a start address to the end AddFunc gives it.
	creatable map[uint64]uint64

	addFuncs []uint64
	decodes  []uint64
	names    map[uint64]string
	comments map[uint64]string
	types    map[uint64]string
}

const unit = 4

func newFake() *fakeImage {
	return &fakeImage{
		code:      make(map[uint64]disasm.Inst),
		bad:       make(map[uint64]bool),
		xrefs:     make(map[uint64][]uint64),
		creatable: make(map[uint64]uint64),
		names:     make(map[uint64]string),
		comments:  make(map[uint64]string),
		types:     make(map[uint64]string),
	}
}

// data adds a non-executable section.
func (f *fakeImage) data(name string, va uint64, b []byte) {
	f.sections = append(f.sections, image.Section{Name: name, VA: va, Size: uint64(len(b)), Data: b})
}

// emit places insts at consecutive units from va and returns the address
// following the last one. Memory operands pointing at data are indexed as
// cross-references.
func (f *fakeImage) emit(va uint64, insts ...disasm.Inst) uint64 {
	for _, inst := range insts {
		inst.VA = va
		inst.Len = unit
		f.code[va] = inst
		f.heads = append(f.heads, va)
		for _, op := range inst.Args {
			if op.Kind == disasm.KindMem {
				f.xrefs[op.Addr] = append(f.xrefs[op.Addr], va)
			}
		}
		va += unit
	}
	sort.Slice(f.heads, func(i, j int) bool { return f.heads[i] < f.heads[j] })
	return va
}

func (f *fakeImage) fn(start, end uint64) {
	f.funcs = append(f.funcs, image.Function{Start: start, End: end})
}

func (f *fakeImage) Region(name string) (image.Section, bool) {
	for _, s := range f.sections {
		if s.Name == name {
			return s, true
		}
	}
	return image.Section{}, false
}

func (f *fakeImage) ReadBytesVA(va uint64, size int) ([]byte, bool) {
	for _, s := range f.sections {
		if va >= s.VA && va+uint64(size) <= s.VA+uint64(len(s.Data)) {
			off := va - s.VA
			return s.Data[off : off+uint64(size)], true
		}
	}
	return nil, false
}

func (f *fakeImage) ReadU32(va uint64) (uint32, bool) {
	b, ok := f.ReadBytesVA(va, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (f *fakeImage) XrefsTo(va uint64) []uint64 {
	return f.xrefs[va]
}

func (f *fakeImage) FuncAt(va uint64) (image.Function, bool) {
	for _, fn := range f.funcs {
		if fn.Contains(va) {
			return fn, true
		}
	}
	return image.Function{}, false
}

func (f *fakeImage) AddFunc(start uint64) bool {
	f.addFuncs = append(f.addFuncs, start)
	if _, ok := f.FuncAt(start); ok {
		return true
	}
	end, ok := f.creatable[start]
	if !ok {
		return false
	}
	f.fn(start, end)
	return true
}

func (f *fakeImage) SetName(va uint64, name string) error {
	if name == "" {
		return errors.New("empty name")
	}
	f.names[va] = name
	return nil
}

func (f *fakeImage) SetComment(va uint64, comment string) error {
	f.comments[va] = comment
	return nil
}

func (f *fakeImage) SetType(va uint64, typ string) error {
	f.types[va] = typ
	return nil
}

func (f *fakeImage) Decode(va uint64) (disasm.Inst, error) {
	f.decodes = append(f.decodes, va)
	if f.bad[va] {
		return disasm.Inst{}, errBadUnit
	}
	inst, ok := f.code[va]
	if !ok {
		return disasm.Inst{}, fmt.Errorf("%#x: %w", va, image.ErrUnmapped)
	}
	return inst, nil
}

func (f *fakeImage) Prev(va uint64) (uint64, bool) {
	i := sort.Search(len(f.heads), func(i int) bool { return f.heads[i] >= va })
	if i == 0 {
		return 0, false
	}
	return f.heads[i-1], true
}

func (f *fakeImage) Next(va uint64) (uint64, bool) {
	i := sort.Search(len(f.heads), func(i int) bool { return f.heads[i] > va })
	if i == len(f.heads) {
		return 0, false
	}
	return f.heads[i], true
}

// Instruction builders.

func reg(r disasm.Reg) disasm.Operand {
	return disasm.Operand{Kind: disasm.KindReg, Reg: r}
}

func mem(addr uint64) disasm.Operand {
	return disasm.Operand{Kind: disasm.KindMem, Addr: addr}
}

func displ(base disasm.Reg, disp int64) disasm.Operand {
	return disasm.Operand{Kind: disasm.KindDispl, Reg: base, Disp: disp}
}

func movMem(r disasm.Reg, addr uint64) disasm.Inst {
	return disasm.Inst{Op: "mov", Class: disasm.ClassMov, Args: []disasm.Operand{reg(r), mem(addr)}}
}

func leaMem(r disasm.Reg, addr uint64) disasm.Inst {
	return disasm.Inst{Op: "lea", Class: disasm.ClassLea, Args: []disasm.Operand{reg(r), mem(addr)}}
}

func leaDispl(r disasm.Reg, disp int64) disasm.Inst {
	return disasm.Inst{Op: "lea", Class: disasm.ClassLea, Args: []disasm.Operand{reg(r), displ("rsp", disp)}}
}

func callInd() disasm.Inst {
	return disasm.Inst{Op: "call", Class: disasm.ClassCallIndirect, Args: []disasm.Operand{displ("rax", 8)}}
}

func ret() disasm.Inst {
	return disasm.Inst{Op: "ret", Class: disasm.ClassRet}
}

func nop() disasm.Inst {
	return disasm.Inst{Op: "nop", Class: disasm.ClassNop}
}

func nops(n int) []disasm.Inst {
	out := make([]disasm.Inst, n)
	for i := range out {
		out[i] = nop()
	}
	return out
}

// seq flattens instruction groups for emit.
func seq(groups ...[]disasm.Inst) []disasm.Inst {
	var out []disasm.Inst
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func one(insts ...disasm.Inst) []disasm.Inst {
	return insts
}

// withIdentifier returns a .data section of size bytes holding id at off.
func withIdentifier(size int, off int, id Identifier) []byte {
	b := make([]byte, size)
	raw := id.Bytes()
	copy(b[off:], raw[:])
	return b
}
