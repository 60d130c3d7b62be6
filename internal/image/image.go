// Package image provides the binary image service: sections of a loaded
// driver, raw reads by virtual address, decodable-unit stepping, a code
// cross-reference index, a function table and address annotations.
package image

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"smmscan/internal/disasm"
)

// ErrUnmapped is returned when a virtual address has no backing bytes.
var ErrUnmapped = errors.New("address not mapped")

// Format identifies the container the image was loaded from.
type Format string

const (
	FormatPE  Format = "pe"
	FormatELF Format = "elf"
	FormatRaw Format = "raw"
)

// Section is a named, contiguous part of the address space.
type Section struct {
	Name string
	VA   uint64 // virtual start address
	Off  uint64 // file offset, zero for in-memory sections
	Size uint64 // virtual size
	Exec bool
	Data []byte // initialized bytes, may be shorter than Size
}

// End returns the first address past the section.
func (s Section) End() uint64 {
	return s.VA + s.Size
}

// Contains reports whether va lies inside the section.
func (s Section) Contains(va uint64) bool {
	return va >= s.VA && va < s.End()
}

// Function is a contiguous function body [Start, End).
type Function struct {
	Start uint64
	End   uint64
	Name  string
}

// Contains reports whether va lies inside the function body.
func (f Function) Contains(va uint64) bool {
	return va >= f.Start && va < f.End
}

type Image struct {
	Path     string
	Format   Format
	Base     uint64
	Entry    uint64
	Sections []Section

	all []byte
	f   fileCloser

	// mu serializes metadata writers (function creation, naming) against
	// the readers that step through heads and look up functions.
	mu       sync.RWMutex
	heads    []uint64 // sorted starts of decodable units
	xrefs    map[uint64][]uint64
	funcs    []Function // sorted by Start, non-overlapping
	names    map[uint64]string
	comments map[uint64]string
	types    map[uint64]string
}

type fileCloser interface {
	Close() error
}

// New builds an image from in-memory sections. Executable sections are
// swept to build the decodable-unit list and the cross-reference index.
func New(sections []Section) *Image {
	im := &Image{
		Format:   FormatRaw,
		Sections: sections,
	}
	im.init()
	if len(im.Sections) > 0 {
		im.Base = im.Sections[0].VA
	}
	return im
}

func (im *Image) init() {
	im.xrefs = make(map[uint64][]uint64)
	im.names = make(map[uint64]string)
	im.comments = make(map[uint64]string)
	im.types = make(map[uint64]string)
	sort.Slice(im.Sections, func(i, j int) bool {
		return im.Sections[i].VA < im.Sections[j].VA
	})
	im.sweep()
}

// sweep linearly decodes every executable section, recording the start of
// each decodable unit and every operand that resolves to an address.
// Undecodable bytes are skipped one at a time.
func (im *Image) sweep() {
	for _, s := range im.Sections {
		if !s.Exec {
			continue
		}
		for off := 0; off < len(s.Data); {
			va := s.VA + uint64(off)
			inst, err := disasm.DecodeX86(s.Data[off:], va)
			if err != nil {
				off++
				continue
			}
			im.heads = append(im.heads, va)
			im.recordRefs(inst)
			off += inst.Len
		}
	}
}

func (im *Image) recordRefs(inst disasm.Inst) {
	for _, op := range inst.Args {
		if op.Kind != disasm.KindMem && op.Kind != disasm.KindRel {
			continue
		}
		if _, ok := im.section(op.Addr); !ok {
			continue
		}
		im.addXref(op.Addr, inst.VA)
	}
}

func (im *Image) section(va uint64) (Section, bool) {
	i := sort.Search(len(im.Sections), func(i int) bool {
		return im.Sections[i].End() > va
	})
	if i < len(im.Sections) && im.Sections[i].Contains(va) {
		return im.Sections[i], true
	}
	return Section{}, false
}

// Region returns the section with the given name.
func (im *Image) Region(name string) (Section, bool) {
	for _, s := range im.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// SliceVA returns the initialized bytes in [va, va+size).
// It returns (nil, false) if any part of the range is not backed by data.
func (im *Image) SliceVA(va uint64, size uint64) ([]byte, bool) {
	s, ok := im.section(va)
	if !ok {
		return nil, false
	}
	off := va - s.VA
	if off+size > uint64(len(s.Data)) || off+size < off {
		return nil, false
	}
	return s.Data[off : off+size], true
}

// ReadBytesVA reads exactly size bytes from a virtual address.
func (im *Image) ReadBytesVA(va uint64, size int) ([]byte, bool) {
	if size <= 0 {
		return []byte{}, true
	}
	return im.SliceVA(va, uint64(size))
}

// ReadU32 reads a little-endian 32-bit word.
func (im *Image) ReadU32(va uint64) (uint32, bool) {
	b, ok := im.SliceVA(va, 4)
	if !ok {
		return 0, false
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, true
}

// Decode decodes the instruction at va. Nothing is cached; every call
// decodes fresh from the section bytes.
func (im *Image) Decode(va uint64) (disasm.Inst, error) {
	s, ok := im.section(va)
	if !ok || !s.Exec || va-s.VA >= uint64(len(s.Data)) {
		return disasm.Inst{}, fmt.Errorf("decode at %#x: %w", va, ErrUnmapped)
	}
	return disasm.DecodeX86(s.Data[va-s.VA:], va)
}

// Prev returns the start of the decodable unit preceding va.
func (im *Image) Prev(va uint64) (uint64, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	i := sort.Search(len(im.heads), func(i int) bool { return im.heads[i] >= va })
	if i == 0 {
		return 0, false
	}
	return im.heads[i-1], true
}

// Next returns the start of the decodable unit following va.
func (im *Image) Next(va uint64) (uint64, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	i := sort.Search(len(im.heads), func(i int) bool { return im.heads[i] > va })
	if i == len(im.heads) {
		return 0, false
	}
	return im.heads[i], true
}

// XrefsTo returns every code location referencing va, in ascending order.
func (im *Image) XrefsTo(va uint64) []uint64 {
	im.mu.RLock()
	defer im.mu.RUnlock()
	refs := im.xrefs[va]
	out := make([]uint64, len(refs))
	copy(out, refs)
	return out
}

// Stream decodes the units in [start, end) for display.
func (im *Image) Stream(start, end uint64) disasm.Stream {
	var out disasm.Stream
	for va := start; va < end; {
		inst, err := im.Decode(va)
		if err != nil {
			break
		}
		out = append(out, inst)
		next, ok := im.Next(va)
		if !ok {
			break
		}
		va = next
	}
	return out
}

// Size returns the number of bytes backing the image.
func (im *Image) Size() uint64 {
	if im.all != nil {
		return uint64(len(im.all))
	}
	var n uint64
	for _, s := range im.Sections {
		n += uint64(len(s.Data))
	}
	return n
}
