package analysis

import (
	"smmscan/internal/disasm"
	"smmscan/internal/image"
)

// Image is the part of the binary image service the locators use.
// *image.Image satisfies it.
type Image interface {
	Region(name string) (image.Section, bool)
	ReadU32(va uint64) (uint32, bool)
	ReadBytesVA(va uint64, size int) ([]byte, bool)
	XrefsTo(va uint64) []uint64
	FuncAt(va uint64) (image.Function, bool)
	AddFunc(start uint64) bool
	SetName(va uint64, name string) error
	SetComment(va uint64, comment string) error
	SetType(va uint64, typ string) error
}

// CodeModel decodes instructions and steps between decodable units.
// *image.Image satisfies it.
type CodeModel interface {
	Decode(va uint64) (disasm.Inst, error)
	Prev(va uint64) (uint64, bool)
	Next(va uint64) (uint64, bool)
}
