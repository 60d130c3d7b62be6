package analysis

import (
	"bytes"
	"fmt"
)

// ScanIdentifier walks region one byte at a time looking for the leading
// 32-bit word (Data1) of any catalog entry and returns the lowest matching
// address. Only Data1 is compared unless strict is set, in which case the
// full 16 bytes must match as well.
func ScanIdentifier(img Image, region string, catalog []Identifier, strict bool) (uint64, Identifier, error) {
	sec, ok := img.Region(region)
	if !ok {
		return 0, Identifier{}, fmt.Errorf("%w: %s", ErrAbsentRegion, region)
	}
	if sec.Size < IdentifierSize-1 {
		return 0, Identifier{}, fmt.Errorf("%w in %s", ErrIdentifierNotFound, region)
	}

	last := sec.End() - (IdentifierSize - 1)
	for va := sec.VA; va <= last; va++ {
		word, ok := img.ReadU32(va)
		if !ok {
			continue
		}
		for _, id := range catalog {
			if word != id.Data1 {
				continue
			}
			if strict && !fullMatch(img, va, id) {
				continue
			}
			return va, id, nil
		}
	}
	return 0, Identifier{}, fmt.Errorf("%w in %s", ErrIdentifierNotFound, region)
}

func fullMatch(img Image, va uint64, id Identifier) bool {
	b, ok := img.ReadBytesVA(va, IdentifierSize)
	if !ok {
		return false
	}
	want := id.Bytes()
	return bytes.Equal(b, want[:])
}

// References returns the code locations referencing va, in the order the
// image's cross-reference index reports them.
func References(img Image, va uint64) []uint64 {
	return img.XrefsTo(va)
}
