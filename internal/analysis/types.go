package analysis

import "fmt"

// FindingKind tells which locator produced a finding.
type FindingKind string

const (
	KindSmst    FindingKind = "gSmst"
	KindHandler FindingKind = "SwSmiHandler"
)

// Finding is one recovered artifact.
type Finding struct {
	Kind       FindingKind `json:"kind" yaml:"kind"`
	Addr       uint64      `json:"addr" yaml:"addr"`
	End        uint64      `json:"end,omitempty" yaml:"end,omitempty"` // function end, handlers only
	Name       string      `json:"name" yaml:"name"`
	Site       uint64      `json:"site" yaml:"site"` // instruction the artifact was read from
	Ref        uint64      `json:"ref" yaml:"ref"`   // identifier reference the search started at
	Identifier string      `json:"identifier" yaml:"identifier"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %s at %#x (site %#x)", f.Kind, f.Name, f.Addr, f.Site)
}

// GlobalPointer is a recovered gSmst storage location.
type GlobalPointer struct {
	Addr uint64 // storage address of the pointer
	Site uint64 // the mov that loads it
	Ref  uint64 // identifier reference the window started from

	Identifier string
}

// Handler is a recovered SwSmiHandler together with the registration
// call that passed it.
type Handler struct {
	Start, End uint64
	Name       string
	Call       uint64 // indirect call performing the registration
	Ref        uint64
	Identifier string
}

// symbolName formats a generated name: prefix, underscore, uppercase hex.
func symbolName(prefix string, va uint64) string {
	return fmt.Sprintf("%s_%X", prefix, va)
}
