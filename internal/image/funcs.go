package image

import (
	"sort"

	"smmscan/internal/disasm"
)

// maxFuncUnits bounds function extent recovery.
const maxFuncUnits = 0x4000

// Functions returns a copy of the function table.
func (im *Image) Functions() []Function {
	im.mu.RLock()
	defer im.mu.RUnlock()
	out := make([]Function, len(im.funcs))
	copy(out, im.funcs)
	return out
}

// FuncAt returns the function whose body contains va.
func (im *Image) FuncAt(va uint64) (Function, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.funcAt(va)
}

func (im *Image) funcAt(va uint64) (Function, bool) {
	i := sort.Search(len(im.funcs), func(i int) bool { return im.funcs[i].Start > va })
	if i == 0 {
		return Function{}, false
	}
	if fn := im.funcs[i-1]; fn.Contains(va) {
		return fn, true
	}
	return Function{}, false
}

// nextFuncStart returns the start of the first function beginning after va.
func (im *Image) nextFuncStart(va uint64) (uint64, bool) {
	i := sort.Search(len(im.funcs), func(i int) bool { return im.funcs[i].Start > va })
	if i == len(im.funcs) {
		return 0, false
	}
	return im.funcs[i].Start, true
}

// DefineFunc records a function with known bounds, as given by the
// container (exception directory, symbol table). Bodies overlapping an
// existing entry are ignored. An executable body is decoded again from
// start so its heads and references line up even when the sweep ran
// misaligned through data in front of it.
func (im *Image) DefineFunc(start, end uint64, name string) bool {
	if end <= start {
		return false
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	if !im.insertFunc(Function{Start: start, End: end, Name: name}) {
		return false
	}
	if s, ok := im.section(start); ok && s.Exec {
		im.mergeUnits(start, end, im.decodeRange(start, end))
	}
	return true
}

// decodeRange decodes [start, end) linearly, stepping over undecodable
// bytes one at a time like the sweep.
func (im *Image) decodeRange(start, end uint64) []disasm.Inst {
	var units []disasm.Inst
	for va := start; va < end; {
		inst, err := im.Decode(va)
		if err != nil {
			va++
			continue
		}
		units = append(units, inst)
		va = inst.End()
	}
	return units
}

func (im *Image) insertFunc(fn Function) bool {
	i := sort.Search(len(im.funcs), func(i int) bool { return im.funcs[i].Start >= fn.Start })
	if i > 0 && im.funcs[i-1].End > fn.Start {
		return false
	}
	if i < len(im.funcs) && im.funcs[i].Start < fn.End {
		return false
	}
	im.funcs = append(im.funcs, Function{})
	copy(im.funcs[i+1:], im.funcs[i:])
	im.funcs[i] = fn
	if fn.Name != "" {
		im.names[fn.Start] = fn.Name
	}
	return true
}

// AddFunc resolves or creates a function starting at start. When start is
// already covered by a function this is a no-op that reports success.
// Otherwise the body is recovered by following the instruction flow from
// start: forward branches extend the body and a ret, jmp or trap past the
// furthest known branch target ends it.
func (im *Image) AddFunc(start uint64) bool {
	im.mu.Lock()
	defer im.mu.Unlock()

	if _, ok := im.funcAt(start); ok {
		return true
	}
	s, ok := im.section(start)
	if !ok || !s.Exec {
		return false
	}

	limit := s.End()
	if next, ok := im.nextFuncStart(start); ok && next < limit {
		limit = next
	}

	var units []disasm.Inst
	furthest := start
	va := start
	for n := 0; n < maxFuncUnits && va < limit; n++ {
		inst, err := im.Decode(va)
		if err != nil {
			break
		}
		units = append(units, inst)
		end := inst.End()
		if target, ok := inst.Target(); ok && inst.Class != disasm.ClassCall {
			if target > furthest && target < limit {
				furthest = target
			}
		}
		va = end
		terminal := inst.Class == disasm.ClassRet ||
			inst.Class == disasm.ClassJmp ||
			inst.Class == disasm.ClassTrap
		if terminal && end > furthest {
			break
		}
	}
	if len(units) == 0 {
		return false
	}
	if va > limit {
		va = limit
	}

	if !im.insertFunc(Function{Start: start, End: va}) {
		return false
	}
	im.mergeUnits(start, va, units)
	return true
}

// mergeUnits replaces the sweep's heads inside [start, end) with the units
// decoded by flow, which may be aligned differently.
func (im *Image) mergeUnits(start, end uint64, units []disasm.Inst) {
	lo := sort.Search(len(im.heads), func(i int) bool { return im.heads[i] >= start })
	hi := sort.Search(len(im.heads), func(i int) bool { return im.heads[i] >= end })

	merged := make([]uint64, 0, len(im.heads)-(hi-lo)+len(units))
	merged = append(merged, im.heads[:lo]...)
	for _, u := range units {
		if u.VA < end {
			merged = append(merged, u.VA)
		}
	}
	merged = append(merged, im.heads[hi:]...)
	im.heads = merged

	for _, u := range units {
		im.recordRefs(u)
	}
}

func (im *Image) addXref(to, from uint64) {
	refs := im.xrefs[to]
	i := sort.Search(len(refs), func(i int) bool { return refs[i] >= from })
	if i < len(refs) && refs[i] == from {
		return
	}
	refs = append(refs, 0)
	copy(refs[i+1:], refs[i:])
	refs[i] = from
	im.xrefs[to] = refs
}
