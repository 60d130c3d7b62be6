package analysis

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// SmstLocator recovers the storage of the driver's gSmst global. The
// dispatch protocol is located through gSmst->SmmLocateProtocol, so the
// instruction loading gSmst into the accumulator sits a few units before
// each reference to the protocol identifier.
type SmstLocator struct {
	img  Image
	code CodeModel
	opts options
}

// NewSmstLocator creates a locator over img and code.
func NewSmstLocator(img Image, code CodeModel, opts ...Option) *SmstLocator {
	return &SmstLocator{img: img, code: code, opts: newOptions(opts)}
}

// Locate returns the storage address recovered from every reference to
// the identifier, annotating each one. The result is empty when the
// identifier or the data region is missing.
func (l *SmstLocator) Locate() []uint64 {
	ptrs := l.locate()
	if len(ptrs) == 0 {
		return nil
	}
	out := make([]uint64, 0, len(ptrs))
	for _, p := range ptrs {
		out = append(out, p.Addr)
	}
	return out
}

// Detect implements Detector.
func (l *SmstLocator) Detect(findings []Finding) []Finding {
	for _, p := range l.locate() {
		findings = append(findings, Finding{
			Kind:       KindSmst,
			Addr:       p.Addr,
			Name:       symbolName(SmstPrefix, p.Addr),
			Site:       p.Site,
			Ref:        p.Ref,
			Identifier: p.Identifier,
		})
	}
	return findings
}

func (l *SmstLocator) locate() []GlobalPointer {
	lg := l.opts.logger.With("locator", "gSmst")

	addr, id, err := ScanIdentifier(l.img, l.opts.region, l.opts.catalog, l.opts.strict)
	if err != nil {
		lg.Debug("no protocol identifier", "err", err)
		return nil
	}
	lg.Debug("protocol identifier", "name", id.Name, "addr", fmt.Sprintf("%#x", addr))

	refs := References(l.img, addr)
	if len(refs) == 0 {
		lg.Debug(ErrNoReferences.Error(), "addr", fmt.Sprintf("%#x", addr))
		return nil
	}

	var found []GlobalPointer
	for _, ref := range refs {
		p, err := l.fromReference(ref)
		if err != nil {
			logMiss(lg, ref, err)
			continue
		}
		p.Identifier = id.Name
		l.annotate(lg, p)
		found = append(found, p)
	}
	return found
}

// fromReference runs the backward accumulator window starting one unit
// before ref.
func (l *SmstLocator) fromReference(ref uint64) (GlobalPointer, error) {
	start, ok := l.code.Prev(ref)
	if !ok {
		return GlobalPointer{}, ErrPatternNotMatched
	}
	m, err := FindInWindow(l.code, start, Backward, SmstWindow, MovMemToReg(l.opts.convention.Accumulator))
	if err != nil {
		return GlobalPointer{}, err
	}
	src, _ := m.Inst.Arg(1)
	return GlobalPointer{Addr: src.Addr, Site: m.Addr, Ref: ref}, nil
}

func (l *SmstLocator) annotate(lg *log.Logger, p GlobalPointer) {
	name := symbolName(SmstPrefix, p.Addr)
	lg.Info("found gSmst", "addr", fmt.Sprintf("%#x", p.Addr), "site", fmt.Sprintf("%#x", p.Site), "name", name)
	if err := l.img.SetComment(p.Site, SmstComment); err != nil {
		lg.Warn("set comment", "addr", fmt.Sprintf("%#x", p.Site), "err", err)
	}
	if err := l.img.SetType(p.Addr, SmstType); err != nil {
		lg.Warn("set type", "addr", fmt.Sprintf("%#x", p.Addr), "err", err)
	}
	if err := l.img.SetName(p.Addr, name); err != nil {
		lg.Warn("set name", "addr", fmt.Sprintf("%#x", p.Addr), "err", err)
	}
}

func logMiss(lg *log.Logger, ref uint64, err error) {
	var de *DecodeError
	if errors.As(err, &de) {
		lg.Debug("window ended on decode failure", "ref", fmt.Sprintf("%#x", ref), "at", fmt.Sprintf("%#x", de.Addr))
		return
	}
	lg.Debug("reference skipped", "ref", fmt.Sprintf("%#x", ref), "err", err)
}
