package analysis

import (
	"fmt"

	"github.com/charmbracelet/log"

	"smmscan/internal/image"
)

// SwSmiLocator recovers the software SMI handler a driver registers with
// SwDispatch->Register(SwDispatch, Handler, &Context, &Handle). At the
// registration call the handler address is loaded into the second argument
// register while the third and fourth point at stack locals.
type SwSmiLocator struct {
	img  Image
	code CodeModel
	opts options
}

// NewSwSmiLocator creates a locator over img and code.
func NewSwSmiLocator(img Image, code CodeModel, opts ...Option) *SwSmiLocator {
	return &SwSmiLocator{img: img, code: code, opts: newOptions(opts)}
}

// Locate returns the first handler recovered from any reference to the
// identifier, after naming it. The second result is false when no
// reference leads to a handler.
func (l *SwSmiLocator) Locate() (image.Function, bool) {
	h, ok := l.locate()
	if !ok {
		return image.Function{}, false
	}
	return image.Function{Start: h.Start, End: h.End, Name: h.Name}, true
}

// Detect implements Detector.
func (l *SwSmiLocator) Detect(findings []Finding) []Finding {
	h, ok := l.locate()
	if !ok {
		return findings
	}
	return append(findings, Finding{
		Kind:       KindHandler,
		Addr:       h.Start,
		End:        h.End,
		Name:       h.Name,
		Site:       h.Call,
		Ref:        h.Ref,
		Identifier: h.Identifier,
	})
}

func (l *SwSmiLocator) locate() (Handler, bool) {
	lg := l.opts.logger.With("locator", "SwSmiHandler")

	addr, id, err := ScanIdentifier(l.img, l.opts.region, l.opts.catalog, l.opts.strict)
	if err != nil {
		lg.Debug("no protocol identifier", "err", err)
		return Handler{}, false
	}
	lg.Debug("protocol identifier", "name", id.Name, "addr", fmt.Sprintf("%#x", addr))

	refs := References(l.img, addr)
	if len(refs) == 0 {
		lg.Debug(ErrNoReferences.Error(), "addr", fmt.Sprintf("%#x", addr))
		return Handler{}, false
	}

	for _, ref := range refs {
		lg.Debug("reference", "ref", fmt.Sprintf("%#x", ref))
		fn, err := l.enclosingFunction(lg, ref)
		if err != nil {
			logMiss(lg, ref, err)
			continue
		}
		h, ok := l.scanFunction(lg, fn)
		if !ok {
			continue
		}
		h.Ref = ref
		h.Identifier = id.Name
		lg.Info("found SwSmiHandler", "addr", fmt.Sprintf("%#x", h.Start), "call", fmt.Sprintf("%#x", h.Call), "name", h.Name)
		return h, true
	}
	return Handler{}, false
}

// enclosingFunction returns the function covering ref, creating one at the
// unit following the nearest preceding return when none exists yet.
func (l *SwSmiLocator) enclosingFunction(lg *log.Logger, ref uint64) (image.Function, error) {
	if fn, ok := l.img.FuncAt(ref); ok {
		return fn, nil
	}
	lg.Debug("no function covers reference, trying to create one", "ref", fmt.Sprintf("%#x", ref))

	start, err := l.recoverStart(ref)
	if err != nil {
		return image.Function{}, fmt.Errorf("%w: %w", ErrFunctionResolution, err)
	}
	l.img.AddFunc(start)
	fn, ok := l.img.FuncAt(ref)
	if !ok {
		return image.Function{}, fmt.Errorf("%w: start %#x", ErrFunctionResolution, start)
	}
	return fn, nil
}

// recoverStart is best effort: the return found may close an unrelated
// function laid out before this one.
func (l *SwSmiLocator) recoverStart(ref uint64) (uint64, error) {
	from, ok := l.code.Prev(ref)
	if !ok {
		return 0, ErrPatternNotMatched
	}
	m, err := FindInWindow(l.code, from, Backward, FunctionStartWindow, IsReturn)
	if err != nil {
		return 0, err
	}
	start, ok := l.code.Next(m.Addr)
	if !ok {
		return 0, ErrPatternNotMatched
	}
	return start, nil
}

// scanFunction walks fn forward and tries each indirect call in turn.
func (l *SwSmiLocator) scanFunction(lg *log.Logger, fn image.Function) (Handler, bool) {
	// End is exclusive; the unit at End belongs to the next function.
	for va := fn.Start; va < fn.End; {
		inst, err := l.code.Decode(va)
		if err == nil && IsIndirectCall(inst) {
			if h, ok := l.tryCall(lg, va); ok {
				return h, true
			}
		}
		next, ok := l.code.Next(va)
		if !ok || next <= va {
			break
		}
		va = next
	}
	return Handler{}, false
}

// tryCall accepts call when the three argument loads precede it and the
// loaded handler address resolves to a function.
func (l *SwSmiLocator) tryCall(lg *log.Logger, call uint64) (Handler, bool) {
	from, ok := l.code.Prev(call)
	if !ok {
		return Handler{}, false
	}
	cc := l.opts.convention
	probes := []Predicate{
		LeaDisplToReg(cc.Arg(3)),
		LeaDisplToReg(cc.Arg(2)),
		LeaMemToReg(cc.Arg(1)),
	}
	var m Match
	for _, pred := range probes {
		var err error
		m, err = FindInWindow(l.code, from, Backward, HandlerArgWindow, pred)
		if err != nil {
			lg.Debug("call site rejected", "call", fmt.Sprintf("%#x", call), "err", err)
			return Handler{}, false
		}
	}
	src, _ := m.Inst.Arg(1)
	target := src.Addr

	fn, ok := l.img.FuncAt(target)
	if !ok {
		lg.Debug("no function at handler, trying to create one", "addr", fmt.Sprintf("%#x", target))
		l.img.AddFunc(target)
		fn, ok = l.img.FuncAt(target)
	}
	if !ok {
		lg.Debug("call site rejected", "call", fmt.Sprintf("%#x", call), "err", fmt.Errorf("%w: handler %#x", ErrFunctionResolution, target))
		return Handler{}, false
	}

	name := symbolName(HandlerPrefix, fn.Start)
	if err := l.img.SetName(fn.Start, name); err != nil {
		lg.Warn("set name", "addr", fmt.Sprintf("%#x", fn.Start), "err", err)
	}
	return Handler{Start: fn.Start, End: fn.End, Name: name, Call: call}, true
}
