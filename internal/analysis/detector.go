package analysis

// Detector interface for artifact detection
type Detector interface {
	// Detect runs the detector and appends its findings to the ones
	// collected so far.
	Detect(findings []Finding) []Finding
}

// DetectorChain runs multiple detectors in sequence
type DetectorChain struct {
	detectors []Detector
}

// NewDetectorChain creates a new detector chain
func NewDetectorChain(detectors ...Detector) *DetectorChain {
	return &DetectorChain{
		detectors: detectors,
	}
}

// Detect runs all detectors in sequence
func (dc *DetectorChain) Detect(findings []Finding) []Finding {
	result := findings
	for _, detector := range dc.detectors {
		result = detector.Detect(result)
	}
	return result
}

// DefaultChain returns both locators over the same image, gSmst first.
func DefaultChain(img Image, code CodeModel, opts ...Option) *DetectorChain {
	return NewDetectorChain(
		NewSmstLocator(img, code, opts...),
		NewSwSmiLocator(img, code, opts...),
	)
}
