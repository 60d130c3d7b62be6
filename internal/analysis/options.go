package analysis

import (
	"io"

	"github.com/charmbracelet/log"
)

type options struct {
	logger     *log.Logger
	region     string
	catalog    []Identifier
	strict     bool
	convention CallingConvention
}

func defaultOptions() options {
	return options{
		logger:     log.New(io.Discard),
		region:     DataRegion,
		catalog:    SwDispatchCatalog,
		convention: MicrosoftX64,
	}
}

// Option configures a locator.
type Option func(*options)

// WithLogger sets the logger state transitions are reported to.
func WithLogger(lg *log.Logger) Option {
	return func(o *options) {
		if lg != nil {
			o.logger = lg
		}
	}
}

// WithRegion overrides the data region scanned for the identifier.
func WithRegion(name string) Option {
	return func(o *options) {
		if name != "" {
			o.region = name
		}
	}
}

// WithCatalog overrides the identifiers searched for.
func WithCatalog(ids ...Identifier) Option {
	return func(o *options) {
		if len(ids) > 0 {
			o.catalog = ids
		}
	}
}

// WithStrict requires all 16 identifier bytes to match, not just Data1.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithConvention selects the registers the predicates look for.
func WithConvention(cc CallingConvention) Option {
	return func(o *options) {
		o.convention = cc
	}
}

func newOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
