// Package config holds the scanner settings shared by every command.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v8"

	"smmscan/internal/analysis"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Prefix is prepended to every environment variable name.
const Prefix = "SMMSCAN_"

var ErrInvalid = errors.New("invalid configuration")

// Config is read from SMMSCAN_* environment variables; command-line flags
// override it.
type Config struct {
	Debug       bool     `env:"DEBUG" json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
	Region      string   `env:"REGION" envDefault:".data" json:"region" jsonschema:"title=Region,description=Section scanned for the protocol GUID,default=.data"`
	Strict      bool     `env:"STRICT" json:"strict" jsonschema:"title=Strict,description=Require all 16 GUID bytes to match instead of Data1 only"`
	Jobs        int      `env:"JOBS" json:"jobs" jsonschema:"title=Jobs,description=Files scanned concurrently (0 uses the CPU count),minimum=0"`
	Format      string   `env:"FORMAT" envDefault:"text" json:"format" jsonschema:"title=Format,enum=text,enum=json,enum=yaml,default=text"`
	Listing     bool     `env:"LISTING" json:"listing" jsonschema:"title=Listing,description=Print a colorized disassembly of each recovered handler"`
	Identifiers []string `env:"IDENTIFIERS" envSeparator:"," json:"identifiers,omitempty" jsonschema:"title=Identifiers,description=Extra protocol GUIDs given as a name and a GUID joined by an equals sign"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(env.Options{Prefix: Prefix})
}

// LoadFrom reads the configuration from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Prefix: Prefix, Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values and normalizes the format name.
func (c *Config) Validate() error {
	c.Format = strings.ToLower(c.Format)
	switch c.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalid, c.Format)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("%w: jobs must not be negative", ErrInvalid)
	}
	if c.Region == "" {
		return fmt.Errorf("%w: empty region", ErrInvalid)
	}
	if _, err := c.Catalog(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Workers returns the effective concurrency.
func (c *Config) Workers() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	return runtime.NumCPU()
}

// Catalog returns the software SMI dispatch protocols followed by any
// extra identifiers.
func (c *Config) Catalog() ([]analysis.Identifier, error) {
	catalog := append([]analysis.Identifier(nil), analysis.SwDispatchCatalog...)
	for _, entry := range c.Identifiers {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, guid, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("identifier %q: want NAME=GUID", entry)
		}
		id, err := analysis.ParseIdentifier(name, guid)
		if err != nil {
			return nil, err
		}
		catalog = append(catalog, id)
	}
	return catalog, nil
}

// Options converts the configuration into locator options.
func (c *Config) Options() ([]analysis.Option, error) {
	catalog, err := c.Catalog()
	if err != nil {
		return nil, err
	}
	return []analysis.Option{
		analysis.WithRegion(c.Region),
		analysis.WithStrict(c.Strict),
		analysis.WithCatalog(catalog...),
	}, nil
}
