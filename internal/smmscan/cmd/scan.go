package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"smmscan/internal/analysis"
	"smmscan/internal/config"
	"smmscan/internal/image"
)

// Analyses selectable by name.
const (
	analysisSmst  = "smst"
	analysisSwSmi = "swsmi"
)

var allAnalyses = []string{analysisSmst, analysisSwSmi}

// FileReport is the outcome of scanning one file.
type FileReport struct {
	Path        string             `json:"path" yaml:"path"`
	Format      image.Format       `json:"format,omitempty" yaml:"format,omitempty"`
	Size        uint64             `json:"size" yaml:"size"`
	Findings    []analysis.Finding `json:"findings" yaml:"findings"`
	Annotations []image.Annotation `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	Error       string             `json:"error,omitempty" yaml:"error,omitempty"`

	listing string
}

// parseAnalyses validates analysis names, defaulting to all of them.
func parseAnalyses(names []string) ([]string, error) {
	if len(names) == 0 {
		return allAnalyses, nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, name := range names {
		name = strings.ToLower(name)
		switch name {
		case analysisSmst, analysisSwSmi:
		default:
			return nil, fmt.Errorf("unknown analysis %q (want %s)", name, strings.Join(allAnalyses, ", "))
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

// scanAll scans paths concurrently. Each worker opens and owns its image,
// so annotation never crosses goroutines. Reports keep the order of paths.
func scanAll(ctx context.Context, paths []string, cfg *config.Config, analyses []string, lg *log.Logger) []FileReport {
	reports := make([]FileReport, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers())
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				reports[i] = FileReport{Path: path, Error: err.Error()}
				return nil
			}
			reports[i] = scanFile(path, cfg, analyses, lg)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func scanFile(path string, cfg *config.Config, analyses []string, lg *log.Logger) FileReport {
	flg := lg.With("file", filepath.Base(path))

	im, err := image.Open(path)
	if err != nil {
		flg.Error("open", "err", err)
		return FileReport{Path: path, Error: err.Error()}
	}
	defer im.Close()

	flg.Debug("loaded", "format", im.Format, "size", humanize.Bytes(im.Size()), "sections", len(im.Sections))
	report := scanImage(im, cfg, analyses, flg)
	report.Path = path
	return report
}

// scanImage runs the selected locators over im and collects the report.
func scanImage(im *image.Image, cfg *config.Config, analyses []string, lg *log.Logger) FileReport {
	report := FileReport{Path: im.Path, Format: im.Format, Size: im.Size()}

	opts, err := cfg.Options()
	if err != nil {
		report.Error = err.Error()
		return report
	}
	opts = append(opts, analysis.WithLogger(lg))

	var detectors []analysis.Detector
	for _, name := range analyses {
		switch name {
		case analysisSmst:
			detectors = append(detectors, analysis.NewSmstLocator(im, im, opts...))
		case analysisSwSmi:
			detectors = append(detectors, analysis.NewSwSmiLocator(im, im, opts...))
		}
	}
	report.Findings = analysis.NewDetectorChain(detectors...).Detect(nil)
	report.Annotations = im.Annotations()

	if len(report.Findings) == 0 {
		lg.Info("nothing found")
	}
	if cfg.Listing {
		var b strings.Builder
		for _, f := range report.Findings {
			if f.Kind == analysis.KindHandler {
				b.WriteString(renderListing(im, f))
			}
		}
		report.listing = b.String()
	}
	return report
}

func scanErrors(reports []FileReport) error {
	failed := 0
	for _, r := range reports {
		if r.Error != "" {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d files could not be scanned", failed, len(reports))
}
