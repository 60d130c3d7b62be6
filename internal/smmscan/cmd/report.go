package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"smmscan/internal/analysis"
	"smmscan/internal/config"
	"smmscan/internal/ui/colorize"
)

func render(w io.Writer, reports []FileReport, cfg *config.Config) error {
	switch cfg.Format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, summary(reports))
		return err
	}
}

type summaryStyles struct {
	header, addr, kind, name, dim, err lipgloss.Style
}

func newSummaryStyles() summaryStyles {
	if !colorize.Enabled() {
		plain := lipgloss.NewStyle()
		return summaryStyles{plain, plain, plain, plain, plain, plain}
	}
	return summaryStyles{
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		addr:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		kind:   lipgloss.NewStyle().Foreground(lipgloss.Color("81")),
		name:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// summary renders reports for a terminal, one block per file.
func summary(reports []FileReport) string {
	st := newSummaryStyles()
	var b strings.Builder
	for i, r := range reports {
		if i > 0 {
			b.WriteByte('\n')
		}
		meta := humanize.Bytes(r.Size)
		if r.Format != "" {
			meta = string(r.Format) + ", " + meta
		}
		fmt.Fprintf(&b, "%s %s\n", st.header.Render(r.Path), st.dim.Render("("+meta+")"))

		if r.Error != "" {
			fmt.Fprintf(&b, "  %s\n", st.err.Render("error: "+r.Error))
			continue
		}
		if len(r.Findings) == 0 {
			fmt.Fprintf(&b, "  %s\n", st.dim.Render("nothing found"))
			continue
		}
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "  %s %s %s %s\n",
				st.kind.Render(fmt.Sprintf("%-12s", f.Kind)),
				st.addr.Render(fmt.Sprintf("%#010x", f.Addr)),
				st.name.Render(fmt.Sprintf("%-24s", f.Name)),
				st.dim.Render(siteLabel(f)))
		}
		if r.listing != "" {
			b.WriteByte('\n')
			b.WriteString(r.listing)
		}
	}
	return b.String()
}

func siteLabel(f analysis.Finding) string {
	if f.Kind == analysis.KindHandler {
		return fmt.Sprintf("registered at %#x", f.Site)
	}
	return fmt.Sprintf("loaded at %#x", f.Site)
}
