package cmd

import (
	"fmt"
	"strings"

	"smmscan/internal/analysis"
	"smmscan/internal/disasm"
	"smmscan/internal/image"
	"smmscan/internal/ui/colorize"
)

// renderListing disassembles a recovered function, adding the names and
// comments recorded on the image.
func renderListing(im *image.Image, f analysis.Finding) string {
	var b strings.Builder
	b.WriteString(colorize.ColorizeInstructionLine(f.Name + ":"))
	b.WriteByte('\n')
	for _, inst := range im.Stream(f.Addr, f.End) {
		b.WriteString(colorize.ColorizeInstructionLine(listingLine(im, inst)))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

func listingLine(im *image.Image, inst disasm.Inst) string {
	line := fmt.Sprintf("%016x  %s", inst.VA, inst.Text)
	var notes []string
	if c, ok := im.Comment(inst.VA); ok {
		notes = append(notes, c)
	}
	for _, op := range inst.Args {
		if op.Kind != disasm.KindMem && op.Kind != disasm.KindRel {
			continue
		}
		if name, ok := im.Name(op.Addr); ok {
			notes = append(notes, name)
		}
	}
	if len(notes) > 0 {
		line += " ; " + strings.Join(notes, ", ")
	}
	return line
}
