package finalizer

import (
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/dmitrijs2005/pdfsigner/internal/coords"
	"github.com/dmitrijs2005/pdfsigner/internal/pdf"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
)

const lineSpacing = 1.2

// winAnsi encodes text for standard fonts declared with WinAnsiEncoding.
// Characters outside Windows-1252 become '?'.
func winAnsi(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// drawText writes a typed signature. The first line's baseline starts at
// the placement point; further lines go downwards on the displayed page.
func drawText(cb *pdf.ContentBuilder, c *models.TypedContent, font pdf.Name, at coords.Placement) {
	size := c.FontSize
	if size <= 0 {
		size = models.DefaultFontSize
	}

	var lines []pdf.String
	for _, line := range strings.Split(strings.ReplaceAll(c.Text, "\r\n", "\n"), "\n") {
		lines = append(lines, pdf.String{Value: winAnsi(line)})
	}

	r, g, b := c.RGB()
	cb.Op("q")
	cb.Op("rg", pdf.Real(r), pdf.Real(g), pdf.Real(b))
	cb.Op("BT")
	cb.Op("Tf", font, pdf.Real(size))
	cb.Op("Tm", pdf.Real(at.A), pdf.Real(at.B), pdf.Real(at.C), pdf.Real(at.D), pdf.Real(at.X), pdf.Real(at.Y))
	for i, line := range lines {
		if i > 0 {
			cb.Op("Td", pdf.Integer(0), pdf.Real(-size*lineSpacing))
		}
		cb.Op("Tj", line)
	}
	cb.Op("ET")
	cb.Op("Q")
}
