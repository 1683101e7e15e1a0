package renderer

import (
	"image"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/thereceipt/zpl-printer/internal/parser"
)

// glyph cell of the resident face every font is scaled from
const (
	glyphWidth  = 7
	glyphHeight = 13
	glyphAscent = 11
)

// textField lays a line out at fixed pitch: one glyph cell per rune, each cell
// exactly CharWidth x CharHeight dots. Only the runes whose cells reach the
// visible window are drawn.
func textField(t *parser.TextPayload) field {
	runes := printable(t.Value)
	cw, ch := t.CharWidth, t.CharHeight
	if len(runes) == 0 || cw <= 0 || ch <= 0 {
		return field{}
	}

	return field{w: len(runes) * cw, h: ch, ink: func(win image.Rectangle) inkFunc {
		first := win.Min.X / cw
		last := min((win.Max.X-1)/cw, len(runes)-1)
		strip := glyphs(runes[first : last+1])
		return func(x, y int) bool {
			cell := x/cw - first
			gx := cell*glyphWidth + nearest(x%cw, glyphWidth, cw)
			return inked(strip, gx, nearest(y, glyphHeight, ch))
		}
	}}
}

// glyphs draws runes side by side in the resident face at its native size
func glyphs(runes []rune) *image.Alpha {
	ctx := gg.NewContext(len(runes)*glyphWidth, glyphHeight)
	ctx.SetFontFace(basicfont.Face7x13)
	ctx.SetRGB(0, 0, 0)
	for i, r := range runes {
		ctx.DrawString(string(r), float64(i*glyphWidth), glyphAscent)
	}
	return alphaMask(ctx.Image())
}

// printable maps runes the resident face cannot draw to '?'
func printable(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		if r < 0x20 || r > 0x7E {
			runes[i] = '?'
		}
	}
	return runes
}
