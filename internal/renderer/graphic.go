package renderer

import (
	"github.com/thereceipt/zpl-printer/internal/parser"
)

// graphicField magnifies the bitmap by whole dots without copying it
func graphicField(g *parser.GraphicPayload) field {
	if g == nil || g.Bitmap == nil {
		return field{}
	}
	bm := g.Bitmap
	sx, sy := max(g.ScaleX, 1), max(g.ScaleY, 1)
	return fixed(bm.Width*sx, bm.Height*sy, func(x, y int) bool {
		return bm.At(x/sx, y/sy)
	})
}
