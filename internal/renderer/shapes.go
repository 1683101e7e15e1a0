package renderer

import (
	"image"
	"math"

	"github.com/fogleman/gg"

	"github.com/thereceipt/zpl-printer/internal/parser"
)

func shapeField(in *parser.Instruction) field {
	s := in.Shape
	if s == nil || in.Width <= 0 || in.Height <= 0 {
		return field{}
	}

	switch s.Shape {
	case parser.ShapeEllipse:
		return ellipseField(in.Width, in.Height, s.Thickness)
	case parser.ShapeDiagonal:
		return diagonalField(in.Width, in.Height, s.Thickness, s.LeanLeft)
	}
	if in.Kind == parser.KindLine {
		return solidField(in.Width, in.Height)
	}
	if s.Rounding > 0 {
		return roundedField(in.Width, in.Height, s.Thickness, s.Rounding)
	}
	return frameField(in.Width, in.Height, s.Thickness)
}

func solidField(w, h int) field {
	return fixed(w, h, func(int, int) bool { return true })
}

// frameField is a rectangle border t dots thick, drawn inward
func frameField(w, h, t int) field {
	return fixed(w, h, func(x, y int) bool {
		return x < t || y < t || x >= w-t || y >= h-t
	})
}

// ring fills the outer path, then removes the inner path
func ring(w, h, t int, path func(ctx *gg.Context, inset float64)) field {
	return field{w: w, h: h, ink: func(win image.Rectangle) inkFunc {
		outer := fillPath(win, func(ctx *gg.Context) { path(ctx, 0) })
		var hole *image.Alpha
		if 2*t < w && 2*t < h {
			hole = fillPath(win, func(ctx *gg.Context) { path(ctx, float64(t)) })
		}
		return func(x, y int) bool {
			x, y = x-win.Min.X, y-win.Min.Y
			return inked(outer, x, y) && (hole == nil || !inked(hole, x, y))
		}
	}}
}

// roundedField rounds corners by r eighths of half the shorter side
func roundedField(w, h, t, r int) field {
	radius := float64(r) / 8 * float64(min(w, h)) / 2
	return ring(w, h, t, func(ctx *gg.Context, inset float64) {
		ctx.DrawRoundedRectangle(inset, inset, float64(w)-2*inset, float64(h)-2*inset, math.Max(radius-inset, 0))
	})
}

func ellipseField(w, h, t int) field {
	return ring(w, h, t, func(ctx *gg.Context, inset float64) {
		ctx.DrawEllipse(float64(w)/2, float64(h)/2, float64(w)/2-inset, float64(h)/2-inset)
	})
}

// diagonalField runs corner to corner with a horizontal thickness of t dots
func diagonalField(w, h, t int, leanLeft bool) field {
	span := float64(w - t)
	return fixed(w, h, func(x, y int) bool {
		f := 0.0
		if h > 1 {
			f = float64(y) / float64(h-1)
		}
		x0 := int(math.Round(span * (1 - f)))
		if leanLeft {
			x0 = int(math.Round(span * f))
		}
		return x >= x0 && x < x0+t
	})
}
