package renderer

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

// inkFunc reports whether a dot of a field carries ink
type inkFunc func(x, y int) bool

// field is an instruction's ink before rotation and placement: a w x h box of
// dots. ink is called once per render with the part of the box that lands on
// the canvas, and the returned test is only asked about dots inside it, so
// nothing larger than the canvas is ever allocated.
type field struct {
	w, h int
	ink  func(win image.Rectangle) inkFunc
}

func (f field) empty() bool {
	return f.w <= 0 || f.h <= 0 || f.ink == nil
}

// fixed wraps a dot test that needs no setup for the visible window
func fixed(w, h int, at inkFunc) field {
	return field{w: w, h: h, ink: func(image.Rectangle) inkFunc { return at }}
}

type placed struct {
	f    field
	x, y int
}

// overlay combines fields drawn at offsets inside a w x h box
func overlay(w, h int, parts ...placed) field {
	return field{w: w, h: h, ink: func(win image.Rectangle) inkFunc {
		type part struct {
			area image.Rectangle
			at   inkFunc
		}
		var live []part
		for _, p := range parts {
			if p.f.empty() {
				continue
			}
			area := image.Rect(p.x, p.y, p.x+p.f.w, p.y+p.f.h)
			sub := win.Intersect(area)
			if sub.Empty() {
				continue
			}
			live = append(live, part{area: area, at: p.f.ink(sub.Sub(area.Min))})
		}
		return func(x, y int) bool {
			pt := image.Pt(x, y)
			for _, p := range live {
				if pt.In(p.area) && p.at(x-p.area.Min.X, y-p.area.Min.Y) {
					return true
				}
			}
			return false
		}
	}}
}

// masks are image.Alpha: A >= 0x80 means the dot carries ink

func newMask(w, h int) *image.Alpha {
	return image.NewAlpha(image.Rect(0, 0, max(w, 0), max(h, 0)))
}

func inked(m *image.Alpha, x, y int) bool {
	return m.AlphaAt(x, y).A >= 0x80
}

// alphaMask keeps the dots of src whose alpha is at least half
func alphaMask(src image.Image) *image.Alpha {
	b := src.Bounds()
	m := newMask(b.Dx(), b.Dy())
	if rgba, ok := src.(*image.RGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				if rgba.Pix[rgba.PixOffset(b.Min.X+x, b.Min.Y+y)+3] >= 0x80 {
					m.Pix[m.PixOffset(x, y)] = 0xFF
				}
			}
		}
		return m
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			_, _, _, a := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if a >= 0x8000 {
				m.SetAlpha(x, y, color.Alpha{A: 0xFF})
			}
		}
	}
	return m
}

// fillPath rasterizes a filled path over win only. The path is given in field
// coordinates.
func fillPath(win image.Rectangle, path func(ctx *gg.Context)) *image.Alpha {
	ctx := gg.NewContext(win.Dx(), win.Dy())
	ctx.Translate(-float64(win.Min.X), -float64(win.Min.Y))
	ctx.SetRGB(0, 0, 0)
	path(ctx)
	ctx.Fill()
	return alphaMask(ctx.Image())
}

// dark is true for opaque colors darker than mid gray
func dark(c color.Color) bool {
	_, _, _, a := c.RGBA()
	return a >= 0x8000 && color.GrayModel.Convert(c).(color.Gray).Y < 0x80
}

// nearest maps dot i of a dst-long run onto a src-long one, sampling at the
// dot center
func nearest(i, src, dst int) int {
	return (2*i + 1) * src / (2 * dst)
}
