// Package renderer rasterizes resolved label instructions into monochrome images
package renderer

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/thereceipt/zpl-printer/internal/parser"
	"github.com/thereceipt/zpl-printer/pkg/labelformat"
)

const (
	black = 0x00
	white = 0xFF
)

// Renderer converts labels to images on a fixed canvas. It holds no per-label
// state, so one Renderer may be shared between goroutines.
type Renderer struct {
	canvas labelformat.Canvas
}

// New creates a renderer for the given canvas
func New(canvas labelformat.Canvas) (*Renderer, error) {
	if err := canvas.Check(); err != nil {
		return nil, err
	}
	return &Renderer{canvas: canvas}, nil
}

// Canvas returns the configured canvas
func (r *Renderer) Canvas() labelformat.Canvas {
	return r.canvas
}

// Render draws every instruction of a label. Output depends only on the label
// and the canvas.
func (r *Renderer) Render(label *parser.Label) (*image.Gray, error) {
	canvas := r.canvas.Override(label.PrintWidth, label.LabelLength)

	img := image.NewGray(image.Rect(0, 0, canvas.Width, canvas.Height))
	for i := range img.Pix {
		img.Pix[i] = white
	}

	for i := range label.Instructions {
		in := &label.Instructions[i]
		if err := r.renderInstruction(img, in); err != nil {
			return nil, fmt.Errorf("failed to render %s at (%d,%d): %w", in.Kind, in.X, in.Y, err)
		}
	}

	if label.Inverted {
		img = toGray(imaging.Rotate180(img))
	}
	return img, nil
}

func (r *Renderer) renderInstruction(img *image.Gray, in *parser.Instruction) error {
	var f field

	switch in.Kind {
	case parser.KindText:
		f = textField(in.Text)
	case parser.KindBarcode:
		f = barcodeField(in)
	case parser.KindGraphic:
		f = graphicField(in.Graphic)
	case parser.KindBox, parser.KindLine:
		f = shapeField(in)
	default:
		return fmt.Errorf("unsupported instruction kind: %s", in.Kind)
	}
	if f.empty() {
		return nil
	}

	switch {
	case in.Reverse:
		stamp(img, f, in.X, in.Y, in.Rotation, invert)
	case in.Shape != nil && in.Shape.White:
		stamp(img, f, in.X, in.Y, in.Rotation, paint(white))
	default:
		stamp(img, f, in.X, in.Y, in.Rotation, paint(black))
	}
	return nil
}

type blend func(old uint8) uint8

func paint(c uint8) blend {
	return func(uint8) uint8 { return c }
}

func invert(old uint8) uint8 {
	return white - old
}

// stamp turns f clockwise by rot, places its top-left corner at x, y and
// composites the inked dots that land on img
func stamp(img *image.Gray, f field, x, y int, rot parser.Rotation, op blend) {
	rw, rh := f.w, f.h
	if rot.Sideways() {
		rw, rh = f.h, f.w
	}
	vis := image.Rect(x, y, x+rw, y+rh).Intersect(img.Bounds())
	if vis.Empty() {
		return
	}

	// canvas dot back to the unrotated field
	toField := func(px, py int) (int, int) {
		rx, ry := px-x, py-y
		switch rot {
		case parser.Rotate90:
			return ry, f.h - 1 - rx
		case parser.Rotate180:
			return f.w - 1 - rx, f.h - 1 - ry
		case parser.Rotate270:
			return f.w - 1 - ry, rx
		}
		return rx, ry
	}
	x0, y0 := toField(vis.Min.X, vis.Min.Y)
	x1, y1 := toField(vis.Max.X-1, vis.Max.Y-1)
	at := f.ink(image.Rect(min(x0, x1), min(y0, y1), max(x0, x1)+1, max(y0, y1)+1))

	for py := vis.Min.Y; py < vis.Max.Y; py++ {
		for px := vis.Min.X; px < vis.Max.X; px++ {
			if fx, fy := toField(px, py); at(fx, fy) {
				i := img.PixOffset(px, py)
				img.Pix[i] = op(img.Pix[i])
			}
		}
	}
}

func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
