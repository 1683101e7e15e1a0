package parser

import (
	"fmt"
	"strings"

	"github.com/thereceipt/zpl-printer/internal/zpl"
)

func lineColor(cmd zpl.Command, i int) bool {
	return strings.EqualFold(cmd.Param(i), "W")
}

// graphicBox is ^GBw,h,t,c,r. A box no wider or taller than its border is a
// solid line.
func (p *Interpreter) graphicBox(cmd zpl.Command) {
	t := p.intParam(cmd, 2, 1, 1, maxFieldDots)
	w := max(p.intParam(cmd, 0, t, 1, maxFieldDots), t)
	h := max(p.intParam(cmd, 1, t, 1, maxFieldDots), t)
	shape := &ShapePayload{
		Shape:     ShapeRect,
		Thickness: t,
		White:     lineColor(cmd, 3),
		Rounding:  p.intParam(cmd, 4, 0, 0, 8),
	}

	kind := KindBox
	if w <= t || h <= t {
		kind = KindLine
	}
	p.emitShape(kind, w, h, shape)
}

// graphicCircle is ^GCd,t,c
func (p *Interpreter) graphicCircle(cmd zpl.Command) {
	d := p.intParam(cmd, 0, 3, 3, 4095)
	t := p.intParam(cmd, 1, 1, 1, 4095)
	p.emitShape(KindBox, d, d, &ShapePayload{
		Shape:     ShapeEllipse,
		Thickness: t,
		White:     lineColor(cmd, 2),
	})
}

// graphicEllipse is ^GEw,h,t,c
func (p *Interpreter) graphicEllipse(cmd zpl.Command) {
	t := p.intParam(cmd, 2, 1, 1, 4095)
	w := p.intParam(cmd, 0, t, 3, 4095)
	h := p.intParam(cmd, 1, t, 3, 4095)
	p.emitShape(KindBox, w, h, &ShapePayload{
		Shape:     ShapeEllipse,
		Thickness: t,
		White:     lineColor(cmd, 3),
	})
}

// graphicDiagonal is ^GDw,h,t,c,o
func (p *Interpreter) graphicDiagonal(cmd zpl.Command) {
	t := p.intParam(cmd, 2, 1, 1, maxFieldDots)
	w := p.intParam(cmd, 0, t, 3, maxFieldDots)
	h := p.intParam(cmd, 1, t, 3, maxFieldDots)
	p.emitShape(KindLine, w, h, &ShapePayload{
		Shape:     ShapeDiagonal,
		Thickness: t,
		White:     lineColor(cmd, 3),
		LeanLeft:  strings.EqualFold(cmd.Param(4), "L"),
	})
}

func (p *Interpreter) emitShape(kind Kind, w, h int, shape *ShapePayload) {
	s := &p.state
	x, y := s.X, s.Y
	if s.Typeset {
		y = max(0, y-h)
	}
	if s.RightJustify {
		x = max(0, x-w)
	}
	p.emit(Instruction{
		Kind:    kind,
		X:       x,
		Y:       y,
		Width:   w,
		Height:  h,
		Reverse: s.Reverse,
		Shape:   shape,
	})
}

// graphicField is ^GFa,b,c,d,data
func (p *Interpreter) graphicField(cmd zpl.Command) {
	enc := byte('A')
	if s := strings.ToUpper(cmd.Param(0)); s != "" {
		enc = s[0]
	}
	total := p.intParam(cmd, 2, 0, 0, labelMaxGraphicBytes)
	stride := p.intParam(cmd, 3, 0, 0, labelMaxGraphicBytes)
	data := ""
	if len(cmd.Params) > 4 {
		data = cmd.Params[4]
	}
	if enc == 'A' {
		data = strings.TrimSpace(data)
	}

	bm, err := decodeGraphic(enc, data, total, stride)
	if bm == nil {
		p.warn(cmd, ErrDegradedInstruction, err.Error())
		return
	}
	if err != nil {
		p.warn(cmd, ErrParameterClamped, err.Error())
	}
	p.emitGraphic(bm, 1, 1)
}

func (p *Interpreter) emitGraphic(bm *Bitmap, sx, sy int) {
	s := &p.state
	w, h := bm.Width*sx, bm.Height*sy
	x, y := s.X, s.Y
	if s.Typeset {
		y = max(0, y-h)
	}
	if s.RightJustify {
		x = max(0, x-w)
	}
	p.emit(Instruction{
		Kind:    KindGraphic,
		X:       x,
		Y:       y,
		Width:   w,
		Height:  h,
		Reverse: s.Reverse,
		Graphic: &GraphicPayload{Bitmap: bm, ScaleX: sx, ScaleY: sy},
	})
}

// labelMaxGraphicBytes bounds one graphic: a full maximum size canvas
const labelMaxGraphicBytes = 16000 / 8 * 16000

// downloadGraphic is ~DGd:o.x,t,w,data. The image lives until the job ends.
func (p *Interpreter) downloadGraphic(cmd zpl.Command) {
	name := graphicName(cmd.Param(0))
	total := p.intParam(cmd, 1, 0, 0, labelMaxGraphicBytes)
	stride := p.intParam(cmd, 2, 0, 0, labelMaxGraphicBytes)
	data := ""
	if len(cmd.Params) > 3 {
		data = strings.TrimSpace(cmd.Params[3])
	}

	bm, err := decodeGraphic('A', data, total, stride)
	if bm == nil {
		p.warn(cmd, ErrDegradedInstruction, fmt.Sprintf("%s: %v", name, err))
		return
	}
	if err != nil {
		p.warn(cmd, ErrParameterClamped, fmt.Sprintf("%s: %v", name, err))
	}
	p.graphics[name] = bm
}

// recallGraphic is ^XGd:o.x,mx,my
func (p *Interpreter) recallGraphic(cmd zpl.Command) {
	name := graphicName(cmd.Param(0))
	bm, ok := p.graphics[name]
	if !ok {
		p.warn(cmd, ErrDegradedInstruction, "no stored graphic "+name)
		return
	}
	sx := p.intParam(cmd, 1, 1, 1, 10)
	sy := p.intParam(cmd, 2, 1, 1, 10)
	p.emitGraphic(bm, sx, sy)
}

// graphicName normalizes "logo" to "R:LOGO.GRF"
func graphicName(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !strings.Contains(s, ":") {
		s = "R:" + s
	}
	if !strings.Contains(s, ".") {
		s += ".GRF"
	}
	return s
}
