package renderer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/codabar"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/code93"
	"github.com/boombuler/barcode/datamatrix"
	"github.com/boombuler/barcode/ean"
	"github.com/boombuler/barcode/pdf417"
	"github.com/boombuler/barcode/twooffive"
	"github.com/skip2/go-qrcode"

	"github.com/thereceipt/zpl-printer/internal/parser"
)

const (
	interpretationGap  = 2
	placeholderHeight  = 40
	interpretationCell = 5
)

func barcodeField(in *parser.Instruction) field {
	b := in.Barcode
	if b == nil {
		return field{}
	}
	if in.Degraded {
		return fallbackField(b)
	}

	switch b.Symbology {
	case parser.QRCode:
		return qrField(b)
	case parser.DataMatrix:
		bc, err := datamatrix.Encode(b.Data)
		if err != nil {
			return fallbackField(b)
		}
		return matrixField(bc, b.Magnification, b.Magnification)
	case parser.PDF417:
		bc, err := pdf417.Encode(b.Data, byte(b.Security))
		if err != nil {
			return fallbackField(b)
		}
		return matrixField(bc, b.Magnification, max(b.Height/3, 1))
	}

	bc, err := encodeLinear(b)
	if err != nil {
		// validation passed but the encoder still refused; draw the fallback
		return fallbackField(b)
	}
	return linearField(bc, b, b.Data)
}

func encodeLinear(b *parser.BarcodePayload) (barcode.Barcode, error) {
	switch b.Symbology {
	case parser.Code128:
		return code128.Encode(b.Data)
	case parser.Code39:
		return code39.Encode(b.Data, b.CheckDigit, false)
	case parser.Code93:
		return code93.Encode(b.Data, b.CheckDigit, true)
	case parser.EAN13, parser.EAN8, parser.UPCA:
		return ean.Encode(b.Data)
	case parser.Interleaved:
		return twooffive.Encode(b.Data, true)
	case parser.Codabar:
		return codabar.Encode(b.Data)
	default:
		return nil, fmt.Errorf("unsupported symbology: %s", b.Symbology)
	}
}

// twoWidth symbologies build every bar and space from narrow and wide
// elements; ^BY sets the wide to narrow ratio
func twoWidth(s parser.Symbology) bool {
	return s == parser.Code39 || s == parser.Interleaved
}

// barWidths splits the encoded modules into runs of one color and sizes each
// run in dots. Two width codes draw wide elements at Ratio times the narrow
// width, everything else scales each module to ModuleWidth.
func barWidths(bc barcode.Barcode, b *parser.BarcodePayload) []int {
	mw := max(b.ModuleWidth, 1)
	wide := mw
	if twoWidth(b.Symbology) {
		wide = max(int(math.Round(b.Ratio*float64(mw))), mw+1)
	}

	r := bc.Bounds()
	var widths []int
	run := 0
	for x := r.Min.X; x < r.Max.X; x++ {
		run++
		if x+1 < r.Max.X && dark(bc.At(x+1, r.Min.Y)) == dark(bc.At(x, r.Min.Y)) {
			continue
		}
		switch {
		case !twoWidth(b.Symbology):
			widths = append(widths, run*mw)
		case run == 1:
			widths = append(widths, mw)
		default:
			widths = append(widths, wide)
		}
		run = 0
	}
	return widths
}

// linearField sizes a 1D code by module width, ratio and bar height and adds
// the human readable line
func linearField(bc barcode.Barcode, b *parser.BarcodePayload, text string) field {
	widths := barWidths(bc, b)
	// edges[i] is the right edge of run i; runs alternate in color
	edges := make([]int, len(widths))
	total := 0
	for i, w := range widths {
		total += w
		edges[i] = total
	}
	startsDark := dark(bc.At(bc.Bounds().Min.X, bc.Bounds().Min.Y))

	bars := fixed(total, max(b.Height, 1), func(x, _ int) bool {
		i := sort.SearchInts(edges, x+1)
		return (i%2 == 0) == startsDark
	})
	if !b.Interpretation || text == "" {
		return bars
	}

	label := textField(&parser.TextPayload{
		Value:      text,
		CharWidth:  interpretationCell * max(b.ModuleWidth, 1),
		CharHeight: 9 * max(b.ModuleWidth, 1),
	})
	return stack(bars, label, b.InterpretationAbove)
}

// stack centers the text line above or below the bars
func stack(bars, text field, above bool) field {
	if text.empty() {
		return bars
	}
	w := max(bars.w, text.w)
	barY, textY := 0, bars.h+interpretationGap
	if above {
		barY, textY = text.h+interpretationGap, 0
	}
	return overlay(w, bars.h+interpretationGap+text.h,
		placed{f: bars, x: (w - bars.w) / 2, y: barY},
		placed{f: text, x: (w - text.w) / 2, y: textY})
}

func qrField(b *parser.BarcodePayload) field {
	q, err := qrcode.New(b.Data, parser.QRLevel(b.ErrorCorrection))
	if err != nil {
		return fallbackField(b)
	}
	q.DisableBorder = true

	bits := q.Bitmap()
	mag := max(b.Magnification, 1)
	return fixed(len(bits)*mag, len(bits)*mag, func(x, y int) bool {
		return bits[y/mag][x/mag]
	})
}

// matrixField scales a 2D code one module to sx by sy dots
func matrixField(bc barcode.Barcode, sx, sy int) field {
	r := bc.Bounds()
	sx, sy = max(sx, 1), max(sy, 1)
	return fixed(r.Dx()*sx, r.Dy()*sy, func(x, y int) bool {
		return dark(bc.At(r.Min.X+x/sx, r.Min.Y+y/sy))
	})
}

// fallbackField draws a payload that failed validation as Code 128 so the
// label still shows something scannable. Payloads Code 128 cannot carry become
// a crossed placeholder box.
func fallbackField(b *parser.BarcodePayload) field {
	data := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7E {
			return '?'
		}
		return r
	}, b.Data)

	fb := *b
	fb.Symbology = parser.Code128
	if fb.Height <= 0 {
		fb.Height = placeholderHeight
	}
	if fb.ModuleWidth <= 0 {
		fb.ModuleWidth = 2
	}

	if data != "" {
		if bc, err := code128.Encode(data); err == nil {
			return linearField(bc, &fb, data)
		}
	}
	return placeholderField(fb.Height*2, fb.Height)
}

func placeholderField(w, h int) field {
	return overlay(w, h,
		placed{f: frameField(w, h, 2)},
		placed{f: diagonalField(w, h, 2, false)},
		placed{f: diagonalField(w, h, 2, true)})
}
