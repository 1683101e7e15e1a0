package parser

import (
	"strings"

	"github.com/thereceipt/zpl-printer/internal/zpl"
	"github.com/thereceipt/zpl-printer/pkg/labelformat"
)

const maxFieldDots = 32000

var formatCommands map[string]handler

var controlCommands map[string]handler

func init() {
	formatCommands = map[string]handler{
		"XA": {fn: (*Interpreter).startFormat, anywhere: true},
		"XZ": {fn: func(*Interpreter, zpl.Command) {}},

		// prefix changes are applied by the tokenizer
		"CC": {fn: noop, anywhere: true},
		"CT": {fn: noop, anywhere: true},
		"CD": {fn: noop, anywhere: true},
		"FX": {fn: noop, anywhere: true},

		"LH": {fn: (*Interpreter).labelHome},
		"LR": {fn: (*Interpreter).labelReverse},
		"PW": {fn: (*Interpreter).printWidth},
		"LL": {fn: (*Interpreter).labelLength},
		"PO": {fn: (*Interpreter).printOrientation},
		"PQ": {fn: (*Interpreter).printQuantity},

		"FO": {fn: (*Interpreter).fieldOrigin},
		"FT": {fn: (*Interpreter).fieldTypeset},
		"FD": {fn: (*Interpreter).fieldData},
		"FV": {fn: (*Interpreter).fieldData},
		"FS": {fn: (*Interpreter).fieldSeparator},
		"FH": {fn: (*Interpreter).fieldHex},
		"FR": {fn: (*Interpreter).fieldReverse},
		"FB": {fn: (*Interpreter).fieldBlock},
		"FW": {fn: (*Interpreter).fieldOrientation},
		"CF": {fn: (*Interpreter).changeFont},

		"BY": {fn: (*Interpreter).barcodeDefaults},
		"BC": {fn: barcodeHandler(Code128)},
		"B3": {fn: barcodeHandler(Code39)},
		"BA": {fn: barcodeHandler(Code93)},
		"BE": {fn: barcodeHandler(EAN13)},
		"B8": {fn: barcodeHandler(EAN8)},
		"BU": {fn: barcodeHandler(UPCA)},
		"B2": {fn: barcodeHandler(Interleaved)},
		"BK": {fn: barcodeHandler(Codabar)},
		"BQ": {fn: barcodeHandler(QRCode)},
		"BX": {fn: barcodeHandler(DataMatrix)},
		"B7": {fn: barcodeHandler(PDF417)},

		"GB": {fn: (*Interpreter).graphicBox},
		"GC": {fn: (*Interpreter).graphicCircle},
		"GE": {fn: (*Interpreter).graphicEllipse},
		"GD": {fn: (*Interpreter).graphicDiagonal},
		"GF": {fn: (*Interpreter).graphicField},
		"XG": {fn: (*Interpreter).recallGraphic},
	}

	// device and media directives a virtual printer has nothing to do with
	for _, m := range []string{
		"MM", "MN", "MT", "MD", "PR", "CI", "PM", "JM", "LT", "LS", "MU",
		"PF", "PP", "PH", "SD", "JU", "MF", "ML", "MP", "XB", "FN", "SN",
		"DF", "XF", "ID", "IL", "IS", "IM", "HH", "HG", "HW", "KN", "KP", "CW",
	} {
		formatCommands[m] = handler{fn: noop, anywhere: true}
	}

	controlCommands = map[string]handler{
		"DG": {fn: (*Interpreter).downloadGraphic, anywhere: true},
		"CC": {fn: noop, anywhere: true},
		"CT": {fn: noop, anywhere: true},
		"CD": {fn: noop, anywhere: true},
	}
	for _, m := range []string{
		"SD", "TA", "JA", "JS", "JC", "JD", "JE", "JL", "JN", "JO", "JP", "JR",
		"PS", "PL", "PH", "PP", "HS", "HI", "HM", "HQ", "WC", "RO", "EG",
	} {
		controlCommands[m] = handler{fn: noop, anywhere: true}
	}
}

func noop(*Interpreter, zpl.Command) {}

func lookup(cmd zpl.Command) (handler, bool) {
	if cmd.Kind == zpl.Control {
		h, ok := controlCommands[cmd.Mnemonic]
		return h, ok
	}
	// ^A takes its font as the second mnemonic character
	if len(cmd.Mnemonic) == 2 && cmd.Mnemonic[0] == 'A' {
		return handler{fn: (*Interpreter).selectFont}, true
	}
	h, ok := formatCommands[cmd.Mnemonic]
	return h, ok
}

func (p *Interpreter) labelHome(cmd zpl.Command) {
	p.state.HomeX = p.intParam(cmd, 0, 0, 0, maxFieldDots)
	p.state.HomeY = p.intParam(cmd, 1, 0, 0, maxFieldDots)
}

func (p *Interpreter) labelReverse(cmd zpl.Command) {
	p.state.LabelReverse = boolParam(cmd, 0, false)
}

func (p *Interpreter) printWidth(cmd zpl.Command) {
	p.state.PrintWidth = p.intParam(cmd, 0, p.state.PrintWidth, 2, labelformat.MaxCanvasDots)
}

func (p *Interpreter) labelLength(cmd zpl.Command) {
	p.state.LabelLength = p.intParam(cmd, 0, p.state.LabelLength, 1, labelformat.MaxCanvasDots)
}

func (p *Interpreter) printOrientation(cmd zpl.Command) {
	p.state.Inverted = strings.EqualFold(cmd.Param(0), "I")
}

func (p *Interpreter) printQuantity(cmd zpl.Command) {
	p.state.Quantity = p.intParam(cmd, 0, 1, 1, 99999999)
}

func (p *Interpreter) fieldOrigin(cmd zpl.Command) {
	p.state.X = p.state.HomeX + p.intParam(cmd, 0, 0, 0, maxFieldDots)
	p.state.Y = p.state.HomeY + p.intParam(cmd, 1, 0, 0, maxFieldDots)
	p.state.RightJustify = cmd.Param(2) == "1"
	p.state.Typeset = false
}

// fieldTypeset is ^FT: like ^FO but the origin is the text baseline. Missing
// coordinates keep the previous position.
func (p *Interpreter) fieldTypeset(cmd zpl.Command) {
	if cmd.Has(0) {
		p.state.X = p.state.HomeX + p.intParam(cmd, 0, 0, 0, maxFieldDots)
	}
	if cmd.Has(1) {
		p.state.Y = p.state.HomeY + p.intParam(cmd, 1, 0, 0, maxFieldDots)
	}
	p.state.RightJustify = cmd.Param(2) == "1"
	p.state.Typeset = true
}

func (p *Interpreter) fieldData(cmd zpl.Command) {
	data := ""
	if len(cmd.Params) > 0 {
		data = cmd.Params[0]
	}
	if p.state.HexIndicator != 0 {
		data = decodeFieldHex(data, p.state.HexIndicator)
	}
	p.state.Data += data
	p.state.HasData = true
}

func (p *Interpreter) fieldSeparator(zpl.Command) {
	p.flushField()
}

func (p *Interpreter) fieldHex(cmd zpl.Command) {
	p.state.HexIndicator = '_'
	if s := cmd.Param(0); s != "" {
		p.state.HexIndicator = s[0]
	}
}

func (p *Interpreter) fieldReverse(zpl.Command) {
	p.state.Reverse = true
}

func (p *Interpreter) fieldBlock(cmd zpl.Command) {
	b := FieldBlock{
		Width:   p.intParam(cmd, 0, 0, 0, maxFieldDots),
		Lines:   p.intParam(cmd, 1, 1, 1, 9999),
		Spacing: p.intParam(cmd, 2, 0, -9999, 9999),
		Justify: 'L',
		Indent:  p.intParam(cmd, 4, 0, 0, 9999),
	}
	switch j := strings.ToUpper(cmd.Param(3)); j {
	case "", "L":
	case "C", "R", "J":
		b.Justify = j[0]
	default:
		p.warn(cmd, ErrParameterClamped, "justification "+j+", using L")
	}
	if b.Width == 0 {
		return
	}
	p.state.Block = b
}

func (p *Interpreter) fieldOrientation(cmd zpl.Command) {
	r := p.rotationParam(cmd, 0, p.state.DefaultOrientation)
	p.state.DefaultOrientation = r
	p.state.Orientation = r
}

// selectFont is ^Afo,h,w
func (p *Interpreter) selectFont(cmd zpl.Command) {
	p.state.Orientation = p.rotationParam(cmd, 0, p.state.DefaultOrientation)
	h := p.intParam(cmd, 1, 0, 0, maxFontDots)
	w := p.intParam(cmd, 2, 0, 0, maxFontDots)
	p.state.Font = resolveFont(cmd.Mnemonic[1], h, w)
}

// changeFont is ^CFf,h,w and sets the default for following fields
func (p *Interpreter) changeFont(cmd zpl.Command) {
	name := p.state.DefaultFont.Name
	if s := cmd.Param(0); s != "" {
		name = s[0]
	}
	h := p.intParam(cmd, 1, 0, 0, maxFontDots)
	w := p.intParam(cmd, 2, 0, 0, maxFontDots)
	if h == 0 && w == 0 && name == p.state.DefaultFont.Name {
		return
	}
	font := resolveFont(name, h, w)
	p.state.DefaultFont = font
	p.state.Font = font
}

func (p *Interpreter) barcodeDefaults(cmd zpl.Command) {
	p.state.ModuleWidth = p.intParam(cmd, 0, p.state.ModuleWidth, 1, 10)
	p.state.Ratio = p.floatParam(cmd, 1, p.state.Ratio, 2.0, 3.0)
	p.state.BarHeight = p.intParam(cmd, 2, p.state.BarHeight, 1, maxFieldDots)
}

// decodeFieldHex replaces indicator-prefixed hex pairs with the bytes they name
func decodeFieldHex(s string, indicator byte) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == indicator && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(hexValue(s[i+1])<<4 | hexValue(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func hexValue(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}
