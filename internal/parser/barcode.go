package parser

import (
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/thereceipt/zpl-printer/internal/zpl"
	"github.com/thereceipt/zpl-printer/pkg/labelformat"
)

// parameter positions of the linear symbologies; -1 when not supported
type linearLayout struct {
	height, interp, above, check int
}

var linearLayouts = map[Symbology]linearLayout{
	Code128:     {height: 1, interp: 2, above: 3, check: 4},
	Code39:      {height: 2, interp: 3, above: 4, check: 1},
	Code93:      {height: 1, interp: 2, above: 3, check: 4},
	EAN13:       {height: 1, interp: 2, above: 3, check: -1},
	EAN8:        {height: 1, interp: 2, above: 3, check: -1},
	UPCA:        {height: 1, interp: 2, above: 3, check: 4},
	Interleaved: {height: 1, interp: 2, above: 3, check: 4},
	Codabar:     {height: 2, interp: 3, above: 4, check: 1},
}

func barcodeHandler(sym Symbology) func(*Interpreter, zpl.Command) {
	return func(p *Interpreter, cmd zpl.Command) {
		p.barcodeField(sym, cmd)
	}
}

// barcodeField records the barcode command; the payload arrives with ^FD
func (p *Interpreter) barcodeField(sym Symbology, cmd zpl.Command) {
	s := &p.state
	s.Orientation = p.rotationParam(cmd, 0, s.DefaultOrientation)

	b := BarcodePayload{
		Symbology:   sym,
		ModuleWidth: s.ModuleWidth,
		Ratio:       s.Ratio,
		Height:      s.BarHeight,
	}

	if l, ok := linearLayouts[sym]; ok {
		b.Height = p.intParam(cmd, l.height, s.BarHeight, 1, maxFieldDots)
		b.Interpretation = boolParam(cmd, l.interp, true)
		b.InterpretationAbove = boolParam(cmd, l.above, false)
		if l.check >= 0 {
			b.CheckDigit = boolParam(cmd, l.check, sym == UPCA)
		}
		if sym == Codabar {
			b.Start = codabarGuard(cmd.Param(5))
			b.Stop = codabarGuard(cmd.Param(6))
		}
	}

	switch sym {
	case QRCode:
		b.Magnification = p.intParam(cmd, 2, defaultQRMagnification(p.opts.Density), 1, 100)
		b.ErrorCorrection = 'Q'
		if e := strings.ToUpper(cmd.Param(3)); e != "" && strings.ContainsAny(e[:1], "HQML") {
			b.ErrorCorrection = e[0]
		}
		b.Height = 0
	case DataMatrix:
		b.Magnification = p.intParam(cmd, 1, s.ModuleWidth, 1, 100)
		b.Height = 0
	case PDF417:
		b.Magnification = s.ModuleWidth
		b.Height = p.intParam(cmd, 1, s.ModuleWidth*3, 1, maxFieldDots)
		b.Security = p.intParam(cmd, 2, 0, 0, 8)
		if c := cmd.Param(3); c != "" && c != "0" {
			// the encoder picks the column count from the payload size
			p.warn(cmd, ErrParameterClamped, fmt.Sprintf("column count %s not supported, sized automatically", c))
		}
	}

	s.Barcode = b
	s.PendingBarcode = true
}

func defaultQRMagnification(d labelformat.Density) int {
	return max(1, d.DPI()/100)
}

func codabarGuard(s string) byte {
	if s != "" && strings.ContainsAny(strings.ToUpper(s[:1]), "ABCD") {
		return strings.ToUpper(s)[0]
	}
	return 'A'
}

func (p *Interpreter) emitBarcode() {
	s := &p.state
	b := s.Barcode
	b.Data = s.Data

	in := Instruction{
		Kind:     KindBarcode,
		X:        s.X,
		Y:        s.Y,
		Height:   b.Height,
		Rotation: s.Orientation,
		Reverse:  s.Reverse,
		Barcode:  &b,
	}
	if s.Typeset && !b.Symbology.TwoDimensional() && in.Rotation == RotateNormal {
		in.Y = max(0, in.Y-b.Height)
	}

	if err := normalizeBarcode(&b); err != nil {
		in.Degraded = true
		b.Reason = err.Error()
		p.warn(zpl.Command{Kind: zpl.Format, Prefix: '^', Mnemonic: "FD"}, ErrDegradedInstruction,
			fmt.Sprintf("%s: %v", b.Symbology, err))
	}
	p.emit(in)
}

var (
	errEmptyPayload = errors.New("empty payload")
	errCharset      = errors.New("character not encodable")
	errLength       = errors.New("wrong length")
	errChecksum     = errors.New("check digit mismatch")
)

const code39Charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ-. $/+%"

const codabarCharset = "0123456789-$:/.+"

// normalizeBarcode checks a payload against its symbology and rewrites it
// into the exact form the encoder expects
func normalizeBarcode(b *BarcodePayload) error {
	if b.Data == "" {
		return errEmptyPayload
	}

	switch b.Symbology {
	case Code128:
		// leading subset invocation (>: >; >5 ...) selects the code set
		if len(b.Data) >= 2 && b.Data[0] == '>' {
			b.Data = b.Data[2:]
		}
		if b.Data == "" {
			return errEmptyPayload
		}
		if !isASCII(b.Data) {
			return errCharset
		}

	case Code39:
		b.Data = strings.Trim(strings.ToUpper(b.Data), "*")
		if b.Data == "" {
			return errEmptyPayload
		}
		for _, r := range b.Data {
			if !strings.ContainsRune(code39Charset, r) {
				return fmt.Errorf("%w: %q", errCharset, r)
			}
		}

	case Code93:
		if !isASCII(b.Data) {
			return errCharset
		}

	case EAN13:
		return normalizeGTIN(b, 12)
	case EAN8:
		return normalizeGTIN(b, 7)
	case UPCA:
		// encoded as EAN-13 with a leading zero, the check digit is identical
		if err := normalizeGTIN(b, 11); err != nil {
			return err
		}
		b.Data = "0" + b.Data

	case Interleaved:
		if !isDigits(b.Data) {
			return errCharset
		}
		if b.CheckDigit {
			b.Data += string(gtinCheckDigit(b.Data))
		}
		if len(b.Data)%2 == 1 {
			b.Data = "0" + b.Data
		}

	case Codabar:
		data := strings.ToUpper(b.Data)
		if len(data) >= 2 && strings.ContainsRune("ABCD", rune(data[0])) && strings.ContainsRune("ABCD", rune(data[len(data)-1])) {
			data = data[1 : len(data)-1]
		}
		for _, r := range data {
			if !strings.ContainsRune(codabarCharset, r) {
				return fmt.Errorf("%w: %q", errCharset, r)
			}
		}
		b.Data = string(b.Start) + data + string(b.Stop)

	case QRCode:
		return normalizeQR(b)

	case DataMatrix, PDF417:
		if !isASCII(b.Data) {
			return errCharset
		}
	}
	return nil
}

// normalizeGTIN pads short payloads, appends the check digit and verifies a
// supplied one. n is the number of data digits without the check digit.
func normalizeGTIN(b *BarcodePayload, n int) error {
	if !isDigits(b.Data) {
		return errCharset
	}
	switch {
	case len(b.Data) < n:
		b.Data = strings.Repeat("0", n-len(b.Data)) + b.Data
		fallthrough
	case len(b.Data) == n:
		b.Data += string(gtinCheckDigit(b.Data))
	case len(b.Data) == n+1:
		if gtinCheckDigit(b.Data[:n]) != b.Data[n] {
			return errChecksum
		}
	default:
		return fmt.Errorf("%w: %d digits", errLength, len(b.Data))
	}
	return nil
}

// gtinCheckDigit is the mod 10 check digit shared by EAN, UPC and 2 of 5:
// weights 3 and 1 alternate starting from the rightmost digit
func gtinCheckDigit(digits string) byte {
	sum := 0
	weight := 3
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight = 4 - weight
	}
	return byte('0' + (10-sum%10)%10)
}

// normalizeQR splits the "QA," style prefix off the field data and checks the
// payload fits a symbol at the chosen error correction level
func normalizeQR(b *BarcodePayload) error {
	data := b.Data
	if len(data) >= 3 && data[2] == ',' && strings.ContainsRune("HQML", rune(data[0])) {
		b.ErrorCorrection = data[0]
		manual := data[1] == 'M'
		data = data[3:]
		if manual && data != "" {
			switch data[0] {
			case 'N', 'A':
				data = data[1:]
			case 'B':
				if len(data) >= 5 {
					data = data[5:]
				}
			}
		}
	}
	if data == "" {
		return errEmptyPayload
	}
	b.Data = data

	if _, err := qrcode.New(data, QRLevel(b.ErrorCorrection)); err != nil {
		return fmt.Errorf("%w: %v", errLength, err)
	}
	return nil
}

// QRLevel maps the ZPL reliability letter to the encoder's recovery level
func QRLevel(c byte) qrcode.RecoveryLevel {
	switch c {
	case 'L':
		return qrcode.Low
	case 'M':
		return qrcode.Medium
	case 'H':
		return qrcode.Highest
	default:
		return qrcode.High
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
