package parser

import (
	"testing"
)

func barcode(t *testing.T, job string) (Instruction, []Warning) {
	t.Helper()
	labels, warnings := run(t, job)
	if len(labels) != 1 || len(labels[0].Instructions) != 1 {
		t.Fatalf("Expected one label with one instruction")
	}
	in := labels[0].Instructions[0]
	if in.Kind != KindBarcode {
		t.Fatalf("Expected barcode, got %s", in.Kind)
	}
	return in, warnings
}

func TestBarcode_Code128(t *testing.T) {
	in, _ := barcode(t, "^XA^BY3^FO10,20^BCN,80,Y,N^FD>:ABC123^FS^XZ")
	b := in.Barcode
	if b.Symbology != Code128 || b.Data != "ABC123" {
		t.Errorf("Unexpected payload %+v", *b)
	}
	if b.ModuleWidth != 3 || b.Height != 80 || !b.Interpretation {
		t.Errorf("Unexpected geometry %+v", *b)
	}
	if in.Degraded {
		t.Error("Valid Code128 marked degraded")
	}
}

func TestBarcode_EAN13CheckDigit(t *testing.T) {
	in, _ := barcode(t, "^XA^FO0,0^BEN,50^FD590123412345^FS^XZ")
	if in.Barcode.Data != "5901234123457" {
		t.Errorf("Expected computed check digit, got %s", in.Barcode.Data)
	}

	in, warnings := barcode(t, "^XA^FO0,0^BEN,50^FD5901234123450^FS^XZ")
	if !in.Degraded {
		t.Error("Expected wrong check digit to degrade")
	}
	if !hasWarning(warnings, ErrDegradedInstruction) {
		t.Error("Expected degraded warning")
	}
}

func TestBarcode_UPCA(t *testing.T) {
	in, _ := barcode(t, "^XA^FO0,0^BUN,50^FD03600029145^FS^XZ")
	if in.Barcode.Data != "0036000291452" {
		t.Errorf("Expected EAN-13 form of UPC-A, got %s", in.Barcode.Data)
	}
}

func TestBarcode_Code39Charset(t *testing.T) {
	in, _ := barcode(t, "^XA^FO0,0^B3N,N,50^FDabc-1^FS^XZ")
	if in.Degraded || in.Barcode.Data != "ABC-1" {
		t.Errorf("Expected uppercase payload, got %+v", *in.Barcode)
	}

	in, _ = barcode(t, "^XA^FO0,0^B3N,N,50^FDA@B^FS^XZ")
	if !in.Degraded {
		t.Error("Expected @ to degrade Code 39")
	}
}

func TestBarcode_Interleaved(t *testing.T) {
	in, _ := barcode(t, "^XA^FO0,0^B2N,40^FD123^FS^XZ")
	if in.Barcode.Data != "0123" {
		t.Errorf("Expected padded even length, got %s", in.Barcode.Data)
	}
}

func TestBarcode_Codabar(t *testing.T) {
	in, _ := barcode(t, "^XA^FO0,0^BKN,N,40,Y,N,B,D^FD1234^FS^XZ")
	if in.Degraded || in.Barcode.Data != "B1234D" {
		t.Errorf("Expected guarded payload, got %+v", *in.Barcode)
	}
}

func TestBarcode_QR(t *testing.T) {
	in, _ := barcode(t, "^XA^FO0,0^BQN,2,5^FDHA,hello world^FS^XZ")
	b := in.Barcode
	if b.Data != "hello world" || b.ErrorCorrection != 'H' || b.Magnification != 5 {
		t.Errorf("Unexpected QR payload %+v", *b)
	}
	if in.Degraded {
		t.Error("Valid QR marked degraded")
	}
}

func TestBarcode_EmptyPayloadDegrades(t *testing.T) {
	in, _ := barcode(t, "^XA^FO0,0^BCN,50^FD^FS^XZ")
	if !in.Degraded {
		t.Error("Expected empty payload to degrade")
	}
}

func TestGTINCheckDigit(t *testing.T) {
	tests := map[string]byte{
		"590123412345": '7',
		"400638133393": '1',
		"9638507":      '4',
		"03600029145":  '2',
	}
	for digits, want := range tests {
		if got := gtinCheckDigit(digits); got != want {
			t.Errorf("gtinCheckDigit(%s) = %c, want %c", digits, got, want)
		}
	}
}

func TestBarcode_Ratio(t *testing.T) {
	in, warnings := barcode(t, "^XA^BY2,2.5^FO0,0^B3N,N,50,N^FDAB^FS^XZ")
	if in.Barcode.Ratio != 2.5 || len(warnings) != 0 {
		t.Errorf("Expected ratio 2.5 without warnings, got %v and %v", in.Barcode.Ratio, warnings)
	}

	in, warnings = barcode(t, "^XA^BY2,NaN^FO0,0^B3N,N,50,N^FDAB^FS^XZ")
	if in.Barcode.Ratio != 3.0 {
		t.Errorf("Expected NaN ratio to keep the default 3.0, got %v", in.Barcode.Ratio)
	}
	if !hasWarning(warnings, ErrParameterClamped) {
		t.Error("Expected a warning for the NaN ratio")
	}
}

func TestBarcode_PDF417ColumnCount(t *testing.T) {
	_, warnings := barcode(t, "^XA^FO0,0^B7N,10,2^FDhello^FS^XZ")
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", warnings)
	}

	_, warnings = barcode(t, "^XA^FO0,0^B7N,10,2,5^FDhello^FS^XZ")
	if !hasWarning(warnings, ErrParameterClamped) {
		t.Error("Expected a warning for the unsupported column count")
	}
}
