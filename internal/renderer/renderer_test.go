package renderer

import (
	"bytes"
	"image"
	"runtime"
	"testing"

	"github.com/thereceipt/zpl-printer/internal/parser"
	"github.com/thereceipt/zpl-printer/internal/zpl"
	"github.com/thereceipt/zpl-printer/pkg/labelformat"
)

var testCanvas = labelformat.Canvas{Width: 812, Height: 406}

func renderJob(t *testing.T, job string) *image.Gray {
	t.Helper()
	cmds, err := zpl.Tokenize([]byte(job), zpl.Options{})
	if err != nil {
		t.Fatalf("Failed to tokenize: %v", err)
	}
	labels, _ := parser.Execute(cmds, parser.Options{Density: labelformat.Density8})
	if len(labels) != 1 {
		t.Fatalf("Expected 1 label, got %d", len(labels))
	}

	r, err := New(testCanvas)
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}
	img, err := r.Render(labels[0])
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	return img
}

// countBlack counts black dots inside rect
func countBlack(img *image.Gray, rect image.Rectangle) int {
	n := 0
	rect = rect.Intersect(img.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if img.GrayAt(x, y).Y == black {
				n++
			}
		}
	}
	return n
}

func TestRender_TextLandsInItsBox(t *testing.T) {
	img := renderJob(t, "^XA^FO50,50^A0N,30,30^FDHELLO^FS^XZ")

	if got := img.Bounds(); got.Dx() != 812 || got.Dy() != 406 {
		t.Fatalf("Expected 812x406 canvas, got %v", got)
	}

	box := image.Rect(50, 50, 140, 80)
	inside := countBlack(img, box)
	total := countBlack(img, img.Bounds())
	if inside == 0 {
		t.Fatal("Expected black dots inside the text box")
	}
	if inside != total {
		t.Errorf("Found %d black dots outside the text box", total-inside)
	}
}

func TestRender_Deterministic(t *testing.T) {
	job := "^XA^FO20,20^A0N,40,40^FDSHIP TO^FS^FO20,80^BY2^BCN,60,Y,N^FD12345^FS^FO300,20^GB200,100,4,B,3^FS^FO300,150^BQN,2,4^FDQA,hello^FS^XZ"
	a := renderJob(t, job)
	b := renderJob(t, job)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("Rendering the same label twice produced different images")
	}
}

func TestRender_Clipping(t *testing.T) {
	img := renderJob(t, "^XA^FO800,400^GB100,100,100^FS^XZ")
	if img.GrayAt(811, 405).Y != black {
		t.Error("Expected the visible part of the box to be drawn")
	}
	if n := countBlack(img, img.Bounds()); n != 12*6 {
		t.Errorf("Expected 72 clipped dots, got %d", n)
	}
}

func TestRender_FieldReverse(t *testing.T) {
	img := renderJob(t, "^XA^FO0,0^GB100,100,100^FS^FO50,50^FR^GB100,100,100^FS^XZ")
	if img.GrayAt(10, 10).Y != black {
		t.Error("Expected first box black")
	}
	if img.GrayAt(75, 75).Y != white {
		t.Error("Expected overlap reversed to white")
	}
	if img.GrayAt(120, 120).Y != black {
		t.Error("Expected reversed box black over white background")
	}
}

func TestRender_WhiteBox(t *testing.T) {
	img := renderJob(t, "^XA^FO0,0^GB100,100,100^FS^FO10,10^GB20,20,20,W^FS^XZ")
	if img.GrayAt(15, 15).Y != white || img.GrayAt(50, 50).Y != black {
		t.Error("Expected white box punched into the black one")
	}
}

func TestRender_Frame(t *testing.T) {
	img := renderJob(t, "^XA^FO10,10^GB50,40,3^FS^XZ")
	if img.GrayAt(10, 10).Y != black || img.GrayAt(59, 49).Y != black {
		t.Error("Expected border corners black")
	}
	if img.GrayAt(30, 30).Y != white {
		t.Error("Expected hollow interior")
	}
}

func TestRender_GraphicField(t *testing.T) {
	img := renderJob(t, "^XA^FO10,20^GFA,2,2,1,8001^FS^XZ")
	if img.GrayAt(10, 20).Y != black {
		t.Error("Expected top-left dot of the graphic")
	}
	if img.GrayAt(17, 21).Y != black {
		t.Error("Expected last dot of the second row")
	}
	if n := countBlack(img, img.Bounds()); n != 2 {
		t.Errorf("Expected exactly 2 black dots, got %d", n)
	}
}

func TestRender_DegradedBarcodeStillDraws(t *testing.T) {
	img := renderJob(t, "^XA^FO10,10^BEN,50,N^FD5901234123450^FS^XZ")
	if countBlack(img, image.Rect(10, 10, 812, 60)) == 0 {
		t.Error("Expected fallback barcode in the field region")
	}
}

func TestRender_Barcodes(t *testing.T) {
	jobs := map[string]string{
		"code128": "^XA^FO10,10^BCN,50,N^FDABC123^FS^XZ",
		"code39":  "^XA^FO10,10^B3N,N,50,N^FDABC^FS^XZ",
		"ean13":   "^XA^FO10,10^BEN,50,N^FD590123412345^FS^XZ",
		"upca":    "^XA^FO10,10^BUN,50,N^FD03600029145^FS^XZ",
		"i2of5":   "^XA^FO10,10^B2N,50,N^FD1234^FS^XZ",
		"qr":      "^XA^FO10,10^BQN,2,3^FDQA,hello^FS^XZ",
	}
	for name, job := range jobs {
		img := renderJob(t, job)
		if countBlack(img, image.Rect(10, 10, 812, 406)) == 0 {
			t.Errorf("%s: expected bars", name)
		}
		if countBlack(img, image.Rect(0, 0, 10, 10)) != 0 {
			t.Errorf("%s: drew before its origin", name)
		}
	}
}

func TestRender_RotatedTextBox(t *testing.T) {
	img := renderJob(t, "^XA^FO100,100^A0R,20,20^FDABC^FS^XZ")
	box := image.Rect(100, 100, 120, 136)
	if inside, total := countBlack(img, box), countBlack(img, img.Bounds()); inside == 0 || inside != total {
		t.Errorf("Expected all %d dots inside the rotated box, got %d", total, inside)
	}
}

func TestRender_InvertedLabel(t *testing.T) {
	img := renderJob(t, "^XA^POI^FO0,0^GB10,10,10^FS^XZ")
	if img.GrayAt(0, 0).Y != white {
		t.Error("Expected top-left to be empty after inversion")
	}
	if img.GrayAt(811, 405).Y != black || img.GrayAt(802, 396).Y != black {
		t.Error("Expected box in the bottom-right corner")
	}
}

func TestRender_PrintWidthOverride(t *testing.T) {
	img := renderJob(t, "^XA^PW400^LL200^FO0,0^GB10,10,10^FS^XZ")
	if got := img.Bounds(); got.Dx() != 400 || got.Dy() != 200 {
		t.Errorf("Expected 400x200 canvas, got %v", got)
	}
}

func TestNew_RejectsBadCanvas(t *testing.T) {
	if _, err := New(labelformat.Canvas{Width: 0, Height: 10}); err == nil {
		t.Error("Expected error for empty canvas")
	}
}

func TestRender_OversizedFieldsStayCanvasSized(t *testing.T) {
	// glyphs this tall show only blank rows on the canvas, so text is not
	// checked for ink
	jobs := []struct {
		name string
		job  string
		ink  bool
	}{
		{"text", "^XA^FO0,0^A0N,32000,32000^FDHELLO^FS^XZ", false},
		{"rotated", "^XA^FO0,0^A0R,32000,32000^FDHELLO^FS^XZ", false},
		{"box", "^XA^FO0,0^GB32000,32000,32000^FS^XZ", true},
		{"frame", "^XA^FO0,0^GB32000,32000,10^FS^XZ", true},
		{"rounded", "^XA^FO0,0^GB32000,300,10,B,8^FS^XZ", true},
		{"ellipse", "^XA^FO0,0^GE4095,300,3^FS^XZ", true},
		{"barcode", "^XA^FO0,0^BY10^BCN,32000,Y,N^FDABC123^FS^XZ", true},
		{"qr", "^XA^FO0,0^BQN,2,100^FDQA,hello^FS^XZ", true},
	}
	const budget = 16 << 20

	r, err := New(testCanvas)
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}
	for _, tc := range jobs {
		name := tc.name
		cmds, err := zpl.Tokenize([]byte(tc.job), zpl.Options{})
		if err != nil {
			t.Fatalf("%s: failed to tokenize: %v", name, err)
		}
		labels, _ := parser.Execute(cmds, parser.Options{Density: labelformat.Density8})
		if len(labels) != 1 {
			t.Fatalf("%s: expected 1 label, got %d", name, len(labels))
		}

		var before, after runtime.MemStats
		runtime.GC()
		runtime.ReadMemStats(&before)
		img, err := r.Render(labels[0])
		runtime.ReadMemStats(&after)
		if err != nil {
			t.Fatalf("%s: failed to render: %v", name, err)
		}

		if grown := after.TotalAlloc - before.TotalAlloc; grown > budget {
			t.Errorf("%s: rendering allocated %d bytes, want at most %d", name, grown, budget)
		}
		if tc.ink && countBlack(img, img.Bounds()) == 0 {
			t.Errorf("%s: expected the visible part to be drawn", name)
		}
	}
}

func TestRender_ClippedTextMatchesUnclipped(t *testing.T) {
	whole := renderJob(t, "^XA^FO10,10^A0N,40,40^FDWXYZ^FS^XZ")
	clipped := renderJob(t, "^XA^FO790,10^A0N,40,40^FDWXYZ^FS^XZ")

	for y := 10; y < 50; y++ {
		for dx := 0; dx < 22; dx++ {
			if whole.GrayAt(10+dx, y) != clipped.GrayAt(790+dx, y) {
				t.Fatalf("Dot (%d,%d) of the clipped line differs from the unclipped one", dx, y-10)
			}
		}
	}
	if countBlack(clipped, image.Rect(790, 10, 812, 50)) == 0 {
		t.Error("Expected the first glyph to be visible")
	}
}

// rightmostInk returns one past the last column holding a black dot
func rightmostInk(img *image.Gray) int {
	b := img.Bounds()
	for x := b.Max.X - 1; x >= b.Min.X; x-- {
		if countBlack(img, image.Rect(x, b.Min.Y, x+1, b.Max.Y)) > 0 {
			return x + 1
		}
	}
	return 0
}

func TestRender_BarcodeRatioWidensWideElements(t *testing.T) {
	cases := map[string]string{
		"code39": "^B3N,N,50,N^FDAB",
		"i2of5":  "^B2N,50,N^FD1234",
	}
	for name, field := range cases {
		narrow := rightmostInk(renderJob(t, "^XA^FO10,10^BY2,2.0"+field+"^FS^XZ"))
		wide := rightmostInk(renderJob(t, "^XA^FO10,10^BY2,3.0"+field+"^FS^XZ"))
		if wide <= narrow {
			t.Errorf("%s: expected ratio 3.0 wider than 2.0, got %d and %d", name, wide, narrow)
		}
	}

	// single width codes ignore the ratio
	a := renderJob(t, "^XA^FO10,10^BY2,2.0^BCN,50,N^FDABC^FS^XZ")
	b := renderJob(t, "^XA^FO10,10^BY2,3.0^BCN,50,N^FDABC^FS^XZ")
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("Expected code128 to be unaffected by the ratio")
	}
}
