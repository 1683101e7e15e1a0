package parser

// Kind tells the rasterizer which drawing routine an Instruction needs
type Kind int

const (
	KindText Kind = iota
	KindBarcode
	KindGraphic
	KindBox
	KindLine
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBarcode:
		return "barcode"
	case KindGraphic:
		return "graphic"
	case KindBox:
		return "box"
	case KindLine:
		return "line"
	default:
		return "unknown"
	}
}

// Rotation is a field orientation in 90 degree clockwise steps
type Rotation int

const (
	RotateNormal Rotation = iota // N
	Rotate90                     // R, rotated 90 degrees clockwise
	Rotate180                    // I, inverted
	Rotate270                    // B, read from bottom up
)

// ParseRotation parses the N/R/I/B orientation letters
func ParseRotation(s string) (Rotation, bool) {
	if s == "" {
		return RotateNormal, false
	}
	switch s[0] {
	case 'N', 'n':
		return RotateNormal, true
	case 'R', 'r':
		return Rotate90, true
	case 'I', 'i':
		return Rotate180, true
	case 'B', 'b':
		return Rotate270, true
	}
	return RotateNormal, false
}

func (r Rotation) String() string {
	return [...]string{"N", "R", "I", "B"}[r&3]
}

// Sideways reports whether the rotation swaps width and height
func (r Rotation) Sideways() bool {
	return r == Rotate90 || r == Rotate270
}

// Instruction is a position-absolute drawing directive. X and Y are the
// top-left corner of the (already rotated) bounding box in canvas dots.
type Instruction struct {
	Kind     Kind
	X, Y     int
	Width    int
	Height   int
	Rotation Rotation
	Reverse  bool
	Degraded bool

	Text    *TextPayload
	Barcode *BarcodePayload
	Graphic *GraphicPayload
	Shape   *ShapePayload
}

// TextPayload is one line of fixed pitch text
type TextPayload struct {
	Value      string
	Font       byte
	CharWidth  int
	CharHeight int
}

// Symbology names a barcode type
type Symbology string

const (
	Code128     Symbology = "code128"
	Code39      Symbology = "code39"
	Code93      Symbology = "code93"
	EAN13       Symbology = "ean13"
	EAN8        Symbology = "ean8"
	UPCA        Symbology = "upca"
	Interleaved Symbology = "i2of5"
	Codabar     Symbology = "codabar"
	QRCode      Symbology = "qr"
	DataMatrix  Symbology = "datamatrix"
	PDF417      Symbology = "pdf417"
)

// TwoDimensional reports whether the symbology is a matrix/stacked code
func (s Symbology) TwoDimensional() bool {
	return s == QRCode || s == DataMatrix || s == PDF417
}

// BarcodePayload carries everything the rasterizer needs to draw a barcode
type BarcodePayload struct {
	Symbology           Symbology
	Data                string
	ModuleWidth         int
	Ratio               float64
	Height              int
	Interpretation      bool
	InterpretationAbove bool
	CheckDigit          bool
	Magnification       int
	ErrorCorrection     byte
	Security            int
	Start               byte
	Stop                byte
	Reason              string
}

// GraphicPayload is a bitmap blitted at an integer magnification
type GraphicPayload struct {
	Bitmap *Bitmap
	ScaleX int
	ScaleY int
}

// Shape is the outline drawn by a box instruction
type Shape int

const (
	ShapeRect Shape = iota
	ShapeEllipse
	ShapeDiagonal
)

// ShapePayload describes boxes, ellipses and lines
type ShapePayload struct {
	Shape     Shape
	Thickness int
	White     bool
	Rounding  int
	LeanLeft  bool
}

// Label is the resolved output of one format block
type Label struct {
	Instructions []Instruction
	PrintWidth   int
	LabelLength  int
	Inverted     bool
	Quantity     int
	Warnings     []Warning
}

// Degraded reports whether any instruction rendered in a degraded form
func (l *Label) Degraded() bool {
	for i := range l.Instructions {
		if l.Instructions[i].Degraded {
			return true
		}
	}
	return false
}
