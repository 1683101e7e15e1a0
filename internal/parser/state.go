package parser

// Phase is the interpreter state machine position
type Phase int

const (
	Idle Phase = iota
	InFormat
	Faulted
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case InFormat:
		return "in_format"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Font is a font selection with its resolved character cell in dots
type Font struct {
	Name   byte
	Height int
	Width  int
}

// FieldBlock is an active ^FB text block
type FieldBlock struct {
	Width   int
	Lines   int
	Spacing int
	Justify byte
	Indent  int
}

// State is everything a format accumulates between commands
type State struct {
	HomeX, HomeY int
	X, Y         int
	Typeset      bool
	RightJustify bool

	Font               Font
	DefaultFont        Font
	Orientation        Rotation
	DefaultOrientation Rotation

	ModuleWidth int
	Ratio       float64
	BarHeight   int

	Reverse      bool
	LabelReverse bool
	HexIndicator byte
	Block        FieldBlock

	Data           string
	HasData        bool
	Barcode        BarcodePayload
	PendingBarcode bool

	PrintWidth  int
	LabelLength int
	Inverted    bool
	Quantity    int
}

// DefaultState is the state at connection start and after every format
func DefaultState() State {
	font := resolveFont('A', 0, 0)
	return State{
		Font:        font,
		DefaultFont: font,
		ModuleWidth: 2,
		Ratio:       3.0,
		BarHeight:   10,
		Quantity:    1,
	}
}

// endField clears everything scoped to a single field
func (s *State) endField() {
	s.Data = ""
	s.HasData = false
	s.Barcode = BarcodePayload{}
	s.PendingBarcode = false
	s.Block = FieldBlock{}
	s.HexIndicator = 0
	s.Reverse = false
	s.Font = s.DefaultFont
	s.Orientation = s.DefaultOrientation
}
