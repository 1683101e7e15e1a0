package labelformat

import (
	"errors"
	"testing"
)

func TestResolve_FourByTwoInchAt8Dpmm(t *testing.T) {
	f, err := New(UnitInch, 4, 2, Density8)
	if err != nil {
		t.Fatalf("Failed to create format: %v", err)
	}

	c, err := f.Resolve()
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}

	if c.Width != 812 || c.Height != 406 {
		t.Errorf("Expected 812x406 canvas, got %dx%d", c.Width, c.Height)
	}
}

func TestResolve_Units(t *testing.T) {
	tests := []struct {
		unit          Unit
		width, height float64
		density       Density
		wantW, wantH  int
	}{
		{UnitMillimeter, 100, 50, Density8, 800, 400},
		{UnitCentimeter, 10, 5, Density12, 1200, 600},
		{UnitInch, 4, 6, Density12, 1219, 1828},
		{UnitMillimeter, 57.5, 32.25, Density6, 345, 193},
		{UnitInch, 2, 1, Density24, 1219, 609},
	}

	for _, tt := range tests {
		f, err := New(tt.unit, tt.width, tt.height, tt.density)
		if err != nil {
			t.Fatalf("New(%s, %v, %v, %d) failed: %v", tt.unit, tt.width, tt.height, tt.density, err)
		}
		c, err := f.Resolve()
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if c.Width != tt.wantW || c.Height != tt.wantH {
			t.Errorf("%v%s x %v%s @%d = %dx%d, want %dx%d",
				tt.width, tt.unit, tt.height, tt.unit, tt.density, c.Width, c.Height, tt.wantW, tt.wantH)
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	for i := 0; i < 50; i++ {
		f, _ := New(UnitMillimeter, 101.6, 50.8, Density8)
		c1, _ := f.Resolve()
		c2, _ := f.Resolve()
		if c1 != c2 {
			t.Fatalf("Resolve not reproducible: %v != %v", c1, c2)
		}
	}
}

func TestNew_InvalidGeometry(t *testing.T) {
	tests := []struct {
		name          string
		unit          Unit
		width, height float64
		density       Density
	}{
		{"zero width", UnitInch, 0, 2, Density8},
		{"negative height", UnitInch, 4, -1, Density8},
		{"unsupported density", UnitInch, 4, 2, 7},
		{"too wide", UnitInch, 100, 2, Density24},
		{"unknown unit", Unit("ft"), 1, 1, Density8},
		{"rounds to nothing", UnitMillimeter, 0.001, 10, Density8},
	}

	for _, tt := range tests {
		_, err := New(tt.unit, tt.width, tt.height, tt.density)
		if !errors.Is(err, ErrInvalidGeometry) {
			t.Errorf("%s: expected ErrInvalidGeometry, got %v", tt.name, err)
		}
	}
}

func TestResolve_TinyLabelRejected(t *testing.T) {
	f := LabelFormat{WidthHmm: 5, HeightHmm: 5000, Density: Density8}
	if _, err := f.Resolve(); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("Expected ErrInvalidGeometry for sub-dot width, got %v", err)
	}
}

func TestCanvasOverride(t *testing.T) {
	c := Canvas{Width: 812, Height: 406}

	if got := c.Override(0, 0); got != c {
		t.Errorf("Override(0,0) changed canvas: %v", got)
	}
	if got := c.Override(400, 0); got.Width != 400 || got.Height != 406 {
		t.Errorf("Override width: got %v", got)
	}
	if got := c.Override(0, 99999); got.Height != MaxCanvasDots {
		t.Errorf("Override should clamp height, got %v", got)
	}
	if got := c.Override(MaxCanvasDots, MaxCanvasDots); got.Width*got.Height > MaxCanvasArea {
		t.Errorf("Override should respect max area, got %v", got)
	}
}

func TestParseUnit(t *testing.T) {
	tests := map[string]Unit{
		"inch": UnitInch,
		"IN":   UnitInch,
		"mm":   UnitMillimeter,
		" cm ": UnitCentimeter,
	}
	for in, want := range tests {
		got, err := ParseUnit(in)
		if err != nil || got != want {
			t.Errorf("ParseUnit(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseUnit("parsec"); err == nil {
		t.Error("Expected error for unknown unit")
	}
}

func TestWidthHeightInUnits(t *testing.T) {
	f, _ := New(UnitInch, 4, 2, Density8)
	if w := f.Width(UnitMillimeter); w != 101.6 {
		t.Errorf("Expected 101.6mm, got %v", w)
	}
	if h := f.Height(UnitInch); h != 2 {
		t.Errorf("Expected 2in, got %v", h)
	}
}
