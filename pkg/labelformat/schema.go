// Package labelformat defines the label media description shared by the virtual
// printer: physical label size, printhead density and the metadata stored with
// every rendered label.
package labelformat

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Unit is a physical length unit used in the printer configuration
type Unit string

const (
	UnitInch       Unit = "inch"
	UnitMillimeter Unit = "mm"
	UnitCentimeter Unit = "cm"
)

// hundredths of a millimeter per unit
var unitHmm = map[Unit]float64{
	UnitInch:       2540,
	UnitMillimeter: 100,
	UnitCentimeter: 1000,
}

// ParseUnit accepts the unit names used in settings files and the UI
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "inch", "inches", `"`:
		return UnitInch, nil
	case "mm", "millimeter", "millimeters":
		return UnitMillimeter, nil
	case "cm", "centimeter", "centimeters":
		return UnitCentimeter, nil
	default:
		return "", fmt.Errorf("unknown label unit: %q (must be inch, mm or cm)", s)
	}
}

// Density is the printhead resolution in dots per millimeter
type Density int

// Supported printhead resolutions
const (
	Density6  Density = 6  // 152 dpi
	Density8  Density = 8  // 203 dpi
	Density12 Density = 12 // 300 dpi
	Density24 Density = 24 // 600 dpi
)

// SupportedDensities lists every density a LabelFormat may use
var SupportedDensities = []Density{Density6, Density8, Density12, Density24}

// DPI returns the nominal dots-per-inch name of the density
func (d Density) DPI() int {
	switch d {
	case Density6:
		return 152
	case Density8:
		return 203
	case Density12:
		return 300
	case Density24:
		return 600
	default:
		return int(math.Floor(float64(d) * 25.4))
	}
}

// Valid reports whether d is one of SupportedDensities
func (d Density) Valid() bool {
	for _, s := range SupportedDensities {
		if s == d {
			return true
		}
	}
	return false
}

// Orientation is the print orientation of the whole label
type Orientation string

const (
	OrientationNormal   Orientation = "normal"
	OrientationInverted Orientation = "inverted"
)

// LabelFormat is the media description a job renders against. Width and height
// are kept in hundredths of a millimeter so repeated unit conversions never drift.
type LabelFormat struct {
	WidthHmm    int         `json:"width_hmm"`
	HeightHmm   int         `json:"height_hmm"`
	Density     Density     `json:"dpmm"`
	Orientation Orientation `json:"orientation,omitempty"`
}

// New builds a LabelFormat from a width/height given in unit
func New(unit Unit, width, height float64, density Density) (LabelFormat, error) {
	factor, ok := unitHmm[unit]
	if !ok {
		return LabelFormat{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidGeometry, unit)
	}

	f := LabelFormat{
		WidthHmm:    int(math.Round(width * factor)),
		HeightHmm:   int(math.Round(height * factor)),
		Density:     density,
		Orientation: OrientationNormal,
	}

	if err := Validate(f); err != nil {
		return LabelFormat{}, err
	}

	return f, nil
}

// Width returns the label width expressed in unit
func (f LabelFormat) Width(unit Unit) float64 {
	return float64(f.WidthHmm) / unitHmm[unit]
}

// Height returns the label height expressed in unit
func (f LabelFormat) Height(unit Unit) float64 {
	return float64(f.HeightHmm) / unitHmm[unit]
}

func (f LabelFormat) String() string {
	return fmt.Sprintf("%.2fx%.2fmm@%ddpmm", float64(f.WidthHmm)/100, float64(f.HeightHmm)/100, f.Density)
}

// Metadata travels with a rendered bitmap into the image cache
type Metadata struct {
	LabelID    string      `json:"label_id"`
	JobID      string      `json:"job_id"`
	Index      int         `json:"index"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Density    Density     `json:"dpmm"`
	Format     LabelFormat `json:"format"`
	Quantity   int         `json:"quantity,omitempty"`
	Warnings   int         `json:"warnings,omitempty"`
	Degraded   bool        `json:"degraded,omitempty"`
	Remote     string      `json:"remote,omitempty"`
	RenderedAt time.Time   `json:"rendered_at"`
}
