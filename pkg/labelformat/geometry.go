package labelformat

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry is returned when a configuration cannot produce a sane canvas
var ErrInvalidGeometry = errors.New("invalid label geometry")

// Canvas limits guard against malformed configuration producing huge allocations
const (
	MaxCanvasDots = 16000
	MaxCanvasArea = 64 * 1000 * 1000
)

// Canvas is a resolved pixel canvas
type Canvas struct {
	Width  int
	Height int
}

// Dots converts hundredths of a millimeter to printhead dots (truncating)
func Dots(hmm int, density Density) int {
	return hmm * int(density) / 100
}

// Resolve converts the label format into an absolute pixel canvas
func (f LabelFormat) Resolve() (Canvas, error) {
	if !f.Density.Valid() {
		return Canvas{}, fmt.Errorf("%w: unsupported density %d dpmm", ErrInvalidGeometry, f.Density)
	}

	c := Canvas{
		Width:  Dots(f.WidthHmm, f.Density),
		Height: Dots(f.HeightHmm, f.Density),
	}

	if err := c.Check(); err != nil {
		return Canvas{}, err
	}

	return c, nil
}

// Check validates resolved canvas dimensions
func (c Canvas) Check() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: canvas %dx%d must be positive", ErrInvalidGeometry, c.Width, c.Height)
	}
	if c.Width > MaxCanvasDots || c.Height > MaxCanvasDots {
		return fmt.Errorf("%w: canvas %dx%d exceeds %d dots", ErrInvalidGeometry, c.Width, c.Height, MaxCanvasDots)
	}
	if c.Width*c.Height > MaxCanvasArea {
		return fmt.Errorf("%w: canvas %dx%d exceeds %d dots area", ErrInvalidGeometry, c.Width, c.Height, MaxCanvasArea)
	}
	return nil
}

// Override replaces width and/or height with job supplied dot values (^PW / ^LL).
// Zero keeps the configured value; values beyond the limits are clamped.
func (c Canvas) Override(width, height int) Canvas {
	if width > 0 {
		c.Width = min(width, MaxCanvasDots)
	}
	if height > 0 {
		c.Height = min(height, MaxCanvasDots)
	}
	for c.Width*c.Height > MaxCanvasArea {
		c.Height = MaxCanvasArea / c.Width
	}
	return c
}
