package labelformat

import "fmt"

// Validate validates a LabelFormat structure
func Validate(f LabelFormat) error {
	if f.WidthHmm <= 0 {
		return fmt.Errorf("%w: width must be positive", ErrInvalidGeometry)
	}
	if f.HeightHmm <= 0 {
		return fmt.Errorf("%w: height must be positive", ErrInvalidGeometry)
	}

	if !f.Density.Valid() {
		return fmt.Errorf("%w: unsupported density %d dpmm (must be 6, 8, 12 or 24)", ErrInvalidGeometry, f.Density)
	}

	switch f.Orientation {
	case "", OrientationNormal, OrientationInverted:
	default:
		return fmt.Errorf("%w: invalid orientation %q", ErrInvalidGeometry, f.Orientation)
	}

	_, err := f.Resolve()
	return err
}
