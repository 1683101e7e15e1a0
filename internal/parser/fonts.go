package parser

// base character cells of the resident bitmap fonts, in dots
var bitmapFonts = map[byte][2]int{
	'A': {9, 5},
	'B': {11, 7},
	'C': {18, 10},
	'D': {18, 10},
	'E': {28, 15},
	'F': {26, 13},
	'G': {60, 40},
	'H': {21, 13},
}

const (
	scalableDefaultHeight = 15
	maxFontDots           = 32000
)

// resolveFont computes the fixed pitch cell for a font request. Bitmap fonts
// magnify their base cell by integer factors; everything else is scalable with
// a pitch of 3/5 of the requested width.
func resolveFont(name byte, height, width int) Font {
	if name >= 'a' && name <= 'z' {
		name -= 'a' - 'A'
	}

	if base, ok := bitmapFonts[name]; ok {
		fy := magnification(height, base[0])
		fx := fy
		if width > 0 {
			fx = magnification(width, base[1])
		}
		return Font{Name: name, Height: base[0] * fy, Width: base[1] * fx}
	}

	if height <= 0 {
		height = scalableDefaultHeight
	}
	if width <= 0 {
		width = height
	}
	return Font{Name: name, Height: height, Width: max(1, width*3/5)}
}

func magnification(requested, base int) int {
	if requested <= 0 {
		return 1
	}
	f := (requested + base/2) / base
	return min(max(f, 1), 10)
}
