package screens

import (
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// inkThreshold is the luminance below which a downscaled cell counts as ink.
// Box filtering turns one-dot lines into light grey, so it sits high.
const inkThreshold = 200

// HalfBlocks draws img into at most cols x rows terminal cells using upper
// half block characters, two pixels per cell. The result carries tview color
// tags.
func HalfBlocks(img image.Image, cols, rows int) string {
	if img == nil || cols < 1 || rows < 1 {
		return ""
	}

	small := imaging.Fit(img, cols, rows*2, imaging.Box)
	gray := imaging.Grayscale(small)
	b := gray.Bounds()

	ink := func(x, y int) bool {
		if y >= b.Dy() {
			return false
		}
		return gray.Pix[y*gray.Stride+x*4] < inkThreshold
	}

	var sb strings.Builder
	for y := 0; y < b.Dy(); y += 2 {
		last := ""
		for x := 0; x < b.Dx(); x++ {
			tag := cellTag(ink(x, y), ink(x, y+1))
			if tag != last {
				sb.WriteString(tag)
				last = tag
			}
			sb.WriteString("▀")
		}
		sb.WriteString("[-:-]\n")
	}
	return sb.String()
}

func cellTag(top, bottom bool) string {
	color := func(ink bool) string {
		if ink {
			return "black"
		}
		return "white"
	}
	return "[" + color(top) + ":" + color(bottom) + "]"
}
