package screens

import (
	"image"
	"image/color"
	"strings"
	"testing"
)

func TestHalfBlocks_Dimensions(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 40, 20))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}

	out := HalfBlocks(img, 20, 5)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected 5 rows, got %d", len(lines))
	}
	if n := strings.Count(lines[0], "▀"); n != 20 {
		t.Errorf("Expected 20 cells per row, got %d", n)
	}
	if strings.Contains(out, "black") {
		t.Error("Blank label should have no ink")
	}
}

func TestHalfBlocks_Ink(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := color.Gray{Y: 0xFF}
			if y < 2 {
				c.Y = 0
			}
			img.SetGray(x, y, c)
		}
	}

	out := HalfBlocks(img, 4, 2)
	lines := strings.Split(out, "\n")
	if !strings.HasPrefix(lines[0], "[black:black]") {
		t.Errorf("Top row should be ink, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "[white:white]") {
		t.Errorf("Bottom row should be blank, got %q", lines[1])
	}
	if strings.Count(lines[0], "[black:black]") != 1 {
		t.Error("Repeated tags should be collapsed")
	}
}

func TestHalfBlocks_Empty(t *testing.T) {
	if HalfBlocks(nil, 10, 10) != "" {
		t.Error("Expected empty output for nil image")
	}
	if HalfBlocks(image.NewGray(image.Rect(0, 0, 2, 2)), 0, 10) != "" {
		t.Error("Expected empty output for zero width")
	}
}
