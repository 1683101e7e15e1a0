package parser

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Bitmap is a packed 1-bit image, most significant bit leftmost, set bits black
type Bitmap struct {
	Width  int
	Height int
	Stride int
	Data   []byte
}

// NewBitmap allocates a blank bitmap of rows x stride bytes
func NewBitmap(stride, rows int) *Bitmap {
	return &Bitmap{
		Width:  stride * 8,
		Height: rows,
		Stride: stride,
		Data:   make([]byte, stride*rows),
	}
}

// At reports whether the dot at x, y is black
func (b *Bitmap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return false
	}
	return b.Data[y*b.Stride+x/8]&(0x80>>(x%8)) != 0
}

var (
	errGraphicShort  = errors.New("graphic data shorter than declared")
	errGraphicFormat = errors.New("graphic data malformed")
)

// decodeGraphic decodes a ^GF/~DG payload into a bitmap. encoding is A for
// ASCII hex (with ZPL run-length compression), B or C for raw bytes. Both may
// instead carry a :B64: or :Z64: body.
func decodeGraphic(encoding byte, data string, total, stride int) (*Bitmap, error) {
	if stride <= 0 {
		return nil, fmt.Errorf("%w: %d bytes per row", errGraphicFormat, stride)
	}
	rows := (total + stride - 1) / stride
	if rows <= 0 {
		return nil, fmt.Errorf("%w: %d total bytes", errGraphicFormat, total)
	}

	var raw []byte
	var err error
	switch {
	case strings.HasPrefix(data, ":B64:") || strings.HasPrefix(data, ":Z64:"):
		raw, err = decodeEmbedded(data, stride*rows)
		if err != nil {
			return nil, err
		}
	case encoding == 'B' || encoding == 'C':
		raw = []byte(data)
	default:
		return decodeHex(data, stride, rows)
	}

	bm := NewBitmap(stride, rows)
	n := copy(bm.Data, raw)
	if n < len(bm.Data) {
		return bm, fmt.Errorf("%w: %d of %d bytes", errGraphicShort, n, len(bm.Data))
	}
	return bm, nil
}

// decodeEmbedded handles ":B64:<base64>:<crc>" and ":Z64:<base64 zlib>:<crc>".
// A Z64 body never inflates past limit bytes.
func decodeEmbedded(data string, limit int) ([]byte, error) {
	kind := data[:5]
	body := data[5:]
	if i := strings.LastIndexByte(body, ':'); i >= 0 {
		body = body[:i]
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errGraphicFormat, err)
	}
	if kind == ":B64:" {
		return raw, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errGraphicFormat, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errGraphicFormat, err)
	}
	if len(out) > limit {
		return nil, fmt.Errorf("%w: compressed data inflates past %d bytes", errGraphicFormat, limit)
	}
	return out, nil
}

// decodeHex expands ASCII hex rows. G-Y repeat the next digit 1-19 times and
// g-z add multiples of 20; ',' pads the row with zeros, '!' with ones and ':'
// repeats the previous row.
func decodeHex(data string, stride, rows int) (*Bitmap, error) {
	bm := NewBitmap(stride, rows)
	nibbles := stride * 2

	row := make([]byte, 0, nibbles)
	prev := make([]byte, nibbles)
	y := 0
	count := 0

	commit := func() {
		for len(row) < nibbles {
			row = append(row, 0)
		}
		line := bm.Data[y*stride : (y+1)*stride]
		for i := range line {
			line[i] = row[2*i]<<4 | row[2*i+1]
		}
		copy(prev, row)
		row = row[:0]
		y++
	}

	fill := func(v byte) {
		for len(row) < nibbles {
			row = append(row, v)
		}
		commit()
	}

	for i := 0; i < len(data) && y < rows; i++ {
		c := data[i]
		switch {
		case isHex(c):
			n := max(count, 1)
			count = 0
			for ; n > 0 && y < rows; n-- {
				row = append(row, hexValue(c))
				if len(row) == nibbles {
					commit()
				}
			}
		case c >= 'G' && c <= 'Y':
			count += int(c-'G') + 1
		case c >= 'g' && c <= 'z':
			count += (int(c-'g') + 1) * 20
		case c == ',':
			count = 0
			fill(0)
		case c == '!':
			count = 0
			fill(0xF)
		case c == ':':
			count = 0
			row = append(row[:0], prev...)
			commit()
		}
	}

	if len(row) > 0 && y < rows {
		commit()
	}
	if y < rows {
		return bm, fmt.Errorf("%w: %d of %d rows", errGraphicShort, y, rows)
	}
	return bm, nil
}
