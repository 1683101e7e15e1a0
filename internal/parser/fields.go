package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/thereceipt/zpl-printer/internal/zpl"
)

// flushField turns the pending field into instructions and clears it
func (p *Interpreter) flushField() {
	switch {
	case p.state.PendingBarcode:
		p.emitBarcode()
	case p.state.HasData:
		p.emitText()
	}
	p.state.endField()
}

// textLine is a run of text on one row of a block. Justified rows are split
// into one run per word.
type textLine struct {
	value string
	row   int
	dx    int
	width int
}

func (p *Interpreter) emitText() {
	s := &p.state
	font := s.Font
	rot := s.Orientation

	var lines []textLine
	blockW := 0
	if s.Block.Width > 0 {
		lines = p.wrapBlock(s.Data, font, s.Block)
		blockW = s.Block.Width
	} else {
		n := utf8.RuneCountInString(s.Data)
		if n == 0 {
			return
		}
		lines = []textLine{{value: s.Data, width: n * font.Width}}
		blockW = n * font.Width
	}
	if len(lines) == 0 {
		return
	}

	step := font.Height + s.Block.Spacing
	blockH := font.Height + lines[len(lines)-1].row*step

	boxW, boxH := blockW, blockH
	if rot.Sideways() {
		boxW, boxH = blockH, blockW
	}

	bx, by := s.X, s.Y
	if s.RightJustify {
		bx -= boxW
	}
	if s.Typeset {
		switch rot {
		case RotateNormal:
			by -= font.Height
		case Rotate180:
			bx -= boxW
		case Rotate270:
			bx -= boxW
			by -= boxH
		}
	}

	for _, line := range lines {
		if line.value == "" {
			continue
		}
		dy := line.row * step
		lw, h := line.width, font.Height

		var x, y int
		switch rot {
		case RotateNormal:
			x, y = bx+line.dx, by+dy
		case Rotate90:
			x, y = bx+blockH-dy-h, by+line.dx
		case Rotate180:
			x, y = bx+blockW-line.dx-lw, by+blockH-dy-h
		case Rotate270:
			x, y = bx+dy, by+blockW-line.dx-lw
		}

		w, hh := lw, h
		if rot.Sideways() {
			w, hh = h, lw
		}
		p.emit(Instruction{
			Kind:     KindText,
			X:        x,
			Y:        y,
			Width:    w,
			Height:   hh,
			Rotation: rot,
			Reverse:  s.Reverse,
			Text: &TextPayload{
				Value:      line.value,
				Font:       font.Name,
				CharWidth:  font.Width,
				CharHeight: font.Height,
			},
		})
	}
}

// wrapBlock lays text out inside a ^FB block: explicit \& breaks first, then
// greedy word wrap, then justification offsets
func (p *Interpreter) wrapBlock(data string, font Font, b FieldBlock) []textLine {
	perLine := max(1, b.Width/font.Width)

	type rawLine struct {
		value string
		// last line of its paragraph, never stretched by J
		last bool
	}
	var raw []rawLine
	for _, para := range strings.Split(data, `\&`) {
		wrapped := wrapWords(para, perLine)
		for i, value := range wrapped {
			raw = append(raw, rawLine{value: value, last: i == len(wrapped)-1})
		}
	}

	if len(raw) > b.Lines {
		p.warn(zpl.Command{Kind: zpl.Format, Prefix: '^', Mnemonic: "FB"}, ErrParameterClamped,
			fmt.Sprintf("text needs %d lines, block allows %d", len(raw), b.Lines))
		raw = raw[:b.Lines]
	}

	lines := make([]textLine, 0, len(raw))
	for i, r := range raw {
		lw := utf8.RuneCountInString(r.value) * font.Width
		dx := 0
		switch b.Justify {
		case 'C':
			dx = (b.Width - lw) / 2
		case 'R':
			dx = b.Width - lw
		default:
			if i > 0 {
				dx = b.Indent
			}
		}
		dx = max(dx, 0)

		if b.Justify == 'J' && !r.last {
			if words := justify(r.value, i, dx, b.Width, font.Width); words != nil {
				lines = append(lines, words...)
				continue
			}
		}
		lines = append(lines, textLine{value: r.value, row: i, dx: dx, width: lw})
	}
	return lines
}

// justify spreads the words of a row so the last one ends at the block edge.
// The slack goes to the gaps from the left, one dot at a time. Rows with a
// single word stay left aligned.
func justify(value string, row, dx, width, pitch int) []textLine {
	words := strings.Fields(value)
	if len(words) < 2 {
		return nil
	}

	used := 0
	for _, w := range words {
		used += utf8.RuneCountInString(w) * pitch
	}
	gaps := len(words) - 1
	slack := max(width-dx-used, gaps*pitch)

	out := make([]textLine, 0, len(words))
	x := dx
	for i, w := range words {
		ww := utf8.RuneCountInString(w) * pitch
		out = append(out, textLine{value: w, row: row, dx: x, width: ww})
		if i < gaps {
			x += ww + slack/gaps
			if i < slack%gaps {
				x++
			}
		}
	}
	return out
}

func wrapWords(s string, perLine int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	cur := ""
	for _, word := range words {
		for utf8.RuneCountInString(word) > perLine {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			r := []rune(word)
			lines = append(lines, string(r[:perLine]))
			word = string(r[perLine:])
		}
		if word == "" {
			continue
		}
		switch {
		case cur == "":
			cur = word
		case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(word) <= perLine:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
