package zpl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Defaults used by a freshly started printer
const (
	DefaultFormatPrefix    byte = '^'
	DefaultControlPrefix   byte = '~'
	DefaultDelimiter       byte = ','
	DefaultMaxCommandBytes      = 8 << 20
)

// ErrMalformedCommand is returned when the stream cannot be split into commands
var ErrMalformedCommand = errors.New("malformed command")

// Options configures a Tokenizer
type Options struct {
	// MaxCommandBytes caps a single command; a command still open past the cap fails the stream
	MaxCommandBytes int
	FormatPrefix    byte
	ControlPrefix   byte
	Delimiter       byte
}

func (o Options) withDefaults() Options {
	if o.MaxCommandBytes <= 0 {
		o.MaxCommandBytes = DefaultMaxCommandBytes
	}
	if o.FormatPrefix == 0 {
		o.FormatPrefix = DefaultFormatPrefix
	}
	if o.ControlPrefix == 0 {
		o.ControlPrefix = DefaultControlPrefix
	}
	if o.Delimiter == 0 {
		o.Delimiter = DefaultDelimiter
	}
	return o
}

// Tokenizer turns network chunks into commands. A command is only emitted once
// the next prefix (or the end of the stream) proves it complete, so commands may
// straddle any number of reads. A Tokenizer belongs to one connection.
type Tokenizer struct {
	opts Options

	format  byte
	control byte
	delim   byte

	buf    []byte
	inCmd  bool
	kind   Kind
	delims int
	header bool // binary graphic header already inspected
	raw    int  // binary payload bytes still expected

	discarded int
	err       error
}

// NewTokenizer creates a tokenizer with the given options
func NewTokenizer(opts Options) *Tokenizer {
	t := &Tokenizer{opts: opts.withDefaults()}
	t.Reset()
	return t
}

// Reset restores the default prefixes and drops any buffered input
func (t *Tokenizer) Reset() {
	t.format = t.opts.FormatPrefix
	t.control = t.opts.ControlPrefix
	t.delim = t.opts.Delimiter
	t.buf = t.buf[:0]
	t.inCmd = false
	t.raw = 0
	t.discarded = 0
	t.err = nil
}

// Pending returns the number of bytes buffered for an incomplete command
func (t *Tokenizer) Pending() int {
	return len(t.buf)
}

// Discarded returns the number of bytes seen outside any command
func (t *Tokenizer) Discarded() int {
	return t.discarded
}

// Prefixes returns the active format prefix, control prefix and delimiter
func (t *Tokenizer) Prefixes() (format, control, delim byte) {
	return t.format, t.control, t.delim
}

// Feed consumes one chunk and returns every command it completed
func (t *Tokenizer) Feed(chunk []byte) ([]Command, error) {
	if t.err != nil {
		return nil, t.err
	}

	var out []Command

	for i := 0; i < len(chunk); i++ {
		if t.raw > 0 {
			n := min(t.raw, len(chunk)-i)
			t.buf = append(t.buf, chunk[i:i+n]...)
			t.raw -= n
			i += n - 1
			continue
		}

		b := chunk[i]
		if b == '\r' || b == '\n' {
			continue
		}

		if !t.inCmd {
			if b == t.format || b == t.control {
				t.start(b)
			} else {
				t.discarded++
			}
			continue
		}

		// ^CC, ^CT and ^CD take the very next byte, even if it is a prefix
		if len(t.buf) == 3 && t.isPrefixChange() {
			t.buf = append(t.buf, b)
			out = append(out, t.emit())
			continue
		}

		if t.terminates(b) {
			out = append(out, t.emit())
			t.start(b)
			continue
		}

		t.buf = append(t.buf, b)
		if len(t.buf) > t.opts.MaxCommandBytes {
			return out, t.fail(fmt.Errorf("%w: %s exceeds %d bytes without terminating",
				ErrMalformedCommand, t.mnemonic(), t.opts.MaxCommandBytes))
		}

		if b == t.delim && !t.header && t.mnemonic() == "GF" {
			t.delims++
			if t.delims == 4 {
				if err := t.binaryHeader(); err != nil {
					return out, t.fail(err)
				}
			}
		}
	}

	return out, nil
}

// Flush ends the stream, emitting a trailing command that had no terminator
func (t *Tokenizer) Flush() ([]Command, error) {
	if t.err != nil {
		return nil, t.err
	}
	if !t.inCmd {
		return nil, nil
	}
	return []Command{t.emit()}, nil
}

// Tokenize splits a complete job
func Tokenize(data []byte, opts Options) ([]Command, error) {
	t := NewTokenizer(opts)
	cmds, err := t.Feed(data)
	if err != nil {
		return cmds, err
	}
	rest, err := t.Flush()
	return append(cmds, rest...), err
}

func (t *Tokenizer) fail(err error) error {
	t.err = err
	t.buf = nil
	t.inCmd = false
	return err
}

func (t *Tokenizer) start(prefix byte) {
	t.buf = append(t.buf[:0], prefix)
	t.inCmd = true
	t.delims = 0
	t.header = false
	t.raw = 0
	if prefix == t.format {
		t.kind = Format
	} else {
		t.kind = Control
	}
}

func (t *Tokenizer) mnemonic() string {
	if len(t.buf) < 3 {
		return strings.ToUpper(string(t.buf[1:]))
	}
	return strings.ToUpper(string(t.buf[1:3]))
}

func (t *Tokenizer) isPrefixChange() bool {
	switch t.mnemonic() {
	case "CC", "CT", "CD":
		return true
	}
	return false
}

func (t *Tokenizer) terminates(b byte) bool {
	if b == t.format {
		return true
	}
	if b != t.control {
		return false
	}
	// field data may carry the control prefix literally
	return !(len(t.buf) >= 3 && t.kind == Format && dataMnemonics[t.mnemonic()])
}

// binaryHeader switches to counted raw mode for ^GFB/^GFC payloads
func (t *Tokenizer) binaryHeader() error {
	t.header = true

	params := strings.Split(string(t.buf[3:]), string(t.delim))
	if len(params) < 2 {
		return nil
	}

	encoding := strings.ToUpper(strings.TrimSpace(params[0]))
	if encoding != "B" && encoding != "C" {
		return nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(params[1]))
	if err != nil || n < 0 {
		// leave the payload to the interpreter, which clamps bad counts
		return nil
	}
	if n > t.opts.MaxCommandBytes {
		return fmt.Errorf("%w: binary graphic of %d bytes exceeds %d", ErrMalformedCommand, n, t.opts.MaxCommandBytes)
	}

	t.raw = n
	return nil
}

func (t *Tokenizer) emit() Command {
	cmd := Command{
		Kind:     t.kind,
		Prefix:   t.buf[0],
		Mnemonic: t.mnemonic(),
	}

	if len(t.buf) > 3 {
		cmd.Raw = string(t.buf[3:])
	}
	cmd.Params = splitParams(cmd.Mnemonic, cmd.Raw, t.delim)

	if len(t.buf) == 4 {
		switch cmd.Mnemonic {
		case "CC":
			t.format = t.buf[3]
		case "CT":
			t.control = t.buf[3]
		case "CD":
			t.delim = t.buf[3]
		}
	}

	t.buf = t.buf[:0]
	t.inCmd = false
	t.raw = 0
	return cmd
}
