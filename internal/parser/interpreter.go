// Package parser turns a command stream into resolved, position-absolute
// label instructions
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/thereceipt/zpl-printer/internal/zpl"
	"github.com/thereceipt/zpl-printer/pkg/labelformat"
)

const DefaultMaxInstructions = 10000

// Options tune an Interpreter
type Options struct {
	// Density is used for defaults that depend on the print head, such as
	// the QR magnification
	Density labelformat.Density

	// MaxInstructions caps the instructions kept per label
	MaxInstructions int
}

type handler struct {
	fn func(p *Interpreter, cmd zpl.Command)

	// anywhere marks commands that are valid outside a format block
	anywhere bool
}

// Interpreter is the per-connection label state machine. It is not safe for
// concurrent use; each job owns one.
type Interpreter struct {
	opts  Options
	phase Phase
	state State
	fault error

	instructions []Instruction
	warnings     []Warning
	all          []Warning

	// graphics stored with ~DG, scoped to the job
	graphics map[string]*Bitmap
}

// New creates an interpreter in the Idle phase
func New(opts Options) *Interpreter {
	if !opts.Density.Valid() {
		opts.Density = labelformat.Density8
	}
	if opts.MaxInstructions <= 0 {
		opts.MaxInstructions = DefaultMaxInstructions
	}
	return &Interpreter{
		opts:     opts,
		state:    DefaultState(),
		graphics: make(map[string]*Bitmap),
	}
}

// Phase returns the current state machine position
func (p *Interpreter) Phase() Phase {
	return p.phase
}

// State returns a copy of the accumulated format state
func (p *Interpreter) State() State {
	return p.state
}

// Warnings returns every warning recorded since the interpreter was created
func (p *Interpreter) Warnings() []Warning {
	return p.all
}

// Err returns the error that faulted the interpreter, if any
func (p *Interpreter) Err() error {
	return p.fault
}

// Fault moves the interpreter into the terminal Faulted phase. Used when the
// command stream itself is broken.
func (p *Interpreter) Fault(err error) {
	p.phase = Faulted
	p.fault = err
	p.instructions = nil
}

// Apply consumes one command. It returns a completed label when the command
// closes a format, nil otherwise.
func (p *Interpreter) Apply(cmd zpl.Command) *Label {
	if p.phase == Faulted {
		return nil
	}

	h, ok := lookup(cmd)
	if !ok {
		p.warn(cmd, ErrUnknownCommand, "")
		return nil
	}

	if p.phase != InFormat && !h.anywhere {
		p.warn(cmd, ErrOutsideFormat, "")
		return nil
	}

	if cmd.Kind == zpl.Format && cmd.Mnemonic == "XZ" {
		return p.endFormat()
	}

	h.fn(p, cmd)
	return nil
}

// Finish ends the stream. An unterminated format is discarded.
func (p *Interpreter) Finish() {
	if p.phase != InFormat {
		return
	}
	p.warn(zpl.Command{Kind: zpl.Format, Prefix: '^', Mnemonic: "XZ"}, ErrFormatDiscarded,
		fmt.Sprintf("stream ended inside a format, %d instructions dropped", len(p.instructions)))
	p.reset()
	p.phase = Idle
}

// Execute runs a whole command list through a fresh interpreter
func Execute(cmds []zpl.Command, opts Options) ([]*Label, []Warning) {
	p := New(opts)
	var labels []*Label
	for _, cmd := range cmds {
		if label := p.Apply(cmd); label != nil {
			labels = append(labels, label)
		}
	}
	p.Finish()
	return labels, p.Warnings()
}

func (p *Interpreter) startFormat(cmd zpl.Command) {
	if p.phase == InFormat {
		p.warn(cmd, ErrFormatDiscarded,
			fmt.Sprintf("format restarted, %d instructions dropped", len(p.instructions)))
	}
	p.reset()
	p.phase = InFormat
}

func (p *Interpreter) endFormat() *Label {
	p.flushField()

	label := &Label{
		Instructions: p.instructions,
		PrintWidth:   p.state.PrintWidth,
		LabelLength:  p.state.LabelLength,
		Inverted:     p.state.Inverted,
		Quantity:     p.state.Quantity,
		Warnings:     p.warnings,
	}

	p.reset()
	p.phase = Idle
	return label
}

func (p *Interpreter) reset() {
	p.state = DefaultState()
	p.instructions = nil
	p.warnings = nil
}

func (p *Interpreter) warn(cmd zpl.Command, reason error, detail string) {
	w := Warning{Command: cmd.String(), Reason: reason, Detail: detail}
	if p.phase == InFormat {
		p.warnings = append(p.warnings, w)
	}
	p.all = append(p.all, w)
}

func (p *Interpreter) emit(in Instruction) {
	if len(p.instructions) >= p.opts.MaxInstructions {
		p.warn(zpl.Command{Kind: zpl.Format, Prefix: '^', Mnemonic: "FS"}, ErrParameterClamped,
			fmt.Sprintf("more than %d instructions, dropping %s", p.opts.MaxInstructions, in.Kind))
		return
	}
	if p.state.LabelReverse {
		in.Reverse = true
	}
	p.instructions = append(p.instructions, in)
}

// intParam parses parameter i, falling back to def when absent and clamping
// into [lo, hi] with a warning
func (p *Interpreter) intParam(cmd zpl.Command, i, def, lo, hi int) int {
	s := cmd.Param(i)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			p.warn(cmd, ErrParameterClamped, fmt.Sprintf("parameter %d %q is not a number", i+1, s))
			return def
		}
		v = int(f)
	}
	if v < lo {
		p.warn(cmd, ErrParameterClamped, fmt.Sprintf("parameter %d raised from %d to %d", i+1, v, lo))
		return lo
	}
	if v > hi {
		p.warn(cmd, ErrParameterClamped, fmt.Sprintf("parameter %d lowered from %d to %d", i+1, v, hi))
		return hi
	}
	return v
}

func (p *Interpreter) floatParam(cmd zpl.Command, i int, def, lo, hi float64) float64 {
	s := cmd.Param(i)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		p.warn(cmd, ErrParameterClamped, fmt.Sprintf("parameter %d %q is not a number", i+1, s))
		return def
	}
	if v < lo || v > hi {
		c := min(max(v, lo), hi)
		p.warn(cmd, ErrParameterClamped, fmt.Sprintf("parameter %d clamped from %g to %g", i+1, v, c))
		return c
	}
	return v
}

// boolParam reads a Y/N flag
func boolParam(cmd zpl.Command, i int, def bool) bool {
	switch strings.ToUpper(cmd.Param(i)) {
	case "Y":
		return true
	case "N":
		return false
	}
	return def
}

func (p *Interpreter) rotationParam(cmd zpl.Command, i int, def Rotation) Rotation {
	s := cmd.Param(i)
	if s == "" {
		return def
	}
	r, ok := ParseRotation(s)
	if !ok {
		p.warn(cmd, ErrParameterClamped, fmt.Sprintf("orientation %q, using %s", s, def))
		return def
	}
	return r
}
