// Package zpl splits a raw printer byte stream into discrete commands
package zpl

import (
	"strings"
)

// Kind tells whether a command was introduced by the format or the control prefix
type Kind int

const (
	Format Kind = iota
	Control
)

func (k Kind) String() string {
	if k == Control {
		return "control"
	}
	return "format"
}

// Command is one printer directive: a prefix, a two character mnemonic and its
// parameters. Parameters stay strings; each mnemonic parses its own.
type Command struct {
	Kind     Kind
	Prefix   byte
	Mnemonic string
	Params   []string
	Raw      string
}

func (c Command) String() string {
	return string(c.Prefix) + c.Mnemonic
}

// Param returns parameter i trimmed of surrounding spaces, or "" if absent
func (c Command) Param(i int) string {
	if i < 0 || i >= len(c.Params) {
		return ""
	}
	return strings.TrimSpace(c.Params[i])
}

// Has reports whether parameter i was supplied with a non-empty value
func (c Command) Has(i int) bool {
	return c.Param(i) != ""
}

// mnemonics whose whole remainder is one opaque parameter
var dataMnemonics = map[string]bool{
	"FD": true,
	"FV": true,
	"FX": true,
}

// mnemonics whose trailing parameter may itself contain delimiters
var splitLimits = map[string]int{
	"GF": 5,
	"DG": 4,
	"DY": 6,
}

func splitParams(mnemonic, rest string, delim byte) []string {
	if dataMnemonics[mnemonic] {
		return []string{rest}
	}
	if rest == "" {
		return nil
	}
	if n, ok := splitLimits[mnemonic]; ok {
		return strings.SplitN(rest, string(delim), n)
	}
	return strings.Split(rest, string(delim))
}
