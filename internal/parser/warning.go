package parser

import (
	"errors"
	"fmt"
)

// Reasons recorded on warnings; none of them fail a job
var (
	ErrUnknownCommand      = errors.New("unknown command")
	ErrOutsideFormat       = errors.New("command outside format block")
	ErrParameterClamped    = errors.New("parameter out of range")
	ErrDegradedInstruction = errors.New("degraded instruction")
	ErrFormatDiscarded     = errors.New("format discarded")
)

// Warning is a recoverable problem met while interpreting a command
type Warning struct {
	Command string
	Reason  error
	Detail  string
}

func (w Warning) Error() string {
	if w.Detail == "" {
		return fmt.Sprintf("%s: %v", w.Command, w.Reason)
	}
	return fmt.Sprintf("%s: %v: %s", w.Command, w.Reason, w.Detail)
}

func (w Warning) Unwrap() error {
	return w.Reason
}
