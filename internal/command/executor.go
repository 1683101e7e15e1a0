// Package command provides the operator console shared by the HTTP API and
// the terminal UI
package command

import (
	"fmt"
	"strings"

	"github.com/thereceipt/zpl-printer/internal/config"
	"github.com/thereceipt/zpl-printer/internal/labelcache"
	"github.com/thereceipt/zpl-printer/internal/notify"
	"github.com/thereceipt/zpl-printer/internal/printer"
)

// Executor executes commands
type Executor struct {
	server   *printer.Server
	cache    *labelcache.Cache
	config   *config.Store
	notifier printer.Notifier
}

// NewExecutor creates a new command executor
func NewExecutor(server *printer.Server, cache *labelcache.Cache, store *config.Store, notifier printer.Notifier) *Executor {
	if notifier == nil {
		notifier = notify.NewHub(nil)
	}
	return &Executor{
		server:   server,
		cache:    cache,
		config:   store,
		notifier: notifier,
	}
}

// Result represents the result of executing a command
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func failure(format string, args ...interface{}) *Result {
	return &Result{
		Success: false,
		Error:   fmt.Sprintf(format, args...),
	}
}

// Execute executes a command string and returns a result
func (e *Executor) Execute(cmdStr string) *Result {
	parts := parseCommand(cmdStr)
	if len(parts) == 0 {
		return failure("empty command")
	}

	command := parts[0]
	args := parts[1:]

	switch command {
	case "status":
		return e.handleStatus(args)
	case "printer":
		return e.handlePrinter(args)
	case "job":
		return e.handleJob(args)
	case "label":
		return e.handleLabel(args)
	case "settings":
		return e.handleSettings(args)
	case "render":
		return e.handleRender(args)
	case "help":
		return e.handleHelp(args)
	default:
		return failure("unknown command: %s. Type 'help' for available commands", command)
	}
}

// UpdateSettings persists a settings change and applies it to the listener.
// A changed port or address rebinds the listener; running jobs are untouched.
func (e *Executor) UpdateSettings(fn func(c *config.Config) error) (config.Config, error) {
	var settings printer.Settings
	c, err := e.config.Update(func(c *config.Config) error {
		if err := fn(c); err != nil {
			return err
		}
		s, err := c.PrinterSettings()
		if err != nil {
			return err
		}
		settings = s
		return nil
	})
	if err != nil {
		return c, err
	}

	return c, e.server.Reconfigure(settings)
}

// parseCommand parses a command string into parts, handling quoted strings
func parseCommand(cmdStr string) []string {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return []string{}
	}

	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := byte(0)

	for i := 0; i < len(cmdStr); i++ {
		char := cmdStr[i]

		if char == '"' || char == '\'' {
			if !inQuotes {
				inQuotes = true
				quoteChar = char
			} else if char == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else {
				current.WriteByte(char)
			}
		} else if (char == ' ' || char == '\t') && !inQuotes {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		} else {
			current.WriteByte(char)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
