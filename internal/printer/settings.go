package printer

import (
	"fmt"
	"net"
	"runtime"
	"strconv"
	"time"

	"github.com/thereceipt/zpl-printer/internal/zpl"
	"github.com/thereceipt/zpl-printer/pkg/labelformat"
)

// DefaultPort is the raw printing port network label printers listen on
const DefaultPort = 9100

// Settings is the read-only configuration snapshot a Job runs with
type Settings struct {
	Host            string
	Port            int
	Format          labelformat.LabelFormat
	IdleTimeout     time.Duration
	RenderSlots     int
	SlotWait        time.Duration
	MaxCommandBytes int
	MaxJobBytes     int64
}

// DefaultSettings is a 4x2 inch label at 8 dpmm on port 9100
func DefaultSettings() Settings {
	format, _ := labelformat.New(labelformat.UnitInch, 4, 2, labelformat.Density8)
	return Settings{
		Host:            "0.0.0.0",
		Port:            DefaultPort,
		Format:          format,
		IdleTimeout:     5 * time.Second,
		RenderSlots:     runtime.NumCPU(),
		SlotWait:        30 * time.Second,
		MaxCommandBytes: zpl.DefaultMaxCommandBytes,
		MaxJobBytes:     64 << 20,
	}
}

// Address is the host:port the listener binds
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Validate checks everything a job needs before any byte is read
func (s Settings) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	if s.Host != "" && net.ParseIP(s.Host) == nil && s.Host != "localhost" {
		return fmt.Errorf("invalid ip address %q", s.Host)
	}
	if s.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if s.RenderSlots < 1 {
		return fmt.Errorf("render slots must be at least 1")
	}
	if s.SlotWait <= 0 {
		return fmt.Errorf("slot wait must be positive")
	}
	if s.MaxJobBytes <= 0 {
		return fmt.Errorf("max job bytes must be positive")
	}
	return labelformat.Validate(s.Format)
}
