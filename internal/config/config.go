// Package config holds the printer settings: label geometry, listener address,
// cache location and operational limits. Settings persist as a JSON file and
// can be overridden from a .env file or the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/thereceipt/zpl-printer/internal/labelcache"
	"github.com/thereceipt/zpl-printer/internal/printer"
	"github.com/thereceipt/zpl-printer/internal/zpl"
	"github.com/thereceipt/zpl-printer/pkg/labelformat"
)

// FileName is the settings file name
const FileName = "zpl-printer.json"

// Config is the complete settings document
type Config struct {
	Printer         PrinterConfig `json:"printer"`
	Label           LabelConfig   `json:"label"`
	Cache           CacheConfig   `json:"cache"`
	Limits          LimitsConfig  `json:"limits"`
	API             APIConfig     `json:"api"`
	Redis           RedisConfig   `json:"redis"`
	RefreshInterval Duration      `json:"refresh_interval"`
	Debug           bool          `json:"debug"`
}

type PrinterConfig struct {
	IPAddress string `json:"ip_address"`
	Port      int    `json:"port"`
	AutoStart bool   `json:"auto_start"`
}

type LabelConfig struct {
	Unit   string  `json:"unit"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Dpmm   int     `json:"dpmm"`
}

type CacheConfig struct {
	ImagePath string               `json:"image_path"`
	Index     labelcache.IndexKind `json:"index"`
}

type LimitsConfig struct {
	IdleTimeout     Duration `json:"idle_timeout"`
	RenderSlots     int      `json:"render_slots"`
	SlotWait        Duration `json:"slot_wait"`
	MaxCommandBytes int      `json:"max_command_bytes"`
	MaxJobBytes     int64    `json:"max_job_bytes"`
}

type APIConfig struct {
	Addr    string `json:"addr"`
	Enabled bool   `json:"enabled"`
}

// RedisConfig enables the event bridge when Addr is set
type RedisConfig struct {
	Addr    string `json:"addr"`
	Channel string `json:"channel,omitempty"`
}

// Default returns the settings a fresh install starts with
func Default() Config {
	p := printer.DefaultSettings()
	return Config{
		Printer: PrinterConfig{
			IPAddress: p.Host,
			Port:      p.Port,
			AutoStart: true,
		},
		Label: LabelConfig{
			Unit:   string(labelformat.UnitInch),
			Width:  4,
			Height: 2,
			Dpmm:   int(labelformat.Density8),
		},
		Cache: CacheConfig{
			ImagePath: labelcache.DefaultFolder(),
			Index:     labelcache.IndexJSON,
		},
		Limits: LimitsConfig{
			IdleTimeout:     Duration(p.IdleTimeout),
			RenderSlots:     p.RenderSlots,
			SlotWait:        Duration(p.SlotWait),
			MaxCommandBytes: zpl.DefaultMaxCommandBytes,
			MaxJobBytes:     p.MaxJobBytes,
		},
		API: APIConfig{
			Addr:    "127.0.0.1:12212",
			Enabled: true,
		},
		RefreshInterval: Duration(15 * time.Second),
	}
}

// Format resolves the label section into a LabelFormat
func (c Config) Format() (labelformat.LabelFormat, error) {
	unit, err := labelformat.ParseUnit(c.Label.Unit)
	if err != nil {
		return labelformat.LabelFormat{}, fmt.Errorf("%w: %v", labelformat.ErrInvalidGeometry, err)
	}
	return labelformat.New(unit, c.Label.Width, c.Label.Height, labelformat.Density(c.Label.Dpmm))
}

// PrinterSettings builds the listener snapshot from the configuration
func (c Config) PrinterSettings() (printer.Settings, error) {
	format, err := c.Format()
	if err != nil {
		return printer.Settings{}, err
	}

	s := printer.Settings{
		Host:            c.Printer.IPAddress,
		Port:            c.Printer.Port,
		Format:          format,
		IdleTimeout:     time.Duration(c.Limits.IdleTimeout),
		RenderSlots:     c.Limits.RenderSlots,
		SlotWait:        time.Duration(c.Limits.SlotWait),
		MaxCommandBytes: c.Limits.MaxCommandBytes,
		MaxJobBytes:     c.Limits.MaxJobBytes,
	}
	return s, s.Validate()
}

// Validate checks the whole document
func (c Config) Validate() error {
	if _, err := c.PrinterSettings(); err != nil {
		return err
	}
	switch c.Cache.Index {
	case labelcache.IndexJSON, labelcache.IndexSQLite:
	default:
		return fmt.Errorf("unknown cache index %q (must be json or sqlite)", c.Cache.Index)
	}
	if c.Cache.ImagePath == "" {
		return fmt.Errorf("image path is required")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}
	return nil
}

// Store is the persisted configuration shared by the service and its
// presentation layers
type Store struct {
	filePath string
	data     Config
	mu       sync.RWMutex
}

// Open loads the settings file (missing is fine), then any .env files, then
// the environment. With no envFiles a .env in the working directory is used
// when present.
func Open(filePath string, envFiles ...string) (*Store, error) {
	s := &Store{
		filePath: filePath,
		data:     Default(),
	}

	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := applyEnv(&s.data); err != nil {
		return nil, err
	}

	if err := s.data.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filePath, err)
	}

	return s, nil
}

// Path is the settings file location
func (s *Store) Path() string {
	return s.filePath
}

// Get returns a copy of the current settings
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Update applies fn to a copy, validates and saves it. The stored settings only
// change when all of that succeeds.
func (s *Store) Update(fn func(c *Config) error) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data
	if err := fn(&next); err != nil {
		return s.data, err
	}
	if err := next.Validate(); err != nil {
		return s.data, err
	}
	if err := save(s.filePath, next); err != nil {
		return s.data, fmt.Errorf("failed to save config: %w", err)
	}

	s.data = next
	return next, nil
}

// Save writes the current settings to disk
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return save(s.filePath, s.data)
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &s.data)
}

func save(filePath string, c Config) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(filePath, data, 0644)
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func applyEnv(c *Config) error {
	var err error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" && err == nil {
			f, perr := strconv.ParseFloat(v, 64)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *Duration) {
		if v := os.Getenv(key); v != "" && err == nil {
			d, perr := time.ParseDuration(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			*dst = Duration(d)
		}
	}

	str("PRINTER_HOST", &c.Printer.IPAddress)
	num("PRINTER_PORT", &c.Printer.Port)
	str("LABEL_UNIT", &c.Label.Unit)
	float("LABEL_WIDTH", &c.Label.Width)
	float("LABEL_HEIGHT", &c.Label.Height)
	num("LABEL_DPMM", &c.Label.Dpmm)
	str("IMAGE_PATH", &c.Cache.ImagePath)
	str("API_ADDR", &c.API.Addr)
	str("REDIS_ADDR", &c.Redis.Addr)
	duration("IDLE_TIMEOUT", &c.Limits.IdleTimeout)
	num("RENDER_SLOTS", &c.Limits.RenderSlots)

	if v := os.Getenv("DEBUG"); v != "" && err == nil {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return fmt.Errorf("DEBUG: %w", perr)
		}
		c.Debug = b
	}
	return err
}

// DefaultPath places the settings file next to the executable when that
// directory is writable, otherwise in the user config directory
func DefaultPath() string {
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		testFile := filepath.Join(exeDir, ".zpl-printer-write-test")
		if f, err := os.Create(testFile); err == nil {
			f.Close()
			os.Remove(testFile)
			return filepath.Join(exeDir, FileName)
		}
	}

	var configDir string
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			configDir = filepath.Join(appData, "zpl-printer")
		}
	} else if dir, err := os.UserConfigDir(); err == nil {
		configDir = filepath.Join(dir, "zpl-printer")
	}

	if configDir != "" {
		return filepath.Join(configDir, FileName)
	}
	return FileName
}

// Duration is a time.Duration written as "5s" in JSON. Plain numbers are
// read as seconds.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(value * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}
