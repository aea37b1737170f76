package twine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Defaults for [Config]. They are policy choices, not protocol constants:
// the high-water mark matches a typical 64 KiB socket buffer, writers
// resume only once the transport is empty, and lines are limited to
// 16 KiB.
const (
	DefaultHighWater     = 64 << 10
	DefaultLowWater      = 0
	DefaultMaxLineLength = 16 << 10
	DefaultDelimiter     = "\r\n"
)

// Config holds the flow-control and framing limits of connections driven
// by a [Hub].
type Config struct {
	// HighWater is the number of buffered outgoing bytes above which
	// Conn.Write suspends the writing fiber.
	HighWater int `toml:"high_water"`

	// LowWater is the number of buffered outgoing bytes at or below which
	// suspended writers resume.
	LowWater int `toml:"low_water"`

	// MaxLineLength bounds the bytes Conn.ReadLine buffers while looking for
	// a delimiter.
	MaxLineLength int `toml:"max_line_length"`

	// Delimiter separates lines for Conn.ReadLine, Conn.WriteLine and
	// Conn.Lines.
	Delimiter string `toml:"delimiter"`
}

// DefaultConfig returns a [Config] populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		HighWater:     DefaultHighWater,
		LowWater:      DefaultLowWater,
		MaxLineLength: DefaultMaxLineLength,
		Delimiter:     DefaultDelimiter,
	}
}

// Validate reports whether c is usable.
func (c Config) Validate() error {
	var errs []error
	if c.HighWater <= 0 {
		errs = append(errs, fmt.Errorf("high_water must be positive, got %d", c.HighWater))
	}
	if c.LowWater < 0 || c.LowWater > c.HighWater {
		errs = append(errs, fmt.Errorf("low_water must be within [0, high_water], got %d", c.LowWater))
	}
	if c.MaxLineLength <= 0 {
		errs = append(errs, fmt.Errorf("max_line_length must be positive, got %d", c.MaxLineLength))
	}
	if c.Delimiter == "" {
		errs = append(errs, errors.New("delimiter must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("twine: invalid config: %w", err)
	}
	return nil
}

// ParseConfig decodes a TOML document into a [Config]. Keys absent from
// data keep their default values.
func ParseConfig(data []byte) (Config, error) {
	c := DefaultConfig()
	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("twine: parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfig reads and decodes the TOML file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("twine: load config: %w", err)
	}
	return ParseConfig(data)
}

// An Option configures a [Hub].
type Option func(h *Hub)

// WithConfig sets the connection limits used by a [Hub].
// It panics if c is not valid.
func WithConfig(c Config) Option {
	if err := c.Validate(); err != nil {
		panic(err)
	}
	return func(h *Hub) { h.config = c }
}

// WithLogger sets the logger a [Hub] reports unobserved failures to.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
