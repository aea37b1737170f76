package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/b97tsk/twine"
	"github.com/pelletier/go-toml/v2"
)

// File is the service file of twined.
type File struct {
	// LogLevel is used unless the -log-level flag is given.
	LogLevel string `toml:"log_level"`

	// GracePeriod bounds how long open connections may keep running once
	// shutdown starts.
	GracePeriod Duration `toml:"grace_period"`

	// Probe makes twined connect to its own echo service at startup and
	// report whether the reply matched.
	Probe bool `toml:"probe"`

	// ProbeTimeout bounds how long the probe waits for the echo.
	ProbeTimeout Duration `toml:"probe_timeout"`

	Hub      twine.Config `toml:"hub"`
	Services []Service    `toml:"service"`
}

// Service configures one listening service.
type Service struct {
	Kind    string `toml:"kind"`
	Address string `toml:"address"`

	// MaxConnections bounds the connections served at once; extra ones
	// wait for a slot. Zero means no limit.
	MaxConnections int64 `toml:"max_connections"`

	// IdleTimeout closes connections that send nothing for that long.
	IdleTimeout Duration `toml:"idle_timeout"`

	Quotes []string `toml:"quotes"` // qotd
	Layout string   `toml:"layout"` // daytime
}

// Duration is a time.Duration written as a string like "1m30s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses text with [time.ParseDuration].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats d with [time.Duration.String].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func defaultFile() *File {
	return &File{
		LogLevel:     "info",
		GracePeriod:  Duration{5 * time.Second},
		ProbeTimeout: Duration{5 * time.Second},
		Hub:          twine.DefaultConfig(),
		Services: []Service{
			{Kind: "discard", Address: "127.0.0.1:1025"},
			{Kind: "qotd", Address: "127.0.0.1:1026"},
			{Kind: "echo", Address: "127.0.0.1:1027"},
			{Kind: "chargen", Address: "127.0.0.1:1028"},
			{Kind: "daytime", Address: "127.0.0.1:1029"},
			{Kind: "chat", Address: "127.0.0.1:1031"},
		},
	}
}

func parseFile(data []byte) (*File, error) {
	f := defaultFile()
	f.Services = nil

	if err := toml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse service file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func loadFile(path string) (*File, error) {
	if path == "" {
		return defaultFile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load service file: %w", err)
	}
	return parseFile(data)
}

func (f *File) validate() error {
	var errs []error

	if err := f.Hub.Validate(); err != nil {
		errs = append(errs, err)
	}
	if f.GracePeriod.Duration < 0 {
		errs = append(errs, fmt.Errorf("grace_period must not be negative, got %v", f.GracePeriod))
	}
	if f.ProbeTimeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("probe_timeout must be positive, got %v", f.ProbeTimeout))
	}
	if len(f.Services) == 0 {
		errs = append(errs, errors.New("no service configured"))
	}

	var addrs []string

	for i, s := range f.Services {
		if _, ok := handlers[s.Kind]; !ok {
			errs = append(errs, fmt.Errorf("service %d: unknown kind %q", i, s.Kind))
		}
		if s.Address == "" {
			errs = append(errs, fmt.Errorf("service %d: address is required", i))
		} else if slices.Contains(addrs, s.Address) {
			errs = append(errs, fmt.Errorf("service %d: address %s used twice", i, s.Address))
		}
		addrs = append(addrs, s.Address)
		if s.MaxConnections < 0 {
			errs = append(errs, fmt.Errorf("service %d: max_connections must not be negative", i))
		}
		if s.IdleTimeout.Duration < 0 {
			errs = append(errs, fmt.Errorf("service %d: idle_timeout must not be negative", i))
		}
	}

	return errors.Join(errs...)
}

// echoAddress returns the address of the first echo service, if any.
func (f *File) echoAddress() (string, bool) {
	for _, s := range f.Services {
		if s.Kind == "echo" {
			return s.Address, true
		}
	}
	return "", false
}
