package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "~/.config/pixelpick/config.json"

	DefaultPort   = 8787
	MinPort       = 1024
	MaxPort       = 65535
	DefaultPollMs = 100
	MinPollMs     = 50
)

// Config holds user-editable settings for the picker.
type Config struct {
	Picker  Picker  `json:"picker" yaml:"picker"`
	Server  Server  `json:"server" yaml:"server"`
	Logging Logging `json:"logging" yaml:"logging"`
	Journal Journal `json:"journal" yaml:"journal"`
}

// Picker configures the template, calibration and sampling cadence.
type Picker struct {
	TemplatePath  string `json:"template_path" yaml:"template_path"`
	Origin        string `json:"origin" yaml:"origin"`                 // tileX,tileY,pxX,pyY
	PollMs        int    `json:"poll_ms" yaml:"poll_ms"`               // sampling interval, floor 50
	TileUnit      int    `json:"tile_unit" yaml:"tile_unit"`           // 0 derives the unit from each sample
	WatchTemplate bool   `json:"watch_template" yaml:"watch_template"` // reload template on change
}

// Server configures the ingress listeners.
type Server struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	GRPCPort int    `json:"grpc_port" yaml:"grpc_port"` // 0 disables gRPC
}

// Logging controls logging verbosity and destinations.
type Logging struct {
	Level      string `json:"level" yaml:"level"`             // debug, info, warn, error
	Format     string `json:"format" yaml:"format"`           // text, json
	FileOutput bool   `json:"file_output" yaml:"file_output"` // Enable file logging
	LogDir     string `json:"log_dir" yaml:"log_dir"`         // Directory for log files
}

// Journal configures the optional sqlite event journal.
type Journal struct {
	Path string `json:"path" yaml:"path"` // empty disables the journal
}

// Path returns the config file location, honouring PIXELPICK_CONFIG.
func Path() string {
	if p := os.Getenv("PIXELPICK_CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}

// Load reads configuration from disk, falling back to sensible defaults.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the config at path. JSON is assumed unless the extension is
// .yaml or .yml. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := defaultConfig()

	expanded, err := expandUser(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(expanded)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", expanded, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Picker: Picker{
			PollMs: DefaultPollMs,
		},
		Server: Server{
			Host: "localhost",
			Port: DefaultPort,
		},
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			FileOutput: false,
			LogDir:     "./logs",
		},
	}
}

// Validate clamps values to their supported ranges.
func (c *Config) Validate() error {
	c.Server.Port = ClampPort(c.Server.Port)
	if c.Server.GRPCPort != 0 {
		c.Server.GRPCPort = ClampPort(c.Server.GRPCPort)
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	c.Picker.PollMs = ClampPollMs(c.Picker.PollMs)
	if c.Picker.TileUnit < 0 {
		return fmt.Errorf("tile_unit must be >= 0, got %d", c.Picker.TileUnit)
	}
	return nil
}

// ClampPort bounds a listen port to MinPort..MaxPort; zero means the default.
func ClampPort(port int) int {
	switch {
	case port == 0:
		return DefaultPort
	case port < MinPort:
		return MinPort
	case port > MaxPort:
		return MaxPort
	}
	return port
}

// ClampPollMs enforces the sampling floor; zero or negative means the default.
func ClampPollMs(ms int) int {
	if ms <= 0 {
		return DefaultPollMs
	}
	if ms < MinPollMs {
		return MinPollMs
	}
	return ms
}

// PollInterval returns the sampling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(ClampPollMs(c.Picker.PollMs)) * time.Millisecond
}

// ListenAddr returns host:port for the HTTP ingress.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GRPCAddr returns host:port for the gRPC listener, or "" when disabled.
func (c *Config) GRPCAddr() string {
	if c.Server.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}
