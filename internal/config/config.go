// Package config provides configuration management for transitiond.
// Values start from built-in defaults, are overlaid by an optional YAML file
// and finally by TRANSITIOND_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// Default values
	DefaultPort      = 8787
	DefaultLogLevel  = "info"
	DefaultDataDir   = ".transitiond"
	DefaultFrameRate = 25.0

	// Environment variable names
	EnvPrefix     = "TRANSITIOND_"
	EnvConfigFile = "TRANSITIOND_CONFIG"
	EnvPort       = "TRANSITIOND_PORT"
	EnvLogLevel   = "TRANSITIOND_LOG_LEVEL"
	EnvDataDir    = "TRANSITIOND_DATA_DIR"
	EnvHeadless   = "TRANSITIOND_HEADLESS"
	EnvFrameRate  = "TRANSITIOND_FPS"

	// Database filename
	DBFilename = "timeline.db"
	// Lock file guarding the data directory against a second instance
	LockFilename = "transitiond.lock"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	LockPath() string
	Headless() bool
	FrameRate() float64
}

type values struct {
	Port      int     `koanf:"port"`
	LogLevel  string  `koanf:"log_level"`
	DataDir   string  `koanf:"data_dir"`
	Headless  bool    `koanf:"headless"`
	FrameRate float64 `koanf:"fps"`
}

// FileConfig is a Config loaded from defaults, a YAML file and the environment.
type FileConfig struct {
	v values
}

// New loads configuration using the file named by TRANSITIOND_CONFIG, if any.
func New() (*FileConfig, error) {
	return Load(os.Getenv(EnvConfigFile))
}

// Load reads the YAML file at path (a missing file is not an error) and then
// applies environment overrides.
func Load(path string) (*FileConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg := &FileConfig{v: values{
		Port:      DefaultPort,
		LogLevel:  DefaultLogLevel,
		DataDir:   defaultDataDir(),
		FrameRate: DefaultFrameRate,
	}}
	if err := k.Unmarshal("", &cfg.v); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.v.Port < 1 || cfg.v.Port > 65535 {
		return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
	}
	if cfg.v.FrameRate <= 0 {
		return nil, fmt.Errorf("invalid %s: frame rate must be positive", EnvFrameRate)
	}
	if cfg.v.DataDir == "" {
		cfg.v.DataDir = defaultDataDir()
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *FileConfig) Port() int {
	return c.v.Port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *FileConfig) LogLevel() string {
	return c.v.LogLevel
}

// DataDir returns the data directory path
func (c *FileConfig) DataDir() string {
	return c.v.DataDir
}

// DBPath returns the full path to the SQLite database file
func (c *FileConfig) DBPath() string {
	return filepath.Join(c.v.DataDir, DBFilename)
}

func (c *FileConfig) LockPath() string {
	return filepath.Join(c.v.DataDir, LockFilename)
}

// Headless disables the system tray.
func (c *FileConfig) Headless() bool {
	return c.v.Headless
}

// FrameRate is the project frame rate used for timecode export.
func (c *FileConfig) FrameRate() float64 {
	return c.v.FrameRate
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
