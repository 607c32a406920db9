// Package config handles loading and managing regcat configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration read from TOML strings such as "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DataConfig holds catalog database configuration.
type DataConfig struct {
	DatabasePath string `toml:"database_path"`
}

// ServerConfig holds query server configuration.
type ServerConfig struct {
	Port          int      `toml:"port"`
	BindAddr      string   `toml:"bind_addr"`      // empty means all interfaces
	Delay         Duration `toml:"delay"`          // CPU time burned per request
	MaxConcurrent int64    `toml:"max_concurrent"` // handlers doing work at once
	RateLimitQPS  float64  `toml:"rate_limit_qps"` // 0 disables
	ReadTimeout   Duration `toml:"read_timeout"`
	StatusPort    int      `toml:"status_port"` // HTTP status endpoint; 0 disables
}

// ClientConfig holds settings for the search, detail, and tui commands.
type ClientConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	DialTimeout    Duration `toml:"dial_timeout"`
	ReadTimeout    Duration `toml:"read_timeout"`
	RequestTimeout Duration `toml:"request_timeout"` // 0 means no overall deadline
	PollInterval   Duration `toml:"poll_interval"`
}

// Config represents the regcat configuration.
type Config struct {
	Data   DataConfig   `toml:"data"`
	Server ServerConfig `toml:"server"`
	Client ClientConfig `toml:"client"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// DefaultHome returns the default regcat home directory.
// Respects REGCAT_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("REGCAT_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".regcat"
	}
	return filepath.Join(home, ".regcat")
}

// NewDefault returns the configuration used when no file is present.
func NewDefault(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Data: DataConfig{
			DatabasePath: filepath.Join(homeDir, "reg.sqlite"),
		},
		Server: ServerConfig{
			Port:          5500,
			MaxConcurrent: 64,
			ReadTimeout:   Duration{10 * time.Second},
		},
		Client: ClientConfig{
			Host:         "localhost",
			Port:         5500,
			DialTimeout:  Duration{5 * time.Second},
			ReadTimeout:  Duration{30 * time.Second},
			PollInterval: Duration{100 * time.Millisecond},
		},
	}
}

// Load reads the configuration from the specified file.
// If homeDir is empty, DefaultHome is used. If path is empty, uses
// config.toml under the home directory; a missing default file is not an
// error, but a missing explicit path is.
func Load(path, homeDir string) (*Config, error) {
	if homeDir == "" {
		homeDir = DefaultHome()
	}
	homeDir = expandPath(homeDir)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := NewDefault(homeDir)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if explicit {
			return nil, fmt.Errorf("config file %s not found", path)
		}
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode config: unknown key %q", undecoded[0].String())
	}

	cfg.Data.DatabasePath = expandPath(cfg.Data.DatabasePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := validPort("server.port", c.Server.Port); err != nil {
		return err
	}
	if err := validPort("client.port", c.Client.Port); err != nil {
		return err
	}
	if c.Server.StatusPort != 0 {
		if err := validPort("server.status_port", c.Server.StatusPort); err != nil {
			return err
		}
	}
	if c.Server.Delay.Duration < 0 {
		return fmt.Errorf("server.delay must not be negative")
	}
	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("server.max_concurrent must be at least 1")
	}
	if c.Server.RateLimitQPS < 0 {
		return fmt.Errorf("server.rate_limit_qps must not be negative")
	}
	if c.Client.Host == "" {
		return fmt.Errorf("client.host must not be empty")
	}
	if c.Client.PollInterval.Duration <= 0 {
		return fmt.Errorf("client.poll_interval must be positive")
	}
	return nil
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s %d out of range 1-65535", name, port)
	}
	return nil
}

// ListenAddr returns the query server listen address.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.BindAddr, strconv.Itoa(c.Server.Port))
}

// StatusAddr returns the status endpoint listen address, or "" when disabled.
func (c *Config) StatusAddr() string {
	if c.Server.StatusPort == 0 {
		return ""
	}
	return net.JoinHostPort(c.Server.BindAddr, strconv.Itoa(c.Server.StatusPort))
}

// ServerAddr returns the address clients connect to.
func (c *Config) ServerAddr() string {
	return net.JoinHostPort(c.Client.Host, strconv.Itoa(c.Client.Port))
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
