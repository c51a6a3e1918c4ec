// Package config loads dmxpctl/dmxpd settings from a TOML file: a plain
// struct with toml tags, an env var override for the region path, and
// os.ReadFile + toml.Unmarshal with no further magic.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config is the on-disk configuration for dmxpctl and dmxpd.
type Config struct {
	// RegionPath is the filesystem path to the shared-memory region
	// file. Overridden at runtime by the DMXP_SHM_PATH env var.
	RegionPath string `toml:"region_path"`

	// DefaultTimeout is used by dmxpctl recv when --timeout is omitted.
	DefaultTimeout time.Duration `toml:"default_timeout"`

	// Diagnostics configures the optional HTTP diagnostics server.
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`

	// Control configures the Unix-socket control daemon.
	Control ControlConfig `toml:"control"`

	// Log controls structured logging output.
	Log LogConfig `toml:"log"`
}

// DiagnosticsConfig configures internal/diag's HTTP server.
type DiagnosticsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// ControlConfig configures internal/ctl's daemon/client.
type ControlConfig struct {
	SocketPath string `toml:"socket_path"`
}

// LogConfig configures internal/logx.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Default returns the built-in defaults, used when no config file is
// present.
func Default() Config {
	return Config{
		RegionPath:     "/dev/shm/dmxp_alloc",
		DefaultTimeout: 0,
		Diagnostics:    DiagnosticsConfig{Enabled: false, Listen: "127.0.0.1:9470"},
		Control:        ControlConfig{SocketPath: "/tmp/dmxpd.sock"},
		Log:            LogConfig{Level: "info", Pretty: false},
	}
}

// Load reads and decodes a TOML config file, overlaying it onto
// Default(). A missing file is not an error: callers that want to
// require one should check os.Stat themselves first.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadEnv applies .env overrides (via godotenv) on top of cfg. envFile
// may be empty, in which case only already-exported environment
// variables are consulted.
func LoadEnv(cfg Config, envFile string) Config {
	if envFile != "" {
		_ = godotenv.Load(envFile) // best-effort
	}
	if p := os.Getenv("DMXP_SHM_PATH"); p != "" {
		cfg.RegionPath = p
	}
	if s := os.Getenv("DMXP_CTL_SOCKET"); s != "" {
		cfg.Control.SocketPath = s
	}
	return cfg
}
