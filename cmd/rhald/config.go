package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-rhal/logger"
)

const (
	driverLinux = "linux"
	driverSim   = "sim"
)

// daemonConfig holds the daemon settings.
//
// Precedence, lowest first: built-in defaults, RHAL_* environment variables,
// the config file, flags given on the command line.
type daemonConfig struct {
	Bind                string `yaml:"bind"`
	Driver              string `yaml:"driver"`
	LogLevel            string `yaml:"log_level"`
	MetricsAddr         string `yaml:"metrics_addr"`
	ReleaseOnDisconnect bool   `yaml:"release_on_disconnect"`
	MaxInflight         int    `yaml:"max_inflight"`

	configPath string
}

func defaultConfig(getenv func(string) string) daemonConfig {
	return daemonConfig{
		Bind:                envString(getenv, "RHAL_BIND", "0.0.0.0:10004"),
		Driver:              envString(getenv, "RHAL_DRIVER", driverLinux),
		LogLevel:            envString(getenv, "RHAL_LOG_LEVEL", "info"),
		MetricsAddr:         envString(getenv, "RHAL_METRICS_ADDR", ""),
		ReleaseOnDisconnect: envBool(getenv, "RHAL_RELEASE_ON_DISCONNECT", false),
		MaxInflight:         envInt(getenv, "RHAL_MAX_INFLIGHT", 16),
		configPath:          envString(getenv, "RHAL_CONFIG", ""),
	}
}

// parseConfig parses args, without the program name, into a validated config.
func parseConfig(args []string, getenv func(string) string, output io.Writer) (*daemonConfig, error) {
	cfg := defaultConfig(getenv)

	fs := flag.NewFlagSet("rhald", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.configPath, "config", cfg.configPath, "Path to a YAML config file (env: RHAL_CONFIG)")
	fs.StringVar(&cfg.Bind, "bind", cfg.Bind, "Address the server listens on (env: RHAL_BIND)")
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "Peripheral drivers: linux or sim (env: RHAL_DRIVER)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error (env: RHAL_LOG_LEVEL)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Address to serve Prometheus metrics on, empty to disable (env: RHAL_METRICS_ADDR)")
	fs.BoolVar(&cfg.ReleaseOnDisconnect, "release-on-disconnect", cfg.ReleaseOnDisconnect,
		"Release the devices bound by a connection when it closes (env: RHAL_RELEASE_ON_DISCONNECT)")
	fs.IntVar(&cfg.MaxInflight, "max-inflight", cfg.MaxInflight, "Requests handled concurrently per connection (env: RHAL_MAX_INFLIGHT)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if cfg.configPath != "" {
		explicit := cfg
		if err := cfg.loadFile(cfg.configPath); err != nil {
			return nil, err
		}
		// flags on the command line win over the file
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind":
				cfg.Bind = explicit.Bind
			case "driver":
				cfg.Driver = explicit.Driver
			case "log-level":
				cfg.LogLevel = explicit.LogLevel
			case "metrics-addr":
				cfg.MetricsAddr = explicit.MetricsAddr
			case "release-on-disconnect":
				cfg.ReleaseOnDisconnect = explicit.ReleaseOnDisconnect
			case "max-inflight":
				cfg.MaxInflight = explicit.MaxInflight
			}
		})
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadFile overlays the keys present in the YAML file at path.
func (cfg *daemonConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}

func (cfg *daemonConfig) validate() error {
	if _, _, err := splitBind(cfg.Bind); err != nil {
		return err
	}

	if cfg.Driver != driverLinux && cfg.Driver != driverSim {
		return fmt.Errorf("invalid driver %q, want %s or %s", cfg.Driver, driverLinux, driverSim)
	}

	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("invalid metrics address %q: %w", cfg.MetricsAddr, err)
		}
	}

	return nil
}

func splitBind(bind string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(bind)
	if err != nil {
		return "", 0, fmt.Errorf("invalid bind address %q: %w", bind, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid bind port %q: %w", portStr, err)
	}

	return host, port, nil
}

func envString(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(getenv func(string) string, key string, def bool) bool {
	if v := getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envInt(getenv func(string) string, key string, def int) int {
	if v := getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
