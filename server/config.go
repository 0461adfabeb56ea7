package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/arloliu/go-rhal/logger"
	"github.com/arloliu/go-rhal/rhal"
)

const (
	// DefaultHost is the address the server binds to when no host is given.
	DefaultHost = "0.0.0.0"
	// DefaultPort is the TCP port of the rhal service.
	DefaultPort = 10004
)

// Config represents the configuration of a rhal server.
type Config struct {
	// host specifies the local address to listen on.
	host string

	// port specifies the TCP port number to listen on. Port 0 picks an ephemeral port.
	port int

	// maxInflight bounds the number of requests of one connection that are handled concurrently.
	// Requests beyond the bound wait before being read from the connection.
	// Defaults to 16.
	maxInflight int

	// senderQueueSize defines the size of the per-connection queue of responses waiting to be written.
	// Defaults to 10.
	senderQueueSize int

	// writeTimeout bounds the write of one response frame.
	// Defaults to 5 seconds.
	writeTimeout time.Duration

	// releaseOnDisconnect makes the server release every binding created by a connection
	// when that connection ends. When false, bindings persist until an explicit disconnect.
	// Defaults to false.
	releaseOnDisconnect bool

	// logger is used for connection and dispatch events.
	logger logger.Logger
}

// NewConfig creates a server configuration with the given listen host and port, then applies opts.
//
// An empty host means DefaultHost.
func NewConfig(host string, port int, opts ...Option) (*Config, error) {
	cfg := &Config{
		host:            DefaultHost,
		port:            DefaultPort,
		maxInflight:     16,
		senderQueueSize: 10,
		writeTimeout:    5 * time.Second,
		logger:          logger.GetLogger(),
	}

	if err := withHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := withPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Addr returns the listen address in host:port form.
func (cfg *Config) Addr() string {
	return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
}

func (cfg *Config) MaxInflight() int { return cfg.maxInflight }

func (cfg *Config) SenderQueueSize() int { return cfg.senderQueueSize }

func (cfg *Config) WriteTimeout() time.Duration { return cfg.writeTimeout }

func (cfg *Config) ReleaseOnDisconnect() bool { return cfg.releaseOnDisconnect }

func (cfg *Config) Logger() logger.Logger { return cfg.logger }

// Option configures a Config.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error {
	if cfg == nil {
		return rhal.ErrConfigNil
	}
	if err := o.applyFunc(cfg); err != nil {
		return fmt.Errorf("%s: %w", o.name, err)
	}
	return nil
}

func newOptFunc(name string, f func(*Config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

func withHost(host string) Option {
	return newOptFunc("withHost", func(cfg *Config) error {
		if host == "" {
			cfg.host = DefaultHost
			return nil
		}
		if ip := net.ParseIP(host); ip == nil && host != "localhost" {
			return fmt.Errorf("invalid listen address %q", host)
		}
		cfg.host = host

		return nil
	})
}

func withPort(port int) Option {
	return newOptFunc("withPort", func(cfg *Config) error {
		if port < 0 || port > 65535 {
			return errors.New("port is out of range [0, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithLogger sets the logger of the server. A nil logger is rejected.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithMaxInflight sets how many requests of one connection are handled concurrently.
// It should be between 1 and 1024.
func WithMaxInflight(n int) Option {
	return newOptFunc("WithMaxInflight", func(cfg *Config) error {
		if n < 1 || n > 1024 {
			return errors.New("max inflight is out of range [1, 1024]")
		}
		cfg.maxInflight = n

		return nil
	})
}

// WithSenderQueueSize sets the size of the per-connection response queue.
// It should be between 1 and 1000.
func WithSenderQueueSize(size int) Option {
	return newOptFunc("WithSenderQueueSize", func(cfg *Config) error {
		if size < 1 || size > 1000 {
			return errors.New("sender queue size is out of range [1, 1000]")
		}
		cfg.senderQueueSize = size

		return nil
	})
}

// WithWriteTimeout sets the timeout of writing one response frame.
// It should be between 100 milliseconds and 60 seconds.
func WithWriteTimeout(d time.Duration) Option {
	return newOptFunc("WithWriteTimeout", func(cfg *Config) error {
		if d < 100*time.Millisecond || d > 60*time.Second {
			return errors.New("write timeout is out of range [100ms, 60s]")
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithReleaseOnDisconnect enables or disables releasing the bindings of a connection when it ends.
func WithReleaseOnDisconnect(val bool) Option {
	return newOptFunc("WithReleaseOnDisconnect", func(cfg *Config) error {
		cfg.releaseOnDisconnect = val
		return nil
	})
}
