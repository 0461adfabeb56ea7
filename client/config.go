package client

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-rhal/logger"
	"github.com/arloliu/go-rhal/rhal"
)

const (
	// DefaultHost is the server host used when no host is given.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the TCP port of the rhal service.
	DefaultPort = 10004
)

// Config represents the configuration of a rhal client connection.
type Config struct {
	// host specifies the host of the rhal server.
	host string

	// port specifies the TCP port number of the rhal server.
	port int

	// requestTimeout bounds the wait of one request for its response. It should be between
	// 10 milliseconds and 120 seconds.
	// Defaults to 3 seconds.
	requestTimeout time.Duration

	// connectTimeout bounds establishing the TCP connection. It should be between 100 milliseconds and 30 seconds.
	// Defaults to 3 seconds.
	connectTimeout time.Duration

	// writeTimeout bounds the write of one request frame.
	// Defaults to 5 seconds.
	writeTimeout time.Duration

	// senderQueueSize defines the size of the queue of requests waiting to be written.
	// Defaults to 10.
	senderQueueSize int

	// logger is used for connection events and dropped responses.
	logger logger.Logger
}

// NewConfig creates a client configuration for the server at host and port, then applies opts.
//
// An empty host means DefaultHost.
func NewConfig(host string, port int, opts ...Option) (*Config, error) {
	cfg := &Config{
		host:            DefaultHost,
		port:            DefaultPort,
		requestTimeout:  3 * time.Second,
		connectTimeout:  3 * time.Second,
		writeTimeout:    5 * time.Second,
		senderQueueSize: 10,
		logger:          logger.GetLogger(),
	}

	if err := withRemoteHost(host).apply(cfg); err != nil {
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

// ParseAddr splits a host:port address and creates a Config for it.
func ParseAddr(addr string, opts ...Option) (*Config, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid server port %q: %w", portStr, err)
	}

	return NewConfig(host, port, opts...)
}

// Addr returns the server address in host:port form.
func (cfg *Config) Addr() string {
	return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
}

func (cfg *Config) RequestTimeout() time.Duration { return cfg.requestTimeout }

func (cfg *Config) ConnectTimeout() time.Duration { return cfg.connectTimeout }

func (cfg *Config) WriteTimeout() time.Duration { return cfg.writeTimeout }

func (cfg *Config) SenderQueueSize() int { return cfg.senderQueueSize }

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

// withRemoteHost accepts an IP address or a host name that resolves.
func withRemoteHost(host string) Option {
	return newOptFunc("withRemoteHost", func(cfg *Config) error {
		if host == "" {
			cfg.host = DefaultHost
			return nil
		}

		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		host = strings.TrimPrefix(host, ".")
		host = strings.TrimSuffix(host, ".")
		if _, err := net.LookupHost(host); err != nil {
			return fmt.Errorf("invalid host %q: %w", host, err)
		}
		cfg.host = host

		return nil
	})
}

func withPort(port int) Option {
	return newOptFunc("withPort", func(cfg *Config) error {
		if port < 1 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithLogger sets the logger of the client. A nil logger is rejected.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithRequestTimeout sets how long a request waits for its response.
// It should be between 10 milliseconds and 120 seconds.
func WithRequestTimeout(d time.Duration) Option {
	return newOptFunc("WithRequestTimeout", func(cfg *Config) error {
		if d < 10*time.Millisecond || d > 120*time.Second {
			return errors.New("request timeout is out of range [10ms, 120s]")
		}
		cfg.requestTimeout = d

		return nil
	})
}

// WithConnectTimeout sets the timeout of establishing the connection.
// It should be between 100 milliseconds and 30 seconds.
func WithConnectTimeout(d time.Duration) Option {
	return newOptFunc("WithConnectTimeout", func(cfg *Config) error {
		if d < 100*time.Millisecond || d > 30*time.Second {
			return errors.New("connect timeout is out of range [100ms, 30s]")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithWriteTimeout sets the timeout of writing one request frame.
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

// WithSenderQueueSize sets the size of the queue of requests waiting to be written.
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
