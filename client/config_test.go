package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig("", DefaultPort)
	require.NoError(err)
	require.Equal("127.0.0.1:10004", cfg.Addr())
	require.Equal(3*time.Second, cfg.RequestTimeout())
	require.Equal(3*time.Second, cfg.ConnectTimeout())
	require.Equal(5*time.Second, cfg.WriteTimeout())
	require.Equal(10, cfg.SenderQueueSize())
	require.NotNil(cfg.Logger())
}

func TestNewConfig_Options(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig("10.0.0.2", 7000,
		WithRequestTimeout(100*time.Millisecond),
		WithConnectTimeout(time.Second),
		WithWriteTimeout(2*time.Second),
		WithSenderQueueSize(64),
	)
	require.NoError(err)
	require.Equal("10.0.0.2:7000", cfg.Addr())
	require.Equal(100*time.Millisecond, cfg.RequestTimeout())
	require.Equal(time.Second, cfg.ConnectTimeout())
	require.Equal(2*time.Second, cfg.WriteTimeout())
	require.Equal(64, cfg.SenderQueueSize())
}

func TestParseAddr(t *testing.T) {
	require := require.New(t)

	cfg, err := ParseAddr("[::1]:10004")
	require.NoError(err)
	require.Equal("[::1]:10004", cfg.Addr())

	_, err = ParseAddr("127.0.0.1")
	require.Error(err)

	_, err = ParseAddr("127.0.0.1:port")
	require.Error(err)
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		description string
		port        int
		opts        []Option
	}{
		{"zero port", 0, nil},
		{"port too large", 65536, nil},
		{"request timeout too short", 1, []Option{WithRequestTimeout(time.Millisecond)}},
		{"request timeout too long", 1, []Option{WithRequestTimeout(time.Hour)}},
		{"connect timeout too short", 1, []Option{WithConnectTimeout(time.Millisecond)}},
		{"write timeout too long", 1, []Option{WithWriteTimeout(time.Hour)}},
		{"empty sender queue", 1, []Option{WithSenderQueueSize(0)}},
		{"nil logger", 1, []Option{WithLogger(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			_, err := NewConfig("", tt.port, tt.opts...)
			require.Error(t, err)
		})
	}
}
