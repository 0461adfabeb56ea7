package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig("", DefaultPort)
	require.NoError(err)
	require.Equal("0.0.0.0:10004", cfg.Addr())
	require.Equal(16, cfg.MaxInflight())
	require.Equal(10, cfg.SenderQueueSize())
	require.Equal(5*time.Second, cfg.WriteTimeout())
	require.False(cfg.ReleaseOnDisconnect())
	require.NotNil(cfg.Logger())
}

func TestNewConfig_Options(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig("::1", 0,
		WithMaxInflight(1),
		WithSenderQueueSize(100),
		WithWriteTimeout(time.Second),
		WithReleaseOnDisconnect(true),
	)
	require.NoError(err)
	require.Equal("[::1]:0", cfg.Addr())
	require.Equal(1, cfg.MaxInflight())
	require.Equal(100, cfg.SenderQueueSize())
	require.Equal(time.Second, cfg.WriteTimeout())
	require.True(cfg.ReleaseOnDisconnect())
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		description string
		host        string
		port        int
		opts        []Option
	}{
		{"bad host", "not a host", 1, nil},
		{"negative port", "", -1, nil},
		{"port too large", "", 65536, nil},
		{"zero inflight", "", 1, []Option{WithMaxInflight(0)}},
		{"queue too large", "", 1, []Option{WithSenderQueueSize(1001)}},
		{"write timeout too short", "", 1, []Option{WithWriteTimeout(time.Millisecond)}},
		{"nil logger", "", 1, []Option{WithLogger(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			_, err := NewConfig(tt.host, tt.port, tt.opts...)
			require.Error(t, err)
		})
	}
}
