package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rhald.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseConfig_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := parseConfig(nil, envMap(nil), io.Discard)
	require.NoError(err)
	require.Equal("0.0.0.0:10004", cfg.Bind)
	require.Equal(driverLinux, cfg.Driver)
	require.Equal("info", cfg.LogLevel)
	require.Empty(cfg.MetricsAddr)
	require.False(cfg.ReleaseOnDisconnect)
	require.Equal(16, cfg.MaxInflight)
}

func TestParseConfig_EnvAndFlags(t *testing.T) {
	require := require.New(t)

	env := envMap(map[string]string{
		"RHAL_BIND":                  "127.0.0.1:9000",
		"RHAL_DRIVER":                "sim",
		"RHAL_RELEASE_ON_DISCONNECT": "true",
		"RHAL_MAX_INFLIGHT":          "not a number",
	})

	cfg, err := parseConfig(nil, env, io.Discard)
	require.NoError(err)
	require.Equal("127.0.0.1:9000", cfg.Bind)
	require.Equal(driverSim, cfg.Driver)
	require.True(cfg.ReleaseOnDisconnect)
	require.Equal(16, cfg.MaxInflight)

	cfg, err = parseConfig([]string{"-bind", ":10005", "-log-level", "debug"}, env, io.Discard)
	require.NoError(err)
	require.Equal(":10005", cfg.Bind)
	require.Equal("debug", cfg.LogLevel)
}

func TestParseConfig_File(t *testing.T) {
	require := require.New(t)

	path := writeFile(t, `
bind: 127.0.0.1:7000
driver: sim
log_level: warn
metrics_addr: 127.0.0.1:9100
max_inflight: 4
`)

	cfg, err := parseConfig([]string{"-config", path}, envMap(nil), io.Discard)
	require.NoError(err)
	require.Equal("127.0.0.1:7000", cfg.Bind)
	require.Equal(driverSim, cfg.Driver)
	require.Equal("warn", cfg.LogLevel)
	require.Equal("127.0.0.1:9100", cfg.MetricsAddr)
	require.Equal(4, cfg.MaxInflight)

	// explicit flags override the file, the file overrides the environment
	env := envMap(map[string]string{"RHAL_DRIVER": "linux", "RHAL_CONFIG": path})
	cfg, err = parseConfig([]string{"-bind", "127.0.0.1:7001", "-max-inflight", "8"}, env, io.Discard)
	require.NoError(err)
	require.Equal("127.0.0.1:7001", cfg.Bind)
	require.Equal(8, cfg.MaxInflight)
	require.Equal(driverSim, cfg.Driver)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		description string
		args        []string
		file        string
	}{
		{description: "bad driver", args: []string{"-driver", "gpio"}},
		{description: "bad bind", args: []string{"-bind", "10004"}},
		{description: "bad bind port", args: []string{"-bind", "host:port"}},
		{description: "bad log level", args: []string{"-log-level", "loud"}},
		{description: "bad metrics address", args: []string{"-metrics-addr", "9100"}},
		{description: "unknown flag", args: []string{"-verbose"}},
		{description: "extra argument", args: []string{"serve"}},
		{description: "unknown file key", file: "listen: 0.0.0.0:1\n"},
		{description: "bad file value", file: "max_inflight: many\n"},
		{description: "missing file", args: []string{"-config", "/nonexistent/rhald.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			args := tt.args
			if tt.file != "" {
				args = append(args, "-config", writeFile(t, tt.file))
			}
			_, err := parseConfig(args, envMap(nil), io.Discard)
			require.Error(t, err)
		})
	}
}
