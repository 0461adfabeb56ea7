package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-rhal/client"
	"github.com/arloliu/go-rhal/logger"
	"github.com/arloliu/go-rhal/rhal"
	"github.com/arloliu/go-rhal/server"
)

func TestMain(m *testing.M) {
	level, _ := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	logger.SetLevel(level)

	os.Exit(m.Run())
}

func TestRun_Sim(t *testing.T) {
	require := require.New(t)

	cfg := &daemonConfig{
		Bind:        "127.0.0.1:0",
		Driver:      driverSim,
		LogLevel:    "info",
		MetricsAddr: "127.0.0.1:0",
		MaxInflight: 4,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan *server.Server, 1)
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, logger.NewPermissiveMockLogger(), ready) }()

	var srv *server.Server
	select {
	case srv = <-ready:
	case err := <-done:
		t.Fatalf("run returned early: %v", err)
	}
	require.Eventually(func() bool { return srv.Addr() != nil }, time.Second, 5*time.Millisecond)

	ccfg, err := client.ParseAddr(srv.Addr().String(), client.WithLogger(logger.NewPermissiveMockLogger()))
	require.NoError(err)
	c, err := client.Dial(ctx, ccfg)
	require.NoError(err)
	defer c.Close()

	require.NoError(c.Ping(ctx))
	spi, err := c.Spi(ctx, "/dev/spidev0.0", 1000000, rhal.SpiMode0)
	require.NoError(err)
	buf := []byte{0xaa}
	require.NoError(spi.Transfer(buf))
	require.Equal([]byte{0xaa}, buf)

	cancel()
	select {
	case err := <-done:
		require.NoError(err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRun_InvalidDriver(t *testing.T) {
	cfg := &daemonConfig{Bind: "127.0.0.1:0", Driver: "gpio", MaxInflight: 1}
	require.Error(t, run(context.Background(), cfg, logger.NewPermissiveMockLogger(), nil))
}
