package client

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-rhal/driver"
	"github.com/arloliu/go-rhal/driver/sim"
	"github.com/arloliu/go-rhal/logger"
	"github.com/arloliu/go-rhal/rhal"
	"github.com/arloliu/go-rhal/server"
)

type testEnv struct {
	client *Client
	srv    *server.Server
	devs   *sim.Devices
}

func setupEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	require := require.New(t)

	l := logger.NewPermissiveMockLogger()
	scfg, err := server.NewConfig("127.0.0.1", 0, server.WithLogger(l))
	require.NoError(err)

	devs := sim.New()
	srv, err := server.NewServer(context.Background(), scfg, server.NewRegistry(devs, l))
	require.NoError(err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(func() { _ = srv.Close() })

	port := listener.Addr().(*net.TCPAddr).Port
	cfg, err := NewConfig("127.0.0.1", port, append([]Option{WithLogger(l)}, opts...)...)
	require.NoError(err)

	c, err := Dial(context.Background(), cfg)
	require.NoError(err)
	t.Cleanup(func() { _ = c.Close() })

	return &testEnv{client: c, srv: srv, devs: devs}
}

func TestClient_Ping(t *testing.T) {
	env := setupEnv(t)
	require.NoError(t, env.client.Ping(context.Background()))
	require.Equal(t, uint64(1), env.client.Metrics().ResponseRecvCount.Load())
}

func TestClient_Spi(t *testing.T) {
	require := require.New(t)
	env := setupEnv(t)
	ctx := context.Background()

	spi, err := env.client.Spi(ctx, "/dev/spidev0.0", 1000000, rhal.SpiMode1)
	require.NoError(err)
	require.Equal("/dev/spidev0.0", spi.Path())

	cfg, ok := env.devs.SpiConfig("/dev/spidev0.0")
	require.True(ok)
	require.Equal(sim.SpiConfig{Baud: 1000000, Mode: rhal.SpiMode1}, cfg)

	buf := []byte{0x9f, 0x00, 0x00}
	require.NoError(spi.Transfer(buf))
	require.Equal([]byte{0x9f, 0x00, 0x00}, buf)
	require.NoError(spi.Write([]byte{0x06}))

	_, err = env.client.Spi(ctx, "/dev/spidev0.0", 1000000, rhal.SpiMode0)
	require.ErrorIs(err, rhal.ErrDeviceAlreadyBound)

	require.NoError(spi.Close())
	require.ErrorIs(spi.Transfer(buf), rhal.ErrDeviceNotBound)
	require.ErrorIs(spi.Close(), rhal.ErrDeviceNotBound)
}

func TestClient_I2c(t *testing.T) {
	require := require.New(t)
	env := setupEnv(t)

	bus, err := env.client.I2c(context.Background(), "/dev/i2c-1")
	require.NoError(err)

	require.NoError(bus.Write(0x50, []byte{0x10, 0xaa, 0xbb}))
	require.Equal(byte(0xaa), env.devs.Register("/dev/i2c-1", 0x50, 0x10))

	buf := make([]byte, 2)
	require.NoError(bus.WriteRead(0x50, []byte{0x10}, buf))
	require.Equal([]byte{0xaa, 0xbb}, buf)

	env.devs.SetRegisters("/dev/i2c-1", 0x51, 0x00, []byte{0x01, 0x02, 0x03})
	buf = make([]byte, 3)
	require.NoError(bus.Read(0x51, buf))
	require.Equal([]byte{0x01, 0x02, 0x03}, buf)

	require.Error(bus.Read(0x51, make([]byte, 70000)))

	require.NoError(bus.Close())
	require.ErrorIs(bus.Write(0x50, []byte{0x00}), rhal.ErrDeviceNotBound)
}

func TestClient_Pin(t *testing.T) {
	require := require.New(t)
	env := setupEnv(t)
	ctx := context.Background()

	out, err := env.client.Pin(ctx, "/sys/class/gpio/gpio17", rhal.PinOutput)
	require.NoError(err)
	require.NoError(out.Set(true))
	require.True(env.devs.PinLevel("/sys/class/gpio/gpio17"))

	v, err := out.Get()
	require.NoError(err)
	require.True(v)

	in, err := env.client.Pin(ctx, "/sys/class/gpio/gpio4", rhal.PinInput)
	require.NoError(err)
	env.devs.SetPinLevel("/sys/class/gpio/gpio4", true)
	v, err = in.Get()
	require.NoError(err)
	require.True(v)

	var remoteErr *rhal.RemoteError
	require.True(errors.As(in.Set(true), &remoteErr))

	require.NoError(out.Close())
	require.NoError(in.Close())
}

func TestClient_DriverError(t *testing.T) {
	require := require.New(t)
	env := setupEnv(t)

	spi, err := env.client.Spi(context.Background(), "/dev/spidev1.0", 500000, rhal.SpiMode3)
	require.NoError(err)

	env.devs.FailIO("/dev/spidev1.0", errors.New("bus fault"))
	err = spi.Transfer([]byte{0x01})

	var remoteErr *rhal.RemoteError
	require.True(errors.As(err, &remoteErr))
	require.Contains(remoteErr.Message, "bus fault")

	env.devs.FailOpen("/dev/spidev2.0", errors.New("no such device"))
	_, err = env.client.Spi(context.Background(), "/dev/spidev2.0", 500000, rhal.SpiMode0)
	require.True(errors.As(err, &remoteErr))
}

func TestClient_UnhandledRequest(t *testing.T) {
	env := setupEnv(t)

	rsp, err := env.client.Request(context.Background(), "/dev/ttyS0", rhal.UnknownReq{Tag: "uart-open"})
	require.NoError(t, err)
	require.Equal(t, rhal.UnhandledRsp{}, rsp)
}

func TestClient_Init(t *testing.T) {
	require := require.New(t)
	env := setupEnv(t)
	ctx := context.Background()

	devices, err := env.client.Init(ctx,
		SpiInit("/dev/spidev0.0", 1000000, rhal.SpiMode0),
		I2cInit("/dev/i2c-1"),
		PinInit("/sys/class/gpio/gpio5", rhal.PinOutput),
	)
	require.NoError(err)
	require.Len(devices, 3)
	require.IsType(&Spi{}, devices[0])
	require.IsType(&I2c{}, devices[1])
	require.IsType(&Pin{}, devices[2])

	reg := env.srv.Registry()
	_, err = env.client.Init(ctx,
		SpiInit("/dev/spidev0.1", 1000000, rhal.SpiMode0),
		I2cInit("/dev/i2c-1"),
	)
	require.ErrorIs(err, rhal.ErrDeviceAlreadyBound)
	require.Eventually(func() bool { return !reg.Bound(server.SpiClass, "/dev/spidev0.1") }, time.Second, 5*time.Millisecond)

	for _, dev := range devices {
		require.NoError(dev.Close())
	}
	for _, class := range []server.Class{server.SpiClass, server.I2cClass, server.PinClass} {
		require.Zero(reg.Len(class), class)
	}
}

func TestClient_DriverManager(t *testing.T) {
	require := require.New(t)
	env := setupEnv(t)

	var mgr driver.Manager = env.client
	ctx := context.Background()

	_, err := mgr.ConnectSpi(ctx, "/dev/spidev0.0", 1, rhal.SpiMode0)
	require.NoError(err)
	_, err = mgr.ConnectI2c(ctx, "/dev/i2c-0")
	require.NoError(err)
	_, err = mgr.ConnectPin(ctx, "/sys/class/gpio/gpio1", rhal.PinInput)
	require.NoError(err)

	spi, err := mgr.ConnectSpi(ctx, "/dev/spidev0.0", 1, rhal.SpiMode0)
	require.ErrorIs(err, rhal.ErrDeviceAlreadyBound)
	require.Nil(spi)
}

func TestDial_Refused(t *testing.T) {
	require := require.New(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(listener.Close())

	cfg, err := ParseAddr(net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), WithConnectTimeout(time.Second))
	require.NoError(err)

	_, err = Dial(context.Background(), cfg)
	require.Error(err)

	_, err = Dial(context.Background(), nil)
	require.ErrorIs(err, rhal.ErrConfigNil)
}
