package local

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-rhal/driver/sim"
	"github.com/arloliu/go-rhal/logger"
	"github.com/arloliu/go-rhal/rhal"
)

func TestManager_Exclusive(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	devs := sim.New()
	mgr := NewManager(devs, logger.NewPermissiveMockLogger())

	spiDev, err := mgr.ConnectSpi(ctx, "/dev/x", 1000000, rhal.SpiMode0)
	require.NoError(err)

	_, err = mgr.ConnectSpi(ctx, "/dev/x", 1000000, rhal.SpiMode0)
	require.ErrorIs(err, rhal.ErrDeviceAlreadyBound)
	require.Equal(1, devs.OpenCount("/dev/x"))

	// classes are independent
	i2cDev, err := mgr.ConnectI2c(ctx, "/dev/x")
	require.NoError(err)
	require.NoError(i2cDev.Close())

	buf := []byte{0xaa}
	require.NoError(spiDev.Transfer(buf))
	require.Equal([]byte{0xaa}, buf)

	require.NoError(spiDev.Close())

	spiDev, err = mgr.ConnectSpi(ctx, "/dev/x", 500000, rhal.SpiMode3)
	require.NoError(err)
	require.NoError(spiDev.Close())
}

func TestManager_OpenError(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	devs := sim.New()
	mgr := NewManager(devs, logger.NewPermissiveMockLogger())

	errNoDev := errors.New("no such device")
	devs.FailOpen("/sys/class/gpio/gpio2", errNoDev)

	_, err := mgr.ConnectPin(ctx, "/sys/class/gpio/gpio2", rhal.PinOutput)
	require.ErrorIs(err, errNoDev)

	// a failed open leaves the path unbound
	devs.FailOpen("/sys/class/gpio/gpio2", nil)
	pin, err := mgr.ConnectPin(ctx, "/sys/class/gpio/gpio2", rhal.PinOutput)
	require.NoError(err)
	require.NoError(pin.Set(true))
	require.True(devs.PinLevel("/sys/class/gpio/gpio2"))
	require.NoError(pin.Close())
}

func TestManager_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mgr := NewManager(sim.New(), logger.NewPermissiveMockLogger())
	_, err := mgr.ConnectI2c(ctx, "/dev/i2c-1")
	require.ErrorIs(t, err, context.Canceled)
}
