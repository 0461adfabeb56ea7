// Package driver defines the capability interfaces shared by local and remote peripherals,
// and the drivers that open real hardware.
package driver

import (
	"context"
	"errors"
	"io"

	"github.com/arloliu/go-rhal/rhal"
)

// ErrUnsupported is returned by openers that have no implementation on the running platform.
var ErrUnsupported = errors.New("driver not supported on this platform")

// Device is a bound peripheral instance. Close releases it.
type Device interface {
	io.Closer
}

// Spi is a full-duplex SPI device.
type Spi interface {
	// Transfer writes buf and replaces its contents with the bytes read in the same clock cycles.
	Transfer(buf []byte) error
	// Write writes data and discards the bytes read.
	Write(data []byte) error
	io.Closer
}

// I2c is an I2C bus. Each call addresses the peripheral with the given 7-bit address.
type I2c interface {
	// Read fills buf from the peripheral at addr.
	Read(addr uint8, buf []byte) error
	// Write writes data to the peripheral at addr.
	Write(addr uint8, data []byte) error
	// WriteRead writes data then fills buf in one combined transaction.
	WriteRead(addr uint8, data []byte, buf []byte) error
	io.Closer
}

// Pin is a single GPIO line.
type Pin interface {
	// Set drives an output pin high (true) or low (false).
	Set(value bool) error
	// Get reads the pin level.
	Get() (bool, error)
	io.Closer
}

// Opener opens peripherals by device path.
type Opener interface {
	OpenSpi(path string, baud uint32, mode rhal.SpiMode) (Spi, error)
	OpenI2c(path string) (I2c, error)
	OpenPin(path string, mode rhal.PinMode) (Pin, error)
}

// Manager connects to peripherals that may live in this process or on a remote server.
//
// A device returned by a Manager is exclusively bound to the caller until it is closed.
type Manager interface {
	ConnectSpi(ctx context.Context, path string, baud uint32, mode rhal.SpiMode) (Spi, error)
	ConnectI2c(ctx context.Context, path string) (I2c, error)
	ConnectPin(ctx context.Context, path string, mode rhal.PinMode) (Pin, error)
}
