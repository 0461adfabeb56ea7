//go:build !linux

package driver

import (
	"fmt"

	"github.com/arloliu/go-rhal/rhal"
)

type unsupportedOpener struct{}

// Linux returns an opener whose every call fails with ErrUnsupported, since the Linux
// peripheral interfaces are not available on this platform.
func Linux() Opener { return unsupportedOpener{} }

func (unsupportedOpener) OpenSpi(path string, _ uint32, _ rhal.SpiMode) (Spi, error) {
	return nil, fmt.Errorf("open spi %s: %w", path, ErrUnsupported)
}

func (unsupportedOpener) OpenI2c(path string) (I2c, error) {
	return nil, fmt.Errorf("open i2c %s: %w", path, ErrUnsupported)
}

func (unsupportedOpener) OpenPin(path string, _ rhal.PinMode) (Pin, error) {
	return nil, fmt.Errorf("open pin %s: %w", path, ErrUnsupported)
}
