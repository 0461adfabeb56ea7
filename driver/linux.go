//go:build linux

package driver

import "github.com/arloliu/go-rhal/rhal"

type linuxOpener struct{}

// Linux returns the opener for Linux hosts: spidev for SPI, i2c-dev for I2C and sysfs for GPIO.
func Linux() Opener { return linuxOpener{} }

func (linuxOpener) OpenSpi(path string, baud uint32, mode rhal.SpiMode) (Spi, error) {
	return OpenSpidev(path, baud, mode)
}

func (linuxOpener) OpenI2c(path string) (I2c, error) {
	return OpenI2cdev(path)
}

func (linuxOpener) OpenPin(path string, mode rhal.PinMode) (Pin, error) {
	pin, err := OpenSysfsPin(path, mode)
	if err != nil {
		return nil, err
	}
	return pin, nil
}
