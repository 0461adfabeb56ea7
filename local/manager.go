// Package local connects to peripherals attached to this host, without a server in between.
package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/arloliu/go-rhal/driver"
	"github.com/arloliu/go-rhal/logger"
	"github.com/arloliu/go-rhal/rhal"
)

type class int

const (
	spiClass class = iota
	i2cClass
	pinClass
)

type bindingKey struct {
	class class
	path  string
}

// Manager opens devices in-process through a driver.Opener.
//
// Like the server, it binds each path exclusively per peripheral class: a second connect
// to a bound path fails with rhal.ErrDeviceAlreadyBound until the first device is closed.
type Manager struct {
	opener driver.Opener
	logger logger.Logger

	mu    sync.Mutex
	bound map[bindingKey]struct{}
}

var _ driver.Manager = (*Manager)(nil)

// NewManager returns a Manager over opener. A nil l uses the default logger.
func NewManager(opener driver.Opener, l logger.Logger) *Manager {
	if l == nil {
		l = logger.GetLogger()
	}
	return &Manager{opener: opener, logger: l, bound: make(map[bindingKey]struct{})}
}

// ConnectSpi opens the SPI device at path.
func (m *Manager) ConnectSpi(ctx context.Context, path string, baud uint32, mode rhal.SpiMode) (driver.Spi, error) {
	m.logger.Debug("connect spi", "device", path, "baud", baud, "mode", mode)

	var dev driver.Spi
	release, err := m.bind(ctx, spiClass, path, func() (err error) {
		dev, err = m.opener.OpenSpi(path, baud, mode)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &spi{Spi: dev, release: release}, nil
}

// ConnectI2c opens the I2C bus at path.
func (m *Manager) ConnectI2c(ctx context.Context, path string) (driver.I2c, error) {
	m.logger.Debug("connect i2c", "device", path)

	var dev driver.I2c
	release, err := m.bind(ctx, i2cClass, path, func() (err error) {
		dev, err = m.opener.OpenI2c(path)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &i2c{I2c: dev, release: release}, nil
}

// ConnectPin opens the GPIO pin at path.
func (m *Manager) ConnectPin(ctx context.Context, path string, mode rhal.PinMode) (driver.Pin, error) {
	m.logger.Debug("connect pin", "device", path, "mode", mode)

	var dev driver.Pin
	release, err := m.bind(ctx, pinClass, path, func() (err error) {
		dev, err = m.opener.OpenPin(path, mode)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &pin{Pin: dev, release: release}, nil
}

// bind checks and records the binding, then opens the device in the same critical section.
func (m *Manager) bind(ctx context.Context, c class, path string, open func() error) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := bindingKey{class: c, path: path}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bound[key]; ok {
		return nil, fmt.Errorf("connect %s: %w", path, rhal.ErrDeviceAlreadyBound)
	}
	if err := open(); err != nil {
		m.logger.Warn("failed to open device", "device", path, "error", err)
		return nil, err
	}
	m.bound[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.bound, key)
			m.mu.Unlock()
		})
	}, nil
}

type spi struct {
	driver.Spi
	release func()
}

func (d *spi) Close() error {
	defer d.release()
	return d.Spi.Close()
}

type i2c struct {
	driver.I2c
	release func()
}

func (d *i2c) Close() error {
	defer d.release()
	return d.I2c.Close()
}

type pin struct {
	driver.Pin
	release func()
}

func (d *pin) Close() error {
	defer d.release()
	return d.Pin.Close()
}
