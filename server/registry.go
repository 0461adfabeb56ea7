package server

import (
	"fmt"
	"sync"

	"github.com/arloliu/go-rhal/driver"
	"github.com/arloliu/go-rhal/logger"
	"github.com/arloliu/go-rhal/rhal"
)

// Class names a peripheral class. Each class has its own namespace of device paths.
type Class string

const (
	SpiClass Class = "spi"
	I2cClass Class = "i2c"
	PinClass Class = "pin"
)

// noOwner marks bindings created outside of a connection, e.g. through Registry.Handle.
const noOwner uint64 = 0

// binding is a bound device path. mu serializes the operations on the device.
//
// releasing is guarded by the class lock. A releasing binding stays in the map, keeping its
// path reserved, until its device is closed.
type binding[D driver.Device] struct {
	mu        sync.Mutex
	dev       D
	owner     uint64
	closed    bool
	releasing bool
}

// deviceClass is the table of bindings of one peripheral class.
//
// mu guards the bindings map and the releasing flags. It is never held while waiting for a
// binding's lock.
type deviceClass[D driver.Device, P any] struct {
	name     Class
	open     func(path string, params P) (D, error)
	logger   logger.Logger
	mu       sync.Mutex
	bindings map[string]*binding[D]
}

func newDeviceClass[D driver.Device, P any](name Class, l logger.Logger, open func(string, P) (D, error)) *deviceClass[D, P] {
	return &deviceClass[D, P]{
		name:     name,
		open:     open,
		logger:   l,
		bindings: make(map[string]*binding[D]),
	}
}

// connect opens the device at path and binds it, unless path is already bound.
// Check, open and insert happen in one critical section, so concurrent connects
// to the same path yield exactly one Ok. A path whose release is still closing the
// device counts as bound.
func (c *deviceClass[D, P]) connect(owner uint64, path string, params P) rhal.ResponseKind {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.bindings[path]; ok {
		return rhal.DeviceAlreadyBoundRsp{}
	}

	dev, err := c.open(path, params)
	if err != nil {
		c.logger.Warn("failed to open device", "class", c.name, "device", path, "error", err)
		return errorRsp(err)
	}
	c.bindings[path] = &binding[D]{dev: dev, owner: owner}

	c.logger.Debug("device bound", "class", c.name, "device", path, "owner", owner)

	return rhal.OkRsp{}
}

// withBound runs fn with the device bound at path while holding the binding's lock.
func (c *deviceClass[D, P]) withBound(path string, fn func(dev D) rhal.ResponseKind) rhal.ResponseKind {
	c.mu.Lock()
	b, ok := c.bindings[path]
	if ok && b.releasing {
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return rhal.DeviceNotBoundRsp{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// disconnected between the lookup and the lock
	if b.closed {
		return rhal.DeviceNotBoundRsp{}
	}

	return fn(b.dev)
}

// disconnect unbinds path and closes its device after in-flight operations finish.
func (c *deviceClass[D, P]) disconnect(path string) rhal.ResponseKind {
	c.mu.Lock()
	b, ok := c.bindings[path]
	if ok && b.releasing {
		ok = false
	}
	if ok {
		b.releasing = true
	}
	c.mu.Unlock()

	if !ok {
		return rhal.DeviceNotBoundRsp{}
	}

	c.release(path, b)

	return rhal.OkRsp{}
}

// releaseOwner unbinds every path bound by owner and returns the released paths.
func (c *deviceClass[D, P]) releaseOwner(owner uint64) []string {
	return c.releaseMatching(func(b *binding[D]) bool { return b.owner == owner })
}

func (c *deviceClass[D, P]) releaseAll() int {
	return len(c.releaseMatching(func(*binding[D]) bool { return true }))
}

func (c *deviceClass[D, P]) releaseMatching(match func(b *binding[D]) bool) []string {
	released := make(map[string]*binding[D])

	c.mu.Lock()
	for path, b := range c.bindings {
		if !b.releasing && match(b) {
			b.releasing = true
			released[path] = b
		}
	}
	c.mu.Unlock()

	paths := make([]string, 0, len(released))
	for path, b := range released {
		c.release(path, b)
		paths = append(paths, path)
	}

	return paths
}

// release closes the device of a releasing binding, then frees its path.
func (c *deviceClass[D, P]) release(path string, b *binding[D]) {
	defer func() {
		c.mu.Lock()
		if c.bindings[path] == b {
			delete(c.bindings, path)
		}
		c.mu.Unlock()
	}()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if err := b.dev.Close(); err != nil {
		c.logger.Warn("failed to close device", "class", c.name, "device", path, "error", err)
		return
	}

	c.logger.Debug("device released", "class", c.name, "device", path)
}

func (c *deviceClass[D, P]) bound(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.bindings[path]
	return ok
}

func (c *deviceClass[D, P]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.bindings)
}

type spiParams struct {
	baud uint32
	mode rhal.SpiMode
}

// Registry owns the bindings of device paths to open peripherals, one table per class.
//
// A path is bound by at most one connect at a time. Operations on one binding are
// serialized, operations on different bindings run in parallel.
type Registry struct {
	logger logger.Logger
	spi    *deviceClass[driver.Spi, spiParams]
	i2c    *deviceClass[driver.I2c, struct{}]
	pin    *deviceClass[driver.Pin, rhal.PinMode]
}

// NewRegistry creates an empty Registry that opens devices with opener.
// A nil l uses the default logger.
func NewRegistry(opener driver.Opener, l logger.Logger) *Registry {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Registry{
		logger: l,
		spi: newDeviceClass(SpiClass, l, func(path string, p spiParams) (driver.Spi, error) {
			return opener.OpenSpi(path, p.baud, p.mode)
		}),
		i2c: newDeviceClass(I2cClass, l, func(path string, _ struct{}) (driver.I2c, error) {
			return opener.OpenI2c(path)
		}),
		pin: newDeviceClass(PinClass, l, func(path string, mode rhal.PinMode) (driver.Pin, error) {
			return opener.OpenPin(path, mode)
		}),
	}
}

// Bound reports whether path is bound in class.
func (r *Registry) Bound(class Class, path string) bool {
	switch class {
	case SpiClass:
		return r.spi.bound(path)
	case I2cClass:
		return r.i2c.bound(path)
	case PinClass:
		return r.pin.bound(path)
	default:
		return false
	}
}

// Len returns the number of bindings in class.
func (r *Registry) Len(class Class) int {
	switch class {
	case SpiClass:
		return r.spi.len()
	case I2cClass:
		return r.i2c.len()
	case PinClass:
		return r.pin.len()
	default:
		return 0
	}
}

// ReleaseOwner unbinds and closes every device bound by the connection owner.
// It returns the number of released bindings.
func (r *Registry) ReleaseOwner(owner uint64) int {
	if owner == noOwner {
		return 0
	}

	n := 0
	for class, paths := range map[Class][]string{
		SpiClass: r.spi.releaseOwner(owner),
		I2cClass: r.i2c.releaseOwner(owner),
		PinClass: r.pin.releaseOwner(owner),
	} {
		for _, path := range paths {
			r.logger.Info("release binding of closed connection", "class", class, "device", path, "owner", owner)
		}
		n += len(paths)
	}

	return n
}

// Close unbinds and closes every bound device.
func (r *Registry) Close() error {
	n := r.spi.releaseAll() + r.i2c.releaseAll() + r.pin.releaseAll()
	if n > 0 {
		r.logger.Info("registry closed", "released", n)
	}
	return nil
}

func errorRsp(err error) rhal.ErrorRsp {
	return rhal.ErrorRsp{Message: fmt.Sprintf("%+v", err)}
}
