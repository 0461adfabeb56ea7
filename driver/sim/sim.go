// Package sim provides in-memory peripherals for tests and for running the daemon without hardware.
//
// SPI devices are loopbacks: a transfer reads back the bytes it wrote. An I2C bus holds a
// 256-byte register file per peripheral address, where a write sets the register pointer from
// its first byte and stores the rest, and a read returns bytes from the register pointer onward.
// Pins are memory bits.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/arloliu/go-rhal/driver"
	"github.com/arloliu/go-rhal/rhal"
)

// ErrClosed is returned by operations on a closed simulated device.
var ErrClosed = errors.New("simulated device closed")

const registerFileSize = 256

// Devices is a set of simulated peripherals addressed by path. It implements driver.Opener.
//
// State survives close and reopen of a path, so a test can observe what a client wrote.
type Devices struct {
	mu        sync.Mutex
	openErr   map[string]error
	ioErr     map[string]error
	open      map[string]int
	spiConfig map[string]SpiConfig
	registers map[string]map[uint8]*[registerFileSize]byte
	pins      map[string]bool
}

// SpiConfig records the parameters a simulated SPI device was opened with.
type SpiConfig struct {
	Baud uint32
	Mode rhal.SpiMode
}

var _ driver.Opener = (*Devices)(nil)

// New returns an empty set of simulated devices.
func New() *Devices {
	return &Devices{
		openErr:   make(map[string]error),
		ioErr:     make(map[string]error),
		open:      make(map[string]int),
		spiConfig: make(map[string]SpiConfig),
		registers: make(map[string]map[uint8]*[registerFileSize]byte),
		pins:      make(map[string]bool),
	}
}

// FailOpen makes the next opens of path fail with err. A nil err clears the fault.
func (d *Devices) FailOpen(path string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err == nil {
		delete(d.openErr, path)
		return
	}
	d.openErr[path] = err
}

// FailIO makes every I/O operation on path fail with err. A nil err clears the fault.
func (d *Devices) FailIO(path string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err == nil {
		delete(d.ioErr, path)
		return
	}
	d.ioErr[path] = err
}

// OpenCount returns how many devices are currently open at path.
func (d *Devices) OpenCount(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.open[path]
}

// SpiConfig returns the configuration path was last opened with.
func (d *Devices) SpiConfig(path string) (SpiConfig, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cfg, ok := d.spiConfig[path]
	return cfg, ok
}

// Register returns the register at reg of the peripheral at addr on the I2C bus at path.
func (d *Devices) Register(path string, addr uint8, reg uint8) byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.regFile(path, addr)[reg]
}

// SetRegisters stores data in the register file of addr starting at reg.
func (d *Devices) SetRegisters(path string, addr uint8, reg uint8, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.regFile(path, addr)
	for i, b := range data {
		regs[(int(reg)+i)%registerFileSize] = b
	}
}

// PinLevel returns the level of the pin at path.
func (d *Devices) PinLevel(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pins[path]
}

// SetPinLevel sets the level of the pin at path, e.g. to simulate an input changing.
func (d *Devices) SetPinLevel(path string, value bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pins[path] = value
}

func (d *Devices) OpenSpi(path string, baud uint32, mode rhal.SpiMode) (driver.Spi, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("open spi %s: invalid mode %s", path, mode)
	}
	if err := d.opened(path); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.spiConfig[path] = SpiConfig{Baud: baud, Mode: mode}
	d.mu.Unlock()

	return &spi{device: device{devs: d, path: path}}, nil
}

func (d *Devices) OpenI2c(path string) (driver.I2c, error) {
	if err := d.opened(path); err != nil {
		return nil, err
	}
	return &i2c{device: device{devs: d, path: path}}, nil
}

func (d *Devices) OpenPin(path string, mode rhal.PinMode) (driver.Pin, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("open pin %s: invalid mode %s", path, mode)
	}
	if err := d.opened(path); err != nil {
		return nil, err
	}
	return &pin{device: device{devs: d, path: path}, mode: mode}, nil
}

func (d *Devices) opened(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.openErr[path]; err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	d.open[path]++

	return nil
}

// regFile must be called with d.mu held.
func (d *Devices) regFile(path string, addr uint8) *[registerFileSize]byte {
	bus, ok := d.registers[path]
	if !ok {
		bus = make(map[uint8]*[registerFileSize]byte)
		d.registers[path] = bus
	}
	regs, ok := bus[addr]
	if !ok {
		regs = new([registerFileSize]byte)
		bus[addr] = regs
	}
	return regs
}

// device holds the state common to every simulated device.
type device struct {
	devs   *Devices
	path   string
	closed bool
}

// begin locks the device set and reports the injected or closed error, if any.
// The caller must unlock devs.mu when err is nil.
func (d *device) begin() error {
	d.devs.mu.Lock()
	if d.closed {
		d.devs.mu.Unlock()
		return fmt.Errorf("%s: %w", d.path, ErrClosed)
	}
	if err := d.devs.ioErr[d.path]; err != nil {
		d.devs.mu.Unlock()
		return fmt.Errorf("%s: %w", d.path, err)
	}
	return nil
}

func (d *device) Close() error {
	d.devs.mu.Lock()
	defer d.devs.mu.Unlock()

	if d.closed {
		return fmt.Errorf("%s: %w", d.path, ErrClosed)
	}
	d.closed = true
	d.devs.open[d.path]--

	return nil
}

type spi struct {
	device
}

// Transfer leaves buf untouched, which is what a loopback wire reads back.
func (s *spi) Transfer(buf []byte) error {
	if err := s.begin(); err != nil {
		return err
	}
	s.devs.mu.Unlock()
	return nil
}

func (s *spi) Write(data []byte) error {
	if err := s.begin(); err != nil {
		return err
	}
	s.devs.mu.Unlock()
	return nil
}

type i2c struct {
	device
	// pointer is the register pointer per peripheral address
	pointer map[uint8]uint8
}

func (c *i2c) Read(addr uint8, buf []byte) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.devs.mu.Unlock()

	c.read(addr, buf)
	return nil
}

func (c *i2c) Write(addr uint8, data []byte) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.devs.mu.Unlock()

	c.write(addr, data)
	return nil
}

func (c *i2c) WriteRead(addr uint8, data []byte, buf []byte) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.devs.mu.Unlock()

	c.write(addr, data)
	c.read(addr, buf)
	return nil
}

func (c *i2c) write(addr uint8, data []byte) {
	if len(data) == 0 {
		return
	}
	if c.pointer == nil {
		c.pointer = make(map[uint8]uint8)
	}

	reg := data[0]
	regs := c.devs.regFile(c.path, addr)
	for _, b := range data[1:] {
		regs[reg] = b
		reg++
	}
	c.pointer[addr] = data[0]
}

func (c *i2c) read(addr uint8, buf []byte) {
	reg := c.pointer[addr]
	regs := c.devs.regFile(c.path, addr)
	for i := range buf {
		buf[i] = regs[reg]
		reg++
	}
}

type pin struct {
	device
	mode rhal.PinMode
}

func (p *pin) Set(value bool) error {
	if err := p.begin(); err != nil {
		return err
	}
	defer p.devs.mu.Unlock()

	if p.mode != rhal.PinOutput {
		return fmt.Errorf("set pin %s: pin is not an output", p.path)
	}
	p.devs.pins[p.path] = value

	return nil
}

func (p *pin) Get() (bool, error) {
	if err := p.begin(); err != nil {
		return false, err
	}
	defer p.devs.mu.Unlock()

	return p.devs.pins[p.path], nil
}
