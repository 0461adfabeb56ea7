package client

import (
	"context"
	"fmt"
	"math"

	"github.com/arloliu/go-rhal/driver"
	"github.com/arloliu/go-rhal/rhal"
)

// Spi is a remote SPI device bound through a Client.
//
// Each call is one request bounded by the client's request timeout.
type Spi struct {
	client *Client
	path   string
}

var _ driver.Spi = (*Spi)(nil)

// Path returns the device path on the server.
func (s *Spi) Path() string { return s.path }

// Transfer writes buf and replaces its contents with the bytes read.
func (s *Spi) Transfer(buf []byte) error {
	rsp, err := s.client.mux.Request(context.Background(), s.path, rhal.SpiTransferReq{WriteData: rhal.Data(buf).Clone()})
	if err != nil {
		return fmt.Errorf("spi transfer %s: %w", s.path, err)
	}

	tr, ok := rsp.(rhal.SpiTransferRsp)
	if !ok {
		return fmt.Errorf("spi transfer %s: %w", s.path, rhal.ErrorFromResponse(rsp))
	}
	if len(tr.Data) != len(buf) {
		return fmt.Errorf("spi transfer %s: %w: got %d bytes, want %d", s.path, rhal.ErrLengthMismatch, len(tr.Data), len(buf))
	}
	copy(buf, tr.Data)

	return nil
}

// Write writes data and discards the bytes read.
func (s *Spi) Write(data []byte) error {
	if err := s.client.expectOk(context.Background(), s.path, rhal.SpiWriteReq{WriteData: rhal.Data(data).Clone()}); err != nil {
		return fmt.Errorf("spi write %s: %w", s.path, err)
	}
	return nil
}

// Close releases the binding on the server.
func (s *Spi) Close() error {
	if err := s.client.expectOk(context.Background(), s.path, rhal.SpiDisconnectReq{}); err != nil {
		return fmt.Errorf("spi disconnect %s: %w", s.path, err)
	}
	return nil
}

// I2c is a remote I2C bus bound through a Client.
type I2c struct {
	client *Client
	path   string
}

var _ driver.I2c = (*I2c)(nil)

// Path returns the device path on the server.
func (c *I2c) Path() string { return c.path }

// Read fills buf from the peripheral at addr.
func (c *I2c) Read(addr uint8, buf []byte) error {
	if len(buf) > math.MaxUint16 {
		return fmt.Errorf("i2c read %s: buffer of %d bytes is too large", c.path, len(buf))
	}

	rsp, err := c.client.mux.Request(context.Background(), c.path, rhal.I2cReadReq{Addr: addr, ReadLen: uint16(len(buf))})
	if err != nil {
		return fmt.Errorf("i2c read %s: %w", c.path, err)
	}
	return c.fill("i2c read", rsp, buf)
}

// Write writes data to the peripheral at addr.
func (c *I2c) Write(addr uint8, data []byte) error {
	if err := c.client.expectOk(context.Background(), c.path, rhal.I2cWriteReq{Addr: addr, WriteData: rhal.Data(data).Clone()}); err != nil {
		return fmt.Errorf("i2c write %s: %w", c.path, err)
	}
	return nil
}

// WriteRead writes data then fills buf in one combined transaction.
func (c *I2c) WriteRead(addr uint8, data []byte, buf []byte) error {
	if len(buf) > math.MaxUint16 {
		return fmt.Errorf("i2c write-read %s: buffer of %d bytes is too large", c.path, len(buf))
	}

	req := rhal.I2cWriteReadReq{Addr: addr, WriteData: rhal.Data(data).Clone(), ReadLen: uint16(len(buf))}
	rsp, err := c.client.mux.Request(context.Background(), c.path, req)
	if err != nil {
		return fmt.Errorf("i2c write-read %s: %w", c.path, err)
	}
	return c.fill("i2c write-read", rsp, buf)
}

func (c *I2c) fill(op string, rsp rhal.ResponseKind, buf []byte) error {
	rd, ok := rsp.(rhal.I2cReadRsp)
	if !ok {
		return fmt.Errorf("%s %s: %w", op, c.path, rhal.ErrorFromResponse(rsp))
	}
	if len(rd.Data) != len(buf) {
		return fmt.Errorf("%s %s: %w: got %d bytes, want %d", op, c.path, rhal.ErrLengthMismatch, len(rd.Data), len(buf))
	}
	copy(buf, rd.Data)

	return nil
}

// Close releases the binding on the server.
func (c *I2c) Close() error {
	if err := c.client.expectOk(context.Background(), c.path, rhal.I2cDisconnectReq{}); err != nil {
		return fmt.Errorf("i2c disconnect %s: %w", c.path, err)
	}
	return nil
}

// Pin is a remote GPIO pin bound through a Client.
type Pin struct {
	client *Client
	path   string
}

var _ driver.Pin = (*Pin)(nil)

// Path returns the device path on the server.
func (p *Pin) Path() string { return p.path }

// Set drives the pin high (true) or low (false).
func (p *Pin) Set(value bool) error {
	if err := p.client.expectOk(context.Background(), p.path, rhal.PinSetReq{Value: value}); err != nil {
		return fmt.Errorf("pin set %s: %w", p.path, err)
	}
	return nil
}

// Get reads the pin level.
func (p *Pin) Get() (bool, error) {
	rsp, err := p.client.mux.Request(context.Background(), p.path, rhal.PinGetReq{})
	if err != nil {
		return false, fmt.Errorf("pin get %s: %w", p.path, err)
	}

	v, ok := rsp.(rhal.PinGetRsp)
	if !ok {
		return false, fmt.Errorf("pin get %s: %w", p.path, rhal.ErrorFromResponse(rsp))
	}
	return v.Value, nil
}

// Close releases the binding on the server.
func (p *Pin) Close() error {
	if err := p.client.expectOk(context.Background(), p.path, rhal.PinDisconnectReq{}); err != nil {
		return fmt.Errorf("pin disconnect %s: %w", p.path, err)
	}
	return nil
}
