// Package client connects to a rhal server and exposes remote peripherals as local devices.
//
// A Client multiplexes any number of concurrent calls over one connection. Its device
// handles implement the driver capability interfaces, so code written against driver.Spi,
// driver.I2c or driver.Pin works the same with local and remote hardware:
//
//	cfg, _ := client.NewConfig("10.0.0.2", client.DefaultPort)
//	c, err := client.Dial(ctx, cfg)
//	...
//	spi, err := c.Spi(ctx, "/dev/spidev0.0", 1000000, rhal.SpiMode0)
//	buf := []byte{0x9f, 0, 0}
//	err = spi.Transfer(buf)
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/arloliu/go-rhal/driver"
	"github.com/arloliu/go-rhal/logger"
	"github.com/arloliu/go-rhal/rhal"
)

// Client is a connection to a rhal server.
type Client struct {
	cfg    *Config
	logger logger.Logger
	mux    *Mux
}

var _ driver.Manager = (*Client)(nil)

// Dial connects to the server addressed by cfg.
//
// ctx bounds the dial only, the connection lives until Close.
func Dial(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, rhal.ErrConfigNil
	}

	dialer := net.Dialer{Timeout: cfg.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr(), err)
	}

	c, err := NewClient(context.WithoutCancel(ctx), conn, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.logger.Info("connected to rhal server", "addr", cfg.Addr())

	return c, nil
}

// NewClient creates a Client over an established connection.
func NewClient(ctx context.Context, conn io.ReadWriteCloser, cfg *Config) (*Client, error) {
	mux, err := NewMux(ctx, conn, cfg)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, logger: cfg.logger, mux: mux}, nil
}

// Mux returns the request multiplexer of the connection.
func (c *Client) Mux() *Mux { return c.mux }

// Metrics returns the connection metrics.
func (c *Client) Metrics() *Metrics { return c.mux.Metrics() }

// Close closes the connection. Devices bound through the client stay bound on the server
// unless the server releases the bindings of closed connections.
func (c *Client) Close() error {
	return c.mux.Close()
}

// Request sends a raw request for device and returns the server's answer.
func (c *Client) Request(ctx context.Context, device string, kind rhal.RequestKind) (rhal.ResponseKind, error) {
	return c.mux.Request(ctx, device, kind)
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.expectOk(ctx, "", rhal.PingReq{})
}

// Spi binds the SPI device at path with the given clock rate and mode.
func (c *Client) Spi(ctx context.Context, path string, baud uint32, mode rhal.SpiMode) (*Spi, error) {
	c.logger.Debug("connect spi", "device", path, "baud", baud, "mode", mode)

	if err := c.expectOk(ctx, path, rhal.SpiConnectReq{Baud: baud, Mode: mode}); err != nil {
		return nil, fmt.Errorf("connect spi %s: %w", path, err)
	}
	return &Spi{client: c, path: path}, nil
}

// I2c binds the I2C bus at path.
func (c *Client) I2c(ctx context.Context, path string) (*I2c, error) {
	c.logger.Debug("connect i2c", "device", path)

	if err := c.expectOk(ctx, path, rhal.I2cConnectReq{}); err != nil {
		return nil, fmt.Errorf("connect i2c %s: %w", path, err)
	}
	return &I2c{client: c, path: path}, nil
}

// Pin binds the GPIO pin at path with the given direction.
func (c *Client) Pin(ctx context.Context, path string, mode rhal.PinMode) (*Pin, error) {
	c.logger.Debug("connect pin", "device", path, "mode", mode)

	if err := c.expectOk(ctx, path, rhal.PinConnectReq{Mode: mode}); err != nil {
		return nil, fmt.Errorf("connect pin %s: %w", path, err)
	}
	return &Pin{client: c, path: path}, nil
}

// ConnectSpi implements driver.Manager.
func (c *Client) ConnectSpi(ctx context.Context, path string, baud uint32, mode rhal.SpiMode) (driver.Spi, error) {
	dev, err := c.Spi(ctx, path, baud, mode)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// ConnectI2c implements driver.Manager.
func (c *Client) ConnectI2c(ctx context.Context, path string) (driver.I2c, error) {
	dev, err := c.I2c(ctx, path)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// ConnectPin implements driver.Manager.
func (c *Client) ConnectPin(ctx context.Context, path string, mode rhal.PinMode) (driver.Pin, error) {
	dev, err := c.Pin(ctx, path, mode)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// InitRequest describes one device to bind with Client.Init.
type InitRequest struct {
	path string
	kind rhal.RequestKind
}

// SpiInit requests the SPI device at path.
func SpiInit(path string, baud uint32, mode rhal.SpiMode) InitRequest {
	return InitRequest{path: path, kind: rhal.SpiConnectReq{Baud: baud, Mode: mode}}
}

// I2cInit requests the I2C bus at path.
func I2cInit(path string) InitRequest {
	return InitRequest{path: path, kind: rhal.I2cConnectReq{}}
}

// PinInit requests the GPIO pin at path.
func PinInit(path string, mode rhal.PinMode) InitRequest {
	return InitRequest{path: path, kind: rhal.PinConnectReq{Mode: mode}}
}

// Init binds several devices concurrently.
//
// The returned devices are in the order of reqs: *Spi, *I2c or *Pin. When any bind fails, the
// devices bound so far are closed again and the joined errors are returned.
func (c *Client) Init(ctx context.Context, reqs ...InitRequest) ([]driver.Device, error) {
	devices := make([]driver.Device, len(reqs))
	errs := make([]error, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			devices[i], errs[i] = c.connect(ctx, req)
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		for _, dev := range devices {
			if dev != nil {
				_ = dev.Close()
			}
		}
		return nil, err
	}

	return devices, nil
}

func (c *Client) connect(ctx context.Context, req InitRequest) (driver.Device, error) {
	switch k := req.kind.(type) {
	case rhal.SpiConnectReq:
		return c.ConnectSpi(ctx, req.path, k.Baud, k.Mode)
	case rhal.I2cConnectReq:
		return c.ConnectI2c(ctx, req.path)
	case rhal.PinConnectReq:
		return c.ConnectPin(ctx, req.path, k.Mode)
	default:
		return nil, fmt.Errorf("init %s: unsupported request %s", req.path, rhal.KindString(req.kind))
	}
}

// expectOk sends a request whose only successful answer is rhal.OkRsp.
func (c *Client) expectOk(ctx context.Context, device string, kind rhal.RequestKind) error {
	rsp, err := c.mux.Request(ctx, device, kind)
	if err != nil {
		return err
	}
	if _, ok := rsp.(rhal.OkRsp); !ok {
		return rhal.ErrorFromResponse(rsp)
	}
	return nil
}
