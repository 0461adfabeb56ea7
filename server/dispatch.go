package server

import (
	"fmt"

	"github.com/arloliu/go-rhal/driver"
	"github.com/arloliu/go-rhal/rhal"
)

// Handle executes one request against the registry and returns its response kind.
//
// Handle is total: every request yields exactly one response kind. Driver failures become
// rhal.ErrorRsp, kinds the server does not know become rhal.UnhandledRsp.
func (r *Registry) Handle(device string, kind rhal.RequestKind) rhal.ResponseKind {
	return r.handle(noOwner, device, kind)
}

func (r *Registry) handle(owner uint64, device string, kind rhal.RequestKind) (rsp rhal.ResponseKind) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic in device operation", "device", device, "kind", rhal.KindString(kind), "panic", p)
			rsp = rhal.ErrorRsp{Message: fmt.Sprintf("panic: %v", p)}
		}
	}()

	switch k := kind.(type) {
	case rhal.PingReq:
		return rhal.OkRsp{}

	// SPI
	case rhal.SpiConnectReq:
		if !k.Mode.Valid() {
			return rhal.ErrorRsp{Message: fmt.Sprintf("invalid spi mode %d", uint8(k.Mode))}
		}
		return r.spi.connect(owner, device, spiParams{baud: k.Baud, mode: k.Mode})
	case rhal.SpiTransferReq:
		return r.spi.withBound(device, func(dev driver.Spi) rhal.ResponseKind {
			buf := make(rhal.Data, len(k.WriteData))
			copy(buf, k.WriteData)
			if err := dev.Transfer(buf); err != nil {
				return errorRsp(err)
			}
			return rhal.SpiTransferRsp{Data: buf}
		})
	case rhal.SpiWriteReq:
		return r.spi.withBound(device, func(dev driver.Spi) rhal.ResponseKind {
			if err := dev.Write(k.WriteData); err != nil {
				return errorRsp(err)
			}
			return rhal.OkRsp{}
		})
	case rhal.SpiDisconnectReq:
		return r.spi.disconnect(device)

	// Pin
	case rhal.PinConnectReq:
		if !k.Mode.Valid() {
			return rhal.ErrorRsp{Message: fmt.Sprintf("invalid pin mode %d", uint8(k.Mode))}
		}
		return r.pin.connect(owner, device, k.Mode)
	case rhal.PinSetReq:
		return r.pin.withBound(device, func(dev driver.Pin) rhal.ResponseKind {
			if err := dev.Set(k.Value); err != nil {
				return errorRsp(err)
			}
			return rhal.OkRsp{}
		})
	case rhal.PinGetReq:
		return r.pin.withBound(device, func(dev driver.Pin) rhal.ResponseKind {
			v, err := dev.Get()
			if err != nil {
				return errorRsp(err)
			}
			return rhal.PinGetRsp{Value: v}
		})
	case rhal.PinDisconnectReq:
		return r.pin.disconnect(device)

	// I2C
	case rhal.I2cConnectReq:
		return r.i2c.connect(owner, device, struct{}{})
	case rhal.I2cWriteReq:
		return r.i2c.withBound(device, func(dev driver.I2c) rhal.ResponseKind {
			if err := dev.Write(k.Addr, k.WriteData); err != nil {
				return errorRsp(err)
			}
			return rhal.OkRsp{}
		})
	case rhal.I2cReadReq:
		return r.i2c.withBound(device, func(dev driver.I2c) rhal.ResponseKind {
			buf := make(rhal.Data, k.ReadLen)
			if err := dev.Read(k.Addr, buf); err != nil {
				return errorRsp(err)
			}
			return rhal.I2cReadRsp{Data: buf}
		})
	case rhal.I2cWriteReadReq:
		return r.i2c.withBound(device, func(dev driver.I2c) rhal.ResponseKind {
			buf := make(rhal.Data, k.ReadLen)
			if err := dev.WriteRead(k.Addr, k.WriteData, buf); err != nil {
				return errorRsp(err)
			}
			return rhal.I2cReadRsp{Data: buf}
		})
	case rhal.I2cDisconnectReq:
		return r.i2c.disconnect(device)

	default:
		r.logger.Debug("unhandled request", "device", device, "kind", rhal.KindString(kind))
		return rhal.UnhandledRsp{}
	}
}
