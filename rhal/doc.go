// Package rhal defines the remote hardware abstraction layer protocol shared by the go-rhal client and server.
//
// A client drives SPI buses, I2C buses and GPIO pins owned by a remote server. Every operation travels as a
// Request carrying a correlation id, a device path and a RequestKind, and is answered by exactly one Response
// echoing the id with a ResponseKind.
//
// Request Kinds:
//   - PingReq: liveness check, always answered with OkRsp.
//   - SpiConnectReq, SpiTransferReq, SpiWriteReq, SpiDisconnectReq: SPI device binding and transfers.
//   - PinConnectReq, PinSetReq, PinGetReq, PinDisconnectReq: GPIO pin binding and access.
//   - I2cConnectReq, I2cWriteReq, I2cReadReq, I2cWriteReadReq, I2cDisconnectReq: I2C bus binding and transfers.
//
// Response Kinds:
//   - OkRsp, ErrorRsp, UnhandledRsp: generic outcomes.
//   - DeviceAlreadyBoundRsp, DeviceNotBoundRsp: device binding conflicts.
//   - SpiTransferRsp, PinGetRsp, I2cReadRsp: operation results carrying data.
//
// Framing:
// Messages are JSON documents framed by a 4-byte big-endian length header, see Encoder and Decoder.
// Byte payloads are encoded as JSON arrays of numbers so the traffic stays human readable.
//
// Data Literal:
// Data can be parsed from a separator tolerant hex literal such as "0x11:22,33" with ParseData and
// is printed in the canonical bracketed form "[11, 22, 33]".
package rhal
