package rhal

import "fmt"

// SpiMode represents the SPI mode number where clock polarity (CPOL)
// is the high order bit and clock phase (CPHA) is the low order bit.
type SpiMode uint8

const (
	SpiMode0 SpiMode = iota
	SpiMode1
	SpiMode2
	SpiMode3
)

// Valid reports whether m is one of the four defined SPI modes.
func (m SpiMode) Valid() bool { return m <= SpiMode3 }

func (m SpiMode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("SpiMode(%d)", uint8(m))
	}
	return fmt.Sprintf("Mode%d", uint8(m))
}

// PinMode is the direction of a GPIO pin.
type PinMode uint8

const (
	PinInput PinMode = iota
	PinOutput
)

// Valid reports whether m is a defined pin direction.
func (m PinMode) Valid() bool { return m <= PinOutput }

func (m PinMode) String() string {
	switch m {
	case PinInput:
		return "Input"
	case PinOutput:
		return "Output"
	default:
		return fmt.Sprintf("PinMode(%d)", uint8(m))
	}
}

// RequestType is the stable wire tag of a RequestKind.
type RequestType string

// Request types, named after the commands of the rhal CLI.
const (
	PingType          RequestType = "ping"
	SpiConnectType    RequestType = "spi-connect"
	SpiTransferType   RequestType = "spi-transfer"
	SpiWriteType      RequestType = "spi-write"
	SpiDisconnectType RequestType = "spi-disconnect"
	PinConnectType    RequestType = "pin-connect"
	PinSetType        RequestType = "pin-set"
	PinGetType        RequestType = "pin-get"
	PinDisconnectType RequestType = "pin-disconnect"
	I2cConnectType    RequestType = "i2c-connect"
	I2cWriteType      RequestType = "i2c-write"
	I2cReadType       RequestType = "i2c-read"
	I2cWriteReadType  RequestType = "i2c-writeRead"
	I2cDisconnectType RequestType = "i2c-disconnect"
)

// RequestKind is the closed set of operations a client may ask the server to perform.
//
// The set is sealed: only the types declared in this package implement it.
type RequestKind interface {
	// Type returns the wire tag of the kind.
	Type() RequestType
	isRequestKind()
}

type (
	// PingReq checks that the server is alive.
	PingReq struct{}

	// SpiConnectReq binds the SPI device at the request path.
	SpiConnectReq struct {
		// Baud is the SPI clock rate in bps.
		Baud uint32 `json:"baud"`
		// Mode is the SPI clock polarity/phase mode.
		Mode SpiMode `json:"mode"`
	}

	// SpiTransferReq performs a full-duplex transfer, the response carries the bytes read.
	SpiTransferReq struct {
		WriteData Data `json:"write_data"`
	}

	// SpiWriteReq writes bytes and discards the bytes read.
	SpiWriteReq struct {
		WriteData Data `json:"write_data"`
	}

	// SpiDisconnectReq releases the SPI device binding.
	SpiDisconnectReq struct{}

	// PinConnectReq binds the GPIO pin at the request path with the given direction.
	PinConnectReq struct {
		Mode PinMode `json:"mode"`
	}

	// PinSetReq drives an output pin high (true) or low (false).
	PinSetReq struct {
		Value bool `json:"value"`
	}

	// PinGetReq reads the pin level.
	PinGetReq struct{}

	// PinDisconnectReq releases the pin binding.
	PinDisconnectReq struct{}

	// I2cConnectReq binds the I2C bus at the request path.
	I2cConnectReq struct{}

	// I2cWriteReq writes bytes to the peripheral at Addr.
	I2cWriteReq struct {
		Addr      uint8 `json:"addr"`
		WriteData Data  `json:"write_data"`
	}

	// I2cReadReq reads ReadLen bytes from the peripheral at Addr.
	I2cReadReq struct {
		Addr    uint8  `json:"addr"`
		ReadLen uint16 `json:"read_len"`
	}

	// I2cWriteReadReq writes bytes then reads ReadLen bytes in one combined transaction.
	I2cWriteReadReq struct {
		Addr      uint8  `json:"addr"`
		WriteData Data   `json:"write_data"`
		ReadLen   uint16 `json:"read_len"`
	}

	// I2cDisconnectReq releases the I2C bus binding.
	I2cDisconnectReq struct{}

	// UnknownReq is produced when decoding a request whose type tag is not recognized.
	// Servers answer it with UnhandledRsp.
	UnknownReq struct {
		Tag RequestType `json:"-"`
	}
)

func (PingReq) Type() RequestType          { return PingType }
func (SpiConnectReq) Type() RequestType    { return SpiConnectType }
func (SpiTransferReq) Type() RequestType   { return SpiTransferType }
func (SpiWriteReq) Type() RequestType      { return SpiWriteType }
func (SpiDisconnectReq) Type() RequestType { return SpiDisconnectType }
func (PinConnectReq) Type() RequestType    { return PinConnectType }
func (PinSetReq) Type() RequestType        { return PinSetType }
func (PinGetReq) Type() RequestType        { return PinGetType }
func (PinDisconnectReq) Type() RequestType { return PinDisconnectType }
func (I2cConnectReq) Type() RequestType    { return I2cConnectType }
func (I2cWriteReq) Type() RequestType      { return I2cWriteType }
func (I2cReadReq) Type() RequestType       { return I2cReadType }
func (I2cWriteReadReq) Type() RequestType  { return I2cWriteReadType }
func (I2cDisconnectReq) Type() RequestType { return I2cDisconnectType }
func (r UnknownReq) Type() RequestType     { return r.Tag }

func (PingReq) isRequestKind()          {}
func (SpiConnectReq) isRequestKind()    {}
func (SpiTransferReq) isRequestKind()   {}
func (SpiWriteReq) isRequestKind()      {}
func (SpiDisconnectReq) isRequestKind() {}
func (PinConnectReq) isRequestKind()    {}
func (PinSetReq) isRequestKind()        {}
func (PinGetReq) isRequestKind()        {}
func (PinDisconnectReq) isRequestKind() {}
func (I2cConnectReq) isRequestKind()    {}
func (I2cWriteReq) isRequestKind()      {}
func (I2cReadReq) isRequestKind()       {}
func (I2cWriteReadReq) isRequestKind()  {}
func (I2cDisconnectReq) isRequestKind() {}
func (UnknownReq) isRequestKind()       {}

// requestDecoders maps each known request tag to a decoder of its body.
var requestDecoders = map[RequestType]func([]byte) (RequestKind, error){
	PingType:          decodeKind[RequestKind, PingReq],
	SpiConnectType:    decodeKind[RequestKind, SpiConnectReq],
	SpiTransferType:   decodeKind[RequestKind, SpiTransferReq],
	SpiWriteType:      decodeKind[RequestKind, SpiWriteReq],
	SpiDisconnectType: decodeKind[RequestKind, SpiDisconnectReq],
	PinConnectType:    decodeKind[RequestKind, PinConnectReq],
	PinSetType:        decodeKind[RequestKind, PinSetReq],
	PinGetType:        decodeKind[RequestKind, PinGetReq],
	PinDisconnectType: decodeKind[RequestKind, PinDisconnectReq],
	I2cConnectType:    decodeKind[RequestKind, I2cConnectReq],
	I2cWriteType:      decodeKind[RequestKind, I2cWriteReq],
	I2cReadType:       decodeKind[RequestKind, I2cReadReq],
	I2cWriteReadType:  decodeKind[RequestKind, I2cWriteReadReq],
	I2cDisconnectType: decodeKind[RequestKind, I2cDisconnectReq],
}

// ResponseType is the stable wire tag of a ResponseKind.
type ResponseType string

const (
	OkType                 ResponseType = "ok"
	ErrorType              ResponseType = "error"
	UnhandledType          ResponseType = "unhandled"
	DeviceAlreadyBoundType ResponseType = "device-already-bound"
	DeviceNotBoundType     ResponseType = "device-not-bound"
	SpiTransferRspType     ResponseType = "spi-transfer"
	PinGetRspType          ResponseType = "pin-get"
	I2cReadRspType         ResponseType = "i2c-read"
)

// ResponseKind is the closed set of outcomes a server may answer with.
type ResponseKind interface {
	// Type returns the wire tag of the kind.
	Type() ResponseType
	isResponseKind()
}

type (
	// OkRsp reports success of an operation without a result.
	OkRsp struct{}

	// ErrorRsp carries the textual form of a server side failure.
	ErrorRsp struct {
		Message string `json:"message"`
	}

	// UnhandledRsp reports that the server does not support the request kind.
	UnhandledRsp struct{}

	// DeviceAlreadyBoundRsp rejects a connect request for a bound device path.
	DeviceAlreadyBoundRsp struct{}

	// DeviceNotBoundRsp rejects an operation on a device path that is not bound.
	DeviceNotBoundRsp struct{}

	// SpiTransferRsp carries the bytes read during an SPI transfer.
	SpiTransferRsp struct {
		Data Data `json:"data"`
	}

	// PinGetRsp carries the level of a pin.
	PinGetRsp struct {
		Value bool `json:"value"`
	}

	// I2cReadRsp carries the bytes read from an I2C peripheral.
	I2cReadRsp struct {
		Data Data `json:"data"`
	}
)

func (OkRsp) Type() ResponseType                 { return OkType }
func (ErrorRsp) Type() ResponseType              { return ErrorType }
func (UnhandledRsp) Type() ResponseType          { return UnhandledType }
func (DeviceAlreadyBoundRsp) Type() ResponseType { return DeviceAlreadyBoundType }
func (DeviceNotBoundRsp) Type() ResponseType     { return DeviceNotBoundType }
func (SpiTransferRsp) Type() ResponseType        { return SpiTransferRspType }
func (PinGetRsp) Type() ResponseType             { return PinGetRspType }
func (I2cReadRsp) Type() ResponseType            { return I2cReadRspType }

func (OkRsp) isResponseKind()                 {}
func (ErrorRsp) isResponseKind()              {}
func (UnhandledRsp) isResponseKind()          {}
func (DeviceAlreadyBoundRsp) isResponseKind() {}
func (DeviceNotBoundRsp) isResponseKind()     {}
func (SpiTransferRsp) isResponseKind()        {}
func (PinGetRsp) isResponseKind()             {}
func (I2cReadRsp) isResponseKind()            {}

var responseDecoders = map[ResponseType]func([]byte) (ResponseKind, error){
	OkType:                 decodeKind[ResponseKind, OkRsp],
	ErrorType:              decodeKind[ResponseKind, ErrorRsp],
	UnhandledType:          decodeKind[ResponseKind, UnhandledRsp],
	DeviceAlreadyBoundType: decodeKind[ResponseKind, DeviceAlreadyBoundRsp],
	DeviceNotBoundType:     decodeKind[ResponseKind, DeviceNotBoundRsp],
	SpiTransferRspType:     decodeKind[ResponseKind, SpiTransferRsp],
	PinGetRspType:          decodeKind[ResponseKind, PinGetRsp],
	I2cReadRspType:         decodeKind[ResponseKind, I2cReadRsp],
}
