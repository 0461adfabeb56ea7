package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-rhal/rhal"
)

type command struct {
	name  string
	args  string
	nargs int
	build func(args []string) (rhal.RequestKind, error)
}

var commands = []command{
	{"ping", "", 0, func([]string) (rhal.RequestKind, error) { return rhal.PingReq{}, nil }},

	{"spi-connect", "<baud> <mode 0-3>", 2, func(args []string) (rhal.RequestKind, error) {
		baud, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid baud %q", args[0])
		}
		mode, err := parseSpiMode(args[1])
		if err != nil {
			return nil, err
		}
		return rhal.SpiConnectReq{Baud: uint32(baud), Mode: mode}, nil
	}},
	{"spi-transfer", "<data>", 1, func(args []string) (rhal.RequestKind, error) {
		data, err := rhal.ParseData(args[0])
		return rhal.SpiTransferReq{WriteData: data}, err
	}},
	{"spi-write", "<data>", 1, func(args []string) (rhal.RequestKind, error) {
		data, err := rhal.ParseData(args[0])
		return rhal.SpiWriteReq{WriteData: data}, err
	}},
	{"spi-disconnect", "", 0, func([]string) (rhal.RequestKind, error) { return rhal.SpiDisconnectReq{}, nil }},

	{"pin-connect", "<input|output>", 1, func(args []string) (rhal.RequestKind, error) {
		mode, err := parsePinMode(args[0])
		return rhal.PinConnectReq{Mode: mode}, err
	}},
	{"pin-set", "<0|1>", 1, func(args []string) (rhal.RequestKind, error) {
		v, err := parseLevel(args[0])
		return rhal.PinSetReq{Value: v}, err
	}},
	{"pin-get", "", 0, func([]string) (rhal.RequestKind, error) { return rhal.PinGetReq{}, nil }},
	{"pin-disconnect", "", 0, func([]string) (rhal.RequestKind, error) { return rhal.PinDisconnectReq{}, nil }},

	{"i2c-connect", "", 0, func([]string) (rhal.RequestKind, error) { return rhal.I2cConnectReq{}, nil }},
	{"i2c-write", "<addr> <data>", 2, func(args []string) (rhal.RequestKind, error) {
		addr, err := parseAddr(args[0])
		if err != nil {
			return nil, err
		}
		data, err := rhal.ParseData(args[1])
		return rhal.I2cWriteReq{Addr: addr, WriteData: data}, err
	}},
	{"i2c-read", "<addr> <len>", 2, func(args []string) (rhal.RequestKind, error) {
		addr, err := parseAddr(args[0])
		if err != nil {
			return nil, err
		}
		n, err := parseReadLen(args[1])
		return rhal.I2cReadReq{Addr: addr, ReadLen: n}, err
	}},
	{"i2c-writeRead", "<addr> <data> <len>", 3, func(args []string) (rhal.RequestKind, error) {
		addr, err := parseAddr(args[0])
		if err != nil {
			return nil, err
		}
		data, err := rhal.ParseData(args[1])
		if err != nil {
			return nil, err
		}
		n, err := parseReadLen(args[2])
		return rhal.I2cWriteReadReq{Addr: addr, WriteData: data, ReadLen: n}, err
	}},
	{"i2c-disconnect", "", 0, func([]string) (rhal.RequestKind, error) { return rhal.I2cDisconnectReq{}, nil }},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// buildRequest turns a command name and its arguments into a request kind.
func buildRequest(name string, args []string) (rhal.RequestKind, error) {
	cmd, ok := findCommand(name)
	if !ok {
		return nil, fmt.Errorf("unknown command %q", name)
	}
	if len(args) != cmd.nargs {
		return nil, fmt.Errorf("usage: %s %s", cmd.name, cmd.args)
	}

	kind, err := cmd.build(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.name, err)
	}
	return kind, nil
}

func parseSpiMode(s string) (rhal.SpiMode, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || !rhal.SpiMode(n).Valid() {
		return 0, fmt.Errorf("invalid spi mode %q, want 0-3", s)
	}
	return rhal.SpiMode(n), nil
}

func parsePinMode(s string) (rhal.PinMode, error) {
	switch strings.ToLower(s) {
	case "input", "in":
		return rhal.PinInput, nil
	case "output", "out":
		return rhal.PinOutput, nil
	default:
		return 0, fmt.Errorf("invalid pin mode %q, want input or output", s)
	}
}

func parseLevel(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "high":
		return true, nil
	case "low":
		return false, nil
	}

	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid pin value %q", s)
	}
	return v, nil
}

func parseAddr(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid i2c address %q", s)
	}
	return uint8(n), nil
}

func parseReadLen(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid read length %q", s)
	}
	return uint16(n), nil
}

// formatResponse renders a successful answer, or returns the error the answer stands for.
func formatResponse(kind rhal.ResponseKind) (string, error) {
	switch k := kind.(type) {
	case rhal.OkRsp:
		return "ok", nil
	case rhal.SpiTransferRsp:
		return k.Data.String(), nil
	case rhal.I2cReadRsp:
		return k.Data.String(), nil
	case rhal.PinGetRsp:
		if k.Value {
			return "1", nil
		}
		return "0", nil
	default:
		return "", rhal.ErrorFromResponse(kind)
	}
}
