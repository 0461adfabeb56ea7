package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-rhal/rhal"
)

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want rhal.RequestKind
	}{
		{"ping", nil, rhal.PingReq{}},
		{"spi-connect", []string{"1000000", "2"}, rhal.SpiConnectReq{Baud: 1000000, Mode: rhal.SpiMode2}},
		{"spi-transfer", []string{"0xaabb"}, rhal.SpiTransferReq{WriteData: rhal.Data{0xaa, 0xbb}}},
		{"spi-write", []string{"[01, 02]"}, rhal.SpiWriteReq{WriteData: rhal.Data{0x01, 0x02}}},
		{"spi-disconnect", nil, rhal.SpiDisconnectReq{}},
		{"pin-connect", []string{"out"}, rhal.PinConnectReq{Mode: rhal.PinOutput}},
		{"pin-connect", []string{"input"}, rhal.PinConnectReq{Mode: rhal.PinInput}},
		{"pin-set", []string{"1"}, rhal.PinSetReq{Value: true}},
		{"pin-set", []string{"low"}, rhal.PinSetReq{Value: false}},
		{"pin-get", nil, rhal.PinGetReq{}},
		{"pin-disconnect", nil, rhal.PinDisconnectReq{}},
		{"i2c-connect", nil, rhal.I2cConnectReq{}},
		{"i2c-write", []string{"0x48", "10:ff"}, rhal.I2cWriteReq{Addr: 0x48, WriteData: rhal.Data{0x10, 0xff}}},
		{"i2c-read", []string{"72", "4"}, rhal.I2cReadReq{Addr: 0x48, ReadLen: 4}},
		{"i2c-writeRead", []string{"0x48", "00", "2"}, rhal.I2cWriteReadReq{Addr: 0x48, WriteData: rhal.Data{0x00}, ReadLen: 2}},
		{"i2c-disconnect", nil, rhal.I2cDisconnectReq{}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %v", tt.name, tt.args), func(t *testing.T) {
			got, err := buildRequest(tt.name, tt.args)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("buildRequest() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildRequest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"uart-open", nil},
		{"ping", []string{"extra"}},
		{"spi-connect", []string{"1000000"}},
		{"spi-connect", []string{"fast", "0"}},
		{"spi-connect", []string{"1000000", "4"}},
		{"spi-transfer", []string{"0xabc"}},
		{"pin-connect", []string{"analog"}},
		{"pin-set", []string{"maybe"}},
		{"i2c-write", []string{"0x100", "00"}},
		{"i2c-read", []string{"0x48", "70000"}},
		{"i2c-writeRead", []string{"0x48", "zz", "1"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %v", tt.name, tt.args), func(t *testing.T) {
			_, err := buildRequest(tt.name, tt.args)
			require.Error(t, err)
		})
	}
}

func TestFormatResponse(t *testing.T) {
	require := require.New(t)

	out, err := formatResponse(rhal.OkRsp{})
	require.NoError(err)
	require.Equal("ok", out)

	out, err = formatResponse(rhal.SpiTransferRsp{Data: rhal.Data{0x11, 0x22}})
	require.NoError(err)
	require.Equal("[11, 22]", out)

	out, err = formatResponse(rhal.I2cReadRsp{Data: rhal.Data{}})
	require.NoError(err)
	require.Equal("[]", out)

	out, err = formatResponse(rhal.PinGetRsp{Value: true})
	require.NoError(err)
	require.Equal("1", out)

	_, err = formatResponse(rhal.DeviceNotBoundRsp{})
	require.ErrorIs(err, rhal.ErrDeviceNotBound)

	_, err = formatResponse(rhal.UnhandledRsp{})
	require.ErrorIs(err, rhal.ErrUnhandled)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{rhal.ErrTimeout, exitTimeout},
		{fmt.Errorf("spi transfer: %w", &rhal.RemoteError{Message: "bus fault"}), exitRemote},
		{rhal.ErrDeviceAlreadyBound, exitBinding},
		{rhal.ErrDeviceNotBound, exitBinding},
		{rhal.ErrConnClosed, exitConnClosed},
		{rhal.ErrUnhandled, exitOther},
		{errors.New("boom"), exitOther},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}
