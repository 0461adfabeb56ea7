//go:build linux

package driver

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"
)

// i2cMsg mirrors struct i2c_msg.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// i2cRdwrData mirrors struct i2c_rdwr_ioctl_data.
type i2cRdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

type i2cdev struct {
	f *os.File
}

// OpenI2cdev opens an i2c-dev bus device such as /dev/i2c-1.
// The "i2c-dev" kernel module must be loaded.
func OpenI2cdev(path string) (I2c, error) {
	f, err := os.OpenFile(path, os.O_RDWR, os.ModeDevice)
	if err != nil {
		return nil, fmt.Errorf("open i2c-dev: %w", err)
	}
	return &i2cdev{f: f}, nil
}

func (d *i2cdev) selectAddr(addr uint8) error {
	if err := ioctl(d.f, i2cSlave, uintptr(addr)); err != nil {
		return fmt.Errorf("select i2c address 0x%02x: %w", addr, err)
	}
	return nil
}

func (d *i2cdev) Read(addr uint8, buf []byte) error {
	if err := d.selectAddr(addr); err != nil {
		return err
	}
	if _, err := d.f.Read(buf); err != nil {
		return fmt.Errorf("i2c read from 0x%02x: %w", addr, err)
	}
	return nil
}

func (d *i2cdev) Write(addr uint8, data []byte) error {
	if err := d.selectAddr(addr); err != nil {
		return err
	}
	if _, err := d.f.Write(data); err != nil {
		return fmt.Errorf("i2c write to 0x%02x: %w", addr, err)
	}
	return nil
}

// WriteRead issues the write and the read as one I2C_RDWR transaction, with a repeated start
// between them.
func (d *i2cdev) WriteRead(addr uint8, data []byte, buf []byte) error {
	msgs := make([]i2cMsg, 0, 2)
	if len(data) > 0 {
		msgs = append(msgs, i2cMsg{addr: uint16(addr), len: uint16(len(data)), buf: uintptr(unsafe.Pointer(&data[0]))})
	}
	if len(buf) > 0 {
		msgs = append(msgs, i2cMsg{addr: uint16(addr), flags: i2cMsgRead, len: uint16(len(buf)), buf: uintptr(unsafe.Pointer(&buf[0]))})
	}
	if len(msgs) == 0 {
		return nil
	}

	rdwr := i2cRdwrData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(len(msgs))}
	err := ioctl(d.f, i2cRdwr, uintptr(unsafe.Pointer(&rdwr)))
	runtime.KeepAlive(msgs)
	runtime.KeepAlive(data)
	runtime.KeepAlive(buf)
	if err != nil {
		return fmt.Errorf("i2c write-read with 0x%02x: %w", addr, err)
	}

	return nil
}

func (d *i2cdev) Close() error {
	return d.f.Close()
}
