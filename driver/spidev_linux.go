//go:build linux

package driver

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/arloliu/go-rhal/rhal"
)

// spiIocTransfer mirrors struct spi_ioc_transfer.
type spiIocTransfer struct {
	tx          uint64
	rx          uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNBits     uint8
	rxNBits     uint8
	wordDelay   uint8
	pad         uint8
}

type spidev struct {
	f     *os.File
	speed uint32
	bits  uint8
}

// OpenSpidev opens a spidev character device such as /dev/spidev0.0 and configures its
// clock rate and mode.
func OpenSpidev(path string, baud uint32, mode rhal.SpiMode) (Spi, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("open spidev %s: invalid mode %s", path, mode)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open spidev: %w", err)
	}

	dev := &spidev{f: f, speed: baud, bits: 8}

	m := uint8(mode)
	if err := ioctl(f, spiWrMode, uintptr(unsafe.Pointer(&m))); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("set spi mode %s on %s: %w", mode, path, err)
	}
	if err := ioctl(f, spiWrBitsPerWord, uintptr(unsafe.Pointer(&dev.bits))); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("set spi bits per word on %s: %w", path, err)
	}
	if err := ioctl(f, spiWrMaxSpeedHz, uintptr(unsafe.Pointer(&dev.speed))); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("set spi speed %d on %s: %w", baud, path, err)
	}

	return dev, nil
}

func (d *spidev) Transfer(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	tx := make([]byte, len(buf))
	copy(tx, buf)

	xfer := spiIocTransfer{
		tx:          uint64(uintptr(unsafe.Pointer(&tx[0]))),
		rx:          uint64(uintptr(unsafe.Pointer(&buf[0]))),
		length:      uint32(len(buf)),
		speedHz:     d.speed,
		bitsPerWord: d.bits,
	}
	err := ioctl(d.f, spiMessageCode(1), uintptr(unsafe.Pointer(&xfer)))
	runtime.KeepAlive(tx)
	runtime.KeepAlive(buf)
	if err != nil {
		return fmt.Errorf("spi transfer: %w", err)
	}

	return nil
}

func (d *spidev) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if _, err := d.f.Write(data); err != nil {
		return fmt.Errorf("spi write: %w", err)
	}
	return nil
}

func (d *spidev) Close() error {
	return d.f.Close()
}

func ioctl(f *os.File, req, arg uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), req, arg); errno != 0 {
		return errno
	}
	return nil
}
