package driver

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-rhal/rhal"
)

const (
	sysfsExportPolls    = 50
	sysfsExportInterval = 10 * time.Millisecond
)

// SysfsPin is a GPIO line driven through the sysfs interface, addressed by its
// directory, e.g. /sys/class/gpio/gpio17.
type SysfsPin struct {
	dir      string
	num      int
	exported bool
	value    *os.File
}

// OpenSysfsPin exports the pin at path when it is not exported yet, and sets its direction.
//
// The export and unexport control files are looked up in the parent directory of path.
func OpenSysfsPin(path string, mode rhal.PinMode) (*SysfsPin, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("open pin %s: invalid mode %s", path, mode)
	}

	dir := filepath.Clean(path)
	num, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(dir), "gpio"))
	if err != nil {
		return nil, fmt.Errorf("open pin %s: path is not a sysfs gpio directory", path)
	}

	p := &SysfsPin{dir: dir, num: num}

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := p.control("export"); err != nil {
			return nil, err
		}
		p.exported = true
	}

	if err := p.setDirection(mode); err != nil {
		p.unexport()
		return nil, err
	}

	flags := os.O_RDONLY
	if mode == rhal.PinOutput {
		flags = os.O_RDWR
	}
	p.value, err = os.OpenFile(filepath.Join(dir, "value"), flags, 0)
	if err != nil {
		p.unexport()
		return nil, fmt.Errorf("open pin %s value: %w", path, err)
	}

	return p, nil
}

// setDirection writes the direction attribute, waiting for it to appear after an export.
func (p *SysfsPin) setDirection(mode rhal.PinMode) error {
	dir := "in"
	if mode == rhal.PinOutput {
		dir = "out"
	}

	name := filepath.Join(p.dir, "direction")
	var err error
	for i := 0; i < sysfsExportPolls; i++ {
		if err = os.WriteFile(name, []byte(dir), 0o644); err == nil {
			return nil
		}
		if !p.exported {
			break
		}
		time.Sleep(sysfsExportInterval)
	}

	return fmt.Errorf("set pin %s direction %s: %w", p.dir, dir, err)
}

func (p *SysfsPin) control(file string) error {
	name := filepath.Join(filepath.Dir(p.dir), file)
	if err := os.WriteFile(name, []byte(strconv.Itoa(p.num)), 0o644); err != nil {
		return fmt.Errorf("%s gpio %d: %w", file, p.num, err)
	}
	return nil
}

func (p *SysfsPin) unexport() {
	if p.exported {
		_ = p.control("unexport")
	}
}

// Set writes the pin level.
func (p *SysfsPin) Set(value bool) error {
	v := []byte("0")
	if value {
		v = []byte("1")
	}
	if _, err := p.value.WriteAt(v, 0); err != nil {
		return fmt.Errorf("set pin %s: %w", p.dir, err)
	}
	return nil
}

// Get reads the pin level.
func (p *SysfsPin) Get() (bool, error) {
	buf := make([]byte, 8)
	n, err := p.value.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return false, fmt.Errorf("get pin %s: %w", p.dir, err)
	}

	switch v := string(bytes.TrimSpace(buf[:n])); v {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("get pin %s: unexpected value %q", p.dir, v)
	}
}

// Close closes the value file and unexports the pin if OpenSysfsPin exported it.
func (p *SysfsPin) Close() error {
	err := p.value.Close()
	if p.exported {
		if uerr := p.control("unexport"); uerr != nil && err == nil {
			err = uerr
		}
	}
	return err
}
