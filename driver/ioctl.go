package driver

// Linux ioctl request number layout used by spidev and the generic architectures.
const (
	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

const (
	spiMagic = 'k'

	// sizeof(struct spi_ioc_transfer)
	spiTransferSize = 32
)

const (
	i2cSlave = 0x0703
	i2cRdwr  = 0x0707

	i2cMsgRead = 0x0001
)

// requestCode returns the ioctl request code for the given direction, type, number and size.
func requestCode(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNrShift) | (size << iocSizeShift)
}

// spiMessageCode returns SPI_IOC_MESSAGE(n).
func spiMessageCode(n uintptr) uintptr {
	return requestCode(iocWrite, spiMagic, 0, n*spiTransferSize)
}

var (
	spiWrMode        = requestCode(iocWrite, spiMagic, 1, 1)
	spiWrBitsPerWord = requestCode(iocWrite, spiMagic, 3, 1)
	spiWrMaxSpeedHz  = requestCode(iocWrite, spiMagic, 4, 4)
)
