package mmap

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	// GPIOMemDevice exposes only the GPIO block and is mapped at offset 0.
	GPIOMemDevice = "/dev/gpiomem"

	// MemDevice exposes all of physical memory and is mapped at the
	// block's physical address.
	MemDevice = "/dev/mem"
)

// DeviceMapper maps register blocks through a memory device node
type DeviceMapper struct {
	Path string
}

// NewDeviceMapper creates a mapper for the given device node.
func NewDeviceMapper(path string) *DeviceMapper {
	return &DeviceMapper{Path: path}
}

// Map maps size bytes of the device. /dev/mem is mapped at base, any
// other device (such as /dev/gpiomem) at offset 0.
func (d *DeviceMapper) Map(base int64, size int) ([]byte, error) {
	fd, err := unix.Open(d.Path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", d.Path, err)
	}
	// The mapping stays valid after the descriptor is closed.
	defer unix.Close(fd)

	region, err := unix.Mmap(
		fd,
		d.offset(base),
		size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap %s: %w", d.Path, err)
	}

	return region, nil
}

// Unmap unmaps a region returned by Map.
func (d *DeviceMapper) Unmap(region []byte) error {
	return unix.Munmap(region)
}

func (d *DeviceMapper) offset(base int64) int64 {
	if d.Path == MemDevice {
		return base
	}
	return 0
}
