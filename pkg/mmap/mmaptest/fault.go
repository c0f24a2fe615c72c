package mmaptest

import (
	"sync"

	"golang.org/x/sys/unix"
)

// FaultMapper maps inaccessible anonymous memory, so every register access
// through it faults the way a dead bus would.
type FaultMapper struct {
	mu     sync.Mutex
	unmaps int
}

// Map returns size bytes of PROT_NONE memory.
func (f *FaultMapper) Map(base int64, size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

// Unmap releases a region returned by Map.
func (f *FaultMapper) Unmap(region []byte) error {
	f.mu.Lock()
	f.unmaps++
	f.mu.Unlock()
	return unix.Munmap(region)
}

// Unmaps returns the number of Unmap calls.
func (f *FaultMapper) Unmaps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unmaps
}
