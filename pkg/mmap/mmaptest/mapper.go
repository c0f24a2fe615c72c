// Package mmaptest provides a heap-backed Mapper for tests that have no
// register hardware.
package mmaptest

import (
	"encoding/binary"
	"sync"
)

// Mapper hands out zeroed heap memory in place of a device mapping
type Mapper struct {
	mu     sync.Mutex
	region []byte
	maps   int
	unmaps int

	// Err, when set, makes Map fail with it.
	Err error
}

// Map returns a fresh zeroed region of size bytes.
func (m *Mapper) Map(base int64, size int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	m.maps++
	m.region = make([]byte, size)
	return m.region, nil
}

// Unmap forgets the region.
func (m *Mapper) Unmap(region []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unmaps++
	m.region = nil
	return nil
}

// Maps returns the number of successful Map calls.
func (m *Mapper) Maps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maps
}

// Unmaps returns the number of Unmap calls.
func (m *Mapper) Unmaps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unmaps
}

// Word returns the little-endian register at offset of the live region,
// or 0 when nothing is mapped. Callers must not race it against a
// transaction.
func (m *Mapper) Word(offset uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.region == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(m.region[offset:])
}

// SetWord stores value at offset of the live region.
func (m *Mapper) SetWord(offset uint32, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.region != nil {
		binary.LittleEndian.PutUint32(m.region[offset:], value)
	}
}

// Snapshot copies the live region.
func (m *Mapper) Snapshot() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.region...)
}

// Latch does what the controller does in hardware after a set or clear:
// folds the set and clear registers at the given offsets into the level
// register and resets them.
func (m *Mapper) Latch(set, clr, lev uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.region == nil {
		return
	}
	le := binary.LittleEndian
	level := le.Uint32(m.region[lev:])
	level |= le.Uint32(m.region[set:])
	level &^= le.Uint32(m.region[clr:])
	le.PutUint32(m.region[lev:], level)
	le.PutUint32(m.region[set:], 0)
	le.PutUint32(m.region[clr:], 0)
}
