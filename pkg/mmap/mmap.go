// Package mmap owns the process-wide mapping of the GPIO register block.
//
// A RegisterMap establishes its mapping lazily on first use, shares it
// between every caller, and serializes all register traffic behind a single
// lock. Callers never see the mapped address; they reach the registers only
// through Transact.
package mmap

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Size is the length of the GPIO register block in bytes.
const Size = 0x1000

var (
	// ErrMap is returned when the register block cannot be mapped.
	ErrMap = errors.New("mmap: cannot map register block")

	// ErrFault is returned when a register access faults.
	ErrFault = errors.New("mmap: register access faulted")
)

// Mapper establishes and tears down a mapping of physical memory.
type Mapper interface {
	Map(base int64, size int) ([]byte, error)
	Unmap(region []byte) error
}

// Registers is the view of the register block handed to a transaction.
// It must not be retained after the transaction returns.
type Registers interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

// Handle identifies one established mapping. Two handles are equal only if
// they refer to the same mapping; a re-established mapping gets a new one.
type Handle struct {
	gen uint64
}

// Generation returns the mapping generation, starting at 1.
func (h Handle) Generation() uint64 {
	return h.gen
}

// Valid reports whether h refers to a mapping at all.
func (h Handle) Valid() bool {
	return h.gen != 0
}

// Stats counts the lifecycle events of a RegisterMap.
type Stats struct {
	Maps         uint64
	Unmaps       uint64
	Transactions uint64
}

// RegisterMap represents the shared mapping of a register block
type RegisterMap struct {
	mapper Mapper
	base   int64

	// mu covers the mapping lifecycle and every register transaction,
	// since the hardware has no field-level atomic update.
	mu     sync.Mutex
	region []byte
	gen    uint64
	stats  Stats
}

// NewRegisterMap creates an unmapped RegisterMap for the block at base.
// Nothing is mapped until the first Acquire or Transact.
func NewRegisterMap(mapper Mapper, base int64) *RegisterMap {
	return &RegisterMap{
		mapper: mapper,
		base:   base,
	}
}

// Base returns the physical base address of the block.
func (m *RegisterMap) Base() int64 {
	return m.base
}

// Acquire establishes the mapping if it does not exist yet and returns its
// handle. Calling it again without Release returns the same handle.
func (m *RegisterMap) Acquire() (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.acquireLocked(); err != nil {
		return Handle{}, err
	}
	return Handle{gen: m.gen}, nil
}

func (m *RegisterMap) acquireLocked() error {
	if m.region != nil {
		return nil
	}

	region, err := m.mapper.Map(m.base, Size)
	if err != nil {
		return fmt.Errorf("%w at %#x: %v", ErrMap, m.base, err)
	}
	if len(region) < Size {
		err := fmt.Errorf("%w at %#x: short mapping of %d bytes", ErrMap, m.base, len(region))
		if uerr := m.mapper.Unmap(region); uerr != nil {
			err = fmt.Errorf("%w (unmap: %v)", err, uerr)
		}
		return err
	}

	m.region = region[:Size]
	m.gen++
	m.stats.Maps++
	return nil
}

// Release unmaps the register block. It is a no-op when nothing is mapped.
// The region is forgotten even if the unmap itself fails, so the next
// Acquire maps afresh rather than reusing a stale address.
func (m *RegisterMap) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.region == nil {
		return nil
	}

	region := m.region
	m.region = nil
	m.stats.Unmaps++
	if err := m.mapper.Unmap(region); err != nil {
		return fmt.Errorf("mmap: unmap at %#x: %w", m.base, err)
	}
	return nil
}

// Mapped reports whether the block is currently mapped.
func (m *RegisterMap) Mapped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.region != nil
}

// Stats returns a snapshot of the lifecycle counters.
func (m *RegisterMap) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Transact runs fn with exclusive access to the registers, mapping the
// block first if needed. A memory fault inside fn is reported as ErrFault.
func (m *RegisterMap) Transact(fn func(Registers) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.acquireLocked(); err != nil {
		return err
	}
	m.stats.Transactions++

	return m.run(fn)
}

func (m *RegisterMap) run(fn func(Registers) error) (err error) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if f, ok := r.(interface{ Addr() uintptr }); ok {
			err = m.faultError(f.Addr())
			return
		}
		panic(r)
	}()

	return fn(window{region: m.region})
}

// faultError reports a fault by register offset; addresses outside the
// block are not reported at all.
func (m *RegisterMap) faultError(addr uintptr) error {
	start := uintptr(unsafe.Pointer(&m.region[0]))
	if addr < start || addr-start >= uintptr(len(m.region)) {
		return fmt.Errorf("%w outside the register block", ErrFault)
	}
	return fmt.Errorf("%w: offset %#x", ErrFault, addr-start)
}

// window gives word access to a mapped region. Accesses go through
// sync/atomic so that every read and write reaches the device.
type window struct {
	region []byte
}

func (w window) word(offset uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(&w.region[offset]))
}

// Read32 reads a 32-bit register
func (w window) Read32(offset uint32) uint32 {
	return atomic.LoadUint32(w.word(offset))
}

// Write32 writes a 32-bit register
func (w window) Write32(offset uint32, value uint32) {
	atomic.StoreUint32(w.word(offset), value)
}
