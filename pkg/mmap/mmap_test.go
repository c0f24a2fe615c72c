package mmap

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/fkcurrie/bcmgpio/pkg/mmap/mmaptest"
)

// fakeMapper hands out heap memory in place of a device mapping
type fakeMapper struct {
	mu      sync.Mutex
	maps    int
	unmaps  int
	bases   []int64
	failMap error

	// short, when set, makes Map return fewer bytes than asked for.
	short     int
	failUnmap error
}

func (f *fakeMapper) Map(base int64, size int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMap != nil {
		return nil, f.failMap
	}
	f.maps++
	f.bases = append(f.bases, base)
	if f.short > 0 {
		return make([]byte, f.short), nil
	}
	return make([]byte, size), nil
}

func (f *fakeMapper) Unmap(region []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmaps++
	return f.failUnmap
}

func TestAcquireIsIdempotent(t *testing.T) {
	fm := &fakeMapper{}
	m := NewRegisterMap(fm, 0x3F200000)

	h1, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	h2, err := m.Acquire()
	if err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}

	if h1 != h2 {
		t.Errorf("Acquire() handles differ: %v and %v", h1, h2)
	}
	if !h1.Valid() {
		t.Error("Acquire() returned an invalid handle")
	}
	if fm.maps != 1 {
		t.Errorf("mapper.Map called %d times, want 1", fm.maps)
	}
	if fm.bases[0] != 0x3F200000 {
		t.Errorf("mapped base = %#x, want 0x3F200000", fm.bases[0])
	}
}

func TestReleaseThenAcquireRemaps(t *testing.T) {
	fm := &fakeMapper{}
	m := NewRegisterMap(fm, 0xFE200000)

	h1, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := m.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if m.Mapped() {
		t.Fatal("Mapped() = true after Release")
	}

	h2, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire() after Release error = %v", err)
	}
	if h1 == h2 {
		t.Error("Acquire() after Release reused the stale handle")
	}
	if fm.maps != 2 || fm.unmaps != 1 {
		t.Errorf("maps/unmaps = %d/%d, want 2/1", fm.maps, fm.unmaps)
	}

	stats := m.Stats()
	if stats.Maps != 2 || stats.Unmaps != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestReleaseWhenUnmapped(t *testing.T) {
	fm := &fakeMapper{}
	m := NewRegisterMap(fm, 0)

	for i := 0; i < 2; i++ {
		if err := m.Release(); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
	}
	if fm.unmaps != 0 {
		t.Errorf("mapper.Unmap called %d times, want 0", fm.unmaps)
	}
}

func TestAcquireFailure(t *testing.T) {
	fm := &fakeMapper{failMap: errors.New("permission denied")}
	m := NewRegisterMap(fm, 0x3F200000)

	_, err := m.Acquire()
	if !errors.Is(err, ErrMap) {
		t.Fatalf("Acquire() error = %v, want ErrMap", err)
	}
	if m.Mapped() {
		t.Error("Mapped() = true after failed Acquire")
	}

	called := false
	err = m.Transact(func(Registers) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrMap) {
		t.Errorf("Transact() error = %v, want ErrMap", err)
	}
	if called {
		t.Error("Transact() ran the transaction without a mapping")
	}
}

func TestConcurrentAcquireMapsOnce(t *testing.T) {
	fm := &fakeMapper{}
	m := NewRegisterMap(fm, 0x3F200000)

	const callers = 32
	handles := make([]Handle, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := m.Acquire()
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	if fm.maps != 1 {
		t.Errorf("mapper.Map called %d times, want 1", fm.maps)
	}
	for i, h := range handles {
		if h != handles[0] {
			t.Errorf("caller %d got handle %v, want %v", i, h, handles[0])
		}
	}
}

func TestTransactReadWrite(t *testing.T) {
	m := NewRegisterMap(&fakeMapper{}, 0)

	err := m.Transact(func(r Registers) error {
		r.Write32(0x1C, 0xdeadbeef)
		r.Write32(0xFFC, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Transact() error = %v", err)
	}

	var got, last uint32
	m.Transact(func(r Registers) error {
		got = r.Read32(0x1C)
		last = r.Read32(0xFFC)
		return nil
	})
	if got != 0xdeadbeef || last != 1 {
		t.Errorf("Read32() = %#x, %#x", got, last)
	}
	if n := m.Stats().Transactions; n != 2 {
		t.Errorf("Stats().Transactions = %d, want 2", n)
	}
}

func TestTransactPropagatesError(t *testing.T) {
	m := NewRegisterMap(&fakeMapper{}, 0)
	want := errors.New("boom")

	if err := m.Transact(func(Registers) error { return want }); err != want {
		t.Errorf("Transact() error = %v, want %v", err, want)
	}
}

func TestDeviceMapperOffset(t *testing.T) {
	tests := []struct {
		path string
		want int64
	}{
		{GPIOMemDevice, 0},
		{MemDevice, 0xFE200000},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := NewDeviceMapper(tt.path).offset(0xFE200000); got != tt.want {
				t.Errorf("offset() = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestAcquireShortMapping(t *testing.T) {
	fm := &fakeMapper{short: 64, failUnmap: errors.New("EINVAL")}
	m := NewRegisterMap(fm, 0x3F200000)

	_, err := m.Acquire()
	if !errors.Is(err, ErrMap) {
		t.Fatalf("Acquire() error = %v, want ErrMap", err)
	}
	if !strings.Contains(err.Error(), "short mapping of 64 bytes") || !strings.Contains(err.Error(), "unmap: EINVAL") {
		t.Errorf("Acquire() error = %q, want short mapping and unmap failure", err)
	}
	if fm.unmaps != 1 {
		t.Errorf("mapper.Unmap called %d times, want 1", fm.unmaps)
	}
	if m.Mapped() {
		t.Error("Mapped() = true after short mapping")
	}
}

func TestTransactFault(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(Registers)
		offset string
	}{
		{"write", func(r Registers) { r.Write32(0x1C, 1) }, "offset 0x1c"},
		{"read", func(r Registers) { r.Read32(0x34) }, "offset 0x34"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm := &mmaptest.FaultMapper{}
			m := NewRegisterMap(fm, 0x3F200000)

			err := m.Transact(func(r Registers) error {
				tt.fn(r)
				return nil
			})
			if !errors.Is(err, ErrFault) {
				t.Fatalf("Transact() error = %v, want ErrFault", err)
			}
			if !strings.HasSuffix(err.Error(), tt.offset) {
				t.Errorf("Transact() error = %q, want it to end in %q", err, tt.offset)
			}
			if strings.Contains(err.Error(), "address") {
				t.Errorf("Transact() error = %q exposes the mapped address", err)
			}

			// The lock is free again and the mapping can be torn down.
			if !m.Mapped() {
				t.Error("Mapped() = false after a faulting transaction")
			}
			if err := m.Release(); err != nil {
				t.Errorf("Release() error = %v", err)
			}
			if fm.Unmaps() != 1 {
				t.Errorf("mapper.Unmap called %d times, want 1", fm.Unmaps())
			}
		})
	}
}

func TestTransactRepanicsOnOtherPanics(t *testing.T) {
	m := NewRegisterMap(&fakeMapper{}, 0)

	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recover() = %v, want boom", r)
		}
		if _, err := m.Acquire(); err != nil {
			t.Errorf("Acquire() after panic error = %v", err)
		}
	}()
	m.Transact(func(Registers) error { panic("boom") })
}
