package eval

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// heapBase keeps address zero free so null pointers stay distinguishable.
const heapBase = 0x1000

// memory is a flat little-endian heap. Locals and allocations share it,
// so taking the address of a local works the same as taking the address
// of heap storage.
type memory struct {
	data  []byte
	next  int64
	sizes map[int64]int64 // live allocation sizes by base address
}

func newMemory() *memory {
	return &memory{next: heapBase, sizes: make(map[int64]int64)}
}

// alloc reserves size bytes at an 8-aligned address. Storage is zeroed.
func (m *memory) alloc(size int64) int64 {
	if size < 1 {
		size = 1
	}
	addr := m.next
	m.next += (size + 7) / 8 * 8
	m.ensure(m.next)
	m.sizes[addr] = size
	return addr
}

// free retires an allocation. The address range is never reused, which
// makes use-after-free reads deterministic in tests.
func (m *memory) free(addr int64) error {
	if addr == 0 {
		return nil
	}
	if _, ok := m.sizes[addr]; !ok {
		return errors.Errorf("free of untracked address %#x", addr)
	}
	delete(m.sizes, addr)
	return nil
}

func (m *memory) allocSize(addr int64) (int64, bool) {
	size, ok := m.sizes[addr]
	return size, ok
}

func (m *memory) ensure(end int64) {
	need := end - heapBase
	if need <= int64(len(m.data)) {
		return
	}
	grown := make([]byte, need*2)
	copy(grown, m.data)
	m.data = grown
}

func (m *memory) check(addr, size int64) error {
	if addr < heapBase || addr+size-heapBase > int64(len(m.data)) {
		return errors.Errorf("access of %d bytes at %#x outside the heap", size, addr)
	}
	return nil
}

// load reads size bytes at addr as an unsigned little-endian word.
func (m *memory) load(addr, size int64) (int64, error) {
	if err := m.check(addr, size); err != nil {
		return 0, err
	}
	var buf [8]byte
	copy(buf[:], m.data[addr-heapBase:addr-heapBase+size])
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// store writes the low size bytes of val at addr.
func (m *memory) store(addr, size, val int64) error {
	if err := m.check(addr, size); err != nil {
		return err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(val))
	copy(m.data[addr-heapBase:addr-heapBase+size], buf[:size])
	return nil
}

func (m *memory) copyBytes(dst, src, n int64) error {
	if err := m.check(src, n); err != nil {
		return err
	}
	if err := m.check(dst, n); err != nil {
		return err
	}
	copy(m.data[dst-heapBase:dst-heapBase+n], m.data[src-heapBase:src-heapBase+n])
	return nil
}

// cstring reads a NUL-terminated string starting at addr.
func (m *memory) cstring(addr int64) (string, error) {
	if err := m.check(addr, 1); err != nil {
		return "", err
	}
	start := addr - heapBase
	for i := start; i < int64(len(m.data)); i++ {
		if m.data[i] == 0 {
			return string(m.data[start:i]), nil
		}
	}
	return "", errors.Errorf("unterminated string at %#x", addr)
}

// internString copies a Go string into the heap with a trailing NUL.
func (m *memory) internString(s string) int64 {
	addr := m.alloc(int64(len(s)) + 1)
	copy(m.data[addr-heapBase:], s)
	return addr
}
