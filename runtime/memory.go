package runtime

import (
	wasmhost "github.com/wippyai/wasm-host"
)

const pageSize = 65536

// Memory is an exported linear memory. Accessors are bounds-checked and
// fail once the owning instance is closed.
type Memory struct {
	ref   *handleRef
	mem   MemoryRef
	typ   *MemoryType
	name  string
	index int
}

func newMemory(ref *handleRef, h Handle, name string, index int, t *MemoryType) (*Memory, error) {
	mem := h.Memory(name)
	if mem == nil {
		return nil, missingExport(ref, "memory", name)
	}
	return &Memory{ref: ref, mem: mem, typ: t, name: name, index: index}, nil
}

// Name returns the export name.
func (m *Memory) Name() string { return m.name }

// Type returns the declared limits.
func (m *Memory) Type() *MemoryType { return m.typ }

// Index returns the position of the memory in the instance's export list.
func (m *Memory) Index() int { return m.index }

func (m *Memory) acquire() (func(), error) {
	_, unlock, err := m.ref.acquire("memory", m.name)
	return unlock, err
}

// Size returns the current size in bytes, or 0 once the instance is closed.
func (m *Memory) Size() uint32 {
	unlock, err := m.acquire()
	if err != nil {
		return 0
	}
	defer unlock()
	return m.mem.Size()
}

// Pages returns the current size in 64KiB pages.
func (m *Memory) Pages() uint32 {
	return m.Size() / pageSize
}

// Grow adds delta pages and returns the previous page count.
func (m *Memory) Grow(delta uint32) (uint32, error) {
	unlock, err := m.acquire()
	if err != nil {
		return 0, err
	}
	defer unlock()
	return m.mem.Grow(delta)
}

// Data returns the whole memory. The slice aliases guest memory and is
// invalidated by Grow.
func (m *Memory) Data() ([]byte, error) {
	unlock, err := m.acquire()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return m.mem.Read(0, m.mem.Size())
}

// Read returns length bytes at offset. The slice aliases guest memory.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	unlock, err := m.acquire()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return m.mem.Read(offset, length)
}

// Write copies data into memory at offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	unlock, err := m.acquire()
	if err != nil {
		return err
	}
	defer unlock()
	return m.mem.Write(offset, data)
}

// ReadU8 reads a byte at offset.
func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	unlock, err := m.acquire()
	if err != nil {
		return 0, err
	}
	defer unlock()
	return m.mem.ReadU8(offset)
}

// ReadU16 reads a little-endian uint16 at offset.
func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	unlock, err := m.acquire()
	if err != nil {
		return 0, err
	}
	defer unlock()
	return m.mem.ReadU16(offset)
}

// ReadU32 reads a little-endian uint32 at offset.
func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	unlock, err := m.acquire()
	if err != nil {
		return 0, err
	}
	defer unlock()
	return m.mem.ReadU32(offset)
}

// ReadU64 reads a little-endian uint64 at offset.
func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	unlock, err := m.acquire()
	if err != nil {
		return 0, err
	}
	defer unlock()
	return m.mem.ReadU64(offset)
}

// WriteU8 writes a byte at offset.
func (m *Memory) WriteU8(offset uint32, v uint8) error {
	unlock, err := m.acquire()
	if err != nil {
		return err
	}
	defer unlock()
	return m.mem.WriteU8(offset, v)
}

// WriteU16 writes a little-endian uint16 at offset.
func (m *Memory) WriteU16(offset uint32, v uint16) error {
	unlock, err := m.acquire()
	if err != nil {
		return err
	}
	defer unlock()
	return m.mem.WriteU16(offset, v)
}

// WriteU32 writes a little-endian uint32 at offset.
func (m *Memory) WriteU32(offset uint32, v uint32) error {
	unlock, err := m.acquire()
	if err != nil {
		return err
	}
	defer unlock()
	return m.mem.WriteU32(offset, v)
}

// WriteU64 writes a little-endian uint64 at offset.
func (m *Memory) WriteU64(offset uint32, v uint64) error {
	unlock, err := m.acquire()
	if err != nil {
		return err
	}
	defer unlock()
	return m.mem.WriteU64(offset, v)
}

var (
	_ wasmhost.Memory       = (*Memory)(nil)
	_ wasmhost.MemorySizer  = (*Memory)(nil)
	_ wasmhost.MemoryGrower = (*Memory)(nil)
)
