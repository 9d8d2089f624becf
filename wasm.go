package wasmhost

// Memory is a bounds-checked view of a linear memory. Offsets are byte
// addresses; multi-byte values are little-endian. Out-of-range access
// fails with an out_of_bounds error instead of panicking.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer reports the current size of a memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// MemoryGrower grows a memory by whole 64KiB pages and returns the
// previous size in pages.
type MemoryGrower interface {
	Grow(deltaPages uint32) (uint32, error)
}
