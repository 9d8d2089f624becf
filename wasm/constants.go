package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs define the binary identifiers for each module section.
const (
	SectionCustom    byte = 0
	SectionType      byte = 1
	SectionImport    byte = 2
	SectionFunction  byte = 3
	SectionTable     byte = 4
	SectionMemory    byte = 5
	SectionGlobal    byte = 6
	SectionExport    byte = 7
	SectionStart     byte = 8
	SectionElement   byte = 9
	SectionCode      byte = 10
	SectionData      byte = 11
	SectionDataCount byte = 12
)

// Value type encodings as defined in the WebAssembly binary format.
const (
	ValI32     ValType = 0x7F
	ValI64     ValType = 0x7E
	ValF32     ValType = 0x7D
	ValF64     ValType = 0x7C
	ValV128    ValType = 0x7B
	ValFuncRef ValType = 0x70
	ValExtern  ValType = 0x6F
)

// FuncTypeByte introduces a function type in the type section.
const FuncTypeByte byte = 0x60

// Limits flags
const (
	limitsHasMax byte = 0x01
	limitsShared byte = 0x02
	limits64     byte = 0x04
)

// Opcodes used by the builder and by constant expressions.
const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpDrop        byte = 0x1A
	OpCall        byte = 0x10
	OpEnd         byte = 0x0B
	OpLocalGet    byte = 0x20
	OpLocalSet    byte = 0x21
	OpGlobalGet   byte = 0x23
	OpGlobalSet   byte = 0x24
	OpI32Const    byte = 0x41
	OpI64Const    byte = 0x42
	OpF32Const    byte = 0x43
	OpF64Const    byte = 0x44
	OpI32Add      byte = 0x6A
	OpI32Sub      byte = 0x6B
	OpI32Mul      byte = 0x6C
	OpI32DivS     byte = 0x6D
	OpI64Add      byte = 0x7C
	OpI64Sub      byte = 0x7D
	OpI64Mul      byte = 0x7E
	OpF32Add      byte = 0x92
	OpF64Add      byte = 0xA0
	OpRefNull     byte = 0xD0
	OpRefFunc     byte = 0xD2
)
