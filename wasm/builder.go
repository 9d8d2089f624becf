package wasm

import (
	"encoding/binary"
	"math"
)

// Builder encodes a module from declarations. Imports must be added
// before any definition of the same index space, as the binary format
// places imported entities first.
type Builder struct {
	types    []FuncType
	imports  []Import
	funcs    []builderFunc
	tables   []TableType
	memories []MemoryType
	globals  []builderGlobal
	exports  []Export
	start    *uint32

	importedFuncs    uint32
	importedTables   uint32
	importedMemories uint32
	importedGlobals  uint32
}

type builderFunc struct {
	typeIdx uint32
	locals  []ValType
	body    []byte
}

type builderGlobal struct {
	typ  GlobalType
	init []byte
}

// NewBuilder creates an empty module builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Type returns the index of the signature, adding it if not yet present.
func (b *Builder) Type(params, results []ValType) uint32 {
	ft := FuncType{Params: params, Results: results}
	for i := range b.types {
		if b.types[i].Equal(&ft) {
			return uint32(i)
		}
	}
	b.types = append(b.types, ft)
	return uint32(len(b.types) - 1)
}

// ImportFunc adds a function import and returns its function index.
func (b *Builder) ImportFunc(module, name string, params, results []ValType) uint32 {
	if len(b.funcs) > 0 {
		panic("wasm: function import added after function definitions")
	}
	b.Type(params, results)
	b.imports = append(b.imports, Import{
		Module: module, Name: name, Kind: KindFunc,
		Func: &FuncType{Params: params, Results: results},
	})
	b.importedFuncs++
	return b.importedFuncs - 1
}

// ImportTable adds a table import and returns its table index.
func (b *Builder) ImportTable(module, name string, t TableType) uint32 {
	if len(b.tables) > 0 {
		panic("wasm: table import added after table definitions")
	}
	b.imports = append(b.imports, Import{Module: module, Name: name, Kind: KindTable, Table: &t})
	b.importedTables++
	return b.importedTables - 1
}

// ImportMemory adds a memory import and returns its memory index.
func (b *Builder) ImportMemory(module, name string, l Limits) uint32 {
	if len(b.memories) > 0 {
		panic("wasm: memory import added after memory definitions")
	}
	b.imports = append(b.imports, Import{Module: module, Name: name, Kind: KindMemory, Memory: &MemoryType{Limits: l}})
	b.importedMemories++
	return b.importedMemories - 1
}

// ImportGlobal adds a global import and returns its global index.
func (b *Builder) ImportGlobal(module, name string, t ValType, mutable bool) uint32 {
	if len(b.globals) > 0 {
		panic("wasm: global import added after global definitions")
	}
	b.imports = append(b.imports, Import{Module: module, Name: name, Kind: KindGlobal, Global: &GlobalType{Type: t, Mutable: mutable}})
	b.importedGlobals++
	return b.importedGlobals - 1
}

// Func defines a function. body holds the instructions without the
// trailing end opcode.
func (b *Builder) Func(params, results, locals []ValType, body ...[]byte) uint32 {
	ti := b.Type(params, results)
	b.funcs = append(b.funcs, builderFunc{typeIdx: ti, locals: locals, body: Expr(body...)})
	return b.importedFuncs + uint32(len(b.funcs)-1)
}

// Table defines a table and returns its index.
func (b *Builder) Table(t TableType) uint32 {
	b.tables = append(b.tables, t)
	return b.importedTables + uint32(len(b.tables)-1)
}

// Memory defines a memory and returns its index.
func (b *Builder) Memory(l Limits) uint32 {
	b.memories = append(b.memories, MemoryType{Limits: l})
	return b.importedMemories + uint32(len(b.memories)-1)
}

// Global defines a global with a constant initializer such as I32Const(0).
func (b *Builder) Global(t ValType, mutable bool, init []byte) uint32 {
	b.globals = append(b.globals, builderGlobal{typ: GlobalType{Type: t, Mutable: mutable}, init: init})
	return b.importedGlobals + uint32(len(b.globals)-1)
}

// Export exports the entity of the given kind and index under name.
func (b *Builder) Export(name string, kind ExternalKind, index uint32) *Builder {
	b.exports = append(b.exports, Export{Name: name, Kind: kind, Index: index})
	return b
}

// Start sets the start function.
func (b *Builder) Start(funcIdx uint32) *Builder {
	b.start = &funcIdx
	return b
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	out := binary.LittleEndian.AppendUint32(nil, Magic)
	out = binary.LittleEndian.AppendUint32(out, Version)

	if len(b.types) > 0 {
		sec := AppendULEB128(nil, uint64(len(b.types)))
		for _, ft := range b.types {
			sec = append(sec, FuncTypeByte)
			sec = appendValTypes(sec, ft.Params)
			sec = appendValTypes(sec, ft.Results)
		}
		out = appendSection(out, SectionType, sec)
	}

	if len(b.imports) > 0 {
		sec := AppendULEB128(nil, uint64(len(b.imports)))
		for _, imp := range b.imports {
			sec = appendName(sec, imp.Module)
			sec = appendName(sec, imp.Name)
			sec = append(sec, byte(imp.Kind))
			switch imp.Kind {
			case KindFunc:
				sec = AppendULEB128(sec, uint64(b.Type(imp.Func.Params, imp.Func.Results)))
			case KindTable:
				sec = appendTableType(sec, *imp.Table)
			case KindMemory:
				sec = appendLimits(sec, imp.Memory.Limits)
			case KindGlobal:
				sec = append(sec, byte(imp.Global.Type), boolByte(imp.Global.Mutable))
			}
		}
		out = appendSection(out, SectionImport, sec)
	}

	if len(b.funcs) > 0 {
		sec := AppendULEB128(nil, uint64(len(b.funcs)))
		for _, f := range b.funcs {
			sec = AppendULEB128(sec, uint64(f.typeIdx))
		}
		out = appendSection(out, SectionFunction, sec)
	}

	if len(b.tables) > 0 {
		sec := AppendULEB128(nil, uint64(len(b.tables)))
		for _, t := range b.tables {
			sec = appendTableType(sec, t)
		}
		out = appendSection(out, SectionTable, sec)
	}

	if len(b.memories) > 0 {
		sec := AppendULEB128(nil, uint64(len(b.memories)))
		for _, m := range b.memories {
			sec = appendLimits(sec, m.Limits)
		}
		out = appendSection(out, SectionMemory, sec)
	}

	if len(b.globals) > 0 {
		sec := AppendULEB128(nil, uint64(len(b.globals)))
		for _, g := range b.globals {
			sec = append(sec, byte(g.typ.Type), boolByte(g.typ.Mutable))
			sec = append(sec, g.init...)
			sec = append(sec, OpEnd)
		}
		out = appendSection(out, SectionGlobal, sec)
	}

	if len(b.exports) > 0 {
		sec := AppendULEB128(nil, uint64(len(b.exports)))
		for _, e := range b.exports {
			sec = appendName(sec, e.Name)
			sec = append(sec, byte(e.Kind))
			sec = AppendULEB128(sec, uint64(e.Index))
		}
		out = appendSection(out, SectionExport, sec)
	}

	if b.start != nil {
		out = appendSection(out, SectionStart, AppendULEB128(nil, uint64(*b.start)))
	}

	if len(b.funcs) > 0 {
		sec := AppendULEB128(nil, uint64(len(b.funcs)))
		for _, f := range b.funcs {
			body := appendLocals(nil, f.locals)
			body = append(body, f.body...)
			body = append(body, OpEnd)
			sec = AppendULEB128(sec, uint64(len(body)))
			sec = append(sec, body...)
		}
		out = appendSection(out, SectionCode, sec)
	}

	return out
}

func appendSection(dst []byte, id byte, body []byte) []byte {
	dst = append(dst, id)
	dst = AppendULEB128(dst, uint64(len(body)))
	return append(dst, body...)
}

func appendName(dst []byte, s string) []byte {
	dst = AppendULEB128(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendValTypes(dst []byte, vs []ValType) []byte {
	dst = AppendULEB128(dst, uint64(len(vs)))
	for _, v := range vs {
		dst = append(dst, byte(v))
	}
	return dst
}

func appendLimits(dst []byte, l Limits) []byte {
	if l.HasMax {
		dst = append(dst, limitsHasMax)
		dst = AppendULEB128(dst, uint64(l.Min))
		return AppendULEB128(dst, uint64(l.Max))
	}
	dst = append(dst, 0)
	return AppendULEB128(dst, uint64(l.Min))
}

func appendTableType(dst []byte, t TableType) []byte {
	elem := t.Elem
	if elem == 0 {
		elem = ValFuncRef
	}
	return appendLimits(append(dst, byte(elem)), t.Limits)
}

// appendLocals run-length encodes local declarations.
func appendLocals(dst []byte, locals []ValType) []byte {
	type group struct {
		n uint32
		t ValType
	}
	var groups []group
	for _, l := range locals {
		if len(groups) > 0 && groups[len(groups)-1].t == l {
			groups[len(groups)-1].n++
			continue
		}
		groups = append(groups, group{n: 1, t: l})
	}
	dst = AppendULEB128(dst, uint64(len(groups)))
	for _, g := range groups {
		dst = AppendULEB128(dst, uint64(g.n))
		dst = append(dst, byte(g.t))
	}
	return dst
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Instruction helpers for function bodies and constant expressions.

// Expr concatenates instruction sequences.
func Expr(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Op encodes an instruction without immediates.
func Op(op byte) []byte { return []byte{op} }

func I32Const(v int32) []byte { return AppendSLEB128([]byte{OpI32Const}, int64(v)) }
func I64Const(v int64) []byte { return AppendSLEB128([]byte{OpI64Const}, v) }

func F32Const(v float32) []byte {
	return binary.LittleEndian.AppendUint32([]byte{OpF32Const}, math.Float32bits(v))
}

func F64Const(v float64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{OpF64Const}, math.Float64bits(v))
}

func LocalGet(idx uint32) []byte  { return AppendULEB128([]byte{OpLocalGet}, uint64(idx)) }
func LocalSet(idx uint32) []byte  { return AppendULEB128([]byte{OpLocalSet}, uint64(idx)) }
func GlobalGet(idx uint32) []byte { return AppendULEB128([]byte{OpGlobalGet}, uint64(idx)) }
func GlobalSet(idx uint32) []byte { return AppendULEB128([]byte{OpGlobalSet}, uint64(idx)) }
func Call(funcIdx uint32) []byte  { return AppendULEB128([]byte{OpCall}, uint64(funcIdx)) }
