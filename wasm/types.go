package wasm

import (
	"fmt"
	"strings"
)

// ValType represents a WebAssembly value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	default:
		return fmt.Sprintf("valtype(0x%02x)", byte(v))
	}
}

// IsNumeric reports whether v is one of the four scalar number types.
func (v ValType) IsNumeric() bool {
	return v == ValI32 || v == ValI64 || v == ValF32 || v == ValF64
}

// ExternalKind identifies the kind of an import or export.
type ExternalKind byte

const (
	KindFunc   ExternalKind = 0
	KindTable  ExternalKind = 1
	KindMemory ExternalKind = 2
	KindGlobal ExternalKind = 3
)

func (k ExternalKind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Limits bounds the size of a table or memory.
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

func (l Limits) String() string {
	if l.HasMax {
		return fmt.Sprintf("%d..%d", l.Min, l.Max)
	}
	return fmt.Sprintf("%d..", l.Min)
}

// FuncType represents a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether both signatures have identical params and results.
func (f *FuncType) Equal(o *FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

func (f *FuncType) String() string {
	return "func(" + joinValTypes(f.Params) + ") -> (" + joinValTypes(f.Results) + ")"
}

func joinValTypes(vs []ValType) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// TableType describes a table's element type and limits.
type TableType struct {
	Elem   ValType
	Limits Limits
}

func (t *TableType) String() string {
	return "table " + t.Elem.String() + " " + t.Limits.String()
}

// MemoryType describes a memory's limits in 64KiB pages.
type MemoryType struct {
	Limits Limits
	Shared bool
}

func (m *MemoryType) String() string {
	return "memory " + m.Limits.String()
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	Type    ValType
	Mutable bool
}

func (g *GlobalType) String() string {
	if g.Mutable {
		return "global " + g.Type.String() + " mut"
	}
	return "global " + g.Type.String() + " const"
}

// Import is an entry of the import section. Exactly one of the type
// pointers is set, matching Kind.
type Import struct {
	Module string
	Name   string
	Kind   ExternalKind
	Func   *FuncType
	Table  *TableType
	Memory *MemoryType
	Global *GlobalType
}

// TypeString renders the imported type for diagnostics.
func (i *Import) TypeString() string {
	return typeString(i.Kind, i.Func, i.Table, i.Memory, i.Global)
}

// Export is an entry of the export section.
type Export struct {
	Name  string
	Kind  ExternalKind
	Index uint32
}

// ExportDesc is an export resolved to its type.
type ExportDesc struct {
	Name   string
	Kind   ExternalKind
	Index  uint32
	Func   *FuncType
	Table  *TableType
	Memory *MemoryType
	Global *GlobalType
}

// TypeString renders the exported type for diagnostics.
func (e *ExportDesc) TypeString() string {
	return typeString(e.Kind, e.Func, e.Table, e.Memory, e.Global)
}

func typeString(k ExternalKind, f *FuncType, t *TableType, m *MemoryType, g *GlobalType) string {
	switch {
	case k == KindFunc && f != nil:
		return f.String()
	case k == KindTable && t != nil:
		return t.String()
	case k == KindMemory && m != nil:
		return m.String()
	case k == KindGlobal && g != nil:
		return g.String()
	default:
		return k.String()
	}
}

// Module holds the declarations of a parsed module. Function bodies,
// element and data segments are not retained.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // type indices of defined functions
	Tables   []TableType
	Memories []MemoryType
	Globals  []GlobalType
	Exports  []Export
	Start    *uint32
}

// funcSpace returns the signatures of the function index space.
func (m *Module) funcSpace() ([]*FuncType, error) {
	var space []*FuncType
	for i := range m.Imports {
		if m.Imports[i].Kind == KindFunc {
			space = append(space, m.Imports[i].Func)
		}
	}
	for _, ti := range m.Funcs {
		if int(ti) >= len(m.Types) {
			return nil, fmt.Errorf("function type index %d out of range", ti)
		}
		space = append(space, &m.Types[ti])
	}
	return space, nil
}

// ExportDescs resolves every export to its type, in declaration order.
func (m *Module) ExportDescs() ([]ExportDesc, error) {
	funcs, err := m.funcSpace()
	if err != nil {
		return nil, err
	}
	var tables []*TableType
	var mems []*MemoryType
	var globals []*GlobalType
	for i := range m.Imports {
		imp := &m.Imports[i]
		switch imp.Kind {
		case KindTable:
			tables = append(tables, imp.Table)
		case KindMemory:
			mems = append(mems, imp.Memory)
		case KindGlobal:
			globals = append(globals, imp.Global)
		}
	}
	for i := range m.Tables {
		tables = append(tables, &m.Tables[i])
	}
	for i := range m.Memories {
		mems = append(mems, &m.Memories[i])
	}
	for i := range m.Globals {
		globals = append(globals, &m.Globals[i])
	}

	descs := make([]ExportDesc, 0, len(m.Exports))
	for _, e := range m.Exports {
		d := ExportDesc{Name: e.Name, Kind: e.Kind, Index: e.Index}
		var n int
		switch e.Kind {
		case KindFunc:
			n = len(funcs)
			if int(e.Index) < n {
				d.Func = funcs[e.Index]
			}
		case KindTable:
			n = len(tables)
			if int(e.Index) < n {
				d.Table = tables[e.Index]
			}
		case KindMemory:
			n = len(mems)
			if int(e.Index) < n {
				d.Memory = mems[e.Index]
			}
		case KindGlobal:
			n = len(globals)
			if int(e.Index) < n {
				d.Global = globals[e.Index]
			}
		default:
			return nil, fmt.Errorf("export %q: unknown kind %d", e.Name, e.Kind)
		}
		if int(e.Index) >= n {
			return nil, fmt.Errorf("export %q: %s index %d out of range", e.Name, e.Kind, e.Index)
		}
		descs = append(descs, d)
	}
	return descs, nil
}
