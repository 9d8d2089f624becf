package runtime

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/wasm"
)

// ExternKind identifies what an export or import refers to.
type ExternKind uint8

const (
	KindFunc ExternKind = iota
	KindTable
	KindMemory
	KindGlobal
	KindInstance
	KindModule
)

func (k ExternKind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	case KindInstance:
		return "instance"
	case KindModule:
		return "module"
	default:
		return fmt.Sprintf("ExternKind(%d)", uint8(k))
	}
}

// ExternType is the type of an extern. It is implemented by *FuncType,
// *GlobalType, *MemoryType, *TableType, *InstanceType and *ModuleType.
type ExternType interface {
	Kind() ExternKind
	String() string
	externType()
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValueKind
	Results []ValueKind
}

func (*FuncType) Kind() ExternKind { return KindFunc }
func (*FuncType) externType()      {}

func (t *FuncType) String() string {
	return "func(" + joinKinds(t.Params) + ") -> (" + joinKinds(t.Results) + ")"
}

func joinKinds(ks []ValueKind) string {
	parts := make([]string, len(ks))
	for i, k := range ks {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

// GlobalType is a global's value type and mutability.
type GlobalType struct {
	Value   ValueKind
	Mutable bool
}

func (*GlobalType) Kind() ExternKind { return KindGlobal }
func (*GlobalType) externType()      {}

func (t *GlobalType) String() string {
	if t.Mutable {
		return "global " + t.Value.String() + " mut"
	}
	return "global " + t.Value.String() + " const"
}

// MemoryType holds memory limits in 64KiB pages.
type MemoryType struct {
	Min    uint32
	Max    uint32
	HasMax bool
	Shared bool
}

func (*MemoryType) Kind() ExternKind { return KindMemory }
func (*MemoryType) externType()      {}

func (t *MemoryType) String() string {
	return "memory " + t.limits().String()
}

func (t *MemoryType) limits() wasm.Limits {
	return wasm.Limits{Min: t.Min, Max: t.Max, HasMax: t.HasMax}
}

// RefKind is a table element type.
type RefKind uint8

const (
	FuncRef RefKind = iota
	ExternRef
)

func (k RefKind) String() string {
	if k == ExternRef {
		return "externref"
	}
	return "funcref"
}

// TableType holds a table's element type and limits.
type TableType struct {
	Elem   RefKind
	Min    uint32
	Max    uint32
	HasMax bool
}

func (*TableType) Kind() ExternKind { return KindTable }
func (*TableType) externType()      {}

func (t *TableType) String() string {
	return "table " + t.Elem.String() + " " + t.wasmType().Limits.String()
}

func (t *TableType) wasmType() wasm.TableType {
	elem := wasm.ValFuncRef
	if t.Elem == ExternRef {
		elem = wasm.ValExtern
	}
	return wasm.TableType{Elem: elem, Limits: wasm.Limits{Min: t.Min, Max: t.Max, HasMax: t.HasMax}}
}

// InstanceType lists the exports of a nested instance.
type InstanceType struct {
	Exports []ExportType
}

func (*InstanceType) Kind() ExternKind { return KindInstance }
func (*InstanceType) externType()      {}

func (t *InstanceType) String() string {
	return fmt.Sprintf("instance (%d exports)", len(t.Exports))
}

// ModuleType lists the imports and exports of a nested module.
type ModuleType struct {
	Imports []ImportType
	Exports []ExportType
}

func (*ModuleType) Kind() ExternKind { return KindModule }
func (*ModuleType) externType()      {}

func (t *ModuleType) String() string {
	return fmt.Sprintf("module (%d imports, %d exports)", len(t.Imports), len(t.Exports))
}

// ExportType describes one export.
type ExportType struct {
	Type ExternType
	Name string
}

// Kind returns the export's extern kind.
func (e ExportType) Kind() ExternKind { return e.Type.Kind() }

// ImportType describes one import.
type ImportType struct {
	Type   ExternType
	Module string
	Name   string
}

// Kind returns the import's extern kind.
func (i ImportType) Kind() ExternKind { return i.Type.Kind() }

func funcTypeOf(f *wasm.FuncType) (*FuncType, error) {
	t := &FuncType{
		Params:  make([]ValueKind, len(f.Params)),
		Results: make([]ValueKind, len(f.Results)),
	}
	for i, p := range f.Params {
		k, err := kindOf(p)
		if err != nil {
			return nil, err
		}
		t.Params[i] = k
	}
	for i, r := range f.Results {
		k, err := kindOf(r)
		if err != nil {
			return nil, err
		}
		t.Results[i] = k
	}
	return t, nil
}

func tableTypeOf(t *wasm.TableType) *TableType {
	tt := &TableType{Min: t.Limits.Min, Max: t.Limits.Max, HasMax: t.Limits.HasMax}
	if t.Elem == wasm.ValExtern {
		tt.Elem = ExternRef
	}
	return tt
}

func memoryTypeOf(m *wasm.MemoryType) *MemoryType {
	return &MemoryType{Min: m.Limits.Min, Max: m.Limits.Max, HasMax: m.Limits.HasMax, Shared: m.Shared}
}

func globalTypeOf(g *wasm.GlobalType) (*GlobalType, error) {
	k, err := kindOf(g.Type)
	if err != nil {
		return nil, err
	}
	return &GlobalType{Value: k, Mutable: g.Mutable}, nil
}

func externTypeOf(kind wasm.ExternalKind, f *wasm.FuncType, t *wasm.TableType, m *wasm.MemoryType, g *wasm.GlobalType) (ExternType, error) {
	switch {
	case kind == wasm.KindFunc && f != nil:
		return funcTypeOf(f)
	case kind == wasm.KindTable && t != nil:
		return tableTypeOf(t), nil
	case kind == wasm.KindMemory && m != nil:
		return memoryTypeOf(m), nil
	case kind == wasm.KindGlobal && g != nil:
		return globalTypeOf(g)
	default:
		return nil, errors.InvalidData(errors.PhaseLoad, nil, "missing type for "+kind.String())
	}
}

// exportTypesOf converts parsed export descriptors, keeping their order.
func exportTypesOf(descs []wasm.ExportDesc) ([]ExportType, error) {
	out := make([]ExportType, len(descs))
	for i := range descs {
		d := &descs[i]
		t, err := externTypeOf(d.Kind, d.Func, d.Table, d.Memory, d.Global)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindUnsupported, err, "export "+d.Name)
		}
		out[i] = ExportType{Name: d.Name, Type: t}
	}
	return out, nil
}

func importTypesOf(imports []wasm.Import) ([]ImportType, error) {
	out := make([]ImportType, len(imports))
	for i := range imports {
		imp := &imports[i]
		t, err := externTypeOf(imp.Kind, imp.Func, imp.Table, imp.Memory, imp.Global)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindUnsupported, err,
				"import "+errors.QualifiedName(imp.Module, imp.Name))
		}
		out[i] = ImportType{Module: imp.Module, Name: imp.Name, Type: t}
	}
	return out, nil
}
