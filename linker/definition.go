package linker

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-host/wasm"
)

// definition is one host-provided item. Its provider module exports the
// item under the definition's own name.
type definition struct {
	provider api.Module
	build    func(ctx context.Context, rt wazero.Runtime, providerName string) (api.Module, error)
	fn       *wasm.FuncType
	global   *wasm.GlobalType
	memory   *wasm.MemoryType
	table    *wasm.TableType
	module   string
	name     string
	kind     wasm.ExternalKind
}

func (d *definition) typeString() string {
	switch d.kind {
	case wasm.KindFunc:
		return d.fn.String()
	case wasm.KindGlobal:
		return d.global.String()
	case wasm.KindMemory:
		return d.memory.String()
	case wasm.KindTable:
		return d.table.String()
	default:
		return d.kind.String()
	}
}

func (d *definition) describe() Definition {
	def := Definition{
		Module: d.module,
		Name:   d.name,
		Kind:   d.kind,
		Type:   d.typeString(),
	}
	if d.provider != nil {
		def.Provider = d.provider.Name()
	}
	return def
}

func newFuncDefinition(module, name string, params, results []api.ValueType, fn api.GoModuleFunc) *definition {
	return &definition{
		module: module,
		name:   name,
		kind:   wasm.KindFunc,
		fn:     &wasm.FuncType{Params: fromAPITypes(params), Results: fromAPITypes(results)},
		build: func(ctx context.Context, rt wazero.Runtime, providerName string) (api.Module, error) {
			return rt.NewHostModuleBuilder(providerName).
				NewFunctionBuilder().
				WithGoModuleFunction(fn, params, results).
				WithName(name).
				Export(name).
				Instantiate(ctx)
		},
	}
}

func newGlobalDefinition(module, name string, t wasm.GlobalType, bits uint64) *definition {
	return &definition{
		module: module,
		name:   name,
		kind:   wasm.KindGlobal,
		global: &t,
		build: func(ctx context.Context, rt wazero.Runtime, providerName string) (api.Module, error) {
			b := wasm.NewBuilder()
			g := b.Global(t.Type, t.Mutable, constExpr(t.Type, bits))
			b.Export(name, wasm.KindGlobal, g)
			return instantiateSynth(ctx, rt, providerName, b.Bytes())
		},
	}
}

func newMemoryDefinition(module, name string, t wasm.MemoryType) *definition {
	return &definition{
		module: module,
		name:   name,
		kind:   wasm.KindMemory,
		memory: &t,
		build: func(ctx context.Context, rt wazero.Runtime, providerName string) (api.Module, error) {
			b := wasm.NewBuilder()
			b.Export(name, wasm.KindMemory, b.Memory(t.Limits))
			return instantiateSynth(ctx, rt, providerName, b.Bytes())
		},
	}
}

func newTableDefinition(module, name string, t wasm.TableType) *definition {
	return &definition{
		module: module,
		name:   name,
		kind:   wasm.KindTable,
		table:  &t,
		build: func(ctx context.Context, rt wazero.Runtime, providerName string) (api.Module, error) {
			b := wasm.NewBuilder()
			b.Export(name, wasm.KindTable, b.Table(t))
			return instantiateSynth(ctx, rt, providerName, b.Bytes())
		},
	}
}

// newReexport binds module::desc.Name to the same export of source.
func newReexport(module string, source api.Module, desc wasm.ExportDesc) *definition {
	return &definition{
		module:   module,
		name:     desc.Name,
		kind:     desc.Kind,
		fn:       desc.Func,
		global:   desc.Global,
		memory:   desc.Memory,
		table:    desc.Table,
		provider: source,
	}
}

// instantiateSynth compiles and instantiates a synthesized provider module.
func instantiateSynth(ctx context.Context, rt wazero.Runtime, providerName string, bin []byte) (api.Module, error) {
	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		return nil, err
	}
	defer compiled.Close(ctx)
	return rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(providerName))
}

func constExpr(t wasm.ValType, bits uint64) []byte {
	switch t {
	case wasm.ValI64:
		return wasm.I64Const(int64(bits))
	case wasm.ValF32:
		return wasm.F32Const(math.Float32frombits(uint32(bits)))
	case wasm.ValF64:
		return wasm.F64Const(math.Float64frombits(bits))
	default:
		return wasm.I32Const(int32(uint32(bits)))
	}
}

func fromAPITypes(ts []api.ValueType) []wasm.ValType {
	out := make([]wasm.ValType, len(ts))
	for i, t := range ts {
		out[i] = wasm.ValType(t)
	}
	return out
}
