package runtime

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-host/wasm"
)

// fakeHandle is a Handle over Go values. Closes are appended to log.
type fakeHandle struct {
	funcs    map[string]FunctionRef
	globals  map[string]GlobalRef
	children map[string]*fakeHandle
	log      *[]string
	name     string
	closes   int
}

func newFakeHandle(name string, log *[]string) *fakeHandle {
	return &fakeHandle{
		name:     name,
		funcs:    map[string]FunctionRef{},
		globals:  map[string]GlobalRef{},
		children: map[string]*fakeHandle{},
		log:      log,
	}
}

func (h *fakeHandle) Name() string { return h.name }

func (h *fakeHandle) Function(name string) FunctionRef {
	if f, ok := h.funcs[name]; ok {
		return f
	}
	return nil
}

func (h *fakeHandle) Global(name string) GlobalRef {
	if g, ok := h.globals[name]; ok {
		return g
	}
	return nil
}

func (h *fakeHandle) Memory(string) MemoryRef { return nil }

func (h *fakeHandle) Instance(name string) (Handle, error) {
	c, ok := h.children[name]
	if !ok {
		return nil, fmt.Errorf("no nested instance %q", name)
	}
	return c, nil
}

func (h *fakeHandle) Close(context.Context) error {
	h.closes++
	if h.log != nil {
		*h.log = append(*h.log, h.name)
	}
	return nil
}

type fakeFunc func(ctx context.Context, params ...uint64) ([]uint64, error)

func (f fakeFunc) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f(ctx, params...)
}

type fakeGlobal struct {
	v uint64
}

func (g *fakeGlobal) Get() uint64  { return g.v }
func (g *fakeGlobal) Set(v uint64) { g.v = v }

func funcExport(name string, params, results []ValueKind) ExportType {
	return ExportType{Name: name, Type: &FuncType{Params: params, Results: results}}
}

func globalExport(name string, k ValueKind, mutable bool) ExportType {
	return ExportType{Name: name, Type: &GlobalType{Value: k, Mutable: mutable}}
}

func instanceExport(name string, exports ...ExportType) ExportType {
	return ExportType{Name: name, Type: &InstanceType{Exports: exports}}
}

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := New(ctx, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })
	return rt
}

func instantiate(t *testing.T, rt *Runtime, bin []byte) *Instance {
	t.Helper()
	ctx := context.Background()
	mod, err := rt.LoadModule(ctx, bin)
	require.NoError(t, err)
	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close(ctx) })
	return inst
}

type kindCase struct {
	name string
	vt   wasm.ValType
}

var numericKinds = []kindCase{
	{"i32", wasm.ValI32},
	{"i64", wasm.ValI64},
	{"f32", wasm.ValF32},
	{"f64", wasm.ValF64},
}

// globalImportModule imports global_<k>_mut and global_<k> for every
// numeric kind from module "" and exports get_/set_ accessors for them.
func globalImportModule() []byte {
	b := wasm.NewBuilder()
	type pair struct{ mut, cst uint32 }
	idx := make([]pair, len(numericKinds))
	for i, k := range numericKinds {
		idx[i].mut = b.ImportGlobal("", "global_"+k.name+"_mut", k.vt, true)
		idx[i].cst = b.ImportGlobal("", "global_"+k.name, k.vt, false)
	}
	for i, k := range numericKinds {
		vt := []wasm.ValType{k.vt}
		b.Export("get_global_"+k.name+"_mut", wasm.KindFunc, b.Func(nil, vt, nil, wasm.GlobalGet(idx[i].mut)))
		b.Export("set_global_"+k.name+"_mut", wasm.KindFunc, b.Func(vt, nil, nil, wasm.LocalGet(0), wasm.GlobalSet(idx[i].mut)))
		b.Export("get_global_"+k.name, wasm.KindFunc, b.Func(nil, vt, nil, wasm.GlobalGet(idx[i].cst)))
	}
	return b.Bytes()
}

// globalExportModule defines and exports a mutable global per numeric
// kind, initialized to 0, 2, 4 and 6, with get_/set_ accessors, plus an
// immutable i32 "answer" set to 42.
func globalExportModule() []byte {
	b := wasm.NewBuilder()
	inits := [][]byte{wasm.I32Const(0), wasm.I64Const(2), wasm.F32Const(4), wasm.F64Const(6)}
	for i, k := range numericKinds {
		g := b.Global(k.vt, true, inits[i])
		vt := []wasm.ValType{k.vt}
		b.Export(k.name, wasm.KindGlobal, g)
		b.Export("get_"+k.name, wasm.KindFunc, b.Func(nil, vt, nil, wasm.GlobalGet(g)))
		b.Export("set_"+k.name, wasm.KindFunc, b.Func(vt, nil, nil, wasm.LocalGet(0), wasm.GlobalSet(g)))
	}
	b.Export("answer", wasm.KindGlobal, b.Global(wasm.ValI32, false, wasm.I32Const(42)))
	return b.Bytes()
}
