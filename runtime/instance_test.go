package runtime

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/wasm"
)

func defineAllGlobals(t *testing.T, rt *Runtime) {
	t.Helper()
	require.NoError(t, rt.DefineGlobal("", "global_i32_mut", int32(0), true))
	require.NoError(t, rt.DefineGlobal("", "global_i32", int32(1), false))
	require.NoError(t, rt.DefineGlobal("", "global_i64_mut", int64(2), true))
	require.NoError(t, rt.DefineGlobal("", "global_i64", int64(3), false))
	require.NoError(t, rt.DefineGlobal("", "global_f32_mut", float32(4), true))
	require.NoError(t, rt.DefineGlobal("", "global_f32", float32(5), false))
	require.NoError(t, rt.DefineGlobal("", "global_f64_mut", float64(6), true))
	require.NoError(t, rt.DefineGlobal("", "global_f64", float64(7), false))
}

func TestInstantiate_MissingImport(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	mod, err := rt.LoadModule(ctx, globalImportModule())
	require.NoError(t, err)

	_, err = mod.Instantiate(ctx)
	require.ErrorIs(t, err, errors.ErrInstantiation)
	require.ErrorIs(t, err, errors.ErrLink)
	require.ErrorIs(t, err, errors.ErrMissingImport)
	require.Contains(t, err.Error(), "unknown import: `::global_i32_mut` has not been defined")
}

func TestDefineGlobal_InvalidHostType(t *testing.T) {
	rt := newTestRuntime(t)

	i := new(int32)
	err := rt.DefineGlobal("", "global_i32_mut", i, true)
	require.ErrorIs(t, err, errors.ErrTypeMismatch)
	require.Contains(t, err.Error(), "*int32")

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errors.PhaseHost, e.Phase)
	require.Equal(t, []string{"", "global_i32_mut"}, e.Path)

	_, defined := rt.Linker().Lookup("", "global_i32_mut")
	require.False(t, defined)
}

func TestInstantiate_IncompatibleGlobal(t *testing.T) {
	tests := []struct {
		define func(rt *Runtime) error
		name   string
		bad    string
	}{
		{
			name:   "type mismatch",
			define: func(rt *Runtime) error { return rt.DefineGlobal("", "global_i32_mut", int64(0), true) },
			bad:    "global_i32_mut",
		},
		{
			name:   "not mutable",
			define: func(rt *Runtime) error { return rt.DefineGlobal("", "global_i32_mut", int32(1), false) },
			bad:    "global_i32_mut",
		},
		{
			name: "mutable for const import",
			define: func(rt *Runtime) error {
				if err := rt.DefineGlobal("", "global_i32_mut", int32(0), true); err != nil {
					return err
				}
				return rt.DefineGlobal("", "global_i32", int32(0), true)
			},
			bad: "global_i32",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rt := newTestRuntime(t)
			ctx := context.Background()
			require.NoError(t, tc.define(rt))

			mod, err := rt.LoadModule(ctx, globalImportModule())
			require.NoError(t, err)
			_, err = mod.Instantiate(ctx)
			require.ErrorIs(t, err, errors.ErrIncompatibleImport)
			require.Contains(t, err.Error(), "incompatible import type for `::"+tc.bad+"` specified")
		})
	}
}

func TestGlobalImportBindings(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()
	defineAllGlobals(t, rt)

	inst := instantiate(t, rt, globalImportModule())
	d := inst.Dynamic()

	host := func(name string) *Global {
		g, err := rt.HostGlobal(ctx, "", name)
		require.NoError(t, err)
		return g
	}
	invoke := func(name string, args ...any) any {
		res, found, err := d.Invoke(ctx, name, args...)
		require.NoError(t, err)
		require.True(t, found, name)
		return res
	}

	initial := map[string]any{
		"global_i32_mut": int32(0), "global_i32": int32(1),
		"global_i64_mut": int64(2), "global_i64": int64(3),
		"global_f32_mut": float32(4), "global_f32": float32(5),
		"global_f64_mut": float64(6), "global_f64": float64(7),
	}
	for name, want := range initial {
		require.Equal(t, want, host(name).Value(), name)
		require.Equal(t, want, invoke("get_"+name), name)
	}

	steps := []struct {
		name      string
		hostValue any
		guestSet  any
	}{
		{"i32", int32(10), int32(11)},
		{"i64", int64(12), int64(13)},
		{"f32", float32(14), float32(15)},
		{"f64", float64(16), float64(17)},
	}
	for _, s := range steps {
		g := host("global_" + s.name + "_mut")

		require.NoError(t, g.Set(s.hostValue))
		require.Equal(t, s.hostValue, g.Value())
		require.Equal(t, s.hostValue, invoke("get_global_"+s.name+"_mut"))

		require.Nil(t, invoke("set_global_"+s.name+"_mut", s.guestSet))
		require.Equal(t, s.guestSet, g.Value())
		require.Equal(t, s.guestSet, invoke("get_global_"+s.name+"_mut"))
	}

	// the constant globals are untouched by the writes above
	for _, name := range []string{"global_i32", "global_i64", "global_f32", "global_f64"} {
		require.Equal(t, initial[name], host(name).Value(), name)
	}

	err := host("global_i32").Set(int32(5))
	require.ErrorIs(t, err, errors.ErrImmutable)
}

func TestExportedGlobalRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()
	inst := instantiate(t, rt, globalExportModule())

	steps := []struct {
		name    string
		initial any
		set     any
		guest   any
	}{
		{"i32", int32(0), int32(10), int32(11)},
		{"i64", int64(2), int64(12), int64(13)},
		{"f32", float32(4), float32(14), float32(15)},
		{"f64", float64(6), float64(16), float64(17)},
	}
	for _, s := range steps {
		t.Run(s.name, func(t *testing.T) {
			g, ok := inst.Global(s.name)
			require.True(t, ok)
			require.True(t, g.Mutable())
			require.Equal(t, s.initial, g.Value())

			require.NoError(t, g.Set(s.set))
			v, err := g.Get()
			require.NoError(t, err)
			require.Equal(t, s.set, v.Any())
			res, err := inst.InvokeMember(ctx, "get_"+s.name)
			require.NoError(t, err)
			require.Equal(t, s.set, res)

			_, err = inst.InvokeMember(ctx, "set_"+s.name, s.guest)
			require.NoError(t, err)
			v, err = inst.GetMember(s.name)
			require.NoError(t, err)
			require.Equal(t, s.guest, v.Any())
			res, err = inst.InvokeMember(ctx, "get_"+s.name)
			require.NoError(t, err)
			require.Equal(t, s.guest, res)
		})
	}

	// no leakage between kinds
	want := map[string]any{"i32": int32(11), "i64": int64(13), "f32": float32(15), "f64": float64(17)}
	for name, v := range want {
		got, found, err := inst.Dynamic().Get(name)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, v, got)
	}
}

func TestGlobalMutability(t *testing.T) {
	rt := newTestRuntime(t)
	inst := instantiate(t, rt, globalExportModule())

	answer, ok := inst.Global("answer")
	require.True(t, ok)
	require.False(t, answer.Mutable())

	err := answer.Set(int32(7))
	require.ErrorIs(t, err, errors.ErrImmutable)
	require.NotErrorIs(t, err, errors.ErrTypeMismatch)
	require.Equal(t, int32(42), answer.Value())

	found, err := inst.TrySetMember("answer", int32(7))
	require.True(t, found)
	require.ErrorIs(t, err, errors.ErrImmutable)

	g, _ := inst.Global("i32")
	err = g.Set(int64(1))
	require.ErrorIs(t, err, errors.ErrTypeMismatch)
	require.Contains(t, err.Error(), "incompatible type")
	require.Equal(t, int32(0), g.Value())

	err = g.Set(1)
	require.ErrorIs(t, err, errors.ErrTypeMismatch)
	require.Contains(t, err.Error(), "Go type int")
	require.Equal(t, int32(0), g.Value())

	err = inst.SetMember("i32", 10)
	require.ErrorIs(t, err, errors.ErrTypeMismatch)
	require.NoError(t, inst.SetMember("i32", int32(10)))
	require.Equal(t, int32(10), g.Value())
}

func TestIndexCompleteness(t *testing.T) {
	rt := newTestRuntime(t)
	inst := instantiate(t, rt, globalExportModule())

	mod := inst.Module()
	require.NotNil(t, mod)

	var funcs, globals int
	for _, exp := range mod.Exports() {
		switch exp.Kind() {
		case KindFunc:
			funcs++
			f, ok := inst.Function(exp.Name)
			require.True(t, ok, exp.Name)
			require.Same(t, f, findByName(inst.Functions(), exp.Name, (*Function).Name))
		case KindGlobal:
			globals++
			g, ok := inst.Global(exp.Name)
			require.True(t, ok, exp.Name)
			require.Same(t, g, findByName(inst.Globals(), exp.Name, (*Global).Name))
		}
	}
	require.Len(t, inst.Functions(), funcs)
	require.Len(t, inst.Globals(), globals)

	// export order is kept within each kind
	names := make([]string, 0, len(inst.Globals()))
	for _, g := range inst.Globals() {
		names = append(names, g.Name())
	}
	require.Equal(t, []string{"i32", "i64", "f32", "f64", "answer"}, names)
	require.Equal(t, []string{"answer", "f32", "f64", "get_f32", "get_f64", "get_i32", "get_i64",
		"i32", "i64", "set_f32", "set_f64", "set_i32", "set_i64"}, inst.Dynamic().Members())
}

func findByName[T any](items []T, name string, nameOf func(T) string) T {
	var zero T
	for _, it := range items {
		if nameOf(it) == name {
			return it
		}
	}
	return zero
}

func TestUnknownMember(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()
	inst := instantiate(t, rt, globalExportModule())
	d := inst.Dynamic()

	v, found, err := d.Get("missing")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, v)

	found, err = d.Set("missing", int32(1))
	require.NoError(t, err)
	require.False(t, found)

	res, found, err := d.Invoke(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, res)

	// functions are not members for Get, globals are not for Invoke
	_, found, _ = d.Get("get_i32")
	require.False(t, found)
	_, found, _ = d.Invoke(ctx, "i32")
	require.False(t, found)

	_, err = inst.GetMember("missing")
	require.ErrorIs(t, err, errors.ErrLookupMiss)
	require.ErrorIs(t, inst.SetMember("missing", int32(1)), errors.ErrLookupMiss)
	_, err = inst.InvokeMember(ctx, "missing")
	require.ErrorIs(t, err, errors.ErrLookupMiss)
	require.Contains(t, err.Error(), `function "missing" not exported`)
}

func TestFunctionCall(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	b := wasm.NewBuilder()
	i32 := []wasm.ValType{wasm.ValI32}
	b.Export("add", wasm.KindFunc, b.Func([]wasm.ValType{wasm.ValI32, wasm.ValI32}, i32, nil,
		wasm.LocalGet(0), wasm.LocalGet(1), wasm.Op(wasm.OpI32Add)))
	b.Export("swap", wasm.KindFunc, b.Func([]wasm.ValType{wasm.ValI64, wasm.ValF64}, []wasm.ValType{wasm.ValF64, wasm.ValI64}, nil,
		wasm.LocalGet(1), wasm.LocalGet(0)))
	b.Export("nop", wasm.KindFunc, b.Func(nil, nil, nil))
	inst := instantiate(t, rt, b.Bytes())

	add, ok := inst.Function("add")
	require.True(t, ok)
	require.Equal(t, "func(i32, i32) -> (i32)", add.Type().String())

	res, err := add.Call(ctx, int32(2), int32(-5))
	require.NoError(t, err)
	require.Equal(t, int32(-3), res)

	vals, err := add.CallValues(ctx, ValueI32(1), ValueI32(1))
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(2)}, vals)

	res, err = inst.InvokeMember(ctx, "swap", int64(7), 1.5)
	require.NoError(t, err)
	require.Equal(t, []any{1.5, int64(7)}, res)

	res, err = inst.InvokeMember(ctx, "nop")
	require.NoError(t, err)
	require.Nil(t, res)

	_, err = add.Call(ctx, int32(1))
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected 2 arguments, got 1")

	_, err = add.Call(ctx, int32(1), int64(1))
	require.ErrorIs(t, err, errors.ErrTypeMismatch)
	require.Contains(t, err.Error(), "add.arg[1]")

	_, err = add.Call(ctx, int32(1), 1)
	require.ErrorIs(t, err, errors.ErrTypeMismatch)
	require.Contains(t, err.Error(), "Go type int")
}

func TestTrap(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	b := wasm.NewBuilder()
	inner := b.Func(nil, nil, nil, wasm.Op(wasm.OpUnreachable))
	b.Export("boom", wasm.KindFunc, b.Func(nil, nil, nil, wasm.Call(inner)))
	i32 := []wasm.ValType{wasm.ValI32}
	b.Export("div", wasm.KindFunc, b.Func([]wasm.ValType{wasm.ValI32, wasm.ValI32}, i32, nil,
		wasm.LocalGet(0), wasm.LocalGet(1), wasm.Op(wasm.OpI32DivS)))
	inst := instantiate(t, rt, b.Bytes())

	_, err := inst.InvokeMember(ctx, "boom")
	require.ErrorIs(t, err, errors.ErrTrap)
	var trap *errors.TrapError
	require.ErrorAs(t, err, &trap)
	require.Equal(t, "unreachable", trap.Message)
	require.NotEmpty(t, trap.Frames)

	_, err = inst.InvokeMember(ctx, "div", int32(1), int32(0))
	require.ErrorAs(t, err, &trap)
	require.Equal(t, "integer divide by zero", trap.Message)

	// a trap does not poison the instance
	res, err := inst.InvokeMember(ctx, "div", int32(9), int32(3))
	require.NoError(t, err)
	require.Equal(t, int32(3), res)
}

func TestHostFunctionErrorTraps(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	boom := stderrors.New("host failure")
	require.NoError(t, rt.DefineFunc("env", "fail", func(ctx context.Context, x int32) (int32, error) {
		if x < 0 {
			return 0, boom
		}
		return x * 2, nil
	}))

	b := wasm.NewBuilder()
	i32 := []wasm.ValType{wasm.ValI32}
	fail := b.ImportFunc("env", "fail", i32, i32)
	b.Export("run", wasm.KindFunc, b.Func(i32, i32, nil, wasm.LocalGet(0), wasm.Call(fail)))
	inst := instantiate(t, rt, b.Bytes())

	res, err := inst.InvokeMember(ctx, "run", int32(4))
	require.NoError(t, err)
	require.Equal(t, int32(8), res)

	_, err = inst.InvokeMember(ctx, "run", int32(-1))
	require.ErrorIs(t, err, errors.ErrTrap)
	require.ErrorIs(t, err, boom)
	var trap *errors.TrapError
	require.ErrorAs(t, err, &trap)
	require.Equal(t, "host failure", trap.Message)
}

func TestMemoryExport(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	b := wasm.NewBuilder()
	b.Export("memory", wasm.KindMemory, b.Memory(wasm.Limits{Min: 1, Max: 2, HasMax: true}))
	inst := instantiate(t, rt, b.Bytes())

	mem, ok := inst.Memory("memory")
	require.True(t, ok)
	require.Len(t, inst.Memories(), 1)
	require.Equal(t, "memory 1..2", mem.Type().String())
	require.Equal(t, uint32(1), mem.Pages())

	require.NoError(t, mem.WriteU32(16, 0xdeadbeef))
	v, err := mem.ReadU32(16)
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), v)

	require.NoError(t, mem.Write(100, []byte("hello")))
	data, err := mem.Read(100, 5)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	_, err = mem.ReadU64(pageSize - 4)
	require.ErrorIs(t, err, &errors.Error{Kind: errors.KindOutOfBounds})

	prev, err := mem.Grow(1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(2), mem.Pages())
	_, err = mem.Grow(1)
	require.Error(t, err)

	all, err := mem.Data()
	require.NoError(t, err)
	require.Len(t, all, 2*pageSize)

	require.NoError(t, inst.Close(ctx))
	_, err = mem.ReadU32(16)
	require.ErrorIs(t, err, errors.ErrDisposed)
	require.Equal(t, uint32(0), mem.Size())
}

func TestHostMemory(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()
	require.NoError(t, rt.DefineMemory("env", "memory", MemoryType{Min: 1}))

	b := wasm.NewBuilder()
	b.Export("memory", wasm.KindMemory, b.ImportMemory("env", "memory", wasm.Limits{Min: 1}))
	inst := instantiate(t, rt, b.Bytes())

	host, err := rt.HostMemory(ctx, "env", "memory")
	require.NoError(t, err)
	require.Equal(t, "memory 1..", host.Type().String())
	require.NoError(t, host.WriteU16(2, 0xbeef))

	mem, _ := inst.Memory("memory")
	v, err := mem.ReadU16(2)
	require.NoError(t, err)
	require.Equal(t, uint16(0xbeef), v)

	_, err = rt.HostMemory(ctx, "env", "missing")
	require.ErrorIs(t, err, errors.ErrLookupMiss)

	require.NoError(t, rt.DefineGlobal("env", "g", int32(0), false))
	_, err = rt.HostMemory(ctx, "env", "g")
	require.ErrorIs(t, err, errors.ErrTypeMismatch)
}

func TestRedefinitionIsolation(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	b := wasm.NewBuilder()
	g := b.ImportGlobal("env", "seed", wasm.ValI64, false)
	b.Export("seed", wasm.KindFunc, b.Func(nil, []wasm.ValType{wasm.ValI64}, nil, wasm.GlobalGet(g)))
	mod, err := rt.LoadModule(ctx, b.Bytes())
	require.NoError(t, err)

	require.NoError(t, rt.DefineGlobal("env", "seed", int64(1), false))
	first, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer first.Close(ctx)

	require.NoError(t, rt.DefineGlobal("env", "seed", int64(2), false))
	second, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer second.Close(ctx)

	res, err := first.InvokeMember(ctx, "seed")
	require.NoError(t, err)
	require.Equal(t, int64(1), res)
	res, err = second.InvokeMember(ctx, "seed")
	require.NoError(t, err)
	require.Equal(t, int64(2), res)
}

func TestWithoutShadowing(t *testing.T) {
	rt := newTestRuntime(t, WithoutShadowing())
	require.NoError(t, rt.DefineGlobal("env", "g", int32(1), false))
	require.Error(t, rt.DefineGlobal("env", "g", int32(2), false))
}

func TestDefineInstance(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	lib := instantiate(t, rt, globalExportModule())
	require.NoError(t, rt.DefineInstance("lib", lib))

	b := wasm.NewBuilder()
	i64 := []wasm.ValType{wasm.ValI64}
	get := b.ImportFunc("lib", "get_i64", nil, i64)
	set := b.ImportFunc("lib", "set_i64", i64, nil)
	b.Export("bump", wasm.KindFunc, b.Func(nil, i64, nil,
		wasm.Call(get), wasm.I64Const(100), wasm.Op(wasm.OpI64Add), wasm.Call(set),
		wasm.Call(get)))
	user := instantiate(t, rt, b.Bytes())

	res, err := user.InvokeMember(ctx, "bump")
	require.NoError(t, err)
	require.Equal(t, int64(102), res)

	v, err := lib.GetMember("i64")
	require.NoError(t, err)
	require.Equal(t, int64(102), v.Any())

	require.NoError(t, lib.Close(ctx))
	require.ErrorIs(t, rt.DefineInstance("again", lib), errors.ErrDisposed)
}

func TestInstanceClose(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()
	inst := instantiate(t, rt, globalExportModule())

	g, _ := inst.Global("i32")
	answer, _ := inst.Global("answer")
	f, _ := inst.Function("get_i32")

	require.NoError(t, inst.Close(ctx))
	require.NoError(t, inst.Close(ctx))
	require.True(t, inst.IsClosed())

	_, err := g.Get()
	require.ErrorIs(t, err, errors.ErrDisposed)
	require.ErrorIs(t, g.Set(int32(1)), errors.ErrDisposed)
	require.Nil(t, g.Value())

	// disposal is reported before mutability or type checks
	err = answer.Set(int32(1))
	require.ErrorIs(t, err, errors.ErrDisposed)
	require.NotErrorIs(t, err, errors.ErrImmutable)
	require.ErrorIs(t, g.Set(int64(1)), errors.ErrDisposed)
	_, err = f.Call(ctx)
	require.ErrorIs(t, err, errors.ErrDisposed)

	_, found, err := inst.Dynamic().Invoke(ctx, "get_i32")
	require.True(t, found)
	require.ErrorIs(t, err, errors.ErrDisposed)
}

func TestModuleLifecycle(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	_, err := rt.LoadModule(ctx, []byte("not wasm"))
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLoad})

	mod, err := rt.LoadModuleNamed(ctx, "globals", globalImportModule())
	require.NoError(t, err)
	require.Equal(t, "globals", mod.Name())
	require.Len(t, mod.Imports(), 8)
	require.Equal(t, "global i32 mut", mod.Imports()[0].Type.String())
	require.Equal(t, KindGlobal, mod.Imports()[0].Kind())

	defineAllGlobals(t, rt)
	inst, err := mod.InstantiateNamed(ctx, "custom")
	require.NoError(t, err)
	require.Equal(t, "custom", inst.Name())
	require.Same(t, mod, inst.Module())

	_, err = mod.InstantiateNamed(ctx, "custom")
	require.ErrorIs(t, err, errors.ErrInstantiation)
	require.NoError(t, inst.Close(ctx))

	require.NoError(t, mod.Close(ctx))
	require.NoError(t, mod.Close(ctx))
	_, err = mod.Instantiate(ctx)
	require.ErrorIs(t, err, errors.ErrDisposed)

	require.NoError(t, rt.Close(ctx))
	require.NoError(t, rt.Close(ctx))
	_, err = rt.LoadModule(ctx, globalImportModule())
	require.Error(t, err)
}

func TestLoadModule_EmptyImportModule(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	// nothing is defined yet: loading validates without binding
	mod, err := rt.LoadModule(ctx, globalImportModule())
	require.NoError(t, err)
	require.Equal(t, "", mod.Imports()[0].Module)

	// a body that does not validate still fails at load
	b := wasm.NewBuilder()
	b.ImportGlobal("", "g", wasm.ValI32, false)
	b.Export("bad", wasm.KindFunc, b.Func(nil, []wasm.ValType{wasm.ValI32}, nil))
	_, err = rt.LoadModule(ctx, b.Bytes())
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLoad})
}

func TestReexportedHostFunction(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()
	require.NoError(t, rt.DefineFunc("env", "inc", func(x int32) int32 { return x + 1 }))

	b := wasm.NewBuilder()
	i32 := []wasm.ValType{wasm.ValI32}
	inc := b.ImportFunc("env", "inc", i32, i32)
	b.Export("inc", wasm.KindFunc, inc)
	b.Export("inc2", wasm.KindFunc, b.Func(i32, i32, nil, wasm.LocalGet(0), wasm.Call(inc), wasm.Call(inc)))
	inst := instantiate(t, rt, b.Bytes())

	f, ok := inst.Function("inc")
	require.True(t, ok)
	require.Equal(t, "func(i32) -> (i32)", f.Type().String())
	require.Equal(t, 0, f.Index())

	res, err := f.Call(ctx, int32(4))
	require.NoError(t, err)
	require.Equal(t, int32(5), res)

	res, err = inst.InvokeMember(ctx, "inc2", int32(4))
	require.NoError(t, err)
	require.Equal(t, int32(6), res)

	require.NoError(t, inst.Close(ctx))
	_, err = f.Call(ctx, int32(1))
	require.ErrorIs(t, err, errors.ErrDisposed)
}

func TestStartFunctionTrap(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	b := wasm.NewBuilder()
	b.Start(b.Func(nil, nil, nil, wasm.Op(wasm.OpUnreachable)))
	mod, err := rt.LoadModule(ctx, b.Bytes())
	require.NoError(t, err)

	_, err = mod.Instantiate(ctx)
	require.ErrorIs(t, err, errors.ErrInstantiation)
	require.ErrorIs(t, err, errors.ErrTrap)
}
