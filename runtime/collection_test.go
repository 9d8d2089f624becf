package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-host/errors"
)

// nestedTree builds P exporting a (which exports a1) and b.
func nestedTree(log *[]string) (*fakeHandle, []ExportType) {
	p := newFakeHandle("P", log)
	a := newFakeHandle("a", log)
	a1 := newFakeHandle("a1", log)
	b := newFakeHandle("b", log)
	p.children["a"] = a
	p.children["b"] = b
	a.children["a1"] = a1

	a1.globals["x"] = &fakeGlobal{v: 1}
	b.funcs["f"] = fakeFunc(func(context.Context, ...uint64) ([]uint64, error) {
		return []uint64{7}, nil
	})

	exports := []ExportType{
		instanceExport("a", instanceExport("a1", globalExport("x", I32, true))),
		instanceExport("b", funcExport("f", nil, []ValueKind{I32})),
	}
	return p, exports
}

func TestNestedInstances(t *testing.T) {
	ctx := context.Background()
	var log []string
	p, exports := nestedTree(&log)

	inst, err := newInstance(ctx, p, exports, nil, -1)
	require.NoError(t, err)
	require.Len(t, inst.Instances(), 2)
	require.Nil(t, inst.Parent())

	a, ok := inst.NestedInstance("a")
	require.True(t, ok)
	require.Same(t, inst, a.Parent())
	a1, ok := a.NestedInstance("a1")
	require.True(t, ok)
	require.Same(t, a, a1.Parent())

	v, err := a1.GetMember("x")
	require.NoError(t, err)
	require.Equal(t, int32(1), v.Any())

	b, _ := inst.NestedInstance("b")
	res, err := b.InvokeMember(ctx, "f")
	require.NoError(t, err)
	require.Equal(t, int32(7), res)

	ext := inst.Instances()[0]
	require.Equal(t, "a", ext.Name())
	require.Same(t, a, ext.Instance())
	require.Equal(t, KindInstance, ext.Type().Kind())
}

func TestCloseCascadesDepthFirst(t *testing.T) {
	ctx := context.Background()
	var log []string
	p, exports := nestedTree(&log)

	inst, err := newInstance(ctx, p, exports, nil, -1)
	require.NoError(t, err)
	a, _ := inst.NestedInstance("a")
	a1, _ := a.NestedInstance("a1")
	x, _ := a1.Global("x")

	require.NoError(t, inst.Close(ctx))
	require.Equal(t, []string{"a1", "a", "b", "P"}, log)
	require.True(t, a.IsClosed())
	require.True(t, a1.IsClosed())

	_, err = x.Get()
	require.ErrorIs(t, err, errors.ErrDisposed)

	require.NoError(t, inst.Close(ctx))
	require.NoError(t, a.Close(ctx))
	require.Equal(t, []string{"a1", "a", "b", "P"}, log)
	require.Equal(t, 1, p.closes)
}

func TestCloseChildThenParent(t *testing.T) {
	ctx := context.Background()
	var log []string
	p, exports := nestedTree(&log)

	inst, err := newInstance(ctx, p, exports, nil, -1)
	require.NoError(t, err)
	a, _ := inst.NestedInstance("a")

	require.NoError(t, a.Close(ctx))
	require.Equal(t, []string{"a1", "a"}, log)
	require.False(t, inst.IsClosed())

	b, _ := inst.NestedInstance("b")
	_, err = b.InvokeMember(ctx, "f")
	require.NoError(t, err)

	require.NoError(t, inst.Close(ctx))
	require.Equal(t, []string{"a1", "a", "b", "P"}, log)
}

func TestCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newFakeHandle("solo", nil)
	h.globals["g"] = &fakeGlobal{}

	inst, err := newInstance(ctx, h, []ExportType{globalExport("g", I64, true)}, nil, -1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = inst.Close(ctx)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, h.closes)

	require.ErrorIs(t, inst.SetMember("g", int64(1)), errors.ErrDisposed)
}

func TestNewInstance_NilHandle(t *testing.T) {
	_, err := newInstance(context.Background(), nil, nil, nil, -1)
	require.ErrorIs(t, err, errors.ErrInstantiation)
	require.Contains(t, err.Error(), "failed to create instance")
}

func TestNewInstance_FailureReleasesHandle(t *testing.T) {
	ctx := context.Background()
	var log []string
	h := newFakeHandle("broken", &log)
	child := newFakeHandle("child", &log)
	h.children["child"] = child

	exports := []ExportType{
		instanceExport("child"),
		funcExport("missing", nil, nil),
	}
	_, err := newInstance(ctx, h, exports, nil, -1)
	require.ErrorIs(t, err, errors.ErrInstantiation)
	require.ErrorIs(t, err, errors.ErrLookupMiss)
	require.Contains(t, err.Error(), `function export "missing" not provided`)

	require.Equal(t, 1, h.closes)
	require.Equal(t, 1, child.closes)
	require.Equal(t, []string{"child", "broken"}, log)
}

func TestNewInstance_NestedFailureClosesSiblings(t *testing.T) {
	ctx := context.Background()
	var log []string
	p := newFakeHandle("parent", &log)
	a := newFakeHandle("a", &log)
	a1 := newFakeHandle("a1", &log)
	p.children["a"] = a
	a.children["a1"] = a1

	exports := []ExportType{
		instanceExport("a", instanceExport("a1")),
		instanceExport("b"),
	}
	_, err := newInstance(ctx, p, exports, nil, -1)
	require.ErrorIs(t, err, errors.ErrInstantiation)
	require.Contains(t, err.Error(), "nested instance b")

	require.Equal(t, 1, a.closes)
	require.Equal(t, 1, a1.closes)
	require.Equal(t, 1, p.closes)
	require.Equal(t, []string{"a1", "a", "parent"}, log)
}

func TestNewInstance_MissingNestedInstance(t *testing.T) {
	h := newFakeHandle("parent", nil)
	_, err := newInstance(context.Background(), h, []ExportType{instanceExport("ghost")}, nil, -1)
	require.ErrorIs(t, err, errors.ErrInstantiation)
	require.Equal(t, 1, h.closes)
}

func TestDuplicateNamesLastWins(t *testing.T) {
	ctx := context.Background()
	h := newFakeHandle("dup", nil)
	h.globals["g"] = &fakeGlobal{v: 3}
	h.funcs["f"] = fakeFunc(func(context.Context, ...uint64) ([]uint64, error) { return nil, nil })

	exports := []ExportType{
		globalExport("g", I32, false),
		funcExport("f", nil, nil),
		globalExport("g", I32, true),
		funcExport("f", nil, nil),
	}
	inst, err := newInstance(ctx, h, exports, nil, -1)
	require.NoError(t, err)
	defer inst.Close(ctx)

	require.Len(t, inst.Globals(), 2)
	require.Len(t, inst.Functions(), 2)

	g, ok := inst.Global("g")
	require.True(t, ok)
	require.Equal(t, 2, g.Index())
	require.True(t, g.Mutable())

	f, ok := inst.Function("f")
	require.True(t, ok)
	require.Equal(t, 3, f.Index())

	require.NoError(t, inst.SetMember("g", int32(9)))
	require.Equal(t, []string{"f", "g"}, inst.Dynamic().Members())
}

func TestExternCollectionOrder(t *testing.T) {
	ctx := context.Background()
	h := newFakeHandle("mixed", nil)
	for _, n := range []string{"g0", "g1"} {
		h.globals[n] = &fakeGlobal{}
	}
	h.funcs["f0"] = fakeFunc(func(context.Context, ...uint64) ([]uint64, error) { return nil, nil })

	exports := []ExportType{
		globalExport("g1", F64, true),
		{Name: "tbl", Type: &TableType{Elem: FuncRef, Min: 1}},
		funcExport("f0", nil, nil),
		{Name: "mod", Type: &ModuleType{}},
		globalExport("g0", F32, false),
	}
	inst, err := newInstance(ctx, h, exports, nil, -1)
	require.NoError(t, err)
	defer inst.Close(ctx)

	coll := inst.Externs()
	require.Len(t, coll.Globals(), 2)
	require.Equal(t, "g1", coll.Globals()[0].Name())
	require.Equal(t, "g0", coll.Globals()[1].Name())
	require.Equal(t, 4, coll.Globals()[1].Index())

	tbl, ok := inst.Table("tbl")
	require.True(t, ok)
	require.Equal(t, 1, tbl.Index())
	require.Equal(t, FuncRef, tbl.Type().Elem)

	require.Len(t, inst.Modules(), 1)
	require.Equal(t, "mod", inst.Modules()[0].Name())
	require.Empty(t, inst.Memories())
	require.Empty(t, inst.Instances())

	// the returned slices are copies
	globals := coll.Globals()
	globals[0] = nil
	require.NotNil(t, coll.Globals()[0])
}

func TestArenaDescendants(t *testing.T) {
	a := newArena()
	root := a.reserve(-1)
	c0 := a.reserve(root)
	c00 := a.reserve(c0)
	c1 := a.reserve(root)

	insts := map[int]*Instance{}
	for _, idx := range []int{c00, c0, c1, root} {
		insts[idx] = &Instance{name: string(rune('A' + idx))}
		a.attach(idx, insts[idx])
	}

	got := a.descendants(root)
	require.Equal(t, []*Instance{insts[c00], insts[c0], insts[c1]}, got)
	require.Same(t, insts[c0], a.parent(c00))
	require.Nil(t, a.parent(root))
	require.Empty(t, a.descendants(c1))
}
