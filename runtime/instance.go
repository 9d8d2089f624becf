package runtime

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/errors"
)

// Instance is a live module instance. It owns its handle, the extern
// wrappers built from its exports and any nested instances.
//
// Instance is NOT safe for concurrent invocation. Close may race with
// calls: it waits for calls in flight and later calls fail with
// errors.ErrDisposed.
type Instance struct {
	ref        *handleRef
	collection *ExternCollection
	functions  map[string]*Function
	globals    map[string]*Global
	arena      *arena
	module     *Module
	dynamic    *Dynamic
	name       string
	node       int
}

// newInstance takes ownership of h and builds the instance from the
// ordered export list. A nil handle fails with an instantiation error; on
// any failure h is released and no instance is returned.
func newInstance(ctx context.Context, h Handle, exports []ExportType, a *arena, parent int) (*Instance, error) {
	if h == nil {
		return nil, errors.Instantiation(nil)
	}
	if a == nil {
		a = newArena()
	}
	node := a.reserve(parent)
	ref := newHandleRef(h)

	descs := make([]ExportType, len(exports))
	copy(descs, exports)
	defer clear(descs)

	coll, err := newExternCollection(ctx, ref, descs, a, node)
	if err != nil {
		ref.markReleased()
		if cerr := ref.close(ctx); cerr != nil {
			Logger().Warn("release failed instance", zap.String("instance", ref.name), zap.Error(cerr))
		}
		return nil, errors.Instantiation(err)
	}

	inst := &Instance{
		ref:        ref,
		collection: coll,
		arena:      a,
		node:       node,
		name:       ref.name,
	}
	inst.functions = indexByName(ref.name, "function", coll.functions, (*Function).Name)
	inst.globals = indexByName(ref.name, "global", coll.globals, (*Global).Name)
	inst.dynamic = &Dynamic{inst: inst}
	a.attach(node, inst)

	Logger().Debug("instance created",
		zap.String("instance", inst.name),
		zap.Int("functions", len(coll.functions)),
		zap.Int("globals", len(coll.globals)),
		zap.Int("nested", len(coll.instances)))
	return inst, nil
}

// indexByName maps names to items. A later item replaces an earlier one
// with the same name.
func indexByName[T any](instance, kind string, items []T, name func(T) string) map[string]T {
	idx := make(map[string]T, len(items))
	for _, it := range items {
		n := name(it)
		if _, dup := idx[n]; dup {
			Logger().Debug("duplicate export name",
				zap.String("instance", instance),
				zap.String("kind", kind),
				zap.String("name", n))
		}
		idx[n] = it
	}
	return idx
}

// Name returns the runtime name of the instance.
func (i *Instance) Name() string { return i.name }

// Module returns the module the instance was created from, or nil for
// nested instances.
func (i *Instance) Module() *Module { return i.module }

// Parent returns the instance that exports this one, or nil.
func (i *Instance) Parent() *Instance { return i.arena.parent(i.node) }

// IsClosed reports whether Close has been called on the instance or on
// an instance owning it.
func (i *Instance) IsClosed() bool { return i.ref.isReleased() }

// Externs returns the typed partition of the exports.
func (i *Instance) Externs() *ExternCollection { return i.collection }

// Typed views of the exports, in export order. Each call returns a copy.

func (i *Instance) Functions() []*Function       { return i.collection.Functions() }
func (i *Instance) Globals() []*Global           { return i.collection.Globals() }
func (i *Instance) Tables() []*Table             { return i.collection.Tables() }
func (i *Instance) Memories() []*Memory          { return i.collection.Memories() }
func (i *Instance) Instances() []*ExternInstance { return i.collection.Instances() }
func (i *Instance) Modules() []*ExternModule     { return i.collection.Modules() }

// Dynamic returns the name-based front end of the instance.
func (i *Instance) Dynamic() *Dynamic { return i.dynamic }

// Function looks up an exported function by name.
func (i *Instance) Function(name string) (*Function, bool) {
	f, ok := i.functions[name]
	return f, ok
}

// Global looks up an exported global by name.
func (i *Instance) Global(name string) (*Global, bool) {
	g, ok := i.globals[name]
	return g, ok
}

// Memory looks up an exported memory by name.
func (i *Instance) Memory(name string) (*Memory, bool) {
	return lastByName(i.collection.memories, name, (*Memory).Name)
}

// Table looks up an exported table by name.
func (i *Instance) Table(name string) (*Table, bool) {
	return lastByName(i.collection.tables, name, (*Table).Name)
}

// NestedInstance looks up a nested instance export by name.
func (i *Instance) NestedInstance(name string) (*Instance, bool) {
	e, ok := lastByName(i.collection.instances, name, (*ExternInstance).Name)
	if !ok {
		return nil, false
	}
	return e.inst, true
}

// lastByName scans from the end so that lookups agree with indexByName.
func lastByName[T any](items []T, name string, nameOf func(T) string) (T, bool) {
	for j := len(items) - 1; j >= 0; j-- {
		if nameOf(items[j]) == name {
			return items[j], true
		}
	}
	var zero T
	return zero, false
}

// TryGetMember reads the global name. found is false if the instance
// exports no such global.
func (i *Instance) TryGetMember(name string) (v Value, found bool, err error) {
	g, ok := i.globals[name]
	if !ok {
		return Value{}, false, nil
	}
	v, err = g.Get()
	return v, true, err
}

// TrySetMember writes the global name. found is false if the instance
// exports no such global.
func (i *Instance) TrySetMember(name string, v any) (found bool, err error) {
	g, ok := i.globals[name]
	if !ok {
		return false, nil
	}
	return true, g.Set(v)
}

// TryInvokeMember calls the function name with Function.Call semantics.
// found is false if the instance exports no such function.
func (i *Instance) TryInvokeMember(ctx context.Context, name string, args ...any) (result any, found bool, err error) {
	f, ok := i.functions[name]
	if !ok {
		return nil, false, nil
	}
	result, err = f.Call(ctx, args...)
	return result, true, err
}

// GetMember is TryGetMember with a miss reported as errors.ErrLookupMiss.
func (i *Instance) GetMember(name string) (Value, error) {
	v, found, err := i.TryGetMember(name)
	if !found {
		return Value{}, i.lookupMiss("global", name)
	}
	return v, err
}

// SetMember is TrySetMember with a miss reported as errors.ErrLookupMiss.
func (i *Instance) SetMember(name string, v any) error {
	found, err := i.TrySetMember(name, v)
	if !found {
		return i.lookupMiss("global", name)
	}
	return err
}

// InvokeMember is TryInvokeMember with a miss reported as
// errors.ErrLookupMiss.
func (i *Instance) InvokeMember(ctx context.Context, name string, args ...any) (any, error) {
	res, found, err := i.TryInvokeMember(ctx, name, args...)
	if !found {
		return nil, i.lookupMiss("function", name)
	}
	return res, err
}

func (i *Instance) lookupMiss(what, name string) error {
	return errors.New(errors.PhaseRuntime, errors.KindNotFound).
		Path(i.name, name).
		Detail("%s %q not exported by instance %q", what, name, i.name).
		Build()
}

// memberNames returns the sorted names of exported functions and globals.
func (i *Instance) memberNames() []string {
	names := make([]string, 0, len(i.functions)+len(i.globals))
	for n := range i.functions {
		names = append(names, n)
	}
	for n := range i.globals {
		if _, dup := i.functions[n]; !dup {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Close releases the instance. Nested instances are closed first, deepest
// first and in export order, then the externs are invalidated and the
// handle released. Close is idempotent and never fails: release errors
// are logged.
func (i *Instance) Close(ctx context.Context) error {
	if !i.ref.markReleased() {
		return nil
	}
	for _, child := range i.arena.descendants(i.node) {
		child.release(ctx)
	}
	i.collection.dispose(ctx)
	i.closeHandle(ctx)
	Logger().Debug("instance closed", zap.String("instance", i.name))
	return nil
}

// release closes a single node without walking its subtree; Close on the
// root already visits every descendant in order.
func (i *Instance) release(ctx context.Context) {
	if !i.ref.markReleased() {
		return
	}
	i.collection.dispose(ctx)
	i.closeHandle(ctx)
}

func (i *Instance) closeHandle(ctx context.Context) {
	if err := i.ref.close(ctx); err != nil {
		Logger().Warn("release instance handle",
			zap.String("instance", i.name),
			zap.Error(err))
	}
}
