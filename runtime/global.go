package runtime

import (
	"fmt"

	"github.com/wippyai/wasm-host/errors"
)

// Global is an exported global. Reads and writes go to the live runtime
// state, so values set by guest code are visible immediately.
type Global struct {
	ref   *handleRef
	g     GlobalRef
	typ   *GlobalType
	name  string
	index int
}

func newGlobal(ref *handleRef, h Handle, name string, index int, t *GlobalType) (*Global, error) {
	g := h.Global(name)
	if g == nil {
		return nil, missingExport(ref, "global", name)
	}
	return &Global{ref: ref, g: g, typ: t, name: name, index: index}, nil
}

// Name returns the export name.
func (g *Global) Name() string { return g.name }

// Type returns the value type and mutability.
func (g *Global) Type() *GlobalType { return g.typ }

// Kind returns the value type.
func (g *Global) Kind() ValueKind { return g.typ.Value }

// Mutable reports whether the global can be set.
func (g *Global) Mutable() bool { return g.typ.Mutable }

// Index returns the position of the global in the instance's export list.
func (g *Global) Index() int { return g.index }

// Get reads the current value.
func (g *Global) Get() (Value, error) {
	_, unlock, err := g.ref.acquire("global", g.name)
	if err != nil {
		return Value{}, err
	}
	defer unlock()
	return valueFromBits(g.typ.Value, g.g.Get()), nil
}

// Value returns the current value as int32, int64, float32 or float64,
// or nil once the owning instance is closed.
func (g *Global) Value() any {
	v, err := g.Get()
	if err != nil {
		return nil
	}
	return v.Any()
}

// Set writes v, converted with ValueOf. After disposal it fails with
// errors.ErrDisposed whatever v is. An immutable global fails with an
// immutable error and a value of another kind with a type mismatch;
// either way the stored value is unchanged.
func (g *Global) Set(v any) error {
	_, unlock, err := g.ref.acquire("global", g.name)
	if err != nil {
		return err
	}
	defer unlock()

	if !g.typ.Mutable {
		return errors.Immutable(g.name)
	}
	val, err := ValueOf(v)
	if err != nil {
		return withPath(err, g.name)
	}
	if val.kind != g.typ.Value {
		return errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
			Path(g.name).
			GoType(fmt.Sprintf("%T", v)).
			ValueType(g.typ.Value.String()).
			Detail("incompatible type %s for global", val.kind).
			Value(v).
			Build()
	}
	mg, ok := g.g.(MutableGlobalRef)
	if !ok {
		return errors.Immutable(g.name)
	}
	mg.Set(val.bits)
	return nil
}
