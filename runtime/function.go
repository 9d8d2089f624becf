package runtime

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/engine"
	"github.com/wippyai/wasm-host/errors"
)

// Function is an exported function of an instance.
type Function struct {
	ref   *handleRef
	fn    FunctionRef
	typ   *FuncType
	name  string
	index int
}

func newFunction(ref *handleRef, h Handle, name string, index int, t *FuncType) (*Function, error) {
	fn := h.Function(name)
	if fn == nil {
		return nil, missingExport(ref, "function", name)
	}
	return &Function{ref: ref, fn: fn, typ: t, name: name, index: index}, nil
}

// Name returns the export name.
func (f *Function) Name() string { return f.name }

// Type returns the signature.
func (f *Function) Type() *FuncType { return f.typ }

// Index returns the position of the function in the instance's export list.
func (f *Function) Index() int { return f.index }

// Call converts args with ValueOf, calls the function and returns nil for
// no results, the host value of a single result, or a []any of results.
// Traps are returned as *errors.TrapError.
func (f *Function) Call(ctx context.Context, args ...any) (any, error) {
	if err := f.checkArity(len(args)); err != nil {
		return nil, err
	}
	vals := make([]Value, len(args))
	for i, a := range args {
		v, err := ValueOf(a)
		if err != nil {
			return nil, withPath(err, f.name, argName(i))
		}
		vals[i] = v
	}

	res, err := f.CallValues(ctx, vals...)
	if err != nil {
		return nil, err
	}
	switch len(res) {
	case 0:
		return nil, nil
	case 1:
		return res[0].Any(), nil
	default:
		out := make([]any, len(res))
		for i, r := range res {
			out[i] = r.Any()
		}
		return out, nil
	}
}

// CallValues calls the function with typed arguments. Each argument must
// have exactly the kind of its parameter.
func (f *Function) CallValues(ctx context.Context, args ...Value) ([]Value, error) {
	if err := f.checkArity(len(args)); err != nil {
		return nil, err
	}
	raw := make([]uint64, len(args))
	for i, a := range args {
		if a.kind != f.typ.Params[i] {
			return nil, errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
				Path(f.name, argName(i)).
				GoType(a.kind.String()).
				ValueType(f.typ.Params[i].String()).
				Detail("incompatible argument type").
				Build()
		}
		raw[i] = a.bits
	}

	_, unlock, err := f.ref.acquire("function", f.name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out, err := f.fn.Call(ctx, raw...)
	if err != nil {
		err = engine.TranslateError(err)
		Logger().Debug("call failed",
			zap.String("instance", f.ref.name),
			zap.String("function", f.name),
			zap.Error(err))
		return nil, err
	}

	results := make([]Value, len(f.typ.Results))
	for i, k := range f.typ.Results {
		results[i] = valueFromBits(k, out[i])
	}
	return results, nil
}

func (f *Function) checkArity(n int) error {
	if n != len(f.typ.Params) {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Path(f.name).
			Detail("expected %d arguments, got %d", len(f.typ.Params), n).
			Build()
	}
	return nil
}

func argName(i int) string {
	return fmt.Sprintf("arg[%d]", i)
}

// withPath sets the location of a structured error.
func withPath(err error, path ...string) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		e.Path = path
	}
	return err
}

func missingExport(ref *handleRef, what, name string) error {
	return errors.New(errors.PhaseInstance, errors.KindNotFound).
		Path(ref.name, name).
		Detail("%s export %q not provided by the instance", what, name).
		Build()
}
