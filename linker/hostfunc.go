package linker

import (
	"context"
	"reflect"
	"strings"
	"unicode"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-host/errors"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	moduleType  = reflect.TypeOf((*api.Module)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// scalarType maps a Go kind to its wasm value type.
func scalarType(t reflect.Type) (api.ValueType, bool) {
	switch t.Kind() {
	case reflect.Int32, reflect.Uint32:
		return api.ValueTypeI32, true
	case reflect.Int64, reflect.Uint64:
		return api.ValueTypeI64, true
	case reflect.Float32:
		return api.ValueTypeF32, true
	case reflect.Float64:
		return api.ValueTypeF64, true
	default:
		return 0, false
	}
}

func decodeParam(t reflect.Type, raw uint64) reflect.Value {
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int32:
		v.SetInt(int64(api.DecodeI32(raw)))
	case reflect.Uint32:
		v.SetUint(uint64(api.DecodeU32(raw)))
	case reflect.Int64:
		v.SetInt(int64(raw))
	case reflect.Uint64:
		v.SetUint(raw)
	case reflect.Float32:
		v.SetFloat(float64(api.DecodeF32(raw)))
	case reflect.Float64:
		v.SetFloat(api.DecodeF64(raw))
	}
	return v
}

func encodeResult(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Int32:
		return api.EncodeI32(int32(v.Int()))
	case reflect.Uint32:
		return api.EncodeU32(uint32(v.Uint()))
	case reflect.Int64:
		return api.EncodeI64(v.Int())
	case reflect.Uint64:
		return v.Uint()
	case reflect.Float32:
		return api.EncodeF32(float32(v.Float()))
	case reflect.Float64:
		return api.EncodeF64(v.Float())
	default:
		return 0
	}
}

// wrapFunc derives the wasm signature of fn and a stack-based handler
// calling it. fn may take a leading context.Context and then an api.Module,
// followed by scalar params; it returns scalars with an optional trailing
// error. A non-nil error traps the calling instance.
func wrapFunc(fn any) (params, results []api.ValueType, handler api.GoModuleFunc, err error) {
	if fn == nil {
		return nil, nil, nil, errors.InvalidInput(errors.PhaseHost, "function handler cannot be nil")
	}
	rv := reflect.ValueOf(fn)
	ft := rv.Type()
	if ft.Kind() != reflect.Func {
		return nil, nil, nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			GoType(ft.String()).
			Detail("handler must be a function").
			Build()
	}
	if ft.IsVariadic() {
		return nil, nil, nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			GoType(ft.String()).
			Detail("variadic functions are not supported").
			Build()
	}

	in := 0
	wantCtx := in < ft.NumIn() && ft.In(in) == contextType
	if wantCtx {
		in++
	}
	wantMod := in < ft.NumIn() && ft.In(in) == moduleType
	if wantMod {
		in++
	}
	firstParam := in

	paramTypes := make([]reflect.Type, 0, ft.NumIn()-in)
	for ; in < ft.NumIn(); in++ {
		t := ft.In(in)
		vt, ok := scalarType(t)
		if !ok {
			return nil, nil, nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
				GoType(t.String()).
				Detail("unsupported parameter %d of %s", in, ft).
				Build()
		}
		params = append(params, vt)
		paramTypes = append(paramTypes, t)
	}

	numOut := ft.NumOut()
	returnsErr := numOut > 0 && ft.Out(numOut-1) == errorType
	if returnsErr {
		numOut--
	}
	for i := 0; i < numOut; i++ {
		vt, ok := scalarType(ft.Out(i))
		if !ok {
			return nil, nil, nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
				GoType(ft.Out(i).String()).
				Detail("unsupported result %d of %s", i, ft).
				Build()
		}
		results = append(results, vt)
	}

	handler = func(ctx context.Context, mod api.Module, stack []uint64) {
		args := make([]reflect.Value, 0, firstParam+len(paramTypes))
		if wantCtx {
			args = append(args, reflect.ValueOf(&ctx).Elem())
		}
		if wantMod {
			args = append(args, reflect.ValueOf(&mod).Elem())
		}
		for i, t := range paramTypes {
			args = append(args, decodeParam(t, stack[i]))
		}

		out := rv.Call(args)
		if returnsErr {
			if errv := out[numOut]; !errv.IsNil() {
				// wazero converts the panic into a trap carrying this error
				panic(errv.Interface().(error))
			}
		}
		for i := 0; i < numOut; i++ {
			stack[i] = encodeResult(out[i])
		}
	}
	return params, results, handler, nil
}

// Host is the interface for struct-based host modules.
// All exported methods (except Namespace) are defined as host functions.
type Host interface {
	// Namespace returns the import module name, e.g. "env".
	Namespace() string
}

// DefineHost defines every exported method of h under h.Namespace(),
// named in snake_case: WriteByte becomes write_byte.
func (l *Linker) DefineHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Name == "Namespace" {
			continue
		}
		if err := l.DefineFunc(ns, toSnakeCase(method.Name), rv.Method(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: GetHTTPURL -> get_http_url
func toSnakeCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word, not part of acronym
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('_')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
