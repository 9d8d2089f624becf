package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-host/runtime"
)

func parseKind(s string) (runtime.ValueKind, error) {
	switch strings.ToLower(s) {
	case "i32":
		return runtime.I32, nil
	case "i64":
		return runtime.I64, nil
	case "f32":
		return runtime.F32, nil
	case "f64":
		return runtime.F64, nil
	default:
		return 0, fmt.Errorf("unknown value kind %q (expected i32, i64, f32 or f64)", s)
	}
}

// parseValue converts s to the Go type ValueOf maps to k. Integers accept
// the full signed and unsigned range and any Go literal prefix.
func parseValue(k runtime.ValueKind, s string) (any, error) {
	switch k {
	case runtime.I32:
		if v, err := strconv.ParseInt(s, 0, 32); err == nil {
			return int32(v), nil
		}
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid i32 %q", s)
		}
		return uint32(v), nil
	case runtime.I64:
		if v, err := strconv.ParseInt(s, 0, 64); err == nil {
			return v, nil
		}
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid i64 %q", s)
		}
		return v, nil
	case runtime.F32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid f32 %q", s)
		}
		return float32(v), nil
	case runtime.F64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid f64 %q", s)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %s", k)
	}
}

// parseArgs converts command line arguments to the parameter kinds of ft.
func parseArgs(ft *runtime.FuncType, args []string) ([]any, error) {
	if len(args) != len(ft.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", ft, len(ft.Params), len(args))
	}
	out := make([]any, len(args))
	for i, a := range args {
		v, err := parseValue(ft.Params[i], a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

type globalDef struct {
	value   any
	module  string
	name    string
	mutable bool
}

// parseGlobalDef parses module::name=kind:value[:mut]. The module may be
// empty.
func parseGlobalDef(def string) (globalDef, error) {
	target, val, ok := strings.Cut(def, "=")
	if !ok {
		return globalDef{}, fmt.Errorf("invalid global %q (expected module::name=kind:value[:mut])", def)
	}
	i := strings.LastIndex(target, "::")
	if i < 0 || target[i+2:] == "" {
		return globalDef{}, fmt.Errorf("invalid global target %q (expected module::name)", target)
	}
	g := globalDef{module: target[:i], name: target[i+2:]}

	kind, raw, ok := strings.Cut(val, ":")
	if !ok {
		return globalDef{}, fmt.Errorf("invalid global value %q (expected kind:value)", val)
	}
	if s, found := strings.CutSuffix(raw, ":mut"); found {
		raw, g.mutable = s, true
	}

	k, err := parseKind(kind)
	if err != nil {
		return globalDef{}, err
	}
	if g.value, err = parseValue(k, raw); err != nil {
		return globalDef{}, err
	}
	return g, nil
}

// formatResult renders a Function.Call result: nothing, one value or a
// list of values.
func formatResult(res any) string {
	switch r := res.(type) {
	case nil:
		return "()"
	case []any:
		parts := make([]string, len(r))
		for i, v := range r {
			parts[i] = formatValue(v)
		}
		return strings.Join(parts, " ")
	default:
		return formatValue(r)
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
