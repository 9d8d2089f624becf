package runtime

import (
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/wasm"
)

// ValueKind is one of the four numeric value types.
type ValueKind uint8

const (
	I32 ValueKind = iota + 1
	I64
	F32
	F64
)

func (k ValueKind) String() string {
	switch k {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// valType returns the binary encoding of k.
func (k ValueKind) valType() wasm.ValType {
	switch k {
	case I32:
		return wasm.ValI32
	case I64:
		return wasm.ValI64
	case F32:
		return wasm.ValF32
	default:
		return wasm.ValF64
	}
}

// apiType returns the wazero value type of k.
func (k ValueKind) apiType() api.ValueType {
	return api.ValueType(k.valType())
}

func kindOf(t wasm.ValType) (ValueKind, error) {
	switch t {
	case wasm.ValI32:
		return I32, nil
	case wasm.ValI64:
		return I64, nil
	case wasm.ValF32:
		return F32, nil
	case wasm.ValF64:
		return F64, nil
	default:
		return 0, errors.New(errors.PhaseLoad, errors.KindUnsupported).
			ValueType(t.String()).
			Detail("only i32, i64, f32 and f64 values are supported").
			Build()
	}
}

// Value is a wasm scalar: exactly one of i32, i64, f32 or f64.
// The zero Value is invalid.
type Value struct {
	bits uint64
	kind ValueKind
}

func ValueI32(v int32) Value   { return Value{kind: I32, bits: api.EncodeI32(v)} }
func ValueI64(v int64) Value   { return Value{kind: I64, bits: api.EncodeI64(v)} }
func ValueF32(v float32) Value { return Value{kind: F32, bits: api.EncodeF32(v)} }
func ValueF64(v float64) Value { return Value{kind: F64, bits: api.EncodeF64(v)} }

// valueFromBits decodes a raw stack slot of kind k.
func valueFromBits(k ValueKind, bits uint64) Value {
	if k == I32 || k == F32 {
		bits = uint64(uint32(bits))
	}
	return Value{kind: k, bits: bits}
}

// ValueOf converts a host value. int32 and uint32 become i32, int64 and
// uint64 become i64, float32 and float64 map directly. Any other type,
// including int and pointers, is a type mismatch naming the Go type.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case Value:
		if v.kind == 0 {
			return Value{}, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
				Detail("zero Value").
				Build()
		}
		return v, nil
	case int32:
		return ValueI32(v), nil
	case uint32:
		return Value{kind: I32, bits: api.EncodeU32(v)}, nil
	case int64:
		return ValueI64(v), nil
	case uint64:
		return Value{kind: I64, bits: v}, nil
	case float32:
		return ValueF32(v), nil
	case float64:
		return ValueF64(v), nil
	default:
		return Value{}, errors.UnsupportedHostType(errors.PhaseRuntime, nil, x)
	}
}

// Kind returns the value type.
func (v Value) Kind() ValueKind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != 0 }

func (v Value) I32() int32   { return api.DecodeI32(v.bits) }
func (v Value) I64() int64   { return int64(v.bits) }
func (v Value) F32() float32 { return api.DecodeF32(v.bits) }
func (v Value) F64() float64 { return api.DecodeF64(v.bits) }

// Any returns v as int32, int64, float32 or float64.
func (v Value) Any() any {
	switch v.kind {
	case I32:
		return v.I32()
	case I64:
		return v.I64()
	case F32:
		return v.F32()
	case F64:
		return v.F64()
	default:
		return nil
	}
}

// WasmType implements linker.Valuer.
func (v Value) WasmType() wasm.ValType { return v.kind.valType() }

// Bits returns the raw stack encoding.
func (v Value) Bits() uint64 { return v.bits }

func (v Value) String() string {
	switch v.kind {
	case I32:
		return fmt.Sprintf("i32:%d", v.I32())
	case I64:
		return fmt.Sprintf("i64:%d", v.I64())
	case F32:
		return fmt.Sprintf("f32:%g", v.F32())
	case F64:
		return fmt.Sprintf("f64:%g", v.F64())
	default:
		return "invalid"
	}
}

// Equal compares kind and bit pattern, so NaNs with equal payloads are equal.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.bits == o.bits
}

// IsNaN reports whether v is a float NaN.
func (v Value) IsNaN() bool {
	switch v.kind {
	case F32:
		return math.IsNaN(float64(v.F32()))
	case F64:
		return math.IsNaN(v.F64())
	default:
		return false
	}
}
