package linker

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/wasm"
)

// Valuer is a typed value that carries its own wasm encoding.
type Valuer interface {
	WasmType() wasm.ValType
	Bits() uint64
}

// hostValue encodes a Go value as a wasm scalar.
func hostValue(v any, path []string) (wasm.ValType, uint64, error) {
	switch x := v.(type) {
	case int32:
		return wasm.ValI32, api.EncodeI32(x), nil
	case uint32:
		return wasm.ValI32, api.EncodeU32(x), nil
	case int64:
		return wasm.ValI64, api.EncodeI64(x), nil
	case uint64:
		return wasm.ValI64, x, nil
	case float32:
		return wasm.ValF32, api.EncodeF32(x), nil
	case float64:
		return wasm.ValF64, api.EncodeF64(x), nil
	case Valuer:
		if x.WasmType().IsNumeric() {
			return x.WasmType(), x.Bits(), nil
		}
	}
	return 0, 0, errors.UnsupportedHostType(errors.PhaseHost, path, v)
}
