package wasm

import (
	"errors"
)

// LEB128 encoding/decoding utilities for WebAssembly binary format

var (
	// ErrOverflow is returned when a LEB128 value exceeds the maximum bit width.
	ErrOverflow = errors.New("leb128: overflow")
	// ErrUnexpectedEOF is returned when the input ends inside a LEB128 value.
	ErrUnexpectedEOF = errors.New("leb128: unexpected end of input")
)

// AppendULEB128 appends the unsigned LEB128 encoding of v to dst.
func AppendULEB128(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			dst = append(dst, b|0x80)
			continue
		}
		return append(dst, b)
	}
}

// AppendSLEB128 appends the signed LEB128 encoding of v to dst.
func AppendSLEB128(dst []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// DecodeULEB128 decodes an unsigned value of at most bits width.
// Returns the value and the number of bytes consumed.
func DecodeULEB128(data []byte, bits uint) (uint64, int, error) {
	var result uint64
	var shift uint
	for i, b := range data {
		if shift >= bits {
			return 0, 0, ErrOverflow
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			if bits < 64 && result>>bits != 0 {
				return 0, 0, ErrOverflow
			}
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrUnexpectedEOF
}

// DecodeSLEB128 decodes a signed value of at most bits width.
func DecodeSLEB128(data []byte, bits uint) (int64, int, error) {
	var result int64
	var shift uint
	limit := (bits + 6) / 7 * 7
	for i, b := range data {
		if shift >= limit {
			return 0, 0, ErrOverflow
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1, nil
		}
	}
	return 0, 0, ErrUnexpectedEOF
}
