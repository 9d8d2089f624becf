package wasm

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// ParseError reports malformed module bytes.
type ParseError struct {
	Section string
	Offset  int
	Msg     string
}

func (e *ParseError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("wasm: %s at offset %d", e.Msg, e.Offset)
	}
	return fmt.Sprintf("wasm: %s section: %s at offset %d", e.Section, e.Msg, e.Offset)
}

type reader struct {
	data    []byte
	pos     int
	section string
}

func (r *reader) fail(format string, args ...any) error {
	return &ParseError{Section: r.section, Offset: r.pos, Msg: fmt.Sprintf(format, args...)}
}

func (r *reader) eof() bool {
	return r.pos >= len(r.data)
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.fail("unexpected end of input")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, r.fail("unexpected end of input")
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	v, n, err := DecodeULEB128(r.data[r.pos:], 32)
	if err != nil {
		return 0, r.fail("%v", err)
	}
	r.pos += n
	return uint32(v), nil
}

func (r *reader) s64(bits uint) error {
	_, n, err := DecodeSLEB128(r.data[r.pos:], bits)
	if err != nil {
		return r.fail("%v", err)
	}
	r.pos += n
	return nil
}

func (r *reader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", r.fail("name is not valid UTF-8")
	}
	return string(b), nil
}

func (r *reader) valType() (ValType, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	switch v := ValType(b); v {
	case ValI32, ValI64, ValF32, ValF64, ValV128, ValFuncRef, ValExtern:
		return v, nil
	default:
		return 0, r.fail("unsupported value type 0x%02x", b)
	}
}

func (r *reader) valTypes() ([]ValType, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]ValType, n)
	for i := range out {
		if out[i], err = r.valType(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *reader) limits(memory bool) (Limits, bool, error) {
	flags, err := r.byte()
	if err != nil {
		return Limits{}, false, err
	}
	allowed := limitsHasMax
	if memory {
		allowed |= limitsShared
	}
	if flags&limits64 != 0 {
		return Limits{}, false, r.fail("64-bit limits are not supported")
	}
	if flags&^allowed != 0 {
		return Limits{}, false, r.fail("invalid limits flags 0x%02x", flags)
	}
	var l Limits
	if l.Min, err = r.u32(); err != nil {
		return Limits{}, false, err
	}
	if flags&limitsHasMax != 0 {
		l.HasMax = true
		if l.Max, err = r.u32(); err != nil {
			return Limits{}, false, err
		}
	}
	return l, flags&limitsShared != 0, nil
}

func (r *reader) tableType() (TableType, error) {
	elem, err := r.valType()
	if err != nil {
		return TableType{}, err
	}
	if elem != ValFuncRef && elem != ValExtern {
		return TableType{}, r.fail("invalid table element type %s", elem)
	}
	l, _, err := r.limits(false)
	return TableType{Elem: elem, Limits: l}, err
}

func (r *reader) memoryType() (MemoryType, error) {
	l, shared, err := r.limits(true)
	return MemoryType{Limits: l, Shared: shared}, err
}

func (r *reader) globalType() (GlobalType, error) {
	t, err := r.valType()
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.byte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, r.fail("invalid mutability 0x%02x", mut)
	}
	return GlobalType{Type: t, Mutable: mut == 1}, nil
}

// constExpr skips a constant initializer expression, including the
// extended-const arithmetic instructions.
func (r *reader) constExpr() error {
	for {
		op, err := r.byte()
		if err != nil {
			return err
		}
		switch op {
		case OpEnd:
			return nil
		case OpI32Const:
			err = r.s64(32)
		case OpI64Const:
			err = r.s64(64)
		case OpF32Const:
			_, err = r.bytes(4)
		case OpF64Const:
			_, err = r.bytes(8)
		case OpGlobalGet, OpRefFunc:
			_, err = r.u32()
		case OpRefNull:
			_, err = r.byte()
		case OpI32Add, OpI32Sub, OpI32Mul, OpI64Add, OpI64Sub, OpI64Mul:
		default:
			return r.fail("unsupported constant expression opcode 0x%02x", op)
		}
		if err != nil {
			return err
		}
	}
}

// ParseModule decodes the declaration sections of a binary module.
func ParseModule(bin []byte) (*Module, error) {
	r := &reader{data: bin}
	if len(bin) < 8 {
		return nil, r.fail("module too short")
	}
	if binary.LittleEndian.Uint32(bin[0:4]) != Magic {
		return nil, r.fail("invalid magic number")
	}
	if v := binary.LittleEndian.Uint32(bin[4:8]); v != Version {
		return nil, r.fail("unsupported version %d", v)
	}
	r.pos = 8

	m := &Module{}
	lastOrder := 0
	for !r.eof() {
		r.section = ""
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		body, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		if id != SectionCustom {
			order := sectionOrder(id)
			if order < 0 {
				return nil, r.fail("unknown section id %d", id)
			}
			if order <= lastOrder {
				return nil, r.fail("%s section out of order", sectionName(id))
			}
			lastOrder = order
		}
		sr := &reader{data: body, section: sectionName(id)}
		if err := m.parseSection(id, sr); err != nil {
			if pe, ok := err.(*ParseError); ok {
				pe.Offset += r.pos - len(body)
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *Module) parseSection(id byte, r *reader) error {
	switch id {
	case SectionType:
		return m.parseTypes(r)
	case SectionImport:
		return m.parseImports(r)
	case SectionFunction:
		return vec(r, func() error {
			ti, err := r.u32()
			if err != nil {
				return err
			}
			if int(ti) >= len(m.Types) {
				return r.fail("type index %d out of range", ti)
			}
			m.Funcs = append(m.Funcs, ti)
			return nil
		})
	case SectionTable:
		return vec(r, func() error {
			t, err := r.tableType()
			m.Tables = append(m.Tables, t)
			return err
		})
	case SectionMemory:
		return vec(r, func() error {
			mt, err := r.memoryType()
			m.Memories = append(m.Memories, mt)
			return err
		})
	case SectionGlobal:
		return vec(r, func() error {
			g, err := r.globalType()
			if err != nil {
				return err
			}
			m.Globals = append(m.Globals, g)
			return r.constExpr()
		})
	case SectionExport:
		seen := make(map[string]struct{})
		return vec(r, func() error {
			name, err := r.name()
			if err != nil {
				return err
			}
			if _, dup := seen[name]; dup {
				return r.fail("duplicate export name %q", name)
			}
			seen[name] = struct{}{}
			kind, err := r.byte()
			if err != nil {
				return err
			}
			if kind > byte(KindGlobal) {
				return r.fail("unsupported export kind 0x%02x", kind)
			}
			idx, err := r.u32()
			m.Exports = append(m.Exports, Export{Name: name, Kind: ExternalKind(kind), Index: idx})
			return err
		})
	case SectionStart:
		idx, err := r.u32()
		m.Start = &idx
		return err
	default:
		// custom, element, code, data and data count sections carry nothing
		// the host API needs
		return nil
	}
}

func (m *Module) parseTypes(r *reader) error {
	return vec(r, func() error {
		form, err := r.byte()
		if err != nil {
			return err
		}
		if form != FuncTypeByte {
			return r.fail("unsupported type form 0x%02x", form)
		}
		params, err := r.valTypes()
		if err != nil {
			return err
		}
		results, err := r.valTypes()
		if err != nil {
			return err
		}
		m.Types = append(m.Types, FuncType{Params: params, Results: results})
		return nil
	})
}

func (m *Module) parseImports(r *reader) error {
	return vec(r, func() error {
		mod, err := r.name()
		if err != nil {
			return err
		}
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		imp := Import{Module: mod, Name: name, Kind: ExternalKind(kind)}
		switch imp.Kind {
		case KindFunc:
			ti, err := r.u32()
			if err != nil {
				return err
			}
			if int(ti) >= len(m.Types) {
				return r.fail("type index %d out of range", ti)
			}
			ft := m.Types[ti]
			imp.Func = &ft
		case KindTable:
			t, err := r.tableType()
			if err != nil {
				return err
			}
			imp.Table = &t
		case KindMemory:
			mt, err := r.memoryType()
			if err != nil {
				return err
			}
			imp.Memory = &mt
		case KindGlobal:
			g, err := r.globalType()
			if err != nil {
				return err
			}
			imp.Global = &g
		default:
			return r.fail("unsupported import kind 0x%02x", kind)
		}
		m.Imports = append(m.Imports, imp)
		return nil
	})
}

func vec(r *reader, item func() error) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		if err := item(); err != nil {
			return err
		}
	}
	if !r.eof() {
		return r.fail("%d trailing bytes", len(r.data)-r.pos)
	}
	return nil
}

// sectionOrder ranks non-custom sections in their required order.
// The data count section sits between element and code.
func sectionOrder(id byte) int {
	switch {
	case id >= SectionType && id <= SectionElement:
		return int(id)
	case id == SectionDataCount:
		return 10
	case id == SectionCode:
		return 11
	case id == SectionData:
		return 12
	default:
		return -1
	}
}

func sectionName(id byte) string {
	switch id {
	case SectionCustom:
		return "custom"
	case SectionType:
		return "type"
	case SectionImport:
		return "import"
	case SectionFunction:
		return "function"
	case SectionTable:
		return "table"
	case SectionMemory:
		return "memory"
	case SectionGlobal:
		return "global"
	case SectionExport:
		return "export"
	case SectionStart:
		return "start"
	case SectionElement:
		return "element"
	case SectionCode:
		return "code"
	case SectionData:
		return "data"
	case SectionDataCount:
		return "data count"
	default:
		return fmt.Sprintf("unknown(%d)", id)
	}
}
