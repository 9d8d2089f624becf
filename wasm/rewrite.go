package wasm

// RewriteImportModules returns a copy of bin in which every import whose
// module name is a key of mapping is renamed to the mapped value. All other
// sections are copied verbatim. Returns bin unchanged when nothing matches.
func RewriteImportModules(bin []byte, mapping map[string]string) ([]byte, error) {
	if len(mapping) == 0 {
		return bin, nil
	}
	return RewriteImports(bin, func(module, _ string) (string, bool) {
		to, ok := mapping[module]
		return to, ok
	})
}

// RewriteImports renames the module of each import for which rename
// reports true. Import names and descriptors are preserved.
func RewriteImports(bin []byte, rename func(module, name string) (string, bool)) ([]byte, error) {
	if _, err := ParseModule(bin); err != nil {
		return nil, err
	}

	r := &reader{data: bin, pos: 8}
	out := make([]byte, 0, len(bin)+64)
	out = append(out, bin[:8]...)
	changed := false

	for !r.eof() {
		start := r.pos
		id, _ := r.byte()
		size, _ := r.u32()
		body, _ := r.bytes(int(size))
		if id != SectionImport {
			out = append(out, bin[start:r.pos]...)
			continue
		}
		sec, n, err := rewriteImportSection(body, rename)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			changed = true
		}
		out = appendSection(out, SectionImport, sec)
	}

	if !changed {
		return bin, nil
	}
	return out, nil
}

// rewriteImportSection renames import modules and reports how many entries changed.
func rewriteImportSection(body []byte, rename func(module, name string) (string, bool)) ([]byte, int, error) {
	r := &reader{data: body, section: "import"}
	count, err := r.u32()
	if err != nil {
		return nil, 0, err
	}
	out := AppendULEB128(make([]byte, 0, len(body)+32), uint64(count))
	renamed := 0

	for i := uint32(0); i < count; i++ {
		mod, err := r.name()
		if err != nil {
			return nil, 0, err
		}
		// name and descriptor are copied as-is
		rest := r.pos
		name, err := r.name()
		if err != nil {
			return nil, 0, err
		}
		if err := r.skipImportDesc(); err != nil {
			return nil, 0, err
		}
		if to, ok := rename(mod, name); ok && to != mod {
			mod = to
			renamed++
		}
		out = appendName(out, mod)
		out = append(out, body[rest:r.pos]...)
	}
	return out, renamed, nil
}

func (r *reader) skipImportDesc() error {
	kind, err := r.byte()
	if err != nil {
		return err
	}
	switch ExternalKind(kind) {
	case KindFunc:
		_, err = r.u32()
	case KindTable:
		_, err = r.tableType()
	case KindMemory:
		_, err = r.memoryType()
	case KindGlobal:
		_, err = r.globalType()
	default:
		err = r.fail("unsupported import kind 0x%02x", kind)
	}
	return err
}

// ImportModules lists the distinct module names imported by m, in first-use order.
func (m *Module) ImportModules() []string {
	seen := make(map[string]struct{})
	var mods []string
	for _, imp := range m.Imports {
		if _, ok := seen[imp.Module]; ok {
			continue
		}
		seen[imp.Module] = struct{}{}
		mods = append(mods, imp.Module)
	}
	return mods
}
